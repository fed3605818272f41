package testing

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// TestContext creates a standard test context
func TestContext() context.Context {
	return context.Background()
}

// BaseTime is a fixed, whole-second UTC instant tests build times from.
var BaseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// At returns BaseTime shifted by the given number of seconds.
func At(seconds int) time.Time {
	return BaseTime.Add(time.Duration(seconds) * time.Second)
}

// File describes one file of a tree written by WriteTree.
type File struct {
	Content string
	ModTime time.Time
}

// WriteTree creates files (and their parent directories) below root and
// sets each file's access and modification time.
func WriteTree(t *testing.T, root string, files map[string]File) {
	t.Helper()
	for rel, f := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(f.Content), 0o644); err != nil {
			t.Fatalf("write %s: %v", full, err)
		}
		mtime := f.ModTime
		if mtime.IsZero() {
			mtime = BaseTime
		}
		if err := os.Chtimes(full, mtime, mtime); err != nil {
			t.Fatalf("chtimes %s: %v", full, err)
		}
	}
}

// MakeDirs creates empty directories below root.
func MakeDirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
}

// ListTree returns every path below root, slash-separated and sorted;
// directories carry a trailing slash.
func ListTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(out)
	return out
}
