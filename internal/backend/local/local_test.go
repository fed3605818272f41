package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"time"

	"github.com/dl-alexandre/dirsync/internal/backend"
)

func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix-rooted temp paths only")
	}
	root := t.TempDir()
	fsys, err := NewUnix(root)
	if err != nil {
		t.Fatalf("NewUnix(%q) error = %v", root, err)
	}
	return fsys, root
}

func TestPatterns(t *testing.T) {
	tests := []struct {
		path    string
		windows bool
		unix    bool
	}{
		{`C:\data`, true, false},
		{`d:/backup`, true, false},
		{`/srv/data`, false, true},
		{`relative/dir`, false, false},
		{`ftp://host/`, false, false},
		{`C:relative`, false, false},
	}
	for _, tt := range tests {
		if got := WindowsPattern.MatchString(tt.path); got != tt.windows {
			t.Errorf("WindowsPattern(%q) = %v, want %v", tt.path, got, tt.windows)
		}
		if got := UnixPattern.MatchString(tt.path); got != tt.unix {
			t.Errorf("UnixPattern(%q) = %v, want %v", tt.path, got, tt.unix)
		}
	}
}

func TestNewUnix_Rejects(t *testing.T) {
	if _, err := NewUnix("relative"); !errors.Is(err, backend.ErrUnsupportedPath) {
		t.Errorf("NewUnix(relative) error = %v, want ErrUnsupportedPath", err)
	}

	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewUnix(file); !errors.Is(err, backend.ErrNotDir) {
		t.Errorf("NewUnix(file) error = %v, want ErrNotDir", err)
	}
}

func TestFS_WriteOpenStat(t *testing.T) {
	ctx := context.Background()
	fsys, root := newTestFS(t)

	if err := fsys.Makedirs(ctx, "a/b"); err != nil {
		t.Fatalf("Makedirs() error = %v", err)
	}
	if err := fsys.Makedirs(ctx, "a/b"); err != nil {
		t.Fatalf("Makedirs() on existing dir error = %v", err)
	}
	if err := backend.WriteBytes(ctx, fsys, "a/b/c.txt", []byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b", "c.txt")); err != nil {
		t.Fatalf("file not on disk: %v", err)
	}

	rc, err := fsys.Open(ctx, "a/b/c.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}

	st, err := fsys.Stat(ctx, "a/b/c.txt")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if st.Size != 5 || st.IsDir || st.Name != "c.txt" {
		t.Errorf("unexpected stat %+v", st)
	}
	if st.ModTime.Location() != time.UTC {
		t.Errorf("ModTime not UTC: %v", st.ModTime.Location())
	}

	matches, _ := filepath.Glob(filepath.Join(root, "a", "b", ".dirsync-*"))
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}

func TestFS_Utime(t *testing.T) {
	ctx := context.Background()
	fsys, _ := newTestFS(t)

	if err := backend.WriteBytes(ctx, fsys, "f", []byte("x")); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2020, 5, 17, 8, 30, 0, 0, time.UTC)
	if err := fsys.Utime(ctx, "f", mtime, mtime); err != nil {
		t.Fatalf("Utime() error = %v", err)
	}
	st, err := fsys.Stat(ctx, "f")
	if err != nil {
		t.Fatal(err)
	}
	if !st.ModTime.Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", st.ModTime, mtime)
	}
}

func TestFS_IdempotentRemoval(t *testing.T) {
	ctx := context.Background()
	fsys, root := newTestFS(t)

	if err := fsys.Delete(ctx, "missing.txt"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
	if err := fsys.Rmtree(ctx, "missing-dir"); err != nil {
		t.Errorf("Rmtree(missing) error = %v", err)
	}

	if err := fsys.Makedirs(ctx, "d/e"); err != nil {
		t.Fatal(err)
	}
	if err := backend.WriteBytes(ctx, fsys, "d/e/f.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := fsys.Rmtree(ctx, "d"); err != nil {
		t.Fatalf("Rmtree() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "d")); !os.IsNotExist(err) {
		t.Errorf("directory still present: %v", err)
	}
	if err := fsys.Rmtree(ctx, "d"); err != nil {
		t.Errorf("second Rmtree() error = %v", err)
	}
}

func TestFS_RemovalRejectsWrongType(t *testing.T) {
	ctx := context.Background()
	fsys, root := newTestFS(t)

	if err := fsys.Makedirs(ctx, "empty"); err != nil {
		t.Fatal(err)
	}
	if err := fsys.Delete(ctx, "empty"); !errors.Is(err, backend.ErrNotDir) {
		t.Errorf("Delete(dir) error = %v, want ErrNotDir", err)
	}
	if _, err := os.Stat(filepath.Join(root, "empty")); err != nil {
		t.Errorf("empty directory removed by Delete: %v", err)
	}

	if err := backend.WriteBytes(ctx, fsys, "file.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := fsys.Rmtree(ctx, "file.txt"); !errors.Is(err, backend.ErrNotDir) {
		t.Errorf("Rmtree(file) error = %v, want ErrNotDir", err)
	}
	if _, err := os.Stat(filepath.Join(root, "file.txt")); err != nil {
		t.Errorf("file removed by Rmtree: %v", err)
	}
}

func TestFS_Walk(t *testing.T) {
	ctx := context.Background()
	fsys, root := newTestFS(t)

	for _, d := range []string{"a/x", "b"} {
		if err := fsys.Makedirs(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{"top.txt", "a/one.txt", "a/x/two.txt"} {
		if err := backend.WriteBytes(ctx, fsys, f, []byte(f)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}

	type visit struct {
		Dir     string
		Subdirs []string
		Files   []string
	}
	var got []visit
	err := fsys.Walk(ctx, "", func(dir string, subdirs, files []string) error {
		got = append(got, visit{dir, subdirs, files})
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []visit{
		{"", []string{"a", "b"}, []string{"top.txt"}},
		{"a", []string{"x"}, []string{"one.txt"}},
		{"a/x", nil, []string{"two.txt"}},
		{"b", nil, nil},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk visits = %+v\nwant %+v", got, want)
	}
}

func TestFS_WalkMissingRoot(t *testing.T) {
	fsys, err := NewUnix(filepath.Join(t.TempDir(), "not-yet"))
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	if err := fsys.Walk(context.Background(), "", func(string, []string, []string) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("Walk visited %d dirs of a missing root", calls)
	}
}

func TestFS_CancelledContext(t *testing.T) {
	fsys, _ := newTestFS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fsys.Makedirs(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Makedirs() error = %v, want context.Canceled", err)
	}
}
