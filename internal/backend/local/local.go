// Package local implements backend.Backend on the host filesystem for both
// drive-letter (Windows) and slash-rooted (Unix) paths.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dl-alexandre/dirsync/internal/backend"
)

// Path rules, matched case-insensitively by the router.
var (
	WindowsPattern = regexp.MustCompile(`(?i)^[a-z]:[\\/]`)
	UnixPattern    = regexp.MustCompile(`^/`)
)

const windowsPrecision = 100 * time.Nanosecond

// FS is a local directory tree rooted at a basepath.
type FS struct {
	kind     backend.Kind
	basepath string
}

// NewWindows initializes a backend for a drive-letter path such as C:\data.
func NewWindows(p string) (*FS, error) {
	if !WindowsPattern.MatchString(p) {
		return nil, fmt.Errorf("%w: %q is not a drive-letter path", backend.ErrUnsupportedPath, p)
	}
	return newFS(backend.KindWindows, p)
}

// NewUnix initializes a backend for an absolute slash-rooted path.
func NewUnix(p string) (*FS, error) {
	if !UnixPattern.MatchString(p) {
		return nil, fmt.Errorf("%w: %q is not an absolute path", backend.ErrUnsupportedPath, p)
	}
	return newFS(backend.KindUnix, p)
}

func newFS(kind backend.Kind, p string) (*FS, error) {
	base := filepath.Clean(filepath.FromSlash(p))
	info, err := os.Stat(base)
	if err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", base, backend.ErrNotDir)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return &FS{kind: kind, basepath: base}, nil
}

func (f *FS) Kind() backend.Kind { return f.kind }

func (f *FS) Basepath() string { return f.basepath }

func (f *FS) Precision() time.Duration {
	if f.kind == backend.KindWindows {
		return windowsPrecision
	}
	return 0
}

func (f *FS) abs(rel string) string {
	rel = backend.CleanRel(rel)
	if rel == "" {
		return f.basepath
	}
	return filepath.Join(f.basepath, filepath.FromSlash(rel))
}

func (f *FS) Makedirs(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(f.abs(rel), 0o755)
}

func (f *FS) Rmtree(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := f.abs(rel)
	info, err := os.Lstat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("rmtree %s: %w", full, backend.ErrNotDir)
	}
	return os.RemoveAll(full)
}

func (f *FS) Open(ctx context.Context, rel string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(f.abs(rel))
}

// Write stages src in a temporary file next to the target and renames it
// into place, so readers never observe a partial file.
func (f *FS) Write(ctx context.Context, rel string, src io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := f.abs(rel)
	out, err := os.CreateTemp(filepath.Dir(full), ".dirsync-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", full, err)
	}
	tmp := out.Name()
	defer func() {
		if tmp != "" {
			_ = os.Remove(tmp)
		}
	}()

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", full, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file for %s: %w", full, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, full); err != nil {
		return err
	}
	tmp = ""
	return nil
}

func (f *FS) Delete(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := f.abs(rel)
	info, err := os.Lstat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("delete %s: %w", full, backend.ErrNotDir)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FS) Stat(ctx context.Context, rel string) (backend.StatResult, error) {
	if err := ctx.Err(); err != nil {
		return backend.StatResult{}, err
	}
	full := f.abs(rel)
	info, err := os.Stat(full)
	if err != nil {
		return backend.StatResult{}, err
	}
	res := backend.StatResult{
		Name:    info.Name(),
		ModTime: info.ModTime().UTC(),
		IsDir:   info.IsDir(),
	}
	if !info.IsDir() {
		res.Size = uint64(info.Size())
	}
	res.ATime, res.CTime = extraTimes(full, info)
	return res, nil
}

func (f *FS) Utime(ctx context.Context, rel string, atime, mtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Chtimes(f.abs(rel), atime, mtime)
}

func (f *FS) Walk(ctx context.Context, rel string, fn backend.WalkFunc) error {
	rel = backend.CleanRel(rel)
	if _, err := os.Stat(f.abs(rel)); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return f.walk(ctx, rel, fn)
}

func (f *FS) walk(ctx context.Context, rel string, fn backend.WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(f.abs(rel))
	if err != nil {
		return err
	}
	var dirs, files []string
	for _, e := range entries {
		switch {
		case e.Type()&fs.ModeSymlink != 0:
			continue
		case e.IsDir():
			dirs = append(dirs, e.Name())
		case e.Type().IsRegular():
			files = append(files, e.Name())
		}
	}
	if err := fn(rel, dirs, files); err != nil {
		return err
	}
	for _, d := range dirs {
		if err := f.walk(ctx, backend.JoinRel(rel, d), fn); err != nil {
			return err
		}
	}
	return nil
}

func (f *FS) Close() error { return nil }

var _ backend.Backend = (*FS)(nil)
