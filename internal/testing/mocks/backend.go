package mocks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dl-alexandre/dirsync/internal/backend"
)

type node struct {
	dir   bool
	data  []byte
	mtime time.Time
}

// MockBackend is an in-memory backend.Backend. Paths are relative and
// slash-separated; the basepath is only reported, never used.
type MockBackend struct {
	kind      backend.Kind
	basepath  string
	precision time.Duration
	nodes     map[string]*node
	// Now stamps written files before Utime runs.
	Now time.Time
	// Fail maps "op path" (for example "write a.txt") to an injected error.
	Fail   map[string]error
	Calls  []string
	Closed bool
}

// NewMockBackend creates an empty tree whose root exists.
func NewMockBackend(basepath string, precision time.Duration) *MockBackend {
	return &MockBackend{
		kind:      backend.KindUnix,
		basepath:  basepath,
		precision: precision,
		nodes:     map[string]*node{"": {dir: true}},
		Now:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Fail:      map[string]error{},
	}
}

// AddDir creates rel and its ancestors.
func (m *MockBackend) AddDir(rel string) *MockBackend {
	rel = backend.CleanRel(rel)
	for _, p := range append(backend.Parents(rel), rel) {
		if _, ok := m.nodes[p]; !ok {
			m.nodes[p] = &node{dir: true, mtime: m.Now}
		}
	}
	return m
}

// AddFile creates rel with content and mtime, adding parent directories.
func (m *MockBackend) AddFile(rel, content string, mtime time.Time) *MockBackend {
	rel = backend.CleanRel(rel)
	if parent := path.Dir(rel); parent != "." {
		m.AddDir(parent)
	}
	m.nodes[rel] = &node{data: []byte(content), mtime: mtime.UTC()}
	return m
}

// RemoveRoot makes the basepath itself absent.
func (m *MockBackend) RemoveRoot() *MockBackend {
	m.nodes = map[string]*node{}
	return m
}

// Content returns a file's bytes and whether it exists as a file.
func (m *MockBackend) Content(rel string) (string, bool) {
	n, ok := m.nodes[backend.CleanRel(rel)]
	if !ok || n.dir {
		return "", false
	}
	return string(n.data), true
}

// IsDir reports whether rel exists as a directory.
func (m *MockBackend) IsDir(rel string) bool {
	n, ok := m.nodes[backend.CleanRel(rel)]
	return ok && n.dir
}

// ModTime returns the stored modification time of rel.
func (m *MockBackend) ModTime(rel string) time.Time {
	if n, ok := m.nodes[backend.CleanRel(rel)]; ok {
		return n.mtime
	}
	return time.Time{}
}

// Paths lists every file and directory except the root, sorted; directories
// carry a trailing slash.
func (m *MockBackend) Paths() []string {
	var out []string
	for p, n := range m.nodes {
		if p == "" {
			continue
		}
		if n.dir {
			p += "/"
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MockBackend) record(op, rel string) error {
	m.Calls = append(m.Calls, op+" "+rel)
	if err, ok := m.Fail[op+" "+rel]; ok {
		return err
	}
	return nil
}

func notExist(op, rel string) error {
	return &fs.PathError{Op: op, Path: rel, Err: fs.ErrNotExist}
}

func (m *MockBackend) Kind() backend.Kind { return m.kind }

func (m *MockBackend) Basepath() string { return m.basepath }

func (m *MockBackend) Precision() time.Duration { return m.precision }

func (m *MockBackend) Makedirs(ctx context.Context, rel string) error {
	rel = backend.CleanRel(rel)
	if err := m.record("makedirs", rel); err != nil {
		return err
	}
	for _, p := range append([]string{""}, append(backend.Parents(rel), rel)...) {
		n, ok := m.nodes[p]
		if ok && !n.dir {
			return fmt.Errorf("makedirs %s: %w", p, backend.ErrNotDir)
		}
		if !ok {
			m.nodes[p] = &node{dir: true, mtime: m.Now}
		}
	}
	return nil
}

func (m *MockBackend) Rmtree(ctx context.Context, rel string) error {
	rel = backend.CleanRel(rel)
	if err := m.record("rmtree", rel); err != nil {
		return err
	}
	n, ok := m.nodes[rel]
	if !ok {
		return nil
	}
	if !n.dir {
		return fmt.Errorf("rmtree %s: %w", rel, backend.ErrNotDir)
	}
	for p := range m.nodes {
		if p == rel || strings.HasPrefix(p, rel+"/") {
			delete(m.nodes, p)
		}
	}
	return nil
}

func (m *MockBackend) Open(ctx context.Context, rel string) (io.ReadCloser, error) {
	rel = backend.CleanRel(rel)
	if err := m.record("open", rel); err != nil {
		return nil, err
	}
	n, ok := m.nodes[rel]
	if !ok || n.dir {
		return nil, notExist("open", rel)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), n.data...))), nil
}

func (m *MockBackend) Write(ctx context.Context, rel string, src io.Reader) error {
	rel = backend.CleanRel(rel)
	if err := m.record("write", rel); err != nil {
		return err
	}
	parent, ok := m.nodes[backend.CleanRel(path.Dir(rel))]
	if !ok || !parent.dir {
		return notExist("write", path.Dir(rel))
	}
	if n, ok := m.nodes[rel]; ok && n.dir {
		return fmt.Errorf("write %s: is a directory", rel)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	m.nodes[rel] = &node{data: data, mtime: m.Now}
	return nil
}

func (m *MockBackend) Delete(ctx context.Context, rel string) error {
	rel = backend.CleanRel(rel)
	if err := m.record("delete", rel); err != nil {
		return err
	}
	n, ok := m.nodes[rel]
	if !ok {
		return nil
	}
	if n.dir {
		return fmt.Errorf("delete %s: %w", rel, backend.ErrNotDir)
	}
	delete(m.nodes, rel)
	return nil
}

func (m *MockBackend) Stat(ctx context.Context, rel string) (backend.StatResult, error) {
	rel = backend.CleanRel(rel)
	n, ok := m.nodes[rel]
	if !ok {
		return backend.StatResult{}, notExist("stat", rel)
	}
	return backend.StatResult{
		Name:    path.Base(rel),
		Size:    uint64(len(n.data)),
		ModTime: n.mtime,
		IsDir:   n.dir,
	}, nil
}

func (m *MockBackend) Utime(ctx context.Context, rel string, atime, mtime time.Time) error {
	rel = backend.CleanRel(rel)
	if err := m.record("utime", rel); err != nil {
		return err
	}
	n, ok := m.nodes[rel]
	if !ok {
		return notExist("utime", rel)
	}
	if m.precision > 0 {
		mtime = mtime.Truncate(m.precision)
	}
	n.mtime = mtime.UTC()
	return nil
}

func (m *MockBackend) Walk(ctx context.Context, rel string, fn backend.WalkFunc) error {
	rel = backend.CleanRel(rel)
	if err, ok := m.Fail["walk "+rel]; ok {
		return err
	}
	if !m.IsDir(rel) {
		return nil
	}
	return m.walk(ctx, rel, fn)
}

func (m *MockBackend) walk(ctx context.Context, dir string, fn backend.WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var dirs, files []string
	for p, n := range m.nodes {
		if p == "" || p == dir || backend.CleanRel(path.Dir(p)) != dir {
			continue
		}
		if n.dir {
			dirs = append(dirs, path.Base(p))
		} else {
			files = append(files, path.Base(p))
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	if err := fn(dir, dirs, files); err != nil {
		return err
	}
	for _, d := range dirs {
		if err := m.walk(ctx, backend.JoinRel(dir, d), fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockBackend) Close() error {
	m.Closed = true
	return nil
}

var _ backend.Backend = (*MockBackend)(nil)
