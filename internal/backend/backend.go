// Package backend defines the filesystem capability set shared by the local
// and FTP implementations. Every path taken by a Backend is relative to its
// basepath and uses forward slashes; "" and "." name the basepath itself.
package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// Kind identifies a backend variant.
type Kind string

const (
	KindWindows Kind = "windows"
	KindUnix    Kind = "unix"
	KindFTP     Kind = "ftp"
)

var (
	// ErrUnsupportedPath is returned when no backend pattern matches a path.
	ErrUnsupportedPath = errors.New("no backend matches path")
	// ErrNotDir is returned when a directory operation targets a file, or a
	// file removal targets a directory.
	ErrNotDir = errors.New("not a directory")
)

// StatResult describes one file or directory. Times are UTC. ATime and
// CTime are zero when a backend cannot report them.
type StatResult struct {
	Name    string
	Size    uint64
	ModTime time.Time
	ATime   time.Time
	CTime   time.Time
	IsDir   bool
}

// WalkFunc receives one directory per call: its path relative to the
// basepath and the names of its immediate subdirectories and files.
// Returning an error stops the walk and is returned by Walk.
type WalkFunc func(dir string, subdirs, files []string) error

// Backend is the capability set every filesystem variant provides.
type Backend interface {
	Kind() Kind
	// Basepath is the root every relative path is joined against.
	Basepath() string
	// Precision is the modification-time resolution the backend preserves.
	Precision() time.Duration

	Makedirs(ctx context.Context, rel string) error
	// Rmtree removes a directory subtree. Absent paths are not an error.
	Rmtree(ctx context.Context, rel string) error
	Open(ctx context.Context, rel string) (io.ReadCloser, error)
	Write(ctx context.Context, rel string, src io.Reader) error
	// Delete removes a single file. Absent paths are not an error.
	Delete(ctx context.Context, rel string) error
	Stat(ctx context.Context, rel string) (StatResult, error)
	Utime(ctx context.Context, rel string, atime, mtime time.Time) error
	// Walk visits rel and every directory below it depth-first, parents
	// before children. Symbolic links are not followed or reported.
	Walk(ctx context.Context, rel string, fn WalkFunc) error
	Close() error
}

// WriteBytes writes an in-memory buffer through b.
func WriteBytes(ctx context.Context, b Backend, rel string, data []byte) error {
	return b.Write(ctx, rel, bytes.NewReader(data))
}

// CleanRel normalizes a relative path: forward slashes, no leading slash,
// no "." or ".." segments escaping the root. The basepath itself is "".
func CleanRel(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = path.Clean("/" + rel)
	return strings.TrimPrefix(rel, "/")
}

// JoinRel joins a directory and a name produced by Walk.
func JoinRel(dir, name string) string {
	if dir == "" || dir == "." {
		return CleanRel(name)
	}
	return CleanRel(dir + "/" + name)
}

// Parents returns every proper ancestor of rel, shallowest first.
func Parents(rel string) []string {
	rel = CleanRel(rel)
	var out []string
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' {
			out = append(out, rel[:i])
		}
	}
	return out
}

// Depth counts the segments of a relative path.
func Depth(rel string) int {
	rel = CleanRel(rel)
	if rel == "" {
		return 0
	}
	return strings.Count(rel, "/") + 1
}
