package scanner

import "time"

// Entry is one file or directory of a snapshot. Path is relative to the
// backend's basepath with forward slashes; ModTime is UTC.
type Entry struct {
	Path    string
	Size    uint64
	ModTime time.Time
}
