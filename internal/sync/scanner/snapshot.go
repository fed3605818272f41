// Package scanner materializes one walk of a backend into flat path maps.
package scanner

import (
	"context"
	"fmt"
	"maps"

	"github.com/dl-alexandre/dirsync/internal/backend"
	"github.com/dl-alexandre/dirsync/internal/logging"
	"github.com/dl-alexandre/dirsync/internal/sync/exclude"
)

// Snapshot is the file and directory listing of one backend. The walk runs
// on first access and is reused until Invalidate.
type Snapshot struct {
	backend backend.Backend
	matcher *exclude.Matcher
	logger  logging.Logger

	scanned bool
	files   map[string]Entry
	dirs    map[string]Entry
}

func NewSnapshot(b backend.Backend, matcher *exclude.Matcher, logger logging.Logger) *Snapshot {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Snapshot{backend: b, matcher: matcher, logger: logger}
}

func (s *Snapshot) Backend() backend.Backend { return s.backend }

// Files returns a copy of the file map, scanning if needed.
func (s *Snapshot) Files(ctx context.Context) (map[string]Entry, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return maps.Clone(s.files), nil
}

// Dirs returns a copy of the directory map, scanning if needed.
func (s *Snapshot) Dirs(ctx context.Context) (map[string]Entry, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return maps.Clone(s.dirs), nil
}

// Size is the sum of all file sizes.
func (s *Snapshot) Size(ctx context.Context) (uint64, error) {
	if err := s.ensure(ctx); err != nil {
		return 0, err
	}
	var total uint64
	for _, f := range s.files {
		total += f.Size
	}
	return total, nil
}

// Scanned reports whether a walk result is held.
func (s *Snapshot) Scanned() bool { return s.scanned }

// Invalidate drops the held result; the next access walks again.
func (s *Snapshot) Invalidate() {
	s.scanned = false
	s.files = nil
	s.dirs = nil
}

// Rescan walks the backend now, replacing any held result.
func (s *Snapshot) Rescan(ctx context.Context) error {
	s.Invalidate()
	return s.ensure(ctx)
}

func (s *Snapshot) ensure(ctx context.Context) error {
	if s.scanned {
		return nil
	}
	files := make(map[string]Entry)
	dirs := make(map[string]Entry)
	skipped := make(map[string]bool)

	err := s.backend.Walk(ctx, "", func(dir string, subdirs, names []string) error {
		if skipped[dir] {
			for _, d := range subdirs {
				skipped[backend.JoinRel(dir, d)] = true
			}
			return nil
		}
		for _, d := range subdirs {
			rel := backend.JoinRel(dir, d)
			if s.matcher.IsExcluded(rel, true) {
				skipped[rel] = true
				continue
			}
			entry, err := s.stat(ctx, rel)
			if err != nil {
				return err
			}
			dirs[rel] = entry
		}
		for _, name := range names {
			rel := backend.JoinRel(dir, name)
			if s.matcher.IsExcluded(rel, false) {
				continue
			}
			entry, err := s.stat(ctx, rel)
			if err != nil {
				return err
			}
			files[rel] = entry
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.backend.Basepath(), err)
	}

	s.files, s.dirs, s.scanned = files, dirs, true
	s.logger.Debug("Snapshot complete",
		logging.F("basepath", s.backend.Basepath()),
		logging.F("files", len(files)),
		logging.F("dirs", len(dirs)),
	)
	return nil
}

func (s *Snapshot) stat(ctx context.Context, rel string) (Entry, error) {
	st, err := s.backend.Stat(ctx, rel)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Path: rel, ModTime: st.ModTime.UTC()}
	if !st.IsDir {
		e.Size = st.Size
	}
	return e, nil
}
