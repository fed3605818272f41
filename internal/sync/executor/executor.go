// Package executor applies a diff.Plan through the two backends.
package executor

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dl-alexandre/dirsync/internal/backend"
	"github.com/dl-alexandre/dirsync/internal/errors"
	"github.com/dl-alexandre/dirsync/internal/logging"
	"github.com/dl-alexandre/dirsync/internal/sync/diff"
)

type Executor struct {
	backends map[diff.Side]backend.Backend
	logger   logging.Logger
}

type Options struct {
	DryRun bool
}

// SideSummary counts the operations applied to one side.
type SideSummary struct {
	FilesCopied  int
	BytesCopied  uint64
	FilesRemoved int
	DirsCreated  int
	DirsRemoved  int
}

func (s SideSummary) Total() int {
	return s.FilesCopied + s.FilesRemoved + s.DirsCreated + s.DirsRemoved
}

type Summary struct {
	DryRun bool
	Sides  map[diff.Side]*SideSummary
}

func newSummary(dryRun bool) Summary {
	return Summary{
		DryRun: dryRun,
		Sides:  map[diff.Side]*SideSummary{diff.SideLeft: {}, diff.SideRight: {}},
	}
}

// Side returns the counters for side.
func (s Summary) Side(side diff.Side) SideSummary {
	if c, ok := s.Sides[side]; ok {
		return *c
	}
	return SideSummary{}
}

func New(left, right backend.Backend, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Executor{
		backends: map[diff.Side]backend.Backend{diff.SideLeft: left, diff.SideRight: right},
		logger:   logger,
	}
}

// Apply runs the plan in four phases over both sides: remove files, remove
// directories deepest first, create directories shallowest first, copy
// files. sources holds the snapshot of each side; a file copied to a side
// takes its size and modification time from the other side's tree. The
// first failure aborts the run and nothing is rolled back.
func (e *Executor) Apply(ctx context.Context, plan diff.Plan, sources map[diff.Side]diff.Tree, opts Options) (Summary, error) {
	summary := newSummary(opts.DryRun)

	for _, side := range diff.Sides {
		b := e.backends[side]
		for _, rel := range plan.RemoveFiles.Sorted(side) {
			if err := e.step(ctx, "remove file", side, rel, opts, func() error {
				return b.Delete(ctx, rel)
			}); err != nil {
				return summary, err
			}
			summary.Sides[side].FilesRemoved++
		}
	}

	for _, side := range diff.Sides {
		b := e.backends[side]
		dirs := plan.RemoveDirs.Sorted(side)
		sortByDepth(dirs, false)
		for _, rel := range dirs {
			if err := e.step(ctx, "remove dir", side, rel, opts, func() error {
				return b.Rmtree(ctx, rel)
			}); err != nil {
				return summary, err
			}
			summary.Sides[side].DirsRemoved++
		}
	}

	for _, side := range diff.Sides {
		if plan.CreateDirs[side].Cardinality()+plan.CopyFiles[side].Cardinality() == 0 {
			continue
		}
		b := e.backends[side]
		if !opts.DryRun {
			if err := b.Makedirs(ctx, ""); err != nil {
				return summary, errors.Classify("create root", target(b, ""), err, e.logger)
			}
		}
		dirs := plan.CreateDirs.Sorted(side)
		sortByDepth(dirs, true)
		for _, rel := range dirs {
			if err := e.step(ctx, "create dir", side, rel, opts, func() error {
				return b.Makedirs(ctx, rel)
			}); err != nil {
				return summary, err
			}
			summary.Sides[side].DirsCreated++
		}
	}

	for _, side := range diff.Sides {
		src, dst := e.backends[side.Other()], e.backends[side]
		tree := sources[side.Other()]
		for _, rel := range plan.CopyFiles.Sorted(side) {
			entry := tree.Files[rel]
			if err := e.step(ctx, "copy", side, rel, opts, func() error {
				return copyFile(ctx, src, dst, rel, entry.ModTime)
			}); err != nil {
				return summary, err
			}
			summary.Sides[side].FilesCopied++
			summary.Sides[side].BytesCopied += entry.Size
		}
	}

	for _, side := range diff.Sides {
		c := summary.Sides[side]
		e.logger.Info("Applied changes",
			logging.F("side", string(side)),
			logging.F("dry_run", opts.DryRun),
			logging.F("copied", c.FilesCopied),
			logging.F("bytes", humanize.Bytes(c.BytesCopied)),
			logging.F("removed_files", c.FilesRemoved),
			logging.F("created_dirs", c.DirsCreated),
			logging.F("removed_dirs", c.DirsRemoved),
		)
	}
	return summary, nil
}

// step runs one operation, or only logs it on a dry run.
func (e *Executor) step(ctx context.Context, op string, side diff.Side, rel string, opts Options, fn func() error) error {
	b := e.backends[side]
	if err := ctx.Err(); err != nil {
		return errors.Classify(op, target(b, rel), err, e.logger)
	}
	if opts.DryRun {
		e.logger.Debug("Would "+op, logging.F("side", string(side)), logging.F("path", rel))
		return nil
	}
	if err := fn(); err != nil {
		return errors.Classify(op, target(b, rel), err, e.logger)
	}
	e.logger.Debug("Done "+op, logging.F("side", string(side)), logging.F("path", rel))
	return nil
}

// copyFile streams rel from src to dst and stamps dst with mtime.
func copyFile(ctx context.Context, src, dst backend.Backend, rel string, mtime time.Time) error {
	r, err := src.Open(ctx, rel)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := dst.Write(ctx, rel, r); err != nil {
		return err
	}
	if mtime.IsZero() {
		return nil
	}
	return dst.Utime(ctx, rel, mtime.UTC(), mtime.UTC())
}

func target(b backend.Backend, rel string) string {
	base := strings.TrimRight(b.Basepath(), "/\\")
	if rel == "" {
		return b.Basepath()
	}
	return base + "/" + rel
}

// sortByDepth orders paths by segment count; paths are expected to be
// sorted lexically already so equal depths keep that order.
func sortByDepth(paths []string, ascending bool) {
	sort.SliceStable(paths, func(i, j int) bool {
		di := depth(paths[i])
		dj := depth(paths[j])
		if ascending {
			return di < dj
		}
		return di > dj
	})
}

func depth(p string) int {
	return backend.Depth(p)
}
