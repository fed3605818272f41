// Package sync drives one synchronization pass between two backends:
// snapshot both sides, diff, plan and apply.
package sync

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dl-alexandre/dirsync/internal/backend"
	"github.com/dl-alexandre/dirsync/internal/errors"
	"github.com/dl-alexandre/dirsync/internal/logging"
	"github.com/dl-alexandre/dirsync/internal/sync/conflict"
	"github.com/dl-alexandre/dirsync/internal/sync/diff"
	"github.com/dl-alexandre/dirsync/internal/sync/exclude"
	"github.com/dl-alexandre/dirsync/internal/sync/executor"
	"github.com/dl-alexandre/dirsync/internal/sync/scanner"
	"github.com/dl-alexandre/dirsync/internal/utils"
)

// ErrMissingSource is returned by a mirror run whose left basepath does not
// exist; mirroring it would empty the right side.
var ErrMissingSource = stderrors.New("mirror source does not exist")

type Engine struct {
	left      backend.Backend
	right     backend.Backend
	snapshots map[diff.Side]*scanner.Snapshot
	logger    logging.Logger
	opts      Options
	closed    bool
}

type Options struct {
	Mode             diff.Mode
	PreserveDirRight bool
	DryRun           bool
	Exclude          *exclude.Matcher
}

type Plan struct {
	diff.Plan
	// Trees holds the snapshot each side had when the plan was built.
	Trees map[diff.Side]diff.Tree
	// Precision is the resolution modification times were compared at.
	Precision time.Duration
}

type Result struct {
	Plan    Plan
	Summary executor.Summary
}

func NewEngine(left, right backend.Backend, opts Options, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if opts.Mode == "" {
		opts.Mode = diff.ModeSync
	}
	return &Engine{
		left:   left,
		right:  right,
		logger: logger,
		opts:   opts,
		snapshots: map[diff.Side]*scanner.Snapshot{
			diff.SideLeft:  scanner.NewSnapshot(left, opts.Exclude, logger),
			diff.SideRight: scanner.NewSnapshot(right, opts.Exclude, logger),
		},
	}
}

// Close closes both backends. Calling it again is a no-op.
func (e *Engine) Close() error {
	if e == nil || e.closed {
		return nil
	}
	e.closed = true
	return stderrors.Join(e.left.Close(), e.right.Close())
}

// Plan snapshots both sides and computes the operations for the configured
// mode. Held snapshots are reused; Sync invalidates them after applying.
func (e *Engine) Plan(ctx context.Context) (Plan, error) {
	if e.opts.Mode == diff.ModeMirror {
		if err := e.requireSource(ctx); err != nil {
			return Plan{}, err
		}
	}

	trees := make(map[diff.Side]diff.Tree, 2)
	for _, side := range diff.Sides {
		snap := e.snapshots[side]
		e.logger.Info("Scanning "+string(side), logging.F("path", snap.Backend().Basepath()))
		files, err := snap.Files(ctx)
		if err != nil {
			return Plan{}, errors.Classify("scan", snap.Backend().Basepath(), err, e.logger)
		}
		dirs, err := snap.Dirs(ctx)
		if err != nil {
			return Plan{}, errors.Classify("scan", snap.Backend().Basepath(), err, e.logger)
		}
		size, err := snap.Size(ctx)
		if err != nil {
			return Plan{}, errors.Classify("scan", snap.Backend().Basepath(), err, e.logger)
		}
		e.logger.Info("Scanned "+string(side),
			logging.F("files", len(files)),
			logging.F("dirs", len(dirs)),
			logging.F("size", humanize.Bytes(size)),
		)
		trees[side] = diff.Tree{Files: files, Dirs: dirs}
	}

	precision := conflict.Coarsest(e.left.Precision(), e.right.Precision())
	classes := diff.Classify(trees[diff.SideLeft], trees[diff.SideRight], precision)
	plan := diff.BuildPlan(classes, diff.Options{Mode: e.opts.Mode, PreserveDirRight: e.opts.PreserveDirRight})

	policy := conflict.PolicyFor(e.opts.Mode == diff.ModeMirror, e.opts.PreserveDirRight)
	for _, c := range plan.Conflicts {
		e.logger.Warn("Type conflict",
			logging.F("path", c.Path),
			logging.F("left_is_dir", c.LeftIsDir),
			logging.F("right_is_dir", c.RightIsDir),
			logging.F("policy", string(policy)),
		)
	}
	e.logger.Info("Computed plan",
		logging.F("mode", string(plan.Mode)),
		logging.F("precision", precision.String()),
		logging.F("copy", plan.CopyFiles.Len()),
		logging.F("remove_files", plan.RemoveFiles.Len()),
		logging.F("create_dirs", plan.CreateDirs.Len()),
		logging.F("remove_dirs", plan.RemoveDirs.Len()),
		logging.F("conflicts", len(plan.Conflicts)),
	)

	return Plan{Plan: plan, Trees: trees, Precision: precision}, nil
}

// Apply executes plan through both backends.
func (e *Engine) Apply(ctx context.Context, plan Plan) (Result, error) {
	exec := executor.New(e.left, e.right, e.logger)
	summary, err := exec.Apply(ctx, plan.Plan, plan.Trees, executor.Options{DryRun: e.opts.DryRun})
	if !e.opts.DryRun {
		e.invalidate()
	}
	return Result{Plan: plan, Summary: summary}, err
}

// Sync runs one pass: plan, then apply.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	plan, err := e.Plan(ctx)
	if err != nil {
		return Result{}, err
	}
	if plan.IsEmpty() {
		e.logger.Info("Nothing to do")
		return Result{Plan: plan, Summary: executor.Summary{DryRun: e.opts.DryRun}}, nil
	}
	return e.Apply(ctx, plan)
}

func (e *Engine) invalidate() {
	for _, snap := range e.snapshots {
		snap.Invalidate()
	}
}

func (e *Engine) requireSource(ctx context.Context) error {
	st, err := e.left.Stat(ctx, "")
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		cliErr := utils.NewCLIError(utils.ErrCodeFileNotFound,
			fmt.Sprintf("%s: %s", ErrMissingSource, e.left.Basepath())).
			WithSuggestedAction("check DIRLEFT; a mirror run never creates the left side").
			Build()
		return utils.WrapAppError(cliErr, ErrMissingSource)
	case err != nil:
		return errors.Classify("stat", e.left.Basepath(), err, e.logger)
	case !st.IsDir:
		return errors.Classify("stat", e.left.Basepath(), backend.ErrNotDir, e.logger)
	}
	return nil
}
