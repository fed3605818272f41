// Package diff compares two snapshots and derives the operations that bring
// them in line.
package diff

import (
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dl-alexandre/dirsync/internal/sync/conflict"
	"github.com/dl-alexandre/dirsync/internal/sync/scanner"
)

// Tree is one side's snapshot content.
type Tree struct {
	Files map[string]scanner.Entry
	Dirs  map[string]scanner.Entry
}

// Classification partitions the paths of two trees.
type Classification struct {
	DirsOnly  PathSet
	FilesOnly PathSet
	// Common holds files present on both sides.
	Common mapset.Set[string]
	// Newer holds common files whose version on that side wins the tie-break.
	Newer     PathSet
	Conflicts []conflict.Conflict
}

func keySet[V any](m map[string]V) mapset.Set[string] {
	s := mapset.NewSetWithSize[string](len(m))
	for k := range m {
		s.Add(k)
	}
	return s
}

// Classify compares left and right. Modification times are compared at the
// given precision.
func Classify(left, right Tree, precision time.Duration) Classification {
	lf, rf := keySet(left.Files), keySet(right.Files)
	ld, rd := keySet(left.Dirs), keySet(right.Dirs)

	c := Classification{
		DirsOnly:  PathSet{SideLeft: ld.Difference(rd), SideRight: rd.Difference(ld)},
		FilesOnly: PathSet{SideLeft: lf.Difference(rf), SideRight: rf.Difference(lf)},
		Common:    lf.Intersect(rf),
		Newer:     newPathSet(),
	}

	c.Common.Each(func(p string) bool {
		switch conflict.Compare(left.Files[p], right.Files[p], precision) {
		case conflict.WinnerLeft:
			c.Newer[SideLeft].Add(p)
		case conflict.WinnerRight:
			c.Newer[SideRight].Add(p)
		}
		return false
	})

	for _, p := range lf.Intersect(rd).ToSlice() {
		c.Conflicts = append(c.Conflicts, conflict.Conflict{Path: p, Kind: conflict.KindTypeMismatch, RightIsDir: true})
	}
	for _, p := range ld.Intersect(rf).ToSlice() {
		c.Conflicts = append(c.Conflicts, conflict.Conflict{Path: p, Kind: conflict.KindTypeMismatch, LeftIsDir: true})
	}
	sort.Slice(c.Conflicts, func(i, j int) bool { return c.Conflicts[i].Path < c.Conflicts[j].Path })
	return c
}

// Options selects how a classification becomes a plan.
type Options struct {
	Mode Mode
	// PreserveDirRight keeps files and directories that exist only on the
	// right during a mirror run.
	PreserveDirRight bool
}

// BuildPlan derives the operations for opts.Mode.
//
// Sync copies to each side what is missing there or newer on the other side
// and removes nothing. Mirror makes the right side match the left: anything
// only on the right is removed and every differing common file is
// overwritten from the left.
func BuildPlan(c Classification, opts Options) Plan {
	plan := Plan{
		Mode:        opts.Mode,
		CreateDirs:  newPathSet(),
		RemoveDirs:  newPathSet(),
		CopyFiles:   newPathSet(),
		RemoveFiles: newPathSet(),
		Conflicts:   c.Conflicts,
	}

	switch opts.Mode {
	case ModeMirror:
		plan.CreateDirs[SideRight] = c.DirsOnly[SideLeft].Clone()
		plan.CopyFiles[SideRight] = c.FilesOnly[SideLeft].Union(c.Newer[SideLeft]).Union(c.Newer[SideRight])
		if !opts.PreserveDirRight {
			plan.RemoveFiles[SideRight] = c.FilesOnly[SideRight].Clone()
			plan.RemoveDirs[SideRight] = c.DirsOnly[SideRight].Clone()
		}
	default:
		for _, side := range Sides {
			src := side.Other()
			plan.CreateDirs[side] = c.DirsOnly[src].Clone()
			plan.CopyFiles[side] = c.FilesOnly[src].Union(c.Newer[src])
		}
	}

	if conflict.PolicyFor(opts.Mode == ModeMirror, opts.PreserveDirRight) == conflict.PolicySkip {
		plan.dropConflicts()
	}
	return plan
}

// dropConflicts removes every conflicting path and its subtree from all sets.
func (p *Plan) dropConflicts() {
	if len(p.Conflicts) == 0 {
		return
	}
	roots := make([]string, len(p.Conflicts))
	for i, c := range p.Conflicts {
		roots[i] = c.Path
	}
	blocked := func(path string) bool {
		for _, r := range roots {
			if path == r || strings.HasPrefix(path, r+"/") {
				return true
			}
		}
		return false
	}
	for _, sets := range []PathSet{p.CreateDirs, p.RemoveDirs, p.CopyFiles, p.RemoveFiles} {
		for side, set := range sets {
			for _, path := range set.ToSlice() {
				if blocked(path) {
					sets[side].Remove(path)
				}
			}
		}
	}
}
