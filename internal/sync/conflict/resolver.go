// Package conflict holds the recency tie-break between two versions of a
// file and the handling of paths whose type differs between the sides.
package conflict

import (
	"time"

	"github.com/dl-alexandre/dirsync/internal/sync/scanner"
)

// Winner names the side whose version of a file is preferred.
type Winner int

const (
	WinnerNone Winner = iota
	WinnerLeft
	WinnerRight
)

func (w Winner) String() string {
	switch w {
	case WinnerLeft:
		return "left"
	case WinnerRight:
		return "right"
	default:
		return "none"
	}
}

// Compare applies the tie-break: the later modification time wins; on equal
// times the larger file wins; otherwise the files are identical. Times are
// truncated to precision first so a copy that lost sub-precision digits
// still compares equal to its source.
func Compare(left, right scanner.Entry, precision time.Duration) Winner {
	lt, rt := left.ModTime, right.ModTime
	if precision > 0 {
		lt, rt = lt.Truncate(precision), rt.Truncate(precision)
	}
	switch {
	case lt.After(rt):
		return WinnerLeft
	case rt.After(lt):
		return WinnerRight
	case left.Size > right.Size:
		return WinnerLeft
	case right.Size > left.Size:
		return WinnerRight
	default:
		return WinnerNone
	}
}

// Coarsest returns the largest of the given precisions.
func Coarsest(precisions ...time.Duration) time.Duration {
	var out time.Duration
	for _, p := range precisions {
		if p > out {
			out = p
		}
	}
	return out
}

// Kind classifies a conflict.
type Kind string

const (
	// KindTypeMismatch is a path that is a file on one side and a
	// directory on the other.
	KindTypeMismatch Kind = "type_mismatch"
)

// Conflict is a path the plan cannot reconcile by copying alone.
type Conflict struct {
	Path       string
	Kind       Kind
	LeftIsDir  bool
	RightIsDir bool
}

// Policy decides what happens to conflicting paths.
type Policy string

const (
	// PolicySkip leaves the path and everything below it untouched.
	PolicySkip Policy = "skip"
	// PolicyLeftWins replaces the right side's version by removal and
	// re-creation.
	PolicyLeftWins Policy = "left-wins"
)

// PolicyFor picks the policy for a run: only a mirror run that is allowed
// to remove from the right side can let the left side win.
func PolicyFor(mirror, preserveRight bool) Policy {
	if mirror && !preserveRight {
		return PolicyLeftWins
	}
	return PolicySkip
}
