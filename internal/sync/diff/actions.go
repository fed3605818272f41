package diff

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dl-alexandre/dirsync/internal/sync/conflict"
)

// Side names one of the two trees; in a plan it is the copy destination or
// removal target.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Sides lists both sides in apply order.
var Sides = []Side{SideLeft, SideRight}

func (s Side) Other() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Mode selects bidirectional sync or left-authoritative mirroring.
type Mode string

const (
	ModeSync   Mode = "sync"
	ModeMirror Mode = "mirror"
)

// ParseMode maps a mirroring flag to a Mode.
func ParseMode(mirroring bool) Mode {
	if mirroring {
		return ModeMirror
	}
	return ModeSync
}

// PathSet is a set of relative paths keyed by side.
type PathSet map[Side]mapset.Set[string]

func newPathSet() PathSet {
	return PathSet{SideLeft: mapset.NewSet[string](), SideRight: mapset.NewSet[string]()}
}

// Sorted returns the paths for side in lexical order.
func (p PathSet) Sorted(side Side) []string {
	set, ok := p[side]
	if !ok {
		return nil
	}
	out := set.ToSlice()
	sort.Strings(out)
	return out
}

// Len counts the paths over both sides.
func (p PathSet) Len() int {
	n := 0
	for _, s := range p {
		n += s.Cardinality()
	}
	return n
}

// Plan is the set of operations one pass applies.
type Plan struct {
	Mode        Mode
	CreateDirs  PathSet
	RemoveDirs  PathSet
	CopyFiles   PathSet
	RemoveFiles PathSet
	Conflicts   []conflict.Conflict
}

// IsEmpty reports whether the plan changes nothing.
func (p Plan) IsEmpty() bool {
	return p.CreateDirs.Len()+p.RemoveDirs.Len()+p.CopyFiles.Len()+p.RemoveFiles.Len() == 0
}
