package cli

import (
	"strconv"

	"github.com/dustin/go-humanize"

	syncengine "github.com/dl-alexandre/dirsync/internal/sync"
	"github.com/dl-alexandre/dirsync/internal/sync/diff"
	"github.com/dl-alexandre/dirsync/internal/sync/executor"
	"github.com/dl-alexandre/dirsync/internal/types"
)

// Operation names used in plan output, in apply order.
const (
	OpRemoveFile = "remove file"
	OpRemoveDir  = "remove dir"
	OpCreateDir  = "create dir"
	OpCopy       = "copy"
	OpConflict   = "conflict"
)

type PlanItem struct {
	Side      string `json:"side"`
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Size      uint64 `json:"size,omitempty"`
}

type ConflictItem struct {
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	LeftIsDir  bool   `json:"leftIsDir"`
	RightIsDir bool   `json:"rightIsDir"`
}

// PlanView is the printable form of a plan.
type PlanView struct {
	Mode      string         `json:"mode"`
	Precision string         `json:"precision"`
	Items     []PlanItem     `json:"items"`
	Conflicts []ConflictItem `json:"conflicts,omitempty"`
}

func newPlanView(plan syncengine.Plan) *PlanView {
	v := &PlanView{
		Mode:      string(plan.Mode),
		Precision: plan.Precision.String(),
		Items:     []PlanItem{},
	}
	add := func(op string, set diff.PathSet, withSize bool) {
		for _, side := range diff.Sides {
			for _, p := range set.Sorted(side) {
				item := PlanItem{Side: string(side), Operation: op, Path: p}
				if withSize {
					item.Size = plan.Trees[side.Other()].Files[p].Size
				}
				v.Items = append(v.Items, item)
			}
		}
	}
	add(OpRemoveFile, plan.RemoveFiles, false)
	add(OpRemoveDir, plan.RemoveDirs, false)
	add(OpCreateDir, plan.CreateDirs, false)
	add(OpCopy, plan.CopyFiles, true)

	for _, c := range plan.Conflicts {
		v.Conflicts = append(v.Conflicts, ConflictItem{
			Path:       c.Path,
			Kind:       string(c.Kind),
			LeftIsDir:  c.LeftIsDir,
			RightIsDir: c.RightIsDir,
		})
	}
	return v
}

func (v *PlanView) Headers() []string {
	return []string{"Side", "Operation", "Path", "Size"}
}

func (v *PlanView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Items)+len(v.Conflicts))
	for _, item := range v.Items {
		size := ""
		if item.Operation == OpCopy {
			size = humanize.Bytes(item.Size)
		}
		rows = append(rows, []string{item.Side, item.Operation, item.Path, size})
	}
	for _, c := range v.Conflicts {
		rows = append(rows, []string{"both", OpConflict, c.Path, describeConflict(c)})
	}
	return rows
}

func (v *PlanView) EmptyMessage() string {
	return "Nothing to do: both sides are in sync"
}

func describeConflict(c ConflictItem) string {
	if c.LeftIsDir {
		return "dir left, file right"
	}
	return "file left, dir right"
}

// SummaryView reports what a run applied per side.
type SummaryView struct {
	Mode      string                 `json:"mode"`
	DryRun    bool                   `json:"dryRun"`
	Sides     map[string]SideSummary `json:"sides"`
	Conflicts int                    `json:"conflicts"`
}

type SideSummary struct {
	FilesCopied  int    `json:"filesCopied"`
	BytesCopied  uint64 `json:"bytesCopied"`
	FilesRemoved int    `json:"filesRemoved"`
	DirsCreated  int    `json:"dirsCreated"`
	DirsRemoved  int    `json:"dirsRemoved"`
}

func newSummaryView(res syncengine.Result) *SummaryView {
	v := &SummaryView{
		Mode:      string(res.Plan.Mode),
		DryRun:    res.Summary.DryRun,
		Sides:     make(map[string]SideSummary, 2),
		Conflicts: len(res.Plan.Conflicts),
	}
	for _, side := range diff.Sides {
		v.Sides[string(side)] = toSideSummary(res.Summary.Side(side))
	}
	return v
}

func toSideSummary(s executor.SideSummary) SideSummary {
	return SideSummary{
		FilesCopied:  s.FilesCopied,
		BytesCopied:  s.BytesCopied,
		FilesRemoved: s.FilesRemoved,
		DirsCreated:  s.DirsCreated,
		DirsRemoved:  s.DirsRemoved,
	}
}

func (v *SummaryView) Headers() []string {
	return []string{"Side", "Copied", "Bytes", "Removed Files", "Created Dirs", "Removed Dirs"}
}

func (v *SummaryView) Rows() [][]string {
	var rows [][]string
	for _, side := range diff.Sides {
		s := v.Sides[string(side)]
		if s == (SideSummary{}) {
			continue
		}
		rows = append(rows, []string{
			string(side),
			strconv.Itoa(s.FilesCopied),
			humanize.Bytes(s.BytesCopied),
			strconv.Itoa(s.FilesRemoved),
			strconv.Itoa(s.DirsCreated),
			strconv.Itoa(s.DirsRemoved),
		})
	}
	return rows
}

func (v *SummaryView) EmptyMessage() string {
	return "Nothing to do: both sides are in sync"
}

var (
	_ types.TableRenderer = (*PlanView)(nil)
	_ types.TableRenderer = (*SummaryView)(nil)
)
