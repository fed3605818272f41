package executor

import (
	"context"
	stderrors "errors"
	"reflect"
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dl-alexandre/dirsync/internal/sync/diff"
	"github.com/dl-alexandre/dirsync/internal/sync/scanner"
	testutil "github.com/dl-alexandre/dirsync/internal/testing"
	"github.com/dl-alexandre/dirsync/internal/testing/mocks"
	"github.com/dl-alexandre/dirsync/internal/utils"
)

func emptyPlan(mode diff.Mode) diff.Plan {
	mk := func() diff.PathSet {
		return diff.PathSet{diff.SideLeft: mapset.NewSet[string](), diff.SideRight: mapset.NewSet[string]()}
	}
	return diff.Plan{Mode: mode, CreateDirs: mk(), RemoveDirs: mk(), CopyFiles: mk(), RemoveFiles: mk()}
}

func TestApply_OrderAndCopy(t *testing.T) {
	left := mocks.NewMockBackend("/left", 0).
		AddFile("docs/a.txt", "alpha", testutil.At(5)).
		AddDir("docs/deep")
	right := mocks.NewMockBackend("/right", 0).
		AddFile("old/x.txt", "x", testutil.At(0)).
		AddDir("old/sub")

	plan := emptyPlan(diff.ModeMirror)
	plan.RemoveFiles[diff.SideRight].Add("old/x.txt")
	plan.RemoveDirs[diff.SideRight].Append("old", "old/sub")
	plan.CreateDirs[diff.SideRight].Append("docs/deep", "docs")
	plan.CopyFiles[diff.SideRight].Add("docs/a.txt")

	sources := map[diff.Side]diff.Tree{
		diff.SideLeft: {Files: map[string]scanner.Entry{
			"docs/a.txt": {Path: "docs/a.txt", Size: 5, ModTime: testutil.At(5)},
		}},
	}

	summary, err := New(left, right, nil).Apply(testutil.TestContext(), plan, sources, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	wantCalls := []string{
		"delete old/x.txt",
		"rmtree old/sub",
		"rmtree old",
		"makedirs ",
		"makedirs docs",
		"makedirs docs/deep",
		"write docs/a.txt",
		"utime docs/a.txt",
	}
	if !reflect.DeepEqual(right.Calls, wantCalls) {
		t.Errorf("calls = %v, want %v", right.Calls, wantCalls)
	}
	if got, _ := right.Content("docs/a.txt"); got != "alpha" {
		t.Errorf("content = %q", got)
	}
	if got := right.ModTime("docs/a.txt"); !got.Equal(testutil.At(5)) {
		t.Errorf("mtime = %v, want %v", got, testutil.At(5))
	}

	rs := summary.Side(diff.SideRight)
	want := SideSummary{FilesCopied: 1, BytesCopied: 5, FilesRemoved: 1, DirsCreated: 2, DirsRemoved: 2}
	if rs != want {
		t.Errorf("summary = %+v, want %+v", rs, want)
	}
	if summary.Side(diff.SideLeft).Total() != 0 {
		t.Error("left side should be untouched")
	}
}

func TestApply_DryRun(t *testing.T) {
	left := mocks.NewMockBackend("/left", 0).AddFile("a.txt", "a", testutil.At(0))
	right := mocks.NewMockBackend("/right", 0).AddFile("c.txt", "c", testutil.At(0))

	plan := emptyPlan(diff.ModeMirror)
	plan.CopyFiles[diff.SideRight].Add("a.txt")
	plan.RemoveFiles[diff.SideRight].Add("c.txt")
	sources := map[diff.Side]diff.Tree{diff.SideLeft: {Files: map[string]scanner.Entry{
		"a.txt": {Path: "a.txt", Size: 1, ModTime: testutil.At(0)},
	}}}

	summary, err := New(left, right, nil).Apply(testutil.TestContext(), plan, sources, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(right.Calls) != 0 || len(left.Calls) != 0 {
		t.Errorf("dry run touched backends: left=%v right=%v", left.Calls, right.Calls)
	}
	if !summary.DryRun || summary.Side(diff.SideRight).Total() != 2 {
		t.Errorf("summary = %+v", summary.Side(diff.SideRight))
	}
}

func TestApply_AbortsOnFirstError(t *testing.T) {
	left := mocks.NewMockBackend("/left", 0).
		AddFile("a.txt", "a", testutil.At(0)).
		AddFile("b.txt", "b", testutil.At(0))
	right := mocks.NewMockBackend("/right", 0)
	right.Fail["write a.txt"] = stderrors.New("disk full")

	plan := emptyPlan(diff.ModeSync)
	plan.CopyFiles[diff.SideRight].Append("a.txt", "b.txt")
	sources := map[diff.Side]diff.Tree{diff.SideLeft: {Files: map[string]scanner.Entry{
		"a.txt": {Path: "a.txt", Size: 1, ModTime: testutil.At(0)},
		"b.txt": {Path: "b.txt", Size: 1, ModTime: testutil.At(0)},
	}}}

	summary, err := New(left, right, nil).Apply(testutil.TestContext(), plan, sources, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *utils.AppError
	if !stderrors.As(err, &appErr) {
		t.Fatalf("error %T is not an AppError", err)
	}
	if appErr.CLIError.Code != utils.ErrCodeIOError {
		t.Errorf("code = %s, want %s", appErr.CLIError.Code, utils.ErrCodeIOError)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error %q lost its cause", err)
	}
	if _, ok := right.Content("b.txt"); ok {
		t.Error("b.txt copied after an earlier failure")
	}
	if summary.Side(diff.SideRight).FilesCopied != 0 {
		t.Errorf("copied = %d, want 0", summary.Side(diff.SideRight).FilesCopied)
	}
}

func TestApply_CancelledContext(t *testing.T) {
	left := mocks.NewMockBackend("/left", 0).AddFile("a.txt", "a", testutil.At(0))
	right := mocks.NewMockBackend("/right", 0)
	plan := emptyPlan(diff.ModeSync)
	plan.RemoveFiles[diff.SideLeft].Add("a.txt")

	ctx, cancel := context.WithCancel(testutil.TestContext())
	cancel()
	_, err := New(left, right, nil).Apply(ctx, plan, nil, Options{})
	if utils.ExitCodeFor(err) != utils.ExitCancelled {
		t.Errorf("exit code = %d, want %d (err %v)", utils.ExitCodeFor(err), utils.ExitCancelled, err)
	}
	if _, ok := left.Content("a.txt"); !ok {
		t.Error("file removed despite cancellation")
	}
}

func TestSortByDepth(t *testing.T) {
	paths := []string{"a", "a/b", "a/b/c", "z"}
	sortByDepth(paths, false)
	if want := []string{"a/b/c", "a/b", "a", "z"}; !reflect.DeepEqual(paths, want) {
		t.Errorf("descending = %v, want %v", paths, want)
	}
	sortByDepth(paths, true)
	if want := []string{"a", "z", "a/b", "a/b/c"}; !reflect.DeepEqual(paths, want) {
		t.Errorf("ascending = %v, want %v", paths, want)
	}
}
