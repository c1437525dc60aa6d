package core_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pandonetwork/pando/internal/blockstore"
	"github.com/pandonetwork/pando/internal/core"
	"github.com/pandonetwork/pando/internal/textmerge"
	"github.com/pandonetwork/pando/internal/workspace"
)

func newTestWorkspace(t *testing.T) *core.Workspace {
	t.Helper()
	root := t.TempDir()
	layout := core.NewLayout(root)
	store, err := blockstore.Open(layout.ObjectsDir)
	if err != nil {
		t.Fatalf("blockstore.Open: %v", err)
	}
	wd := workspace.New(root)
	ws, err := core.Init(layout, store, wd, textmerge.New())
	if err != nil {
		t.Fatalf("core.Init: %v", err)
	}
	return ws
}

func writeAndStage(t *testing.T, ws *core.Workspace, path, content string) {
	t.Helper()
	if err := ws.WD.Write(path, []byte(content)); err != nil {
		t.Fatalf("Write(%s): %v", path, err)
	}
	if err := ws.Stage([]string{path}); err != nil {
		t.Fatalf("Stage(%s): %v", path, err)
	}
}

func snapshot(t *testing.T, ws *core.Workspace, message string) core.CID {
	t.Helper()
	id, err := ws.Snapshot("tester", message, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Snapshot(%q): %v", message, err)
	}
	return id
}

func TestStageSnapshotStatusClean(t *testing.T) {
	ws := newTestWorkspace(t)
	writeAndStage(t, ws, "a.txt", "hello\n")
	snapshot(t, ws, "first")

	sets, err := ws.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(sets.Staged)+len(sets.Modified)+len(sets.Untracked)+len(sets.Deleted) != 0 {
		t.Errorf("expected clean status after snapshot, got %+v", sets)
	}
}

func TestSnapshotWithNothingStagedFails(t *testing.T) {
	ws := newTestWorkspace(t)
	if _, err := ws.Snapshot("tester", "empty", time.Unix(0, 0)); !errors.Is(err, core.ErrNothingToSnapshot) {
		t.Errorf("Snapshot with nothing staged: got %v, want ErrNothingToSnapshot", err)
	}
}

func TestCheckoutFastForwardMerge(t *testing.T) {
	ws := newTestWorkspace(t)
	writeAndStage(t, ws, "base.txt", "base\n")
	snapshot(t, ws, "base")

	current := ws.Branches.Current()
	if err := ws.BranchCreate("feature"); err != nil {
		t.Fatalf("BranchCreate: %v", err)
	}
	if err := ws.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	writeAndStage(t, ws, "feature.txt", "feature\n")
	snapshot(t, ws, "feature work")

	if err := ws.Checkout(current); err != nil {
		t.Fatalf("Checkout(%s): %v", current, err)
	}

	mergedHead, err := ws.Merge("feature", "tester", time.Unix(1, 0))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	featureHead, err := ws.Branches.Head("feature")
	if err != nil {
		t.Fatalf("Head(feature): %v", err)
	}
	if !mergedHead.Equal(featureHead) {
		t.Errorf("fast-forward merge head = %s, want feature's head %s", mergedHead, featureHead)
	}

	exists, err := ws.WD.Exists(filepath.ToSlash("feature.txt"))
	if err != nil || !exists {
		t.Errorf("expected feature.txt to exist in the working directory after fast-forward, err=%v", err)
	}
}

func TestMergeNoConflictUnionsBothSides(t *testing.T) {
	ws := newTestWorkspace(t)
	writeAndStage(t, ws, "base.txt", "base\n")
	snapshot(t, ws, "base")

	current := ws.Branches.Current()
	if err := ws.BranchCreate("feature"); err != nil {
		t.Fatalf("BranchCreate: %v", err)
	}
	if err := ws.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	writeAndStage(t, ws, "feature.txt", "feature\n")
	snapshot(t, ws, "feature work")

	if err := ws.Checkout(current); err != nil {
		t.Fatalf("Checkout(%s): %v", current, err)
	}
	writeAndStage(t, ws, "main.txt", "main\n")
	snapshot(t, ws, "main work")

	if _, err := ws.Merge("feature", "tester", time.Unix(2, 0)); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	for _, p := range []string{"base.txt", "feature.txt", "main.txt"} {
		exists, err := ws.WD.Exists(p)
		if err != nil || !exists {
			t.Errorf("expected %s to exist after merge, err=%v", p, err)
		}
	}
}

func TestMergeConflictingEditsReported(t *testing.T) {
	ws := newTestWorkspace(t)
	writeAndStage(t, ws, "shared.txt", "base\n")
	snapshot(t, ws, "base")

	current := ws.Branches.Current()
	if err := ws.BranchCreate("feature"); err != nil {
		t.Fatalf("BranchCreate: %v", err)
	}
	if err := ws.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	writeAndStage(t, ws, "shared.txt", "feature change\n")
	snapshot(t, ws, "feature change")

	if err := ws.Checkout(current); err != nil {
		t.Fatalf("Checkout(%s): %v", current, err)
	}
	writeAndStage(t, ws, "shared.txt", "main change\n")
	snapshot(t, ws, "main change")

	_, err := ws.Merge("feature", "tester", time.Unix(3, 0))
	var conflictErr *core.MergeConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected MergeConflictError, got %v", err)
	}
	if kind, ok := conflictErr.Conflicts["shared.txt"]; !ok || kind != core.TextConflict {
		t.Errorf("expected TextConflict for shared.txt, got %+v", conflictErr.Conflicts)
	}
}

func TestMergeAlreadyAncestorIsNoOp(t *testing.T) {
	ws := newTestWorkspace(t)
	writeAndStage(t, ws, "base.txt", "base\n")
	head := snapshot(t, ws, "base")

	if err := ws.BranchCreate("feature"); err != nil {
		t.Fatalf("BranchCreate: %v", err)
	}

	result, err := ws.Merge("feature", "tester", time.Unix(4, 0))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !result.Equal(head) {
		t.Errorf("merging an unchanged ancestor branch should report the unchanged head, got %s want %s", result, head)
	}
}
