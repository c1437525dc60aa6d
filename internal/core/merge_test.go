package core

import (
	"testing"

	"github.com/pandonetwork/pando/internal/textmerge"
)

// noopMerger satisfies TextMerger for merge-table scenarios that never
// reach the textual three-way merge step (every path but the
// both-sides-modified-the-same-file case).
type noopMerger struct{}

func (noopMerger) Merge3(origin, base, dest []byte) (merged []byte, conflict bool, annotated []byte) {
	return nil, true, nil
}

func fileChild(t *testing.T, store ObjectStore, name, content string) TreeChild {
	t.Helper()
	blob, err := store.PutBlob([]byte(content))
	if err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	id, err := store.PutNode(&File{Path: name, Link: blob})
	if err != nil {
		t.Fatalf("PutNode(File): %v", err)
	}
	return TreeChild{Name: name, CID: id, Kind: KindFile}
}

func treeChild(t *testing.T, store ObjectStore, name string, children ...TreeChild) TreeChild {
	t.Helper()
	id, err := store.PutNode(&Tree{Path: name, Children: children})
	if err != nil {
		t.Fatalf("PutNode(Tree): %v", err)
	}
	return TreeChild{Name: name, CID: id, Kind: KindTree}
}

func tree(children ...TreeChild) *Tree {
	t := &Tree{Path: ".", Children: children}
	t.Sort()
	return t
}

// TestMergeTrees_ModDelConflict covers the §4.9 table's "modified on one
// side, deleted on the other" row: origin edits z.txt while dest
// deletes it, so the edit cannot be silently dropped or silently kept.
func TestMergeTrees_ModDelConflict(t *testing.T) {
	store := newMemStore()
	base := tree(fileChild(t, store, "z.txt", "base"))
	origin := tree(fileChild(t, store, "z.txt", "modified"))
	dest := tree() // deleted

	_, conflicts, err := mergeTrees(store, noopMerger{}, base, origin, dest, "")
	if err != nil {
		t.Fatalf("mergeTrees: %v", err)
	}
	if kind := conflicts["z.txt"]; kind != ModDelConflict {
		t.Errorf("conflicts[z.txt] = %v, want ModDelConflict", kind)
	}
}

// TestMergeTrees_DeletionPropagatesWhenUnchangedOnOtherSide covers the
// clean-delete row: origin deletes w.txt, dest never touched it, so the
// deletion propagates into the merged tree without a conflict.
func TestMergeTrees_DeletionPropagatesWhenUnchangedOnOtherSide(t *testing.T) {
	store := newMemStore()
	w := fileChild(t, store, "w.txt", "content")
	base := tree(w)
	origin := tree() // deleted
	dest := tree(w)  // unchanged

	mergedCID, conflicts, err := mergeTrees(store, noopMerger{}, base, origin, dest, "")
	if err != nil {
		t.Fatalf("mergeTrees: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", conflicts)
	}

	merged, err := ResolveTree(store, mergedCID)
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}
	if _, ok := merged.Child("w.txt"); ok {
		t.Error("expected w.txt's deletion to propagate into the merged tree")
	}
}

// TestMergeTrees_TypeConflictFileVsDirectory covers a path added as a
// plain file on one side and as a directory on the other, with no base
// entry to compare against.
func TestMergeTrees_TypeConflictFileVsDirectory(t *testing.T) {
	store := newMemStore()
	base := tree()
	origin := tree(fileChild(t, store, "x", "file content"))
	dest := tree(treeChild(t, store, "x", fileChild(t, store, "sub.txt", "nested")))

	_, conflicts, err := mergeTrees(store, noopMerger{}, base, origin, dest, "")
	if err != nil {
		t.Fatalf("mergeTrees: %v", err)
	}
	if kind := conflicts["x"]; kind != TypeConflict {
		t.Errorf("conflicts[x] = %v, want TypeConflict", kind)
	}
}

// TestMergeTrees_AddAddConflictDifferentContent covers both sides
// independently adding a same-named file with different content.
func TestMergeTrees_AddAddConflictDifferentContent(t *testing.T) {
	store := newMemStore()
	base := tree()
	origin := tree(fileChild(t, store, "y.txt", "origin content"))
	dest := tree(fileChild(t, store, "y.txt", "dest content"))

	_, conflicts, err := mergeTrees(store, noopMerger{}, base, origin, dest, "")
	if err != nil {
		t.Fatalf("mergeTrees: %v", err)
	}
	if kind := conflicts["y.txt"]; kind != AddAddConflict {
		t.Errorf("conflicts[y.txt] = %v, want AddAddConflict", kind)
	}
}

// TestMergeTrees_AddAddSameContentNoConflict covers both sides adding a
// byte-identical file: not a conflict, since there is nothing to
// reconcile.
func TestMergeTrees_AddAddSameContentNoConflict(t *testing.T) {
	store := newMemStore()
	base := tree()
	origin := tree(fileChild(t, store, "y.txt", "same"))
	dest := tree(fileChild(t, store, "y.txt", "same"))

	mergedCID, conflicts, err := mergeTrees(store, noopMerger{}, base, origin, dest, "")
	if err != nil {
		t.Fatalf("mergeTrees: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", conflicts)
	}

	merged, err := ResolveTree(store, mergedCID)
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}
	if _, ok := merged.Child("y.txt"); !ok {
		t.Error("expected y.txt to survive an identical add/add")
	}
}

// TestMergeTrees_TextConflictDelegatesToExternalMerger covers both sides
// modifying the same line of a shared file, using the real text merger
// rather than a stub, so the TextConflict row is exercised end to end.
func TestMergeTrees_TextConflictDelegatesToExternalMerger(t *testing.T) {
	store := newMemStore()
	base := tree(fileChild(t, store, "shared.txt", "line one\nline two\n"))
	origin := tree(fileChild(t, store, "shared.txt", "line one from origin\nline two\n"))
	dest := tree(fileChild(t, store, "shared.txt", "line one from dest\nline two\n"))

	_, conflicts, err := mergeTrees(store, textmerge.New(), base, origin, dest, "")
	if err != nil {
		t.Fatalf("mergeTrees: %v", err)
	}
	if kind := conflicts["shared.txt"]; kind != TextConflict {
		t.Errorf("conflicts[shared.txt] = %v, want TextConflict", kind)
	}
}

// TestMergeTrees_NonOverlappingEditsAreUnioned covers both sides editing
// different files, which should merge cleanly with both edits present.
func TestMergeTrees_NonOverlappingEditsAreUnioned(t *testing.T) {
	store := newMemStore()
	shared := fileChild(t, store, "shared.txt", "unchanged\n")
	base := tree(shared)
	origin := tree(shared, fileChild(t, store, "origin-only.txt", "from origin"))
	dest := tree(shared, fileChild(t, store, "dest-only.txt", "from dest"))

	mergedCID, conflicts, err := mergeTrees(store, textmerge.New(), base, origin, dest, "")
	if err != nil {
		t.Fatalf("mergeTrees: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", conflicts)
	}

	merged, err := ResolveTree(store, mergedCID)
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}
	for _, name := range []string{"shared.txt", "origin-only.txt", "dest-only.txt"} {
		if _, ok := merged.Child(name); !ok {
			t.Errorf("expected %s to be present in the merged tree", name)
		}
	}
}
