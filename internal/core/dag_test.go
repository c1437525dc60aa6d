package core

import "testing"

// putSnapshot stores a minimal snapshot node (tree link left Empty; these
// tests only exercise parent-link traversal) and returns its CID. message
// is part of the encoded node (its length also sets the timestamp), so
// snapshots with distinct messages in the same test never collide onto
// one content-addressed node.
func putSnapshot(t *testing.T, store *memStore, message string, parents ...CID) CID {
	t.Helper()
	id, err := store.PutNode(&Snapshot{
		Author:    "tester",
		Message:   message,
		Tree:      Empty,
		Parents:   parents,
		Timestamp: int64(len(message)),
	})
	if err != nil {
		t.Fatalf("PutNode: %v", err)
	}
	return id
}

func TestParents_ReturnsStoredParentLinks(t *testing.T) {
	store := newMemStore()
	root := putSnapshot(t, store, "root")
	child := putSnapshot(t, store, "child", root)

	got, err := Parents(store, child)
	if err != nil {
		t.Fatalf("Parents: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(root) {
		t.Errorf("Parents(child) = %v, want [%s]", got, root)
	}
}

func TestParents_RootHasNone(t *testing.T) {
	store := newMemStore()
	root := putSnapshot(t, store, "root")

	got, err := Parents(store, root)
	if err != nil {
		t.Fatalf("Parents: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Parents(root) = %v, want none", got)
	}
}

func TestAncestors_ExcludesSelfAndDedupsDiamond(t *testing.T) {
	store := newMemStore()
	root := putSnapshot(t, store, "root")
	left := putSnapshot(t, store, "left", root)
	right := putSnapshot(t, store, "right", root)
	merge := putSnapshot(t, store, "merge", left, right)

	anc, err := Ancestors(store, merge)
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}

	seen := make(map[string]bool, len(anc))
	for _, c := range anc {
		if seen[c.String()] {
			t.Fatalf("Ancestors returned duplicate %s", c)
		}
		seen[c.String()] = true
		if c.Equal(merge) {
			t.Fatal("Ancestors(merge) must not include merge itself")
		}
	}
	for _, want := range []CID{root, left, right} {
		if !seen[want.String()] {
			t.Errorf("Ancestors(merge) missing %s", want)
		}
	}
	if len(anc) != 3 {
		t.Errorf("Ancestors(merge) = %d entries, want 3", len(anc))
	}
}

func TestLCA_LinearHistoryReturnsOlderCommit(t *testing.T) {
	store := newMemStore()
	root := putSnapshot(t, store, "root")
	child := putSnapshot(t, store, "child", root)

	lca, err := LCA(store, root, child)
	if err != nil {
		t.Fatalf("LCA: %v", err)
	}
	if !lca.Equal(root) {
		t.Errorf("LCA(root, child) = %s, want root %s", lca, root)
	}
}

func TestLCA_SameCommitIsItsOwnLCA(t *testing.T) {
	store := newMemStore()
	a := putSnapshot(t, store, "a")

	lca, err := LCA(store, a, a)
	if err != nil {
		t.Fatalf("LCA: %v", err)
	}
	if !lca.Equal(a) {
		t.Errorf("LCA(a, a) = %s, want %s", lca, a)
	}
}

func TestLCA_NoCommonAncestorReturnsEmpty(t *testing.T) {
	store := newMemStore()
	a := putSnapshot(t, store, "a-root")
	b := putSnapshot(t, store, "b-root")

	lca, err := LCA(store, a, b)
	if err != nil {
		t.Fatalf("LCA: %v", err)
	}
	if !lca.IsEmpty() {
		t.Errorf("LCA(disjoint histories) = %s, want Empty", lca)
	}
}

func TestLCA_EmptyInputReturnsEmpty(t *testing.T) {
	store := newMemStore()
	a := putSnapshot(t, store, "a")

	lca, err := LCA(store, Empty, a)
	if err != nil {
		t.Fatalf("LCA: %v", err)
	}
	if !lca.IsEmpty() {
		t.Errorf("LCA(Empty, a) = %s, want Empty", lca)
	}
}

// TestLCA_CrissCrossHistoryReturnsMinimalCandidate builds the textbook
// criss-cross shape (spec.md §8 property 5): two branch tips a1/a2 off a
// common root, then two independent merges m1 and m2 that each have both
// a1 and a2 as parents. root, a1, and a2 are all common ancestors of m1
// and m2, but only a1 and a2 are minimal — root is itself an ancestor of
// both, so it must not be the answer.
func TestLCA_CrissCrossHistoryReturnsMinimalCandidate(t *testing.T) {
	store := newMemStore()
	root := putSnapshot(t, store, "root")
	a1 := putSnapshot(t, store, "a1", root)
	a2 := putSnapshot(t, store, "a2", root)
	m1 := putSnapshot(t, store, "m1", a1, a2)
	m2 := putSnapshot(t, store, "m2", a1, a2)

	lca, err := LCA(store, m1, m2)
	if err != nil {
		t.Fatalf("LCA: %v", err)
	}
	if lca.Equal(root) {
		t.Error("LCA(m1, m2) = root, want a minimal candidate (a1 or a2), not their non-minimal common ancestor")
	}
	if !lca.Equal(a1) && !lca.Equal(a2) {
		t.Errorf("LCA(m1, m2) = %s, want a1 (%s) or a2 (%s)", lca, a1, a2)
	}
}
