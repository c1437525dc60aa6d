package core

import (
	"fmt"
	"sort"
	"time"
)

func readFileBytes(store ObjectStore, child TreeChild) ([]byte, error) {
	obj, err := store.GetNode(child.CID)
	if err != nil {
		return nil, err
	}
	f, ok := obj.(*File)
	if !ok {
		return nil, fmt.Errorf("%w: expected file", ErrCorruptObject)
	}
	return store.GetBlob(f.Link)
}

// mergeTrees performs the recursive three-way tree merge of spec.md §4.9's
// table. It always returns a merged-tree CID (built best-effort even when
// some paths conflict) and the accumulated conflict set; the caller
// discards the tree and aborts if conflicts is non-empty.
func mergeTrees(store ObjectStore, merger TextMerger, base, origin, dest *Tree, prefix string) (CID, map[string]ConflictKind, error) {
	baseByName := make(map[string]TreeChild, len(base.Children))
	for _, c := range base.Children {
		baseByName[c.Name] = c
	}
	originByName := make(map[string]TreeChild, len(origin.Children))
	for _, c := range origin.Children {
		originByName[c.Name] = c
	}
	destByName := make(map[string]TreeChild, len(dest.Children))
	for _, c := range dest.Children {
		destByName[c.Name] = c
	}

	names := make(map[string]bool, len(baseByName)+len(originByName)+len(destByName))
	for n := range baseByName {
		names[n] = true
	}
	for n := range originByName {
		names[n] = true
	}
	for n := range destByName {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	conflicts := make(map[string]ConflictKind)
	var children []TreeChild

	for _, name := range sorted {
		path := joinPath(prefix, name)
		bc, inBase := baseByName[name]
		oc, inOrigin := originByName[name]
		dc, inDest := destByName[name]

		if !inBase {
			switch {
			case inOrigin && inDest:
				if oc.CID.Equal(dc.CID) {
					children = append(children, oc)
					continue
				}
				oKind, err := resolveKind(store, oc)
				if err != nil {
					return Empty, nil, err
				}
				dKind, err := resolveKind(store, dc)
				if err != nil {
					return Empty, nil, err
				}
				if oKind != dKind {
					conflicts[path] = TypeConflict
				} else {
					conflicts[path] = AddAddConflict
				}
			case inOrigin:
				children = append(children, oc)
			case inDest:
				children = append(children, dc)
			}
			continue
		}

		// base present.
		switch {
		case inOrigin && inDest:
			oEqB := oc.CID.Equal(bc.CID)
			dEqB := dc.CID.Equal(bc.CID)
			switch {
			case oEqB && dEqB:
				children = append(children, bc)
			case oEqB && !dEqB:
				children = append(children, dc)
			case !oEqB && dEqB:
				children = append(children, oc)
			default:
				if oc.CID.Equal(dc.CID) {
					children = append(children, oc)
					continue
				}
				oKind, err := resolveKind(store, oc)
				if err != nil {
					return Empty, nil, err
				}
				dKind, err := resolveKind(store, dc)
				if err != nil {
					return Empty, nil, err
				}
				if oKind != dKind {
					conflicts[path] = TypeConflict
					continue
				}
				if oKind == KindTree {
					baseSub, err := ResolveTree(store, bc.CID)
					if err != nil {
						return Empty, nil, err
					}
					originSub, err := ResolveTree(store, oc.CID)
					if err != nil {
						return Empty, nil, err
					}
					destSub, err := ResolveTree(store, dc.CID)
					if err != nil {
						return Empty, nil, err
					}
					childCID, childConflicts, err := mergeTrees(store, merger, baseSub, originSub, destSub, path)
					if err != nil {
						return Empty, nil, err
					}
					for p, k := range childConflicts {
						conflicts[p] = k
					}
					if len(childConflicts) == 0 {
						children = append(children, TreeChild{Name: name, CID: childCID, Kind: KindTree})
					}
					continue
				}
				// both files: delegate to the external textual merger.
				originBytes, err := readFileBytes(store, oc)
				if err != nil {
					return Empty, nil, err
				}
				baseBytes, err := readFileBytes(store, bc)
				if err != nil {
					return Empty, nil, err
				}
				destBytes, err := readFileBytes(store, dc)
				if err != nil {
					return Empty, nil, err
				}
				merged, conflict, _ := merger.Merge3(originBytes, baseBytes, destBytes)
				if conflict {
					conflicts[path] = TextConflict
					continue
				}
				blobCID, err := store.PutBlob(merged)
				if err != nil {
					return Empty, nil, err
				}
				fileCID, err := store.PutNode(&File{Path: path, Link: blobCID})
				if err != nil {
					return Empty, nil, err
				}
				children = append(children, TreeChild{Name: name, CID: fileCID, Kind: KindFile})
			}

		case inOrigin && !inDest:
			if !oc.CID.Equal(bc.CID) {
				conflicts[path] = ModDelConflict
			}
			// else: dest deleted it, origin left it unchanged -> delete (omit).

		case !inOrigin && inDest:
			if !dc.CID.Equal(bc.CID) {
				conflicts[path] = ModDelConflict
			}
			// else: origin deleted it, dest left it unchanged -> delete (omit).

		case !inOrigin && !inDest:
			// both deleted -> delete (omit).
		}
	}

	t := &Tree{Path: pathOrDot(prefix), Children: children}
	t.Sort()
	id, err := store.PutNode(t)
	if err != nil {
		return Empty, nil, err
	}
	return id, conflicts, nil
}

// Merge merges branch other into the current branch (spec.md §4.9).
func (w *Workspace) Merge(other, author string, now time.Time) (CID, error) {
	if !w.Branches.Exists(other) {
		return Empty, fmt.Errorf("%w: %s", ErrUnknownBranch, other)
	}
	if err := w.preflight(); err != nil {
		return Empty, err
	}

	current := w.Branches.Current()
	o, err := w.Branches.Head(current)
	if err != nil {
		return Empty, err
	}
	d, err := w.Branches.Head(other)
	if err != nil {
		return Empty, err
	}

	if o.Equal(d) {
		return o, nil
	}

	lca, err := LCA(w.Store, o, d)
	if err != nil {
		return Empty, err
	}

	if lca.Equal(o) {
		return w.fastForward(current, d)
	}
	if lca.Equal(d) {
		return o, nil
	}

	baseTree, err := ResolveTree(w.Store, lca)
	if err != nil {
		return Empty, err
	}
	originTree, err := ResolveTree(w.Store, o)
	if err != nil {
		return Empty, err
	}
	destTree, err := ResolveTree(w.Store, d)
	if err != nil {
		return Empty, err
	}

	mergedCID, conflicts, err := mergeTrees(w.Store, w.Merger, baseTree, originTree, destTree, "")
	if err != nil {
		return Empty, err
	}
	if len(conflicts) > 0 {
		return Empty, &MergeConflictError{Conflicts: conflicts}
	}

	mergedTree, err := ResolveTree(w.Store, mergedCID)
	if err != nil {
		return Empty, err
	}
	if err := applyTreeDiff(w.WD, w.Store, originTree, mergedTree, ""); err != nil {
		return Empty, err
	}
	if err := w.Index.Reinitialize(mergedTree, w.Store); err != nil {
		return Empty, err
	}

	snap := &Snapshot{
		Author:    author,
		Message:   fmt.Sprintf("Merged %s into %s", other, current),
		Tree:      mergedCID,
		Parents:   []CID{o, d},
		Timestamp: now.Unix(),
	}
	snapCID, err := w.Store.PutNode(snap)
	if err != nil {
		return Empty, err
	}
	if err := w.Branches.SetHead(current, snapCID); err != nil {
		return Empty, err
	}
	if err := w.Index.Save(w.Layout.IndexPath); err != nil {
		return Empty, err
	}
	return snapCID, nil
}

// fastForward moves current's head to newHead, reconciling the working
// directory the same way a checkout would, without creating a new
// snapshot (spec.md §4.9 case 2). The current branch keeps its identity:
// only its head CID advances (spec.md §9 open question 4).
func (w *Workspace) fastForward(current string, newHead CID) (CID, error) {
	oldHead, err := w.Branches.Head(current)
	if err != nil {
		return Empty, err
	}
	baseTree, err := ResolveTree(w.Store, oldHead)
	if err != nil {
		return Empty, err
	}
	newTree, err := ResolveTree(w.Store, newHead)
	if err != nil {
		return Empty, err
	}
	if err := applyTreeDiff(w.WD, w.Store, baseTree, newTree, ""); err != nil {
		return Empty, err
	}
	if err := w.Index.Reinitialize(newTree, w.Store); err != nil {
		return Empty, err
	}
	if err := w.Branches.SetHead(current, newHead); err != nil {
		return Empty, err
	}
	if err := w.Index.Save(w.Layout.IndexPath); err != nil {
		return Empty, err
	}
	return newHead, nil
}
