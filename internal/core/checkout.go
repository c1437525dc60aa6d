package core

import (
	"fmt"
	"sort"
)

// EmptyTree is the root tree of a branch whose head is Empty.
func EmptyTree() *Tree {
	return &Tree{Path: "."}
}

// ResolveTree fetches and decodes the tree at id, or EmptyTree() if id is
// Empty.
func ResolveTree(store ObjectStore, id CID) (*Tree, error) {
	if id.IsEmpty() {
		return EmptyTree(), nil
	}
	obj, err := store.GetNode(id)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*Tree)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a tree", ErrCorruptObject, id)
	}
	return t, nil
}

func resolveKind(store ObjectStore, child TreeChild) (Kind, error) {
	if child.Kind != KindUnknown {
		return child.Kind, nil
	}
	obj, err := store.GetNode(child.CID)
	if err != nil {
		return KindUnknown, err
	}
	return obj.Kind(), nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// applyTreeDiff recursively walks base and next in lockstep by child name,
// writing through wd to reconcile the working directory (spec.md §4.8).
func applyTreeDiff(wd WorkingDirectory, store ObjectStore, base, next *Tree, prefix string) error {
	baseByName := make(map[string]TreeChild, len(base.Children))
	for _, c := range base.Children {
		baseByName[c.Name] = c
	}
	nextByName := make(map[string]TreeChild, len(next.Children))
	for _, c := range next.Children {
		nextByName[c.Name] = c
	}

	names := make(map[string]bool, len(baseByName)+len(nextByName))
	for n := range baseByName {
		names[n] = true
	}
	for n := range nextByName {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		path := joinPath(prefix, name)
		bc, inBase := baseByName[name]
		nc, inNext := nextByName[name]

		switch {
		case !inBase && inNext:
			if err := writeSubtree(wd, store, nc, path); err != nil {
				return err
			}
		case inBase && !inNext:
			if err := removeSubtree(wd, store, bc, path); err != nil {
				return err
			}
		case bc.CID.Equal(nc.CID):
			// identical link, no-op
		default:
			bKind, err := resolveKind(store, bc)
			if err != nil {
				return err
			}
			nKind, err := resolveKind(store, nc)
			if err != nil {
				return err
			}
			if bKind != nKind {
				if err := removeSubtree(wd, store, bc, path); err != nil {
					return err
				}
				if err := writeSubtree(wd, store, nc, path); err != nil {
					return err
				}
				continue
			}
			switch bKind {
			case KindFile:
				if err := writeFile(wd, store, nc, path); err != nil {
					return err
				}
			case KindTree:
				baseSub, err := ResolveTree(store, bc.CID)
				if err != nil {
					return err
				}
				nextSub, err := ResolveTree(store, nc.CID)
				if err != nil {
					return err
				}
				if err := applyTreeDiff(wd, store, baseSub, nextSub, path); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%w: unexpected child kind at %s", ErrCorruptObject, path)
			}
		}
	}
	return nil
}

func writeFile(wd WorkingDirectory, store ObjectStore, child TreeChild, path string) error {
	obj, err := store.GetNode(child.CID)
	if err != nil {
		return err
	}
	f, ok := obj.(*File)
	if !ok {
		return fmt.Errorf("%w: %s is not a file", ErrCorruptObject, path)
	}
	data, err := store.GetBlob(f.Link)
	if err != nil {
		return err
	}
	return wd.Write(path, data)
}

func writeSubtree(wd WorkingDirectory, store ObjectStore, child TreeChild, path string) error {
	kind, err := resolveKind(store, child)
	if err != nil {
		return err
	}
	switch kind {
	case KindFile:
		return writeFile(wd, store, child, path)
	case KindTree:
		t, err := ResolveTree(store, child.CID)
		if err != nil {
			return err
		}
		if err := wd.Mkdir(path); err != nil {
			return err
		}
		for _, c := range t.Children {
			if err := writeSubtree(wd, store, c, joinPath(path, c.Name)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unexpected child kind at %s", ErrCorruptObject, path)
	}
}

func removeSubtree(wd WorkingDirectory, store ObjectStore, child TreeChild, path string) error {
	kind, err := resolveKind(store, child)
	if err != nil {
		return err
	}
	switch kind {
	case KindFile:
		return wd.Remove(path)
	case KindTree:
		t, err := ResolveTree(store, child.CID)
		if err != nil {
			return err
		}
		for _, c := range t.Children {
			if err := removeSubtree(wd, store, c, joinPath(path, c.Name)); err != nil {
				return err
			}
		}
		// Best-effort: remove the now-empty directory. Checkout does not
		// provide transactional rollback (spec.md §4.8), so an error here
		// is not fatal.
		_ = wd.Remove(path)
		return nil
	default:
		return fmt.Errorf("%w: unexpected child kind at %s", ErrCorruptObject, path)
	}
}

// Checkout reconciles the working directory with target's head and makes
// target the current branch (spec.md §4.8).
func (w *Workspace) Checkout(target string) error {
	if !w.Branches.Exists(target) {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, target)
	}
	if err := w.preflight(); err != nil {
		return err
	}

	currentHead, err := w.Branches.Head(w.Branches.Current())
	if err != nil {
		return err
	}
	targetHead, err := w.Branches.Head(target)
	if err != nil {
		return err
	}

	baseTree, err := ResolveTree(w.Store, currentHead)
	if err != nil {
		return err
	}
	newTree, err := ResolveTree(w.Store, targetHead)
	if err != nil {
		return err
	}

	if err := applyTreeDiff(w.WD, w.Store, baseTree, newTree, ""); err != nil {
		return err
	}
	if err := w.Index.Reinitialize(newTree, w.Store); err != nil {
		return err
	}
	if err := w.Index.Save(w.Layout.IndexPath); err != nil {
		return err
	}
	return w.Branches.SetCurrent(target)
}
