package core

import "fmt"

// Parents returns the parent snapshot CIDs of id, via the codec.
func Parents(store ObjectStore, id CID) ([]CID, error) {
	obj, err := store.GetNode(id)
	if err != nil {
		return nil, err
	}
	snap, ok := obj.(*Snapshot)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a snapshot", ErrCorruptObject, id)
	}
	return snap.Parents, nil
}

// Ancestors returns the finite, deduplicated set of strict ancestor CIDs of
// id, discovered by breadth-first traversal over Parents. id itself is
// never included (spec.md §8 property 4: s ∉ ancestors(s)).
func Ancestors(store ObjectStore, id CID) ([]CID, error) {
	set, err := ancestorsStrict(store, id)
	if err != nil {
		return nil, err
	}
	out := make([]CID, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out, nil
}

func ancestorsStrict(store ObjectStore, id CID) (map[string]CID, error) {
	visited := make(map[string]CID)
	queue := []CID{id}
	frontierSeen := map[string]bool{id.String(): true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		parents, err := Parents(store, cur)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			key := p.String()
			if _, ok := visited[key]; ok {
				continue
			}
			if !frontierSeen[key] {
				frontierSeen[key] = true
				queue = append(queue, p)
			}
			visited[key] = p
		}
	}
	return visited, nil
}

func ancestorsOrSelf(store ObjectStore, id CID) (map[string]CID, error) {
	set, err := ancestorsStrict(store, id)
	if err != nil {
		return nil, err
	}
	set[id.String()] = id
	return set, nil
}

// LCA finds the lowest common ancestor of a and b (spec.md §4.6): BFS from
// a and from b over ancestor-or-self sets, intersect, then return a
// candidate that is not a strict ancestor of any other candidate (minimal
// in the DAG order — in a criss-cross history more than one such candidate
// can exist; any one is a valid answer). Returns Empty if a or b is Empty,
// or if no common ancestor exists.
func LCA(store ObjectStore, a, b CID) (CID, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return Empty, nil
	}
	if a.Equal(b) {
		return a, nil
	}

	setA, err := ancestorsOrSelf(store, a)
	if err != nil {
		return Empty, err
	}
	setB, err := ancestorsOrSelf(store, b)
	if err != nil {
		return Empty, err
	}

	var candidates []CID
	for key, c := range setA {
		if _, ok := setB[key]; ok {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return Empty, nil
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	// Among multiple candidates, find one that is not a strict ancestor
	// of any other candidate.
	ancestorSets := make(map[string]map[string]CID, len(candidates))
	for _, c := range candidates {
		anc, err := ancestorsStrict(store, c)
		if err != nil {
			return Empty, err
		}
		ancestorSets[c.String()] = anc
	}

	for _, c := range candidates {
		key := c.String()
		isAncestorOfOther := false
		for _, other := range candidates {
			if other.Equal(c) {
				continue
			}
			if _, found := ancestorSets[other.String()][key]; found {
				isAncestorOfOther = true
				break
			}
		}
		if !isAncestorOfOther {
			return c, nil
		}
	}
	// Unreachable for a finite DAG: some candidate must be minimal.
	return candidates[0], nil
}
