package core

import (
	"sort"
	"strings"
)

// trieNode is a transient in-memory intermediate used to assemble a Tree
// from a flat set of staged paths before materializing it bottom-up into
// persisted File/Tree objects.
type trieNode struct {
	isFile   bool
	fileCID  CID
	children map[string]*trieNode
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[string]*trieNode)}
}

// BuildTree materializes a Tree rooted at "." from every index entry whose
// stage slot is nonempty (spec.md §4.7). Paths present only in repo (i.e.
// deleted, with an empty stage) are omitted, which is what yields the
// deletion. On success it sets repo := stage for every path it included.
func BuildTree(idx *Index, store ObjectStore) (*Tree, CID, error) {
	root := newTrieNode()

	var paths []string
	for path, e := range idx.Entries {
		if !e.Stage.IsEmpty() {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		components := strings.Split(path, "/")
		cur := root
		for i, comp := range components {
			leaf := i == len(components)-1
			child, exists := cur.children[comp]
			if !exists {
				child = newTrieNode()
				cur.children[comp] = child
			}
			if leaf {
				if len(child.children) > 0 {
					return nil, Empty, &PathIsFileError{Path: path}
				}
				child.isFile = true
				child.fileCID = idx.Entries[path].Stage
			} else if child.isFile {
				return nil, Empty, &PathIsFileError{Path: path}
			}
			cur = child
		}
	}

	_, rootCID, err := materializeTree(root, "", store)
	if err != nil {
		return nil, Empty, err
	}
	rootObj, err := store.GetNode(rootCID)
	if err != nil {
		return nil, Empty, err
	}
	rootTree := rootObj.(*Tree)

	for _, path := range paths {
		e := idx.Entries[path]
		e.Repo = e.Stage
		idx.Entries[path] = e
	}

	return rootTree, rootCID, nil
}

func materializeTree(n *trieNode, path string, store ObjectStore) (*Tree, CID, error) {
	t := &Tree{Path: pathOrDot(path)}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := n.children[name]
		childPath := name
		if path != "" {
			childPath = path + "/" + name
		}
		if child.isFile {
			id, err := store.PutNode(&File{Path: childPath, Link: child.fileCID})
			if err != nil {
				return nil, Empty, err
			}
			t.Children = append(t.Children, TreeChild{Name: name, CID: id, Kind: KindFile})
			continue
		}
		_, id, err := materializeTree(child, childPath, store)
		if err != nil {
			return nil, Empty, err
		}
		t.Children = append(t.Children, TreeChild{Name: name, CID: id, Kind: KindTree})
	}
	t.Sort()

	id, err := store.PutNode(t)
	if err != nil {
		return nil, Empty, err
	}
	return t, id, nil
}

func pathOrDot(path string) string {
	if path == "" {
		return "."
	}
	return path
}
