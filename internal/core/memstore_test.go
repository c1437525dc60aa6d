package core

import "fmt"

// memStore is a minimal in-process ObjectStore used by white-box unit
// tests in this package that need direct control over synthetic
// Tree/File graphs without pulling in internal/blockstore (which itself
// imports core, so a real Store is unavailable to internal tests).
type memStore struct {
	nodes map[string][]byte
	blobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{nodes: make(map[string][]byte), blobs: make(map[string][]byte)}
}

func (s *memStore) PutNode(obj Object) (CID, error) {
	data, id, err := Encode(obj)
	if err != nil {
		return Empty, err
	}
	s.nodes[id.String()] = data
	return id, nil
}

func (s *memStore) GetNode(id CID) (Object, error) {
	data, ok := s.nodes[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingObject, id)
	}
	return Decode(data)
}

func (s *memStore) PutBlob(data []byte) (CID, error) {
	id, err := NewCID(data)
	if err != nil {
		return Empty, err
	}
	s.blobs[id.String()] = data
	return id, nil
}

func (s *memStore) GetBlob(id CID) ([]byte, error) {
	data, ok := s.blobs[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingObject, id)
	}
	return data, nil
}

func (s *memStore) Pin(CID) error   { return nil }
func (s *memStore) Unpin(CID) error { return nil }
