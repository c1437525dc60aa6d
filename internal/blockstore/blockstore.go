// Package blockstore is the default on-disk ObjectStore: a sharded,
// content-addressed block directory under .pando/ipfs, in the same
// loose-object-with-two-character-shard discipline Git uses under
// .git/objects (internal/gitcore's readLooseObjectRaw/objectPath), but
// with nodes and blobs distinguished only by how the caller asked them to
// be hashed (core.NewCID vs. the node codec), never by a compression
// format — blocks are stored exactly as produced by core.Encode or as
// given to PutBlob.
package blockstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pandonetwork/pando/internal/core"
	"gopkg.in/yaml.v3"
)

// Store is a disk-backed core.ObjectStore rooted at dir (normally
// Layout.ObjectsDir, i.e. .pando/ipfs).
type Store struct {
	dir      string
	pinsPath string
}

// Open returns a Store rooted at dir, creating it if necessary.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blockstore: create %s: %w", dir, err)
	}
	return &Store{dir: dir, pinsPath: filepath.Join(dir, "..", "pins")}, nil
}

func (s *Store) blockPath(id core.CID) string {
	name := id.String()
	shard := name
	if len(name) > 2 {
		shard = name[:2]
	}
	return filepath.Join(s.dir, shard, name)
}

func (s *Store) has(id core.CID) bool {
	_, err := os.Stat(s.blockPath(id))
	return err == nil
}

func (s *Store) readBlock(id core.CID) ([]byte, error) {
	data, err := os.ReadFile(s.blockPath(id)) //nolint:gosec // content-addressed path under the workspace
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrMissingObject, id)
		}
		return nil, fmt.Errorf("blockstore: read %s: %w", id, err)
	}
	return data, nil
}

func (s *Store) writeBlock(id core.CID, data []byte) error {
	if s.has(id) {
		return nil
	}
	path := s.blockPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blockstore: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("blockstore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("blockstore: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("blockstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("blockstore: rename: %w", err)
	}
	return nil
}

// PutNode encodes obj canonically and stores it under its node CID.
func (s *Store) PutNode(obj core.Object) (core.CID, error) {
	data, id, err := core.Encode(obj)
	if err != nil {
		return core.Empty, err
	}
	if err := s.writeBlock(id, data); err != nil {
		return core.Empty, err
	}
	return id, nil
}

// GetNode reads and decodes the node at id.
func (s *Store) GetNode(id core.CID) (core.Object, error) {
	data, err := s.readBlock(id)
	if err != nil {
		return nil, err
	}
	return core.Decode(data)
}

// PutBlob stores raw bytes under their raw-codec CID.
func (s *Store) PutBlob(data []byte) (core.CID, error) {
	id, err := core.NewCID(data)
	if err != nil {
		return core.Empty, err
	}
	if err := s.writeBlock(id, data); err != nil {
		return core.Empty, err
	}
	return id, nil
}

// GetBlob returns the raw bytes stored under id.
func (s *Store) GetBlob(id core.CID) ([]byte, error) {
	return s.readBlock(id)
}

func (s *Store) loadPins() (map[string]bool, error) {
	pins := make(map[string]bool)
	data, err := os.ReadFile(s.pinsPath) //nolint:gosec // workspace-local metadata path
	if os.IsNotExist(err) {
		return pins, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blockstore: read pins: %w", err)
	}
	var list []string
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("blockstore: parse pins: %w", err)
	}
	for _, s := range list {
		pins[s] = true
	}
	return pins, nil
}

func (s *Store) savePins(pins map[string]bool) error {
	list := make([]string, 0, len(pins))
	for id := range pins {
		list = append(list, id)
	}
	sort.Strings(list)
	data, err := yaml.Marshal(list)
	if err != nil {
		return fmt.Errorf("blockstore: marshal pins: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.pinsPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("blockstore: create temp pins: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("blockstore: write temp pins: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("blockstore: close temp pins: %w", err)
	}
	return os.Rename(tmpName, s.pinsPath)
}

// Pin marks id as reachable from outside the current branch graph, so a
// future garbage collector (not implemented; see the pin set's role in
// SPEC_FULL.md §10.2) would not reclaim it.
func (s *Store) Pin(id core.CID) error {
	pins, err := s.loadPins()
	if err != nil {
		return err
	}
	pins[id.String()] = true
	return s.savePins(pins)
}

// Unpin removes id from the pin set.
func (s *Store) Unpin(id core.CID) error {
	pins, err := s.loadPins()
	if err != nil {
		return err
	}
	delete(pins, id.String())
	return s.savePins(pins)
}

var _ core.ObjectStore = (*Store)(nil)
