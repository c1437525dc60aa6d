package core

// ObjectStore is the content-addressable block store the core is built
// against (spec.md §1 names it an out-of-scope external collaborator with
// this interface, §4.2/§6). The default local implementation lives in
// internal/blockstore.
type ObjectStore interface {
	// PutNode canonically encodes obj, stores it, and returns its CID.
	// Idempotent: storing the same object twice returns the same CID.
	PutNode(obj Object) (CID, error)

	// GetNode fetches and decodes the object addressed by id.
	GetNode(id CID) (Object, error)

	// PutBlob stores raw file bytes and returns their CID.
	PutBlob(data []byte) (CID, error)

	// GetBlob returns the raw bytes addressed by id.
	GetBlob(id CID) ([]byte, error)

	// Pin marks id (and, for a tree/snapshot, nothing beyond it — pinning
	// is shallow) as retained against future garbage collection.
	Pin(id CID) error

	// Unpin removes a previous Pin.
	Unpin(id CID) error
}

// TextMerger is the external textual three-way merge collaborator
// (spec.md §4.9/§6): given the origin, base, and destination bytes of one
// file, it returns merged bytes and whether a conflict remains. When
// conflict is true, annotated holds the conflict-marker-annotated result.
type TextMerger interface {
	Merge3(origin, base, dest []byte) (merged []byte, conflict bool, annotated []byte)
}

// WorkingDirectory is the file-system adapter the checkout/merge engines
// write through (spec.md §1/§4.3). The default local implementation lives
// in internal/workspace.
type WorkingDirectory interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Remove(path string) error
	Mkdir(path string) error
	Exists(path string) (bool, error)
	// Walk yields every regular file path under the workspace root,
	// workspace-relative and POSIX-separated, skipping the metadata
	// directory.
	Walk(fn func(path string) error) error
}
