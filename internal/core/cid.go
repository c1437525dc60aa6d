// Package core implements the content-addressed object model, staging
// index, branch registry, snapshot DAG, checkout engine, and three-way
// merge engine at the heart of a pando workspace.
package core

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"lukechampine.com/blake3"
)

// CID is the content identifier of an encoded object or a raw file blob: a
// BLAKE3-256 multihash wrapped in an IPLD CID. The zero value is Empty, the
// sentinel for "no object" (an empty branch head, a root tree's absent
// parent, an unset index slot).
type CID struct {
	c cid.Cid
}

// Empty is the sentinel CID representing the absence of an object, used for
// the head of a branch with no snapshots yet and for unset index slots.
var Empty = CID{}

// rawCodec tags a CID as addressing raw bytes rather than a DAG-JSON node.
// IPLD reserves 0x55 for "raw binary", used here for File blob links; the
// codec's own Snapshot/Tree/File nodes use dag-json (0x0129).
const (
	rawCodec     = 0x55
	dagJSONCodec = 0x0129
)

// sumCID hashes data with BLAKE3-256 and wraps it in a CID using the given
// multicodec tag.
func sumCID(data []byte, codec uint64) (CID, error) {
	sum := blake3.Sum256(data)
	mh, err := multihash.Encode(sum[:], multihash.BLAKE3)
	if err != nil {
		return CID{}, fmt.Errorf("core: encode multihash: %w", err)
	}
	return CID{c: cid.NewCidV1(codec, mh)}, nil
}

// NewCID computes the CID of a raw file blob (used by File.Link).
func NewCID(data []byte) (CID, error) {
	return sumCID(data, rawCodec)
}

// newNodeCID computes the CID of canonically encoded Snapshot/Tree/File
// node bytes.
func newNodeCID(data []byte) (CID, error) {
	return sumCID(data, dagJSONCodec)
}

// IsEmpty reports whether c is the empty sentinel.
func (c CID) IsEmpty() bool {
	return !c.c.Defined()
}

// String returns the canonical textual form of the CID, or "" for Empty.
func (c CID) String() string {
	if c.IsEmpty() {
		return ""
	}
	return c.c.String()
}

// Equal reports whether two CIDs address the same object.
func (c CID) Equal(other CID) bool {
	return c.c.Equals(other.c)
}

// ParseCID parses the textual form produced by String. The empty string
// parses to Empty.
func ParseCID(s string) (CID, error) {
	if s == "" {
		return Empty, nil
	}
	parsed, err := cid.Decode(s)
	if err != nil {
		return Empty, fmt.Errorf("core: parse cid %q: %w", s, err)
	}
	return CID{c: parsed}, nil
}

// MarshalYAML implements yaml.Marshaler so Index/branch files store CIDs as
// plain strings (empty string for Empty).
func (c CID) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *CID) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseCID(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
