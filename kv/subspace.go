package kv

import (
	"github.com/recordgraph/rg/tuple"
)

// Well-known single-character category tags (spec.md §4.1).
const (
	CategoryRecord   = "R" // R/<typeName>/<id...> -> record bytes
	CategoryIndex    = "I" // I/<indexName>/<value...>/<id...> -> empty
	CategoryStore    = "S" // S/... store metadata
	CategoryFormerIdx = "F" // S/F/<indexName> -> tombstoned index marker
	CategoryState    = "T" // T/<indexName> -> index state
	FormatVersionKey = "_format/version"
	ProgressMultiPrefix  = "_progress_multi"
	ProgressMutualPrefix = "_progress_mutual"
)

// Subspace is a byte prefix acting as a namespace; Pack composes keys
// inside it and Range yields the half-open byte range covering every
// key with that prefix (spec.md §4.1).
type Subspace struct {
	prefix []byte
}

// NewSubspace returns the subspace rooted at prefix.
func NewSubspace(prefix []byte) Subspace {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return Subspace{prefix: p}
}

// Sub returns a child subspace nesting t under this one's prefix.
func (s Subspace) Sub(elems ...tuple.Element) Subspace {
	return NewSubspace(append(append([]byte{}, s.prefix...), tuple.Pack(elems)...))
}

// Pack builds a full key: prefix followed by the packed tuple.
func (s Subspace) Pack(t tuple.Tuple) []byte {
	return append(append([]byte{}, s.prefix...), tuple.Pack(t)...)
}

// Bytes returns the raw subspace prefix.
func (s Subspace) Bytes() []byte { return append([]byte{}, s.prefix...) }

// Range returns [prefix+0x00, prefix+0xFF), exclusive of the exact
// prefix key itself (spec.md §4.1).
func (s Subspace) Range() (begin, end []byte) {
	begin = append(append([]byte{}, s.prefix...), 0x00)
	end = append(append([]byte{}, s.prefix...), 0xFF)
	return begin, end
}

// ExactKeyRange returns [key, strinc(key)) for exact-key lookups via a
// range scan (spec.md §4.1: "exact-key lookups use [key, strinc(key))
// instead").
func ExactKeyRange(key []byte) (begin, end []byte) {
	return key, tuple.Strinc(key)
}

// Unpack parses a key relative to this subspace, stripping the prefix
// first. It errors if key does not start with the subspace's prefix.
func (s Subspace) Unpack(key []byte) (tuple.Tuple, error) {
	if len(key) < len(s.prefix) {
		return nil, errNotInSubspace
	}
	for i, b := range s.prefix {
		if key[i] != b {
			return nil, errNotInSubspace
		}
	}
	return tuple.Unpack(key[len(s.prefix):])
}
