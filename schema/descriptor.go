package schema

import (
	"github.com/pkg/errors"

	"github.com/recordgraph/rg/tuple"
)

// IndexEntryValues is one set of key-expression values an index
// derives from a single record (spec.md §3.1 IndexEntry). An index
// whose key expression walks an array field may legitimately produce
// more than one entry per record (e.g. a multi-valued tag field), so
// KeyExpressions returns a slice of value-tuples rather than one.
type IndexEntryValues = []tuple.Element

// RecordDescriptor is the capability set named in spec.md §9: a
// per-type witness giving encode/decode, id extraction, and the
// indexes declared over the type. Applications register one
// implementation per record type with a Container.
type RecordDescriptor interface {
	// TypeName is the stable name under which records of this type are
	// stored (spec.md §4.1 "R/<typeName>/<id...>").
	TypeName() string

	// Encode serializes record to its opaque stored byte form (spec.md
	// §1: "record serialization format ... treated as an opaque
	// encode/decode pair").
	Encode(record any) ([]byte, error)

	// Decode is Encode's inverse.
	Decode(data []byte) (any, error)

	// ID extracts the record's id tuple (spec.md §3.1: "identified by
	// an ordered tuple id composed of typed elements").
	ID(record any) (tuple.Tuple, error)

	// Indexes returns the index descriptors declared over this type.
	Indexes() []*IndexDescriptor
}

// IndexDescriptor is a named function record -> set<IndexEntry>
// (spec.md §3.1). KeyExpressions projects the record's declared key
// expressions out as zero or more value-tuples.
type IndexDescriptor struct {
	Name           string
	TypeName       string
	KeyExpressions func(record any) ([]IndexEntryValues, error)
}

// PackedEntries returns, for every entry this index derives from
// record, the (values..., id...) tuple that locates the entry relative
// to the index's I/<name> subspace (spec.md §4.5). Empty
// when KeyExpressions yields no value set (e.g. an absent optional
// field).
func (d *IndexDescriptor) PackedEntries(record any, id tuple.Tuple) ([]tuple.Tuple, error) {
	valueSets, err := d.KeyExpressions(record)
	if err != nil {
		return nil, errors.Wrapf(err, "schema: deriving index entries for %q", d.Name)
	}
	entries := make([]tuple.Tuple, 0, len(valueSets))
	for _, vs := range valueSets {
		t := make(tuple.Tuple, 0, len(vs)+len(id))
		t = append(t, vs...)
		t = append(t, id...)
		entries = append(entries, t)
	}
	return entries, nil
}

// Registry resolves a type name to its descriptor (spec.md §6.4
// modelNotFound). It is the schema half of what applications pass to
// Container construction (spec.md §6.2).
type Registry struct {
	byType map[string]RecordDescriptor
}

func NewRegistry(descriptors ...RecordDescriptor) *Registry {
	r := &Registry{byType: make(map[string]RecordDescriptor, len(descriptors))}
	for _, d := range descriptors {
		r.byType[d.TypeName()] = d
	}
	return r
}

func (r *Registry) Register(d RecordDescriptor) { r.byType[d.TypeName()] = d }

func (r *Registry) Lookup(typeName string) (RecordDescriptor, bool) {
	d, ok := r.byType[typeName]
	return d, ok
}

func (r *Registry) TypeNames() []string {
	names := make([]string, 0, len(r.byType))
	for name := range r.byType {
		names = append(names, name)
	}
	return names
}

// IndexByName finds one index descriptor across every registered
// type, used by query builders resolving an index reference (spec.md
// §6.4 indexNotFound).
func (r *Registry) IndexByName(name string) (*IndexDescriptor, bool) {
	for _, d := range r.byType {
		for _, idx := range d.Indexes() {
			if idx.Name == name {
				return idx, true
			}
		}
	}
	return nil, false
}
