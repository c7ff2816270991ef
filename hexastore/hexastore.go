// Package hexastore implements the Hexastore Graph Index (J, spec.md
// §4.10): six orderings of every stored (s,p,o[,g]) triple, each under
// its own numeric sub-subspace, so any bound subset of a triple
// pattern can be answered with a single prefix scan.
package hexastore

import (
	"context"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/tuple"
)

// Ordering identifies one of the six permutations a triple is stored
// under (spec.md §4.10).
type Ordering int

const (
	SPO Ordering = iota
	POS
	OSP
	PSO
	SOP
	OPS
)

var orderingNames = [...]string{"SPO", "POS", "OSP", "PSO", "SOP", "OPS"}

func (o Ordering) String() string { return orderingNames[o] }

// permutation returns the index into (s,p,o) for each output position
// under this ordering, e.g. SPO -> [0,1,2], POS -> [1,2,0].
func (o Ordering) permutation() [3]int {
	switch o {
	case SPO:
		return [3]int{0, 1, 2}
	case POS:
		return [3]int{1, 2, 0}
	case OSP:
		return [3]int{2, 0, 1}
	case PSO:
		return [3]int{1, 0, 2}
	case SOP:
		return [3]int{0, 2, 1}
	case OPS:
		return [3]int{2, 1, 0}
	default:
		panic("hexastore: unknown ordering")
	}
}

// Triple is one stored graph edge (spec.md §3.1, §4.10). Graph is
// optional; empty string means the default graph.
type Triple struct {
	Subject, Predicate string
	Object             schema.FieldValue
	Graph              string
}

func (t Triple) components() [3]tuple.Element {
	return [3]tuple.Element{tuple.Str(t.Subject), tuple.Str(t.Predicate), t.Object.ToTupleElement()}
}

// Store persists a triple under all six orderings, each rooted at its
// own numbered child of Root (spec.md §4.10: "Each ordering occupies
// its own numeric sub-subspace").
type Store struct {
	Root kv.Subspace
}

func (s Store) subspace(o Ordering) kv.Subspace {
	return s.Root.Sub(tuple.Int(int64(o)))
}

// Insert writes t under every ordering (spec.md §4.10: "A triple is
// written under every ordering's permutation").
func (s Store) Insert(ctx context.Context, txn kv.Transaction, t Triple) error {
	comps := t.components()
	for o := SPO; o <= OPS; o++ {
		perm := o.permutation()
		key := s.subspace(o).Pack(tuple.Tuple{comps[perm[0]], comps[perm[1]], comps[perm[2]], tuple.Str(t.Graph)})
		if err := txn.SetValue(key, nil); err != nil {
			return err
		}
	}
	return nil
}

// Delete clears t from every ordering.
func (s Store) Delete(ctx context.Context, txn kv.Transaction, t Triple) error {
	comps := t.components()
	for o := SPO; o <= OPS; o++ {
		perm := o.permutation()
		key := s.subspace(o).Pack(tuple.Tuple{comps[perm[0]], comps[perm[1]], comps[perm[2]], tuple.Str(t.Graph)})
		if err := txn.Clear(key); err != nil {
			return err
		}
	}
	return nil
}

// Bound describes which of (s,p,o) are fixed in a pattern lookup; a
// nil pointer means unbound. Graph defaults to the empty string (the
// default graph) when the pattern doesn't scope to a named graph.
type Bound struct {
	Subject, Predicate *string
	Object             *schema.FieldValue
	Graph              string
}

// ChooseOrdering selects the permutation spec.md §4.11.4's table
// prescribes for a bound subset, preferring the hexastore (hx)
// ordering over its adjacency alternative when both work equally well.
func ChooseOrdering(b Bound) Ordering {
	s, p, o := b.Subject != nil, b.Predicate != nil, b.Object != nil
	switch {
	case s && p && o:
		return SPO
	case s && p:
		return SPO
	case s && o:
		return SOP
	case p && o:
		return POS
	case s:
		return SPO
	case p:
		return PSO
	case o:
		return OSP
	default:
		return SPO
	}
}

// ScanRange builds the [begin,end) scan for the chosen ordering and
// bound prefix (spec.md §4.11.4: "Fully-bound: range [key,
// strinc(key)) ... Partially bound: use the prefix's subspace range").
func (s Store) ScanRange(o Ordering, b Bound) (begin, end []byte) {
	sub := s.subspace(o)
	prefix := boundPrefix(o, b)
	if len(prefix) == 3 {
		key := sub.Pack(tuple.Tuple{prefix[0], prefix[1], prefix[2], tuple.Str(b.Graph)})
		return kv.ExactKeyRange(key)
	}
	elems := make(tuple.Tuple, len(prefix))
	copy(elems, prefix)
	packed := sub.Pack(elems)
	prefixSub := kv.NewSubspace(packed)
	return prefixSub.Range()
}

// boundPrefix returns the leading bound tuple elements in ordering o's
// permutation order, stopping at the first unbound position (a
// pattern can only have a contiguous bound prefix in one ordering at a
// time per spec.md §4.11.4's table).
func boundPrefix(o Ordering, b Bound) []tuple.Element {
	vals := [3]*tuple.Element{}
	if b.Subject != nil {
		e := tuple.Str(*b.Subject)
		vals[0] = &e
	}
	if b.Predicate != nil {
		e := tuple.Str(*b.Predicate)
		vals[1] = &e
	}
	if b.Object != nil {
		e := b.Object.ToTupleElement()
		vals[2] = &e
	}
	perm := o.permutation()
	var out []tuple.Element
	for _, idx := range perm {
		if vals[idx] == nil {
			break
		}
		out = append(out, *vals[idx])
	}
	return out
}

// Decoded is one scanned hexastore key, remapped back to (s,p,o,g).
type Decoded struct {
	Subject, Predicate string
	Object             schema.FieldValue
	Graph              string
}

// Decode unpacks key (from ordering o's subspace) back into (s,p,o,g),
// skipping the prefix stripping done by callers (spec.md §4.11.4: "for
// each returned key, unpack into three components, remap back to
// (s,p,o) using the ordering's permutation").
func (s Store) Decode(o Ordering, key []byte) (Decoded, error) {
	t, err := s.subspace(o).Unpack(key)
	if err != nil {
		return Decoded{}, err
	}
	perm := o.permutation()
	var comps [3]tuple.Element
	for outPos, origPos := range perm {
		comps[origPos] = t[outPos]
	}
	graph := ""
	if len(t) > 3 {
		graph = t[3].Str
	}
	return Decoded{
		Subject:   comps[0].Str,
		Predicate: comps[1].Str,
		Object:    schema.FromTupleElement(comps[2]),
		Graph:     graph,
	}, nil
}
