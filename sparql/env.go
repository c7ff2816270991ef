package sparql

import (
	"context"

	"github.com/recordgraph/rg/hexastore"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/schema"
)

// Env bundles the read-only context one query evaluation runs under:
// the hexastore (J) and the transaction it reads through (spec.md
// §4.11.3: "evaluate(pattern, txn)").
type Env struct {
	Store *hexastore.Store
	Txn   kv.Transaction
	Stats *Stats
}

// Stats accumulates evaluation statistics per spec.md §4.11.3
// ("Records intermediate cardinalities") and §4.11.5 ("Depth and
// result count are capped ... reflected in statistics"). Shared with
// perfmon's Explain/ExplainAnalyze (SPEC_FULL.md §4).
type Stats struct {
	IntermediateCardinalities []int
	OptionalMisses            int
	PropertyPathCapped        bool
}

func (s *Stats) recordCardinality(n int) {
	if s == nil {
		return
	}
	s.IntermediateCardinalities = append(s.IntermediateCardinalities, n)
}

func (s *Stats) recordOptionalMiss() {
	if s == nil {
		return
	}
	s.OptionalMisses++
}

func (s *Stats) recordPropertyPathCapped() {
	if s == nil {
		return
	}
	s.PropertyPathCapped = true
}

// evaluateTriplePattern runs one (possibly partially substituted)
// triple pattern against the hexastore, choosing the scan ordering
// per spec.md §4.11.4's table, and binds remaining variables from the
// decoded native values (no string-based type inference).
func (e *Env) evaluateTriplePattern(ctx context.Context, p TriplePattern) ([]Solution, error) {
	bound := hexastore.Bound{Graph: p.Graph}
	if p.Subject.Kind == TermValue {
		s := p.Subject.Value.String
		bound.Subject = &s
	}
	if p.Predicate.Kind == TermValue {
		pr := p.Predicate.Value.String
		bound.Predicate = &pr
	}
	if p.Object.Kind == TermValue {
		o := p.Object.Value
		bound.Object = &o
	}
	ord := hexastore.ChooseOrdering(bound)
	begin, end := e.Store.ScanRange(ord, bound)

	var out []Solution
	err := e.Txn.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
		d, derr := e.Store.Decode(ord, kvp.Key)
		if derr != nil {
			return false, derr
		}
		sol := Solution{}
		if !bindOrCheck(&sol, p.Subject, schema.String(d.Subject)) {
			return true, nil
		}
		if !bindOrCheck(&sol, p.Predicate, schema.String(d.Predicate)) {
			return true, nil
		}
		if !bindOrCheck(&sol, p.Object, d.Object) {
			return true, nil
		}
		out = append(out, sol)
		return true, nil
	})
	return out, err
}

// bindOrCheck binds term's variable to value in sol, or, for a bound
// term, verifies value matches it (defense in depth per spec.md
// §4.11.4: "skip if any bound term mismatches").
func bindOrCheck(sol *Solution, term Term, value schema.FieldValue) bool {
	switch term.Kind {
	case TermVariable:
		(*sol)[term.Variable] = value
		return true
	case TermValue:
		return term.Value.Equal(value)
	case TermWildcard:
		return true
	default:
		return true
	}
}
