package sparql

import (
	"context"
	"math"

	"golang.org/x/exp/slices"

	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/tuple"
)

// SortKey is one ORDER BY clause term (spec.md §4.11.6).
type SortKey struct {
	Expr       Expr
	Descending bool
}

// OrderBy sorts solutions by a sequence of keys, each compared with
// schema.SortKey so incomparable types still impose a total,
// deterministic order (spec.md §4.11.6).
func OrderBy(solutions []Solution, keys []SortKey) []Solution {
	out := append([]Solution{}, solutions...)
	slices.SortStableFunc(out, func(a, b Solution) int {
		for _, k := range keys {
			va, erra := EvalExpr(k.Expr, a)
			vb, errb := EvalExpr(k.Expr, b)
			if erra != nil {
				va = schema.Null()
			}
			if errb != nil {
				vb = schema.Null()
			}
			cmp := schema.SortKey(va, vb)
			if k.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp
			}
		}
		return 0
	})
	return out
}

// Project restricts each solution to vars, in SELECT-list order isn't
// meaningful for a map so this only filters bindings (spec.md §4.11.6
// "SELECT").
func Project(solutions []Solution, vars []string) []Solution {
	out := make([]Solution, len(solutions))
	for i, sol := range solutions {
		proj := Solution{}
		for _, v := range vars {
			if val, ok := sol[v]; ok {
				proj[v] = val
			}
		}
		out[i] = proj
	}
	return out
}

// solutionKey renders a solution into a value usable for
// distinctness/dedup comparisons, consistent with cross-type numeric
// equality (spec.md §4.11.2).
func solutionKey(sol Solution, vars []string) string {
	var parts []byte
	for _, v := range vars {
		val, ok := sol[v]
		if !ok {
			parts = append(parts, 0)
			continue
		}
		parts = append(parts, 1)
		if val.Kind == schema.KindDouble && val.Double == math.Trunc(val.Double) && math.Abs(val.Double) < math.MaxInt64 {
			val = schema.Int64(int64(val.Double))
		}
		parts = append(parts, tuple.Pack(tuple.Tuple{val.ToTupleElement()})...)
	}
	return string(parts)
}

// Distinct removes solutions that are duplicates of an earlier one
// once restricted to vars (spec.md §4.11.6 "DISTINCT"/"REDUCED" -
// REDUCED is treated identically to DISTINCT, a conforming
// strengthening the spec permits).
func Distinct(solutions []Solution, vars []string) []Solution {
	seen := map[string]bool{}
	var out []Solution
	for _, sol := range solutions {
		k := solutionKey(sol, vars)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, sol)
	}
	return out
}

// OffsetLimit applies OFFSET then LIMIT (spec.md §4.11.6's required
// modifier order: ORDER BY, then DISTINCT/REDUCED, then
// OFFSET/LIMIT). limit < 0 means unbounded.
func OffsetLimit(solutions []Solution, offset, limit int) []Solution {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(solutions) {
		return nil
	}
	solutions = solutions[offset:]
	if limit < 0 || limit >= len(solutions) {
		return solutions
	}
	return solutions[:limit]
}

// Query bundles a fully-built pattern with its solution modifiers
// (spec.md §4.11.6), applied in the W3C-mandated order.
type Query struct {
	Pattern     *Pattern
	Order       []SortKey
	Distinct    bool
	ProjectVars []string
	Offset      int
	Limit       int // -1 = unbounded
}

// Run evaluates q's pattern then applies its modifiers in order:
// ORDER BY, DISTINCT, OFFSET/LIMIT, and finally projection (projecting
// earlier would let post-projection DISTINCT/ORDER BY silently change
// meaning when non-projected variables differ between solutions).
func Run(ctx context.Context, env *Env, q *Query) ([]Solution, error) {
	solutions, err := Evaluate(ctx, env, q.Pattern)
	if err != nil {
		return nil, err
	}
	if len(q.Order) > 0 {
		solutions = OrderBy(solutions, q.Order)
	}
	if q.Distinct {
		vars := q.ProjectVars
		if len(vars) == 0 {
			vars = q.Pattern.Variables()
		}
		solutions = Distinct(solutions, vars)
	}
	solutions = OffsetLimit(solutions, q.Offset, q.Limit)
	if len(q.ProjectVars) > 0 {
		solutions = Project(solutions, q.ProjectVars)
	}
	return solutions, nil
}
