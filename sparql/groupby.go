package sparql

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/btree"

	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/tuple"
)

// AggregateFunc enumerates the supported SPARQL aggregates (spec.md
// §4.11.3, §4.11.9).
type AggregateFunc int

const (
	AggCount AggregateFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggSample
	AggGroupConcat
)

// Aggregate is one SELECT-list aggregate expression bound to an alias.
type Aggregate struct {
	Func      AggregateFunc
	Expr      Expr
	Distinct  bool
	Alias     string
	Separator string // GROUP_CONCAT only, default " "
}

// GroupValue wraps a grouping-key component, distinguishing a variable
// that is unbound in a given solution from one bound to an actual
// null, so that groups don't conflate the two (spec.md §4.11.3:
// "GROUP BY distinguishes an unbound variable from a bound null").
type GroupValue struct {
	Bound bool
	Value schema.FieldValue
}

func groupKeyFor(sol Solution, vars []string) []GroupValue {
	key := make([]GroupValue, len(vars))
	for i, v := range vars {
		if val, ok := sol[v]; ok {
			key[i] = GroupValue{Bound: true, Value: val}
		}
	}
	return key
}

// groupKeyString renders a group key into a comparable string so it can
// serve as a btree key, without losing bound-vs-unbound distinction or
// cross-type numeric equality: each bound value is keyed by its packed
// tuple encoding, an integral double being keyed as the equal int64.
// Groups are emitted in the byte order of these keys, not in
// schema.SortKey order.
func groupKeyString(key []GroupValue) string {
	var b strings.Builder
	for _, k := range key {
		if !k.Bound {
			b.WriteString("U|")
			continue
		}
		b.WriteString("B|")
		v := k.Value
		if v.Kind == schema.KindDouble && v.Double == math.Trunc(v.Double) && math.Abs(v.Double) < math.MaxInt64 {
			v = schema.Int64(int64(v.Double))
		}
		b.Write(tuple.Pack(tuple.Tuple{v.ToTupleElement()}))
	}
	return b.String()
}

type group struct {
	key       []GroupValue
	solutions []Solution
}

// evaluateGroupBy partitions child's solutions by groupVars, computes
// aggregates per group, applies having as a post-aggregation filter,
// and emits groups in a deterministic order (spec.md §4.11.3:
// "deterministic group emission order" via a sorted tree rather than
// map iteration order).
func evaluateGroupBy(ctx context.Context, env *Env, child *Pattern, groupVars []string, aggregates []Aggregate, having Expr) ([]Solution, error) {
	solutions, err := Evaluate(ctx, env, child)
	if err != nil {
		return nil, err
	}

	tree := &btree.Map[string, *group]{}
	for _, sol := range solutions {
		key := groupKeyFor(sol, groupVars)
		ks := groupKeyString(key)
		g, ok := tree.Get(ks)
		if !ok {
			g = &group{key: key}
			tree.Set(ks, g)
		}
		g.solutions = append(g.solutions, sol)
	}

	var out []Solution
	tree.Scan(func(_ string, g *group) bool {
		result := Solution{}
		for i, v := range groupVars {
			if g.key[i].Bound {
				result[v] = g.key[i].Value
			}
		}
		for _, agg := range aggregates {
			result["?"+strings.TrimPrefix(agg.Alias, "?")] = evalAggregate(agg, g.solutions)
		}
		if having != nil {
			hv, err := EvalExpr(having, result)
			if err != nil || !hv.EBV() {
				return true
			}
		}
		out = append(out, result)
		return true
	})
	return out, nil
}

func evalAggregate(agg Aggregate, solutions []Solution) schema.FieldValue {
	switch agg.Func {
	case AggCount:
		return countAgg(agg, solutions)
	case AggSum:
		return sumAgg(agg, solutions)
	case AggAvg:
		return avgAgg(agg, solutions)
	case AggMin:
		return minMaxAgg(agg, solutions, schema.LT)
	case AggMax:
		return minMaxAgg(agg, solutions, schema.GT)
	case AggSample:
		return sampleAgg(agg, solutions)
	case AggGroupConcat:
		return groupConcatAgg(agg, solutions)
	default:
		return schema.Null()
	}
}

func aggValues(agg Aggregate, solutions []Solution) []schema.FieldValue {
	seen := map[uint64]bool{}
	var out []schema.FieldValue
	for _, sol := range solutions {
		v, err := EvalExpr(agg.Expr, sol)
		if err != nil || v.IsNull() {
			continue
		}
		if agg.Distinct {
			h := v.Hash()
			if seen[h] {
				continue
			}
			seen[h] = true
		}
		out = append(out, v)
	}
	return out
}

func countAgg(agg Aggregate, solutions []Solution) schema.FieldValue {
	if agg.Expr == nil {
		return schema.Int64(int64(len(solutions)))
	}
	return schema.Int64(int64(len(aggValues(agg, solutions))))
}

// sumAgg skips non-numeric values; SUM returns an integer only when
// every contributing value is itself exactly an int64 (spec.md
// §4.11.3: "SUM returns integer only when Int64(exactly:) succeeds").
func sumAgg(agg Aggregate, solutions []Solution) schema.FieldValue {
	var total float64
	allInt := true
	for _, v := range aggValues(agg, solutions) {
		switch v.Kind {
		case schema.KindInt64:
			total += float64(v.Int64)
		case schema.KindDouble:
			total += v.Double
			allInt = false
		default:
			continue
		}
	}
	if allInt {
		return schema.Int64(int64(total))
	}
	return schema.Double(total)
}

func avgAgg(agg Aggregate, solutions []Solution) schema.FieldValue {
	var total float64
	var n int
	for _, v := range aggValues(agg, solutions) {
		switch v.Kind {
		case schema.KindInt64:
			total += float64(v.Int64)
			n++
		case schema.KindDouble:
			total += v.Double
			n++
		}
	}
	if n == 0 {
		return schema.Null()
	}
	return schema.Double(total / float64(n))
}

func minMaxAgg(agg Aggregate, solutions []Solution, want schema.Ordering) schema.FieldValue {
	values := aggValues(agg, solutions)
	if len(values) == 0 {
		return schema.Null()
	}
	best := values[0]
	for _, v := range values[1:] {
		if ord, ok := v.Compare(best); ok && ord == want {
			best = v
		}
	}
	return best
}

func sampleAgg(agg Aggregate, solutions []Solution) schema.FieldValue {
	values := aggValues(agg, solutions)
	if len(values) == 0 {
		return schema.Null()
	}
	return values[0]
}

func groupConcatAgg(agg Aggregate, solutions []Solution) schema.FieldValue {
	sep := agg.Separator
	if sep == "" {
		sep = " "
	}
	var parts []string
	for _, v := range aggValues(agg, solutions) {
		parts = append(parts, stringify(v))
	}
	return schema.String(strings.Join(parts, sep))
}

func stringify(v schema.FieldValue) string {
	switch v.Kind {
	case schema.KindString:
		return v.String
	case schema.KindInt64:
		return fmt.Sprintf("%d", v.Int64)
	case schema.KindDouble:
		return fmt.Sprintf("%g", v.Double)
	case schema.KindBool:
		return fmt.Sprintf("%v", v.Bool)
	default:
		return ""
	}
}
