package sparql

import (
	"context"

	"github.com/recordgraph/rg/hexastore"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/schema"
)

// PathKind enumerates the property-path grammar (spec.md §4.11.5:
// "iri | negatedPropertySet | inverse | sequence | alternative |
// zeroOrMore | oneOrMore | zeroOrOne").
type PathKind int

const (
	PathIRI PathKind = iota
	PathNegatedPropertySet
	PathInverse
	PathSequence
	PathAlternative
	PathZeroOrMore
	PathOneOrMore
	PathZeroOrOne
)

// PathExpr is a property-path AST node (spec.md §4.11.5).
type PathExpr struct {
	Kind         PathKind
	IRI          string   // PathIRI
	Excluded     []string // PathNegatedPropertySet
	Inner        *PathExpr
	Left, Right  *PathExpr // PathSequence/PathAlternative
}

func IRIPath(name string) PathExpr { return PathExpr{Kind: PathIRI, IRI: name} }

func Inverse(p PathExpr) PathExpr { return PathExpr{Kind: PathInverse, Inner: &p} }

func Sequence(l, r PathExpr) PathExpr { return PathExpr{Kind: PathSequence, Left: &l, Right: &r} }

func Alternative(l, r PathExpr) PathExpr {
	return PathExpr{Kind: PathAlternative, Left: &l, Right: &r}
}

func ZeroOrMore(p PathExpr) PathExpr { return PathExpr{Kind: PathZeroOrMore, Inner: &p} }
func OneOrMore(p PathExpr) PathExpr  { return PathExpr{Kind: PathOneOrMore, Inner: &p} }
func ZeroOrOne(p PathExpr) PathExpr  { return PathExpr{Kind: PathZeroOrOne, Inner: &p} }

func NegatedPropertySet(names ...string) PathExpr {
	return PathExpr{Kind: PathNegatedPropertySet, Excluded: names}
}

// Normalize applies the path-algebra identities from spec.md §4.11.5:
// double inverse cancels, and inverse pushes down through
// sequence/alternative/closures (De Morgan-style), so evaluation never
// has to special-case a top-level Inverse wrapping a compound path.
func (p PathExpr) Normalize() PathExpr {
	switch p.Kind {
	case PathInverse:
		inner := p.Inner.Normalize()
		switch inner.Kind {
		case PathInverse:
			return *inner.Inner // ^^P == P
		case PathSequence:
			// ^(A/B) == ^B/^A
			return Sequence(Inverse(*inner.Right).Normalize(), Inverse(*inner.Left).Normalize())
		case PathAlternative:
			return Alternative(Inverse(*inner.Left).Normalize(), Inverse(*inner.Right).Normalize())
		case PathZeroOrMore:
			return ZeroOrMore(Inverse(*inner.Inner).Normalize())
		case PathOneOrMore:
			return OneOrMore(Inverse(*inner.Inner).Normalize())
		case PathZeroOrOne:
			return ZeroOrOne(Inverse(*inner.Inner).Normalize())
		default:
			return PathExpr{Kind: PathInverse, Inner: &inner}
		}
	case PathSequence:
		l, r := p.Left.Normalize(), p.Right.Normalize()
		return Sequence(l, r)
	case PathAlternative:
		l, r := p.Left.Normalize(), p.Right.Normalize()
		return Alternative(l, r)
	case PathZeroOrMore:
		return ZeroOrMore(p.Inner.Normalize())
	case PathOneOrMore:
		return OneOrMore(p.Inner.Normalize())
	case PathZeroOrOne:
		return ZeroOrOne(p.Inner.Normalize())
	default:
		return p
	}
}

// PathConfig bounds property-path evaluation (spec.md §4.11.5:
// "Depth and result count are capped").
type PathConfig struct {
	MaxDepth   int
	MaxResults int
}

// DefaultPathConfig returns spec.md §4.11.5's defaults.
func DefaultPathConfig() PathConfig { return PathConfig{MaxDepth: 100, MaxResults: 10000} }

func (c PathConfig) withDefaults() PathConfig {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 100
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 10000
	}
	return c
}

// step expands one node along p from frontier node n, returning
// reachable neighbor nodes. dir controls traversal direction for
// PathIRI steps (forward: subject->object; inverse flips it).
func step(ctx context.Context, env *Env, p PathExpr, n string, forward bool) ([]string, error) {
	switch p.Kind {
	case PathIRI:
		return scanNeighbors(ctx, env, p.IRI, n, forward)
	case PathInverse:
		return step(ctx, env, *p.Inner, n, !forward)
	case PathNegatedPropertySet:
		return scanNegated(ctx, env, p.Excluded, n, forward)
	case PathSequence:
		first, second := p.Left, p.Right
		if !forward {
			first, second = p.Right, p.Left
		}
		mid, err := step(ctx, env, *first, n, forward)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		var out []string
		for _, m := range mid {
			next, err := step(ctx, env, *second, m, forward)
			if err != nil {
				return nil, err
			}
			for _, x := range next {
				if !seen[x] {
					seen[x] = true
					out = append(out, x)
				}
			}
		}
		return out, nil
	case PathAlternative:
		a, err := step(ctx, env, *p.Left, n, forward)
		if err != nil {
			return nil, err
		}
		b, err := step(ctx, env, *p.Right, n, forward)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		var out []string
		for _, x := range append(a, b...) {
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		}
		return out, nil
	default:
		// Closures (zeroOrMore/oneOrMore/zeroOrOne) are expanded by the
		// BFS driver, not per-step, since they require cycle tracking.
		return nil, nil
	}
}

func scanNeighbors(ctx context.Context, env *Env, predicate, node string, forward bool) ([]string, error) {
	var bound hexastore.Bound
	if forward {
		bound.Subject = &node
		bound.Predicate = &predicate
	} else {
		bound.Predicate = &predicate
		v := schema.String(node)
		bound.Object = &v
	}
	ord := hexastore.ChooseOrdering(bound)
	begin, end := env.Store.ScanRange(ord, bound)
	var out []string
	err := env.Txn.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
		d, derr := env.Store.Decode(ord, kvp.Key)
		if derr != nil {
			return false, derr
		}
		if forward {
			out = append(out, fieldValueToNode(d.Object))
		} else {
			out = append(out, d.Subject)
		}
		return true, nil
	})
	return out, err
}

func scanNegated(ctx context.Context, env *Env, excluded []string, node string, forward bool) ([]string, error) {
	excludeSet := map[string]bool{}
	for _, e := range excluded {
		excludeSet[e] = true
	}
	var bound hexastore.Bound
	if forward {
		bound.Subject = &node
	} else {
		v := schema.String(node)
		bound.Object = &v
	}
	ord := hexastore.ChooseOrdering(bound)
	begin, end := env.Store.ScanRange(ord, bound)
	var out []string
	err := env.Txn.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
		d, derr := env.Store.Decode(ord, kvp.Key)
		if derr != nil {
			return false, derr
		}
		if excludeSet[d.Predicate] {
			return true, nil
		}
		if forward {
			out = append(out, fieldValueToNode(d.Object))
		} else {
			out = append(out, d.Subject)
		}
		return true, nil
	})
	return out, err
}

func fieldValueToNode(v schema.FieldValue) string {
	if v.Kind == schema.KindString {
		return v.String
	}
	return ""
}

// EvaluatePropertyPath runs a BFS over path from subject to object
// (either or both may be unbound), with per-origin cycle detection
// when subject is unbound (spec.md §4.11.5: "frontier entries carry
// (currentNode, origin); cycle tracking is per-origin when multiple
// start nodes are explored concurrently, a single visited set
// suffices when the subject is bound").
func EvaluatePropertyPath(ctx context.Context, env *Env, subject Term, path PathExpr, object Term, cfg PathConfig) ([]Solution, error) {
	cfg = cfg.withDefaults()
	norm := path.Normalize()

	var starts []string
	subjectBound := subject.Kind == TermValue
	if subjectBound {
		starts = []string{subject.Value.String}
	} else {
		// Unbound subject: every distinct subject/object appearing
		// anywhere is a candidate origin (spec.md §4.11.5).
		all, err := allNodes(ctx, env)
		if err != nil {
			return nil, err
		}
		starts = all
	}

	var solutions []Solution
	visitedGlobal := map[string]bool{} // used only when subject is bound
	visitedPerOrigin := map[string]map[string]bool{}

	for _, origin := range starts {
		if len(solutions) >= cfg.MaxResults {
			env.Stats.recordPropertyPathCapped()
			break
		}
		var visited map[string]bool
		if subjectBound {
			visited = visitedGlobal
		} else {
			if visitedPerOrigin[origin] == nil {
				visitedPerOrigin[origin] = map[string]bool{}
			}
			visited = visitedPerOrigin[origin]
		}

		reached, err := bfsFrom(ctx, env, norm, origin, cfg, visited)
		if err != nil {
			return nil, err
		}
		for _, r := range reached {
			if len(solutions) >= cfg.MaxResults {
				env.Stats.recordPropertyPathCapped()
				break
			}
			sol := Solution{}
			if subject.Kind == TermVariable {
				sol[subject.Variable] = schema.String(origin)
			}
			if object.Kind == TermVariable {
				sol[object.Variable] = schema.String(r)
			} else if object.Kind == TermValue && object.Value.String != r {
				continue
			}
			solutions = append(solutions, sol)
		}
	}
	return solutions, nil
}

// bfsFrom expands norm from start, honoring zeroOrMore/zeroOrOne's
// identity binding (the start node itself is reachable at distance 0)
// and oneOrMore/zeroOrMore's unbounded but depth-capped expansion.
func bfsFrom(ctx context.Context, env *Env, p PathExpr, start string, cfg PathConfig, visited map[string]bool) ([]string, error) {
	switch p.Kind {
	case PathZeroOrOne:
		direct, err := step(ctx, env, *p.Inner, start, true)
		if err != nil {
			return nil, err
		}
		return append([]string{start}, direct...), nil
	case PathZeroOrMore:
		return closure(ctx, env, *p.Inner, start, cfg, true, visited)
	case PathOneOrMore:
		return closure(ctx, env, *p.Inner, start, cfg, false, visited)
	default:
		return step(ctx, env, p, start, true)
	}
}

func closure(ctx context.Context, env *Env, inner PathExpr, start string, cfg PathConfig, includeZero bool, visited map[string]bool) ([]string, error) {
	var out []string
	emitted := map[string]bool{} // dedups out; deliberately NOT pre-seeded with
	// start, so a cycle that revisits start at depth > 0 still emits it
	// (spec.md §4.11.5/§8.4 E4: self-reachability via an actual cycle).
	if includeZero {
		out = append(out, start)
		emitted[start] = true
	}
	frontier := []string{start}
	queued := map[string]bool{start: true} // dedups the BFS work queue only
	for depth := 0; depth < cfg.MaxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, n := range frontier {
			if visited[n] {
				continue
			}
			visited[n] = true
			neighbors, err := step(ctx, env, inner, n, true)
			if err != nil {
				return nil, err
			}
			for _, nb := range neighbors {
				if !emitted[nb] {
					emitted[nb] = true
					out = append(out, nb)
				}
				if !queued[nb] {
					queued[nb] = true
					next = append(next, nb)
				}
				if len(out) >= cfg.MaxResults {
					env.Stats.recordPropertyPathCapped()
					return out, nil
				}
			}
		}
		frontier = next
	}
	return out, nil
}

// allNodes enumerates every distinct subject and string-valued object
// across the default SPO ordering, used to seed BFS when the path's
// subject is unbound.
func allNodes(ctx context.Context, env *Env) ([]string, error) {
	bound := hexastore.Bound{}
	ord := hexastore.ChooseOrdering(bound)
	begin, end := env.Store.ScanRange(ord, bound)
	seen := map[string]bool{}
	var out []string
	err := env.Txn.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
		d, derr := env.Store.Decode(ord, kvp.Key)
		if derr != nil {
			return false, derr
		}
		if !seen[d.Subject] {
			seen[d.Subject] = true
			out = append(out, d.Subject)
		}
		if d.Object.Kind == schema.KindString && !seen[d.Object.String] {
			seen[d.Object.String] = true
			out = append(out, d.Object.String)
		}
		return true, nil
	})
	return out, err
}
