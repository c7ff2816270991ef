package sparql

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/recordgraph/rg/rgerr"
)

// PatternKind enumerates ExecutionPattern's algebraic shapes (spec.md
// §3.1: "{basic | join | optional | union | minus | filter | groupBy |
// propertyPath}").
type PatternKind int

const (
	Basic PatternKind = iota
	Join
	Optional
	Union
	Minus
	Filter
	GroupBy
	PropertyPath
)

// Pattern is the algebraic execution tree (spec.md §3.1
// "ExecutionPattern"). Exactly the fields relevant to Kind are
// meaningful.
type Pattern struct {
	Kind PatternKind

	// Basic
	Triples []TriplePattern

	// Join / Optional / Union / Minus
	Left, Right *Pattern

	// Filter
	Child      *Pattern
	FilterExpr Expr

	// GroupBy
	GroupVars  []string
	Aggregates []Aggregate
	Having     Expr

	// PropertyPath
	PathSubject, PathObject Term
	Path                    PathExpr
	PathConfig              PathConfig
}

// Variables returns every variable this pattern can bind.
func (p *Pattern) Variables() []string {
	switch p.Kind {
	case Basic:
		seen := map[string]bool{}
		var out []string
		for _, t := range p.Triples {
			for _, v := range t.Variables() {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
		return out
	case Join, Union:
		return union(p.Left.Variables(), p.Right.Variables())
	case Optional:
		return union(p.Left.Variables(), p.Right.Variables())
	case Minus, Filter:
		return p.variablesOrChild()
	case GroupBy:
		vars := append([]string{}, p.GroupVars...)
		for _, a := range p.Aggregates {
			vars = append(vars, "?"+strings.TrimPrefix(a.Alias, "?"))
		}
		return vars
	case PropertyPath:
		var out []string
		if p.PathSubject.IsVariable() {
			out = append(out, p.PathSubject.Variable)
		}
		if p.PathObject.IsVariable() {
			out = append(out, p.PathObject.Variable)
		}
		return out
	default:
		return nil
	}
}

func (p *Pattern) variablesOrChild() []string {
	if p.Left != nil {
		return p.Left.Variables()
	}
	return p.Child.Variables()
}

func union(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range append(append([]string{}, a...), b...) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Substitute recursively applies b to every triple/term in the tree,
// used by join() to push a left solution into the right side (spec.md
// §4.11.3 "join(L, R): ... substitute into R").
func (p *Pattern) Substitute(b Solution) *Pattern {
	if p == nil {
		return nil
	}
	out := *p
	switch p.Kind {
	case Basic:
		out.Triples = make([]TriplePattern, len(p.Triples))
		for i, t := range p.Triples {
			out.Triples[i] = t.Substitute(b)
		}
	case Join, Optional, Union, Minus:
		out.Left = p.Left.Substitute(b)
		out.Right = p.Right.Substitute(b)
	case Filter:
		out.Child = p.Child.Substitute(b)
	case GroupBy:
		out.Child = p.Child.Substitute(b)
	case PropertyPath:
		out.PathSubject = p.PathSubject.Substitute(b)
		out.PathObject = p.PathObject.Substitute(b)
	}
	return &out
}

// Evaluate dispatches on Kind, implementing spec.md §4.11.3's
// semantics for every pattern shape.
func Evaluate(ctx context.Context, env *Env, p *Pattern) ([]Solution, error) {
	if p == nil {
		return []Solution{{}}, nil
	}
	switch p.Kind {
	case Basic:
		return evaluateBasic(ctx, env, p.Triples)
	case Join:
		return evaluateJoin(ctx, env, p.Left, p.Right)
	case Optional:
		return evaluateOptional(ctx, env, p.Left, p.Right)
	case Union:
		l, err := Evaluate(ctx, env, p.Left)
		if err != nil {
			return nil, err
		}
		r, err := Evaluate(ctx, env, p.Right)
		if err != nil {
			return nil, err
		}
		return append(l, r...), nil
	case Minus:
		return evaluateMinus(ctx, env, p.Left, p.Right)
	case Filter:
		return evaluateFilter(ctx, env, p.Child, p.FilterExpr)
	case GroupBy:
		return evaluateGroupBy(ctx, env, p.Child, p.GroupVars, p.Aggregates, p.Having)
	case PropertyPath:
		return EvaluatePropertyPath(ctx, env, p.PathSubject, p.Path, p.PathObject, p.PathConfig)
	default:
		return nil, errors.Wrap(rgerr.ErrInvalidPattern, "sparql: unknown pattern kind")
	}
}

// triple selectivity weights (spec.md §4.11.3).
const (
	weightBoundSubject = 10
	weightBoundPred    = 12
	weightBoundObject  = 10
	weightSharedVar    = 10
)

func selectivity(t TriplePattern, boundVars map[string]bool) int {
	score := 0
	if t.Subject.Kind == TermValue {
		score += weightBoundSubject
	} else if t.Subject.IsVariable() && boundVars[t.Subject.Variable] {
		score += weightSharedVar
	}
	if t.Predicate.Kind == TermValue {
		score += weightBoundPred
	} else if t.Predicate.IsVariable() && boundVars[t.Predicate.Variable] {
		score += weightSharedVar
	}
	if t.Object.Kind == TermValue {
		score += weightBoundObject
	} else if t.Object.IsVariable() && boundVars[t.Object.Variable] {
		score += weightSharedVar
	}
	return score
}

// orderBySelectivity orders triples greedily: repeatedly pick the
// remaining triple with the highest score against variables bound by
// triples already placed (spec.md §4.11.3's weighted heuristic).
func orderBySelectivity(triples []TriplePattern) []TriplePattern {
	remaining := append([]TriplePattern{}, triples...)
	bound := map[string]bool{}
	var ordered []TriplePattern
	for len(remaining) > 0 {
		bestIdx, bestScore := 0, -1
		for i, t := range remaining {
			s := selectivity(t, bound)
			if s > bestScore {
				bestScore, bestIdx = s, i
			}
		}
		chosen := remaining[bestIdx]
		ordered = append(ordered, chosen)
		for _, v := range chosen.Variables() {
			bound[v] = true
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return ordered
}

func evaluateBasic(ctx context.Context, env *Env, triples []TriplePattern) ([]Solution, error) {
	if len(triples) == 0 {
		return nil, errors.Wrap(rgerr.ErrNoPatterns, "sparql: basic pattern has no triples")
	}
	ordered := orderBySelectivity(triples)
	solutions := []Solution{{}}
	for _, t := range ordered {
		var next []Solution
		for _, sol := range solutions {
			substituted := t.Substitute(sol)
			matches, err := env.evaluateTriplePattern(ctx, substituted)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if merged, ok := sol.Merge(m); ok {
					next = append(next, merged)
				}
			}
		}
		solutions = next
		env.Stats.recordCardinality(len(solutions))
		if len(solutions) == 0 {
			break
		}
	}
	return solutions, nil
}

func evaluateJoin(ctx context.Context, env *Env, left, right *Pattern) ([]Solution, error) {
	leftSolutions, err := Evaluate(ctx, env, left)
	if err != nil {
		return nil, err
	}
	var out []Solution
	for _, l := range leftSolutions {
		subRight := right.Substitute(l)
		rightSolutions, err := Evaluate(ctx, env, subRight)
		if err != nil {
			return nil, err
		}
		for _, r := range rightSolutions {
			if merged, ok := l.Merge(r); ok {
				out = append(out, merged)
			}
		}
	}
	return out, nil
}

func evaluateOptional(ctx context.Context, env *Env, left, right *Pattern) ([]Solution, error) {
	leftSolutions, err := Evaluate(ctx, env, left)
	if err != nil {
		return nil, err
	}
	var out []Solution
	for _, l := range leftSolutions {
		subRight := right.Substitute(l)
		rightSolutions, err := Evaluate(ctx, env, subRight)
		if err != nil {
			return nil, err
		}
		anyMerge := false
		for _, r := range rightSolutions {
			if merged, ok := l.Merge(r); ok {
				out = append(out, merged)
				anyMerge = true
			}
		}
		if !anyMerge {
			out = append(out, l)
			env.Stats.recordOptionalMiss()
		}
	}
	return out, nil
}

func evaluateMinus(ctx context.Context, env *Env, left, right *Pattern) ([]Solution, error) {
	leftSolutions, err := Evaluate(ctx, env, left)
	if err != nil {
		return nil, err
	}
	rightSolutions, err := Evaluate(ctx, env, right)
	if err != nil {
		return nil, err
	}
	var out []Solution
	for _, l := range leftSolutions {
		excluded := false
		for _, r := range rightSolutions {
			if l.SharesVariable(r) && l.Compatible(r) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, l)
		}
	}
	return out, nil
}

func evaluateFilter(ctx context.Context, env *Env, child *Pattern, expr Expr) ([]Solution, error) {
	solutions, err := Evaluate(ctx, env, child)
	if err != nil {
		return nil, err
	}
	var out []Solution
	for _, sol := range solutions {
		v, err := EvalExpr(expr, sol)
		if err != nil {
			continue // expression errors short-circuit to false (spec.md §17.2)
		}
		if v.EBV() {
			out = append(out, sol)
		}
	}
	return out, nil
}
