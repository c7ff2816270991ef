// Package sparql implements the SPARQL Algebra Evaluator (K, spec.md
// §4.11): terms and triples, pattern evaluation (BGP, OPTIONAL, UNION,
// FILTER, MINUS, property paths), GROUP BY/HAVING, solution modifiers,
// join-order heuristics, and property-path BFS over the hexastore (J).
package sparql

import (
	"strings"

	"github.com/recordgraph/rg/schema"
)

// TermKind enumerates a triple-pattern term's shape (spec.md §4.11.1).
type TermKind int

const (
	TermVariable TermKind = iota
	TermValue
	TermWildcard
	TermQuotedTriple
)

// Term is one position (subject, predicate, or object) of a triple
// pattern (spec.md §4.11.1: "variable(name) | value(FieldValue) |
// wildcard | quotedTriple(s,p,o)").
type Term struct {
	Kind     TermKind
	Variable string // normalized to "?name" (spec.md §4.11.1)
	Value    schema.FieldValue
	Quoted   *TriplePattern
}

// Var constructs a variable term, normalizing the name to the "?name"
// form spec.md §4.11.1 requires.
func Var(name string) Term {
	if !strings.HasPrefix(name, "?") {
		name = "?" + name
	}
	return Term{Kind: TermVariable, Variable: name}
}

func Val(v schema.FieldValue) Term   { return Term{Kind: TermValue, Value: v} }
func Wildcard() Term                 { return Term{Kind: TermWildcard} }
func Quoted(tp TriplePattern) Term   { return Term{Kind: TermQuotedTriple, Quoted: &tp} }

// IsBound reports whether t carries a concrete value (spec.md §4.11.1:
// "isBound = (case value)").
func (t Term) IsBound() bool { return t.Kind == TermValue || t.Kind == TermQuotedTriple }

// IsVariable reports whether t is a variable reference.
func (t Term) IsVariable() bool { return t.Kind == TermVariable }

// Substitute replaces t with binding's value if t is a bound variable
// in binding, otherwise returns t unchanged (spec.md §8.2: "isBound(x)
// => substitute(b)(x) = x").
func (t Term) Substitute(b Solution) Term {
	if t.Kind == TermVariable {
		if v, ok := b[t.Variable]; ok {
			return Val(v)
		}
	}
	return t
}

// TriplePattern carries (s,p,o,graph?) (spec.md §4.11.1).
type TriplePattern struct {
	Subject, Predicate, Object Term
	Graph                      string // "" = default graph, unscoped
}

// Substitute applies b to every term of the pattern.
func (p TriplePattern) Substitute(b Solution) TriplePattern {
	return TriplePattern{
		Subject:   p.Subject.Substitute(b),
		Predicate: p.Predicate.Substitute(b),
		Object:    p.Object.Substitute(b),
		Graph:     p.Graph,
	}
}

// Variables returns every distinct variable name referenced by p.
func (p TriplePattern) Variables() []string {
	var out []string
	for _, t := range []Term{p.Subject, p.Predicate, p.Object} {
		if t.Kind == TermVariable {
			out = append(out, t.Variable)
		}
	}
	return out
}

// Solution is a partial variable -> value map (spec.md §3.1, §4.11.1).
type Solution map[string]schema.FieldValue

// Clone returns a shallow copy of s.
func (s Solution) Clone() Solution {
	out := make(Solution, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Compatible reports whether s and other agree on every variable they
// share (spec.md §3.1: "two solutions are compatible iff they agree on
// every shared variable").
func (s Solution) Compatible(other Solution) bool {
	for k, v := range s {
		if ov, ok := other[k]; ok && !v.Equal(ov) {
			return false
		}
	}
	return true
}

// SharesVariable reports whether s and other bind at least one
// variable in common (used by MINUS, spec.md §4.11.3).
func (s Solution) SharesVariable(other Solution) bool {
	for k := range s {
		if _, ok := other[k]; ok {
			return true
		}
	}
	return false
}

// Merge combines s and other if compatible (spec.md §3.1: "merge is
// defined iff compatible"). Merge is total on disjoint solutions.
func (s Solution) Merge(other Solution) (Solution, bool) {
	if !s.Compatible(other) {
		return nil, false
	}
	out := s.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out, true
}
