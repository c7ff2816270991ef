package sparql

import (
	"strings"

	"github.com/recordgraph/rg/schema"
)

// EncodeQuotedTriple renders a quoted triple (RDF-star, spec.md
// §4.11.7) to its canonical string form "<<s\tp\to>>", percent-encoding
// the characters that would otherwise break the delimiter scheme.
func EncodeQuotedTriple(subject, predicate string, object schema.FieldValue) string {
	var b strings.Builder
	b.WriteString("<<")
	b.WriteString(escapeQuotedComponent(subject))
	b.WriteByte('\t')
	b.WriteString(escapeQuotedComponent(predicate))
	b.WriteByte('\t')
	b.WriteString(escapeQuotedComponent(stringify(object)))
	b.WriteString(">>")
	return b.String()
}

func escapeQuotedComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '%':
			b.WriteString("%25")
		case '<':
			b.WriteString("%3C")
		case '>':
			b.WriteString("%3E")
		case '\t':
			b.WriteString("%09")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func unescapeQuotedComponent(s string) string {
	r := strings.NewReplacer("%3C", "<", "%3E", ">", "%09", "\t", "%25", "%")
	return r.Replace(s)
}

// DecodeQuotedTriple parses canonical form back into its three
// components. ok is false if s isn't well-formed.
func DecodeQuotedTriple(s string) (subject, predicate, object string, ok bool) {
	if !strings.HasPrefix(s, "<<") || !strings.HasSuffix(s, ">>") {
		return "", "", "", false
	}
	inner := s[2 : len(s)-2]
	parts := strings.SplitN(inner, "\t", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return unescapeQuotedComponent(parts[0]), unescapeQuotedComponent(parts[1]), unescapeQuotedComponent(parts[2]), true
}

// TripleExpr implements the TRIPLE(s,p,o) constructor builtin (spec.md
// §4.11.7), producing a string-encoded quoted triple usable anywhere a
// FieldValue is (e.g. as an object term in a further triple).
type TripleExpr struct{ S, P, O Expr }

func (t TripleExpr) eval(sol Solution) (schema.FieldValue, error) {
	s, err := t.S.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	p, err := t.P.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	o, err := t.O.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	return schema.String(EncodeQuotedTriple(s.String, p.String, o)), nil
}

// IsTriple implements isTRIPLE(x).
type IsTriple struct{ X Expr }

func (e IsTriple) eval(sol Solution) (schema.FieldValue, error) {
	v, err := e.X.eval(sol)
	if err != nil {
		return schema.Bool(false), nil
	}
	if v.Kind != schema.KindString {
		return schema.Bool(false), nil
	}
	_, _, _, ok := DecodeQuotedTriple(v.String)
	return schema.Bool(ok), nil
}

// quotedComponent enumerates which of SUBJECT/PREDICATE/OBJECT an
// expression extracts.
type quotedComponent int

const (
	componentSubject quotedComponent = iota
	componentPredicate
	componentObject
)

// QuotedComponent implements SUBJECT(t)/PREDICATE(t)/OBJECT(t).
type QuotedComponent struct {
	X    Expr
	Part quotedComponent
}

func Subject(x Expr) QuotedComponent   { return QuotedComponent{X: x, Part: componentSubject} }
func Predicate(x Expr) QuotedComponent { return QuotedComponent{X: x, Part: componentPredicate} }
func Object(x Expr) QuotedComponent    { return QuotedComponent{X: x, Part: componentObject} }

func (q QuotedComponent) eval(sol Solution) (schema.FieldValue, error) {
	v, err := q.X.eval(sol)
	if err != nil || v.Kind != schema.KindString {
		return schema.Null(), err
	}
	s, p, o, ok := DecodeQuotedTriple(v.String)
	if !ok {
		return schema.Null(), nil
	}
	switch q.Part {
	case componentSubject:
		return schema.String(s), nil
	case componentPredicate:
		return schema.String(p), nil
	default:
		return schema.String(o), nil
	}
}
