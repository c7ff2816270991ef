package sparql

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/recordgraph/rg/rgerr"
	"github.com/recordgraph/rg/schema"
)

// Expr is a node in the FILTER/SELECT expression tree (spec.md
// §4.11.8). Evaluation errors never panic; EvalExpr wraps them so
// callers can apply SPARQL §17.2's "error -> false EBV" rule.
type Expr interface {
	eval(sol Solution) (schema.FieldValue, error)
}

// EvalExpr evaluates e against sol.
func EvalExpr(e Expr, sol Solution) (schema.FieldValue, error) { return e.eval(sol) }

// Lit is a literal value.
type Lit struct{ Value schema.FieldValue }

func (l Lit) eval(Solution) (schema.FieldValue, error) { return l.Value, nil }

// VarRef looks up a variable; an unbound reference evaluates to null
// rather than erroring, matching SPARQL's unbound-variable handling.
type VarRef struct{ Name string }

func (v VarRef) eval(sol Solution) (schema.FieldValue, error) {
	name := v.Name
	if !strings.HasPrefix(name, "?") {
		name = "?" + name
	}
	if val, ok := sol[name]; ok {
		return val, nil
	}
	return schema.Null(), nil
}

// ArithOp enumerates type-promoting (int64<->double) arithmetic
// (spec.md §4.11.8).
type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
)

type Arith struct {
	Op   ArithOp
	L, R Expr
}

func (a Arith) eval(sol Solution) (schema.FieldValue, error) {
	lv, err := a.L.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	rv, err := a.R.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	lf, lok := numeric(lv)
	rf, rok := numeric(rv)
	if !lok || !rok {
		return schema.Null(), errors.Wrap(rgerr.ErrUnsupportedExpression, "sparql: arithmetic on non-numeric operand")
	}
	var result float64
	switch a.Op {
	case Add:
		result = lf + rf
	case Sub:
		result = lf - rf
	case Mul:
		result = lf * rf
	case Div:
		if rf == 0 {
			return schema.Null(), errors.New("sparql: division by zero")
		}
		result = lf / rf
	}
	if lv.Kind == schema.KindInt64 && rv.Kind == schema.KindInt64 && a.Op != Div {
		return schema.Int64(int64(result)), nil
	}
	return schema.Double(result), nil
}

func numeric(v schema.FieldValue) (float64, bool) {
	switch v.Kind {
	case schema.KindInt64:
		return float64(v.Int64), true
	case schema.KindDouble:
		return v.Double, true
	default:
		return 0, false
	}
}

// CompareOp enumerates the SPARQL comparison operators.
type CompareOp int

const (
	CmpEQ CompareOp = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

type Compare struct {
	Op   CompareOp
	L, R Expr
}

func (c Compare) eval(sol Solution) (schema.FieldValue, error) {
	lv, err := c.L.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	rv, err := c.R.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	if c.Op == CmpEQ {
		return schema.Bool(lv.Equal(rv)), nil
	}
	if c.Op == CmpNE {
		return schema.Bool(!lv.Equal(rv)), nil
	}
	ord, ok := lv.Compare(rv)
	if !ok {
		// incomparable types -> FILTER error -> false EBV (spec.md §17.2)
		return schema.Null(), errors.Wrap(rgerr.ErrIncompatibleLiteralType, "sparql: incomparable operands")
	}
	switch c.Op {
	case CmpLT:
		return schema.Bool(ord == schema.LT), nil
	case CmpLE:
		return schema.Bool(ord != schema.GT), nil
	case CmpGT:
		return schema.Bool(ord == schema.GT), nil
	case CmpGE:
		return schema.Bool(ord != schema.LT), nil
	default:
		return schema.Null(), errors.Wrap(rgerr.ErrUnsupportedExpression, "sparql: unknown comparison operator")
	}
}

// And / Or / Not are the SPARQL logical connectives, operating on
// effective boolean values.
type And struct{ L, R Expr }

func (e And) eval(sol Solution) (schema.FieldValue, error) {
	lv, lerr := e.L.eval(sol)
	if lerr == nil && !lv.EBV() {
		return schema.Bool(false), nil // short-circuit
	}
	rv, rerr := e.R.eval(sol)
	if lerr != nil || rerr != nil {
		return schema.Null(), errors.Wrap(rgerr.ErrUnsupportedExpression, "sparql: AND operand error")
	}
	return schema.Bool(lv.EBV() && rv.EBV()), nil
}

type Or struct{ L, R Expr }

func (e Or) eval(sol Solution) (schema.FieldValue, error) {
	lv, lerr := e.L.eval(sol)
	if lerr == nil && lv.EBV() {
		return schema.Bool(true), nil
	}
	rv, rerr := e.R.eval(sol)
	if lerr != nil && rerr != nil {
		return schema.Null(), errors.Wrap(rgerr.ErrUnsupportedExpression, "sparql: OR operand error")
	}
	return schema.Bool((lerr == nil && lv.EBV()) || (rerr == nil && rv.EBV())), nil
}

type Not struct{ X Expr }

func (e Not) eval(sol Solution) (schema.FieldValue, error) {
	v, err := e.X.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	return schema.Bool(!v.EBV()), nil
}

// Bound implements the BOUND(?var) builtin.
type Bound struct{ VarName string }

func (b Bound) eval(sol Solution) (schema.FieldValue, error) {
	name := b.VarName
	if !strings.HasPrefix(name, "?") {
		name = "?" + name
	}
	_, ok := sol[name]
	return schema.Bool(ok), nil
}

// If implements IF(cond, then, else).
type If struct{ Cond, Then, Else Expr }

func (f If) eval(sol Solution) (schema.FieldValue, error) {
	c, err := f.Cond.eval(sol)
	if err != nil || !c.EBV() {
		return f.Else.eval(sol)
	}
	return f.Then.eval(sol)
}

// Coalesce returns the first argument that evaluates without error to
// a non-null value.
type Coalesce struct{ Args []Expr }

func (c Coalesce) eval(sol Solution) (schema.FieldValue, error) {
	for _, a := range c.Args {
		v, err := a.eval(sol)
		if err == nil && !v.IsNull() {
			return v, nil
		}
	}
	return schema.Null(), nil
}

// NullIf returns null if A equals B, else A.
type NullIf struct{ A, B Expr }

func (n NullIf) eval(sol Solution) (schema.FieldValue, error) {
	a, err := n.A.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	b, err := n.B.eval(sol)
	if err == nil && a.Equal(b) {
		return schema.Null(), nil
	}
	return a, nil
}

// WhenClause is one branch of a CASE expression.
type WhenClause struct {
	When Expr
	Then Expr
}

type Case struct {
	Whens []WhenClause
	Else  Expr
}

func (c Case) eval(sol Solution) (schema.FieldValue, error) {
	for _, w := range c.Whens {
		v, err := w.When.eval(sol)
		if err == nil && v.EBV() {
			return w.Then.eval(sol)
		}
	}
	if c.Else != nil {
		return c.Else.eval(sol)
	}
	return schema.Null(), nil
}

// Like implements SPARQL's LIKE operator, compiled to an anchored
// regex (spec.md §4.11.8: "%->.*, _->.").
type Like struct {
	Value   Expr
	Pattern string
}

func likeToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

func (l Like) eval(sol Solution) (schema.FieldValue, error) {
	v, err := l.Value.eval(sol)
	if err != nil || v.Kind != schema.KindString {
		return schema.Null(), errors.Wrap(rgerr.ErrUnsupportedExpression, "sparql: LIKE on non-string")
	}
	re, err := regexp.Compile(likeToRegex(l.Pattern))
	if err != nil {
		return schema.Null(), err
	}
	return schema.Bool(re.MatchString(v.String)), nil
}

// Regex implements SPARQL's REGEX(str, pattern, flags?).
type Regex struct {
	Value, Pattern Expr
	Flags          string
}

func (r Regex) eval(sol Solution) (schema.FieldValue, error) {
	v, err := r.Value.eval(sol)
	if err != nil || v.Kind != schema.KindString {
		return schema.Null(), errors.Wrap(rgerr.ErrUnsupportedExpression, "sparql: REGEX on non-string")
	}
	p, err := r.Pattern.eval(sol)
	if err != nil || p.Kind != schema.KindString {
		return schema.Null(), errors.Wrap(rgerr.ErrUnsupportedExpression, "sparql: REGEX pattern must be string")
	}
	pattern := p.String
	if strings.Contains(r.Flags, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return schema.Null(), err
	}
	return schema.Bool(re.MatchString(v.String)), nil
}

// StrFunc dispatches the string/numeric/type builtins named in
// spec.md §4.11.8 (STRLEN, UCASE, LCASE, CONCAT, CONTAINS, STRSTARTS,
// STRENDS, SUBSTR).
type StrFunc struct {
	Name string
	Args []Expr
}

func (f StrFunc) eval(sol Solution) (schema.FieldValue, error) {
	args := make([]schema.FieldValue, len(f.Args))
	for i, a := range f.Args {
		v, err := a.eval(sol)
		if err != nil {
			return schema.Null(), err
		}
		args[i] = v
	}
	switch strings.ToUpper(f.Name) {
	case "STRLEN":
		return schema.Int64(int64(len([]rune(args[0].String)))), nil
	case "UCASE":
		return schema.String(strings.ToUpper(args[0].String)), nil
	case "LCASE":
		return schema.String(strings.ToLower(args[0].String)), nil
	case "CONCAT":
		var b strings.Builder
		for _, a := range args {
			b.WriteString(a.String)
		}
		return schema.String(b.String()), nil
	case "CONTAINS":
		return schema.Bool(strings.Contains(args[0].String, args[1].String)), nil
	case "STRSTARTS":
		return schema.Bool(strings.HasPrefix(args[0].String, args[1].String)), nil
	case "STRENDS":
		return schema.Bool(strings.HasSuffix(args[0].String, args[1].String)), nil
	case "SUBSTR":
		runes := []rune(args[0].String)
		start := int(args[1].Int64) - 1 // SPARQL SUBSTR is 1-indexed
		if start < 0 {
			start = 0
		}
		if start > len(runes) {
			start = len(runes)
		}
		end := len(runes)
		if len(args) > 2 {
			end = start + int(args[2].Int64)
			if end > len(runes) {
				end = len(runes)
			}
		}
		return schema.String(string(runes[start:end])), nil
	default:
		return schema.Null(), errors.Wrapf(rgerr.ErrUnsupportedExpression, "sparql: unknown function %s", f.Name)
	}
}

// Datatype/type-check builtins (spec.md §4.11.8: "DATATYPE,
// isIRI/isBlank/isLiteral/isNumeric"). This engine has no separate IRI
// type from string, so isIRI/isBlank are necessarily conservative
// (never true; every term here is a literal, variable binding, or
// quoted triple, not a distinct IRI node type).
type TypeCheck struct {
	Kind string // "isIRI" | "isBlank" | "isLiteral" | "isNumeric"
	X    Expr
}

func (t TypeCheck) eval(sol Solution) (schema.FieldValue, error) {
	v, err := t.X.eval(sol)
	if err != nil {
		return schema.Bool(false), nil
	}
	switch t.Kind {
	case "isNumeric":
		return schema.Bool(v.Kind == schema.KindInt64 || v.Kind == schema.KindDouble), nil
	case "isLiteral":
		return schema.Bool(v.Kind != schema.KindNull), nil
	default: // isIRI, isBlank: not representable distinctly here
		return schema.Bool(false), nil
	}
}

type Datatype struct{ X Expr }

func (d Datatype) eval(sol Solution) (schema.FieldValue, error) {
	v, err := d.X.eval(sol)
	if err != nil {
		return schema.Null(), err
	}
	switch v.Kind {
	case schema.KindInt64:
		return schema.String("xsd:integer"), nil
	case schema.KindDouble:
		return schema.String("xsd:double"), nil
	case schema.KindBool:
		return schema.String("xsd:boolean"), nil
	case schema.KindString:
		return schema.String("xsd:string"), nil
	default:
		return schema.Null(), nil
	}
}
