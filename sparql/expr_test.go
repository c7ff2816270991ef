package sparql_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/sparql"
)

func TestArithTypePromotion(t *testing.T) {
	sol := sparql.Solution{}
	v, err := sparql.EvalExpr(sparql.Arith{Op: sparql.Add, L: sparql.Lit{Value: schema.Int64(2)}, R: sparql.Lit{Value: schema.Int64(3)}}, sol)
	require.NoError(t, err)
	require.Equal(t, schema.KindInt64, v.Kind)
	require.Equal(t, int64(5), v.Int64)

	v2, err := sparql.EvalExpr(sparql.Arith{Op: sparql.Add, L: sparql.Lit{Value: schema.Int64(2)}, R: sparql.Lit{Value: schema.Double(0.5)}}, sol)
	require.NoError(t, err)
	require.Equal(t, schema.KindDouble, v2.Kind)
	require.Equal(t, 2.5, v2.Double)
}

func TestDivisionByZeroErrorsToFalseEBV(t *testing.T) {
	sol := sparql.Solution{}
	_, err := sparql.EvalExpr(sparql.Arith{Op: sparql.Div, L: sparql.Lit{Value: schema.Int64(1)}, R: sparql.Lit{Value: schema.Int64(0)}}, sol)
	require.Error(t, err)
}

func TestLikeWildcards(t *testing.T) {
	sol := sparql.Solution{"?name": schema.String("hello world")}
	v, err := sparql.EvalExpr(sparql.Like{Value: sparql.VarRef{Name: "?name"}, Pattern: "hello%"}, sol)
	require.NoError(t, err)
	require.True(t, v.Bool)

	v2, err := sparql.EvalExpr(sparql.Like{Value: sparql.VarRef{Name: "?name"}, Pattern: "h_llo world"}, sol)
	require.NoError(t, err)
	require.True(t, v2.Bool)

	v3, err := sparql.EvalExpr(sparql.Like{Value: sparql.VarRef{Name: "?name"}, Pattern: "goodbye%"}, sol)
	require.NoError(t, err)
	require.False(t, v3.Bool)
}

func TestStrFuncsAndSubstr(t *testing.T) {
	sol := sparql.Solution{}
	v, err := sparql.EvalExpr(sparql.StrFunc{Name: "CONCAT", Args: []sparql.Expr{
		sparql.Lit{Value: schema.String("foo")}, sparql.Lit{Value: schema.String("bar")},
	}}, sol)
	require.NoError(t, err)
	require.Equal(t, "foobar", v.String)

	v2, err := sparql.EvalExpr(sparql.StrFunc{Name: "SUBSTR", Args: []sparql.Expr{
		sparql.Lit{Value: schema.String("hello")}, sparql.Lit{Value: schema.Int64(2)}, sparql.Lit{Value: schema.Int64(3)},
	}}, sol)
	require.NoError(t, err)
	require.Equal(t, "ell", v2.String)
}

func TestBoundAndCoalesce(t *testing.T) {
	sol := sparql.Solution{"?x": schema.Int64(7)}
	b, err := sparql.EvalExpr(sparql.Bound{VarName: "?x"}, sol)
	require.NoError(t, err)
	require.True(t, b.Bool)

	b2, err := sparql.EvalExpr(sparql.Bound{VarName: "?missing"}, sol)
	require.NoError(t, err)
	require.False(t, b2.Bool)

	c, err := sparql.EvalExpr(sparql.Coalesce{Args: []sparql.Expr{
		sparql.VarRef{Name: "?missing"}, sparql.Lit{Value: schema.String("fallback")},
	}}, sol)
	require.NoError(t, err)
	require.Equal(t, "fallback", c.String)
}

func TestCaseExpression(t *testing.T) {
	sol := sparql.Solution{"?n": schema.Int64(5)}
	v, err := sparql.EvalExpr(sparql.Case{
		Whens: []sparql.WhenClause{
			{When: sparql.Compare{Op: sparql.CmpGT, L: sparql.VarRef{Name: "?n"}, R: sparql.Lit{Value: schema.Int64(10)}}, Then: sparql.Lit{Value: schema.String("big")}},
			{When: sparql.Compare{Op: sparql.CmpGT, L: sparql.VarRef{Name: "?n"}, R: sparql.Lit{Value: schema.Int64(0)}}, Then: sparql.Lit{Value: schema.String("small")}},
		},
		Else: sparql.Lit{Value: schema.String("none")},
	}, sol)
	require.NoError(t, err)
	require.Equal(t, "small", v.String)
}

func TestQuotedTripleRoundTrip(t *testing.T) {
	sol := sparql.Solution{}
	v, err := sparql.EvalExpr(sparql.TripleExpr{
		S: sparql.Lit{Value: schema.String("Alice")},
		P: sparql.Lit{Value: schema.String("knows")},
		O: sparql.Lit{Value: schema.String("Bob")},
	}, sol)
	require.NoError(t, err)

	isT, err := sparql.EvalExpr(sparql.IsTriple{X: sparql.Lit{Value: v}}, sol)
	require.NoError(t, err)
	require.True(t, isT.Bool)

	s, err := sparql.EvalExpr(sparql.Subject(sparql.Lit{Value: v}), sol)
	require.NoError(t, err)
	require.Equal(t, "Alice", s.String)

	o, err := sparql.EvalExpr(sparql.Object(sparql.Lit{Value: v}), sol)
	require.NoError(t, err)
	require.Equal(t, "Bob", o.String)
}
