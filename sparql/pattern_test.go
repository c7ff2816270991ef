package sparql_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/hexastore"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/memkv"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/sparql"
)

func newEnv(t *testing.T, triples []hexastore.Triple) (*sparql.Env, func()) {
	t.Helper()
	ctx := context.Background()
	db := memkv.New()
	store := hexastore.Store{Root: kv.NewSubspace([]byte("G"))}
	txn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	for _, tr := range triples {
		require.NoError(t, store.Insert(ctx, txn, tr))
	}
	require.NoError(t, txn.Commit(ctx))

	readTxn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	return &sparql.Env{Store: &store, Txn: readTxn, Stats: &sparql.Stats{}}, func() { readTxn.Cancel() }
}

// TestBasicJoinOptionalFilter exercises a one-triple BGP, an OPTIONAL
// age lookup (which matches both friends here), and a FILTER that keeps
// a friend with no age or an age under 30: people Alice knows,
// optionally with their age, restricted to ages under 30 when present.
func TestBasicJoinOptionalFilter(t *testing.T) {
	env, cleanup := newEnv(t, []hexastore.Triple{
		{Subject: "Alice", Predicate: "knows", Object: schema.String("Bob")},
		{Subject: "Alice", Predicate: "knows", Object: schema.String("Carol")},
		{Subject: "Bob", Predicate: "age", Object: schema.Int64(25)},
		{Subject: "Carol", Predicate: "age", Object: schema.Int64(40)},
	})
	defer cleanup()

	basic := &sparql.Pattern{
		Kind: sparql.Basic,
		Triples: []sparql.TriplePattern{
			{Subject: sparql.Var("?p"), Predicate: sparql.Val(schema.String("knows")), Object: sparql.Var("?friend")},
		},
	}
	ageLookup := &sparql.Pattern{
		Kind: sparql.Basic,
		Triples: []sparql.TriplePattern{
			{Subject: sparql.Var("?friend"), Predicate: sparql.Val(schema.String("age")), Object: sparql.Var("?age")},
		},
	}
	withOptionalAge := &sparql.Pattern{Kind: sparql.Optional, Left: basic, Right: ageLookup}
	filtered := &sparql.Pattern{
		Kind:  sparql.Filter,
		Child: withOptionalAge,
		FilterExpr: sparql.Or{
			L: sparql.Not{X: sparql.Bound{VarName: "?age"}},
			R: sparql.Compare{Op: sparql.CmpLT, L: sparql.VarRef{Name: "?age"}, R: sparql.Lit{Value: schema.Int64(30)}},
		},
	}

	solutions, err := sparql.Evaluate(context.Background(), env, filtered)
	require.NoError(t, err)
	require.Len(t, solutions, 1)
	require.Equal(t, "Bob", solutions[0]["?friend"].String)
	require.Equal(t, int64(25), solutions[0]["?age"].Int64)
}

func TestMinusExcludesSharedCompatible(t *testing.T) {
	env, cleanup := newEnv(t, []hexastore.Triple{
		{Subject: "Alice", Predicate: "role", Object: schema.String("admin")},
		{Subject: "Bob", Predicate: "role", Object: schema.String("admin")},
		{Subject: "Bob", Predicate: "suspended", Object: schema.Bool(true)},
	})
	defer cleanup()

	admins := &sparql.Pattern{Kind: sparql.Basic, Triples: []sparql.TriplePattern{
		{Subject: sparql.Var("?p"), Predicate: sparql.Val(schema.String("role")), Object: sparql.Val(schema.String("admin"))},
	}}
	suspended := &sparql.Pattern{Kind: sparql.Basic, Triples: []sparql.TriplePattern{
		{Subject: sparql.Var("?p"), Predicate: sparql.Val(schema.String("suspended")), Object: sparql.Val(schema.Bool(true))},
	}}
	minus := &sparql.Pattern{Kind: sparql.Minus, Left: admins, Right: suspended}

	solutions, err := sparql.Evaluate(context.Background(), env, minus)
	require.NoError(t, err)
	require.Len(t, solutions, 1)
	require.Equal(t, "Alice", solutions[0]["?p"].String)
}

func TestGroupByCountAndHaving(t *testing.T) {
	env, cleanup := newEnv(t, []hexastore.Triple{
		{Subject: "Alice", Predicate: "dept", Object: schema.String("eng")},
		{Subject: "Bob", Predicate: "dept", Object: schema.String("eng")},
		{Subject: "Carol", Predicate: "dept", Object: schema.String("sales")},
	})
	defer cleanup()

	basic := &sparql.Pattern{Kind: sparql.Basic, Triples: []sparql.TriplePattern{
		{Subject: sparql.Var("?p"), Predicate: sparql.Val(schema.String("dept")), Object: sparql.Var("?dept")},
	}}
	grouped := &sparql.Pattern{
		Kind:      sparql.GroupBy,
		Child:     basic,
		GroupVars: []string{"?dept"},
		Aggregates: []sparql.Aggregate{
			{Func: sparql.AggCount, Alias: "?n"},
		},
		Having: sparql.Compare{Op: sparql.CmpGE, L: sparql.VarRef{Name: "?n"}, R: sparql.Lit{Value: schema.Int64(2)}},
	}

	solutions, err := sparql.Evaluate(context.Background(), env, grouped)
	require.NoError(t, err)
	require.Len(t, solutions, 1)
	require.Equal(t, "eng", solutions[0]["?dept"].String)
	require.Equal(t, int64(2), solutions[0]["?n"].Int64)
}

func TestPropertyPathOneOrMoreWithCycle(t *testing.T) {
	env, cleanup := newEnv(t, []hexastore.Triple{
		{Subject: "a", Predicate: "next", Object: schema.String("b")},
		{Subject: "b", Predicate: "next", Object: schema.String("c")},
		{Subject: "c", Predicate: "next", Object: schema.String("a")}, // cycle back to a
	})
	defer cleanup()

	path := sparql.OneOrMore(sparql.IRIPath("next"))
	solutions, err := sparql.EvaluatePropertyPath(context.Background(), env,
		sparql.Val(schema.String("a")), path, sparql.Var("?x"), sparql.DefaultPathConfig())
	require.NoError(t, err)

	var got []string
	for _, s := range solutions {
		got = append(got, s["?x"].String)
	}
	sort.Strings(got)
	require.Equal(t, []string{"a", "b", "c"}, got)
	require.False(t, env.Stats.PropertyPathCapped)
}
