package perfmon_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/hexastore"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/memkv"
	"github.com/recordgraph/rg/perfmon"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/sparql"
)

func TestExplainDescribesTripleOrderingChoice(t *testing.T) {
	pattern := &sparql.Pattern{
		Kind: sparql.Basic,
		Triples: []sparql.TriplePattern{
			{Subject: sparql.Var("?p"), Predicate: sparql.Val(schema.String("knows")), Object: sparql.Var("?friend")},
		},
	}
	plan := perfmon.Explain(pattern)
	require.Equal(t, "basic_graph_pattern", plan.Kind)
	require.Len(t, plan.Children, 1)
	require.Contains(t, plan.Children[0].Detail, "ordering=")
	require.False(t, plan.Children[0].HasCardinality)
}

func TestExplainAnalyzeAnnotatesCardinalities(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	store := hexastore.Store{Root: kv.NewSubspace([]byte("G"))}
	txn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, txn, hexastore.Triple{Subject: "Alice", Predicate: "knows", Object: schema.String("Bob")}))
	require.NoError(t, txn.Commit(ctx))

	readTxn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	defer readTxn.Cancel()
	env := &sparql.Env{Store: &store, Txn: readTxn}

	pattern := &sparql.Pattern{
		Kind: sparql.Basic,
		Triples: []sparql.TriplePattern{
			{Subject: sparql.Var("?p"), Predicate: sparql.Val(schema.String("knows")), Object: sparql.Var("?friend")},
		},
	}

	stats := &sparql.Stats{}
	env.Stats = stats
	solutions, err := sparql.Evaluate(ctx, env, pattern)
	require.NoError(t, err)
	require.Len(t, solutions, 1)

	plan := perfmon.ExplainAnalyze(pattern, stats)
	require.True(t, plan.Children[0].HasCardinality)
	require.Equal(t, 1, plan.Children[0].Cardinality)
}
