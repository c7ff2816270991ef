package container_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/container"
	"github.com/recordgraph/rg/hexastore"
	"github.com/recordgraph/rg/indexstate"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/memkv"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/sparql"
)

func TestRebuildIndexDrivesBuildToReadable(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	wctx := c.NewContext(false)
	require.NoError(t, wctx.Insert(schema.User{ID: 1, Email: "alice@example.com"}))
	require.NoError(t, wctx.Save(ctx))

	require.NoError(t, c.Admin().RebuildIndex(ctx, "by_email"))

	st, err := txnState(ctx, c)
	require.NoError(t, err)
	require.Equal(t, indexstate.Readable, st)
}

func txnState(ctx context.Context, c *container.Container) (indexstate.State, error) {
	txn, err := c.Runner().DB.CreateTransaction(ctx)
	if err != nil {
		return indexstate.Disabled, err
	}
	defer txn.Cancel()
	return c.IndexState().Get(ctx, txn, "by_email")
}

func TestRebuildIndexUnknownIndexErrors(t *testing.T) {
	c := newTestContainer(t)
	err := c.Admin().RebuildIndex(context.Background(), "nope")
	require.Error(t, err)
}

func TestUpdateAndCollectionStatistics(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	wctx := c.NewContext(false)
	require.NoError(t, wctx.Insert(schema.User{ID: 1, Email: "alice@example.com"}))
	require.NoError(t, wctx.Save(ctx))

	require.NoError(t, c.Admin().UpdateStatistics(ctx))
	stats, err := c.Admin().CollectionStatistics(ctx, "User")
	require.NoError(t, err)
	require.Equal(t, "User", stats.TypeName)
	require.Contains(t, stats.IndexByteSizes, "by_email")
}

func TestCollectionStatisticsLazilyComputes(t *testing.T) {
	c := newTestContainer(t)
	stats, err := c.Admin().CollectionStatistics(context.Background(), "User")
	require.NoError(t, err)
	require.Equal(t, "User", stats.TypeName)
}

func TestIndexStatisticsUnknownIndexErrors(t *testing.T) {
	c := newTestContainer(t)
	_, err := c.Admin().IndexStatistics(context.Background(), "nope")
	require.Error(t, err)
}

func TestExplainAndExplainAnalyze(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	pattern := &sparql.Pattern{
		Kind: sparql.Basic,
		Triples: []sparql.TriplePattern{
			{Subject: sparql.Var("?p"), Predicate: sparql.Val(schema.String("knows")), Object: sparql.Var("?friend")},
		},
	}
	plan := c.Admin().Explain(pattern)
	require.Equal(t, "basic_graph_pattern", plan.Kind)

	store := hexastore.Store{Root: kv.NewSubspace([]byte("G"))}
	db := memkv.New()
	txn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, txn, hexastore.Triple{Subject: "Alice", Predicate: "knows", Object: schema.String("Bob")}))
	require.NoError(t, txn.Commit(ctx))

	readTxn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	defer readTxn.Cancel()
	env := &sparql.Env{Store: &store, Txn: readTxn}

	analyzed, solutions, err := c.Admin().ExplainAnalyze(ctx, env, pattern)
	require.NoError(t, err)
	require.Len(t, solutions, 1)
	require.True(t, analyzed.Children[0].HasCardinality)
}

func TestGarbageCollectClearsLeftoverIndexBytes(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	wctx := c.NewContext(false)
	require.NoError(t, wctx.Insert(schema.User{ID: 1, Email: "alice@example.com"}))
	require.NoError(t, wctx.Save(ctx))
	require.NoError(t, c.Admin().RebuildIndex(ctx, "by_email"))

	require.NoError(t, c.Admin().GarbageCollect(ctx, "by_email", 10))

	size, err := c.Admin().IndexStatistics(ctx, "by_email")
	require.NoError(t, err)
	require.Equal(t, int64(0), size)
}
