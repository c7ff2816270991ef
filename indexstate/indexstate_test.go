package indexstate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/indexstate"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/memkv"
)

func newStore(t *testing.T) (*memkv.Store, indexstate.Store, kv.Subspace) {
	t.Helper()
	db := memkv.New()
	root := kv.NewSubspace([]byte("T"))
	former := kv.NewSubspace([]byte("S/F"))
	_ = former
	return db, indexstate.Store{Root: root}, root
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	db, st, _ := newStore(t)
	former := kv.NewSubspace([]byte("S/F"))

	txn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	cur, err := st.Get(ctx, txn, "by_email")
	require.NoError(t, err)
	require.Equal(t, indexstate.Disabled, cur)

	require.NoError(t, st.Enable(ctx, txn, "by_email"))
	cur, err = st.Get(ctx, txn, "by_email")
	require.NoError(t, err)
	require.Equal(t, indexstate.WriteOnly, cur)
	require.NoError(t, txn.Commit(ctx))

	require.True(t, indexstate.IsMaintained(indexstate.WriteOnly))
	require.False(t, indexstate.IsReadable(indexstate.WriteOnly))

	txn2, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, st.MakeReadable(ctx, txn2, "by_email"))
	require.NoError(t, txn2.Commit(ctx))

	txn3, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	cur, err = st.Get(ctx, txn3, "by_email")
	require.NoError(t, err)
	require.Equal(t, indexstate.Readable, cur)
	require.True(t, indexstate.IsReadable(cur))

	require.NoError(t, st.Remove(ctx, txn3, former, "by_email"))
	require.NoError(t, txn3.Commit(ctx))

	txn4, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	cur, err = st.Get(ctx, txn4, "by_email")
	require.NoError(t, err)
	require.Equal(t, indexstate.Removed, cur)
	require.Error(t, st.Enable(ctx, txn4, "by_email"))
}

func TestMakeReadableRequiresWriteOnly(t *testing.T) {
	ctx := context.Background()
	db, st, _ := newStore(t)
	txn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	require.Error(t, st.MakeReadable(ctx, txn, "never_enabled"))
}

func TestRequireConfigured(t *testing.T) {
	require.Error(t, indexstate.RequireConfigured("x", indexstate.Disabled, false))
	require.Error(t, indexstate.RequireConfigured("x", indexstate.Removed, true))
	require.NoError(t, indexstate.RequireConfigured("x", indexstate.Readable, true))
}
