package txrunner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/memkv"
	"github.com/recordgraph/rg/txrunner"
)

func TestWithTransactionCommitsAndCachesGRV(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	r := txrunner.New(db, nil, 0)

	_, err := txrunner.WithTransaction(ctx, r, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		return struct{}{}, txn.SetValue([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	v, ok := r.GRV.Get()
	require.True(t, ok)
	require.Greater(t, v, uint64(0))

	got, err := txrunner.WithTransaction(ctx, r, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) ([]byte, error) {
		return txn.GetValue(ctx, []byte("k"))
	})
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestWithTransactionStaleReadVersionOnFreshStoreCommits(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	r := txrunner.New(db, nil, 0)

	attempts := 0
	_, err := txrunner.WithTransaction(ctx, r, txrunner.Config{RetryLimit: 5, UseGRVCache: false}, func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		attempts++
		if attempts < 3 {
			txn.SetReadVersion(1) // not older than a fresh store's version 0, so no conflict
			if err := txn.SetValue([]byte("x"), []byte("y")); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, nil
		}
		return struct{}{}, txn.SetValue([]byte("x"), []byte("y"))
	})
	// memkv only conflicts when readVersion < store.version, which is 0
	// on a fresh store, so this exercises the non-conflict path but
	// confirms attempts execute without blowing up the retry loop.
	require.NoError(t, err)
	require.GreaterOrEqual(t, attempts, 1)
}

func TestGRVCacheStaleness(t *testing.T) {
	c := txrunner.NewGRVCache(0)
	c.RecordCommittedVersion(5)
	_, ok := c.Get()
	require.False(t, ok) // zero staleness bound means immediately stale
}
