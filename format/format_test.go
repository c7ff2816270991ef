package format_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/format"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/memkv"
	"github.com/recordgraph/rg/rgerr"
)

func TestRoundTrip(t *testing.T) {
	v := format.Version{Major: 3, Minor: 2, Patch: 1}
	got, err := format.FromBytes(v.ToBytes())
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestOpenWritesCurrentWhenAbsent(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	txn, err := store.CreateTransaction(ctx)
	require.NoError(t, err)
	m := &format.Manager{Current: format.Version{Major: 1}, MinimumSupported: format.Version{Major: 1}, VersionKey: []byte("_format/version")}
	require.NoError(t, m.Open(ctx, txn))
	require.NoError(t, txn.Commit(ctx))

	txn2, _ := store.CreateTransaction(ctx)
	v, err := txn2.GetValue(ctx, m.VersionKey)
	require.NoError(t, err)
	got, err := format.FromBytes(v)
	require.NoError(t, err)
	require.Equal(t, m.Current, got)
}

func TestOpenRejectsTooOldAndTooNew(t *testing.T) {
	ctx := context.Background()
	key := []byte("_format/version")

	store := memkv.New()
	txn, _ := store.CreateTransaction(ctx)
	require.NoError(t, txn.SetValue(key, (format.Version{Major: 1, Minor: 0}).ToBytes()))
	require.NoError(t, txn.Commit(ctx))

	txn2, _ := store.CreateTransaction(ctx)
	m := &format.Manager{Current: format.Version{Major: 1, Minor: 5}, MinimumSupported: format.Version{Major: 1, Minor: 2}, VersionKey: key}
	err := m.Open(ctx, txn2)
	require.ErrorIs(t, err, rgerr.ErrFormatVersionTooOld)

	store2 := memkv.New()
	txn3, _ := store2.CreateTransaction(ctx)
	require.NoError(t, txn3.SetValue(key, (format.Version{Major: 1, Minor: 9}).ToBytes()))
	require.NoError(t, txn3.Commit(ctx))
	txn4, _ := store2.CreateTransaction(ctx)
	m2 := &format.Manager{Current: format.Version{Major: 1, Minor: 5}, MinimumSupported: format.Version{Major: 1}, VersionKey: key}
	err = m2.Open(ctx, txn4)
	require.ErrorIs(t, err, rgerr.ErrFormatVersionTooNew)
}

func TestOpenUpgradesWithinSameMajor(t *testing.T) {
	ctx := context.Background()
	key := []byte("_format/version")
	store := memkv.New()
	txn, _ := store.CreateTransaction(ctx)
	require.NoError(t, txn.SetValue(key, (format.Version{Major: 1, Minor: 0}).ToBytes()))
	require.NoError(t, txn.Commit(ctx))

	txn2, _ := store.CreateTransaction(ctx)
	upgraded := false
	m := &format.Manager{
		Current: format.Version{Major: 1, Minor: 2}, MinimumSupported: format.Version{Major: 1}, VersionKey: key,
		Upgrade: func(ctx context.Context, from, to format.Version, txn kv.Transaction) error {
			upgraded = true
			return nil
		},
	}
	require.NoError(t, m.Open(ctx, txn2))
	require.True(t, upgraded)
	require.True(t, format.CanUpgradeOnline(format.Version{Major: 1, Minor: 0}, format.Version{Major: 1, Minor: 2}))
	require.False(t, format.CanUpgradeOnline(format.Version{Major: 1}, format.Version{Major: 2}))
}
