package maintainer_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/memkv"
	"github.com/recordgraph/rg/maintainer"
	"github.com/recordgraph/rg/rgerr"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/tuple"
)

func emailIndex() *schema.IndexDescriptor {
	d := schema.NewUserDescriptor()
	return d.Indexes()[0]
}

func TestInsertDeleteEntries(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	root := kv.NewSubspace([]byte("I/by_email"))
	m := maintainer.New(emailIndex(), root)

	txn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	id := tuple.Tuple{tuple.Int(1)}
	require.NoError(t, m.InsertEntries(ctx, txn, schema.User{ID: 1, Email: "a@x"}, id))
	require.NoError(t, txn.Commit(ctx))

	txn2, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	begin, end := root.Range()
	var keys [][]byte
	require.NoError(t, txn2.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
		keys = append(keys, kvp.Key)
		return true, nil
	}))
	require.Len(t, keys, 1)

	// Replace with a new email: old entry clears, new one appears.
	require.NoError(t, m.Replace(ctx, txn2, schema.User{ID: 1, Email: "a@x"}, schema.User{ID: 1, Email: "b@x"}, id))
	require.NoError(t, txn2.Commit(ctx))

	txn3, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	keys = nil
	require.NoError(t, txn3.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
		keys = append(keys, kvp.Key)
		return true, nil
	}))
	require.Len(t, keys, 1)

	unpacked, err := root.Unpack(keys[0])
	require.NoError(t, err)
	require.Equal(t, "b@x", unpacked[0].Str)
}

func TestKeyTooLarge(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	root := kv.NewSubspace([]byte("I/by_email"))
	m := maintainer.New(emailIndex(), root)
	txn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)

	huge := strings.Repeat("x", int(maintainer.MaxIndexKeySize)+1)
	err = m.InsertEntries(ctx, txn, schema.User{ID: 1, Email: huge}, tuple.Tuple{tuple.Int(1)})
	require.ErrorIs(t, err, rgerr.ErrKeyTooLarge)
}
