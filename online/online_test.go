package online_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/indexstate"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/memkv"
	"github.com/recordgraph/rg/online"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/throttle"
	"github.com/recordgraph/rg/txrunner"
)

func TestBuildBringsIndexReadable(t *testing.T) {
	ctx := context.Background()
	db := memkv.New()
	runner := txrunner.New(db, nil, 0)
	dirs := kv.NewDirectoryCache(kv.NewSubspace(nil))
	st := indexstate.Store{Root: kv.NewSubspace([]byte("T"))}
	descriptor := schema.NewUserDescriptor()

	recordSub := dirs.CreateOrOpen(kv.CategoryRecord, "User")
	for i := int64(0); i < 250; i++ {
		txn, err := db.CreateTransaction(ctx)
		require.NoError(t, err)
		u := schema.User{ID: i, Email: "u@x"}
		data, err := descriptor.Encode(u)
		require.NoError(t, err)
		id, err := descriptor.ID(u)
		require.NoError(t, err)
		require.NoError(t, txn.SetValue(recordSub.Pack(id), data))
		require.NoError(t, txn.Commit(ctx))
	}

	cfg := throttle.DefaultConfig()
	cfg.Initial = 17
	cfg.Min = 17
	thr := throttle.New(cfg)

	b := &online.Builder{
		Runner:           runner,
		Throttler:        thr,
		IndexState:       st,
		Dirs:             dirs,
		RecordDescriptor: descriptor,
		Targets:          descriptor.Indexes(),
		ProgressRoot:     kv.NewSubspace(nil),
		MaxRetries:       5,
	}
	require.NoError(t, b.Build(ctx))

	txn, err := db.CreateTransaction(ctx)
	require.NoError(t, err)
	state, err := st.Get(ctx, txn, "by_email")
	require.NoError(t, err)
	require.Equal(t, indexstate.Readable, state)

	indexSub := dirs.CreateOrOpen(kv.CategoryIndex, "by_email")
	begin, end := indexSub.Range()
	var count int
	require.NoError(t, txn.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kv.KeyValue) (bool, error) {
		count++
		return true, nil
	}))
	require.Equal(t, 250, count)
}
