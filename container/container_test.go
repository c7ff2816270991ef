package container_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/container"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/memkv"
	"github.com/recordgraph/rg/schema"
)

func newTestContainer(t *testing.T) *container.Container {
	t.Helper()
	db := memkv.New()
	registry := schema.NewRegistry(schema.NewUserDescriptor())
	c, err := container.Open(context.Background(), db, registry, kv.NewSubspace([]byte("R")), container.DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestOpenRunsFormatVersionGate(t *testing.T) {
	c := newTestContainer(t)
	require.NotNil(t, c.Registry())
	require.NotNil(t, c.Dirs())
	require.NotNil(t, c.Runner())
	require.NotNil(t, c.Monitor())
	require.NotNil(t, c.Admin())
}

func TestOpenTwiceOverSameRootAgrees(t *testing.T) {
	db := memkv.New()
	registry := schema.NewRegistry(schema.NewUserDescriptor())
	root := kv.NewSubspace([]byte("R"))
	_, err := container.Open(context.Background(), db, registry, root, container.DefaultConfig())
	require.NoError(t, err)
	_, err = container.Open(context.Background(), db, registry, root, container.DefaultConfig())
	require.NoError(t, err)
}

func TestNewContextInsertAndFetch(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	wctx := c.NewContext(false)
	require.NoError(t, wctx.Insert(schema.User{ID: 1, Email: "alice@example.com"}))
	require.NoError(t, wctx.Save(ctx))

	results, err := c.NewContext(false).Fetch(ctx, "User", func(r any) bool {
		u := r.(schema.User)
		return u.Email == "alice@example.com"
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestCurrentReadVersionAndEstimatedStorageSize(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	_, err := c.CurrentReadVersion(ctx)
	require.NoError(t, err)

	size, err := c.EstimatedStorageSize(ctx, []byte{0x00}, []byte{0xFF})
	require.NoError(t, err)
	require.GreaterOrEqual(t, size, int64(0))
}
