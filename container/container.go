// Package container implements the application-facing facade (spec.md
// §6.2) wiring the Transaction Runner (I), schema Registry, directory
// cache, index state, format version gate, and performance monitor
// into one entry point applications construct once per KV database.
//
// Cyclic structure handling follows spec.md §9's design note: the
// Container owns every shared component; a Context (session.Context)
// holds only a non-owning reference back to the Store bundle a
// Container hands it, never to the Container itself.
package container

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/recordgraph/rg/format"
	"github.com/recordgraph/rg/indexstate"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/perfmon"
	"github.com/recordgraph/rg/rgerr"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/session"
	"github.com/recordgraph/rg/tuple"
	"github.com/recordgraph/rg/txrunner"
)

// CurrentFormatVersion is this build's format version (spec.md §4.4).
var CurrentFormatVersion = format.Version{Major: 1, Minor: 0, Patch: 0}

// MinimumSupportedFormatVersion is the oldest stored version this code
// still opens without upgrading offline.
var MinimumSupportedFormatVersion = format.Version{Major: 1, Minor: 0, Patch: 0}

// Config bundles the tunables a Container needs beyond the schema and
// KV database themselves (SPEC_FULL.md §1 ambient stack: explicit
// configuration records over duck typing).
type Config struct {
	Logger               *slog.Logger
	MaxConcurrentWatches int64
	Registerer           prometheus.Registerer // nil disables Prometheus registration
	PerfMon              perfmon.Config
}

// DefaultConfig returns sensible defaults for every Config field.
func DefaultConfig() Config {
	return Config{MaxConcurrentWatches: 32, PerfMon: perfmon.DefaultConfig()}
}

// Container owns every long-lived component over one KV database
// (spec.md §6.2 "Container(for: schema, config?)"). It is safe for
// concurrent use; Contexts obtained from it may run concurrently.
type Container struct {
	runner     *txrunner.Runner
	registry   *schema.Registry
	dirs       *kv.DirectoryCache
	indexState indexstate.Store
	monitor    *perfmon.Monitor
	logger     *slog.Logger
	admin      *Admin
}

// Open constructs a Container over db for the given schema registry,
// running the format-version compatibility gate (spec.md §4.4) in a
// single bootstrap transaction before returning.
func Open(ctx context.Context, db kv.Database, registry *schema.Registry, root kv.Subspace, cfg Config) (*Container, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxConcurrentWatches <= 0 {
		cfg.MaxConcurrentWatches = 32
	}
	runner := txrunner.New(db, cfg.Logger, cfg.MaxConcurrentWatches)
	dirs := kv.NewDirectoryCache(root)
	stateStore := indexstate.Store{Root: root.Sub(tuple.Str(kv.CategoryState))}
	monitor := perfmon.New(cfg.PerfMon, cfg.Registerer)

	versionKey := root.Pack(tuple.Tuple{tuple.Str("_format"), tuple.Str("version")})
	fm := &format.Manager{
		Current:          CurrentFormatVersion,
		MinimumSupported: MinimumSupportedFormatVersion,
		VersionKey:       versionKey,
	}
	_, err := txrunner.WithTransaction(ctx, runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		return struct{}{}, fm.Open(ctx, txn)
	})
	if err != nil {
		return nil, errors.Wrap(err, "container: format version gate")
	}

	c := &Container{
		runner:     runner,
		registry:   registry,
		dirs:       dirs,
		indexState: stateStore,
		monitor:    monitor,
		logger:     cfg.Logger,
	}
	c.admin = &Admin{c: c}
	return c, nil
}

// store bundles the non-owning references a Context needs (spec.md §9
// "contexts hold a non-owning reference to the container").
func (c *Container) store() *session.Store {
	return &session.Store{
		Runner:     c.runner,
		Registry:   c.registry,
		Dirs:       c.dirs,
		IndexState: c.indexState,
		Logger:     c.logger,
	}
}

// NewContext returns a fresh write session over this Container (spec.md
// §6.2 "Container.newContext(autosave?) -> Context").
func (c *Container) NewContext(autosave bool) *session.Context {
	return session.NewContext(c.store(), autosave)
}

// Registry exposes the schema registry, e.g. for query planners
// resolving a record type or index by name.
func (c *Container) Registry() *schema.Registry { return c.registry }

// Dirs exposes the directory cache, e.g. for a query entry point that
// needs an index's or graph's subspace directly.
func (c *Container) Dirs() *kv.DirectoryCache { return c.dirs }

// IndexState exposes the index lifecycle store.
func (c *Container) IndexState() indexstate.Store { return c.indexState }

// Runner exposes the transaction runner for callers building their own
// queries (e.g. the SPARQL entry point) directly atop (I).
func (c *Container) Runner() *txrunner.Runner { return c.runner }

// Monitor exposes the performance monitor (L).
func (c *Container) Monitor() *perfmon.Monitor { return c.monitor }

// Admin exposes the administration surface (spec.md §6.2: "explain,
// explainAnalyze, collectionStatistics, indexStatistics, rebuildIndex,
// updateStatistics").
func (c *Container) Admin() *Admin { return c.admin }

// Watch passes through to the transaction runner (spec.md §6.2
// "watch").
func (c *Container) Watch(ctx context.Context, key []byte) error { return c.runner.Watch(ctx, key) }

// CurrentReadVersion passes through to the transaction runner (spec.md
// §6.2 "currentReadVersion").
func (c *Container) CurrentReadVersion(ctx context.Context) (uint64, error) {
	return c.runner.CurrentReadVersion(ctx)
}

// EstimatedStorageSize passes through to the transaction runner
// (spec.md §6.2 "estimatedStorageSize").
func (c *Container) EstimatedStorageSize(ctx context.Context, begin, end []byte) (int64, error) {
	return c.runner.EstimatedStorageSize(ctx, begin, end)
}

// lookupIndex finds an index descriptor by name across every
// registered type (spec.md §6.4 indexNotFound).
func (c *Container) lookupIndex(name string) (*schema.IndexDescriptor, error) {
	idx, ok := c.registry.IndexByName(name)
	if !ok {
		return nil, errors.Wrapf(&rgerr.IndexNotFound{Name: name}, "container")
	}
	return idx, nil
}
