package container

import (
	"context"

	"github.com/pkg/errors"

	"github.com/recordgraph/rg/indexstate"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/online"
	"github.com/recordgraph/rg/perfmon"
	"github.com/recordgraph/rg/rgerr"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/sparql"
	"github.com/recordgraph/rg/throttle"
	"github.com/recordgraph/rg/txrunner"
)

// Admin is the administration surface spec.md §6.2 names:
// explain/explainAnalyze, collectionStatistics/indexStatistics,
// rebuildIndex, updateStatistics (SPEC_FULL.md §4: these are named in
// §6.2 but left undetailed by §4, so the bodies below are supplemental
// features grounded on the pack's secondary-index managers).
type Admin struct {
	c *Container

	// cached holds the last UpdateStatistics snapshot, served by
	// CollectionStatistics/IndexStatistics between refreshes so repeated
	// calls don't always re-scan (mirrors the pack's
	// secondary-index-manager Statistics() accessors, which read a
	// maintained counter rather than rescanning per call).
	cached map[string]CollectionStats
}

// CollectionStats is a point-in-time estimate for one record type
// (SPEC_FULL.md §4 "CollectionStatistics/IndexStatistics"): approximate
// byte sizes of the type's records and of each of its indexes. It
// carries no record count.
type CollectionStats struct {
	TypeName       string
	ApproxByteSize int64
	IndexByteSizes map[string]int64
}

// RebuildIndex resets indexName to disabled then re-enables it, driving
// the full online-build pipeline (G) to completion (SPEC_FULL.md §4
// "RebuildIndex": "a convenience that resets an index to disabled then
// re-enables it").
func (a *Admin) RebuildIndex(ctx context.Context, indexName string) error {
	idx, err := a.c.lookupIndex(indexName)
	if err != nil {
		return err
	}
	descriptor, ok := a.c.registry.Lookup(idx.TypeName)
	if !ok {
		return errors.Wrapf(&rgerr.ModelNotFound{TypeName: idx.TypeName}, "container: rebuild index %q", indexName)
	}
	return a.rebuild(ctx, idx, descriptor)
}

func (a *Admin) rebuild(ctx context.Context, idx *schema.IndexDescriptor, descriptor schema.RecordDescriptor) error {
	_, err := txrunner.WithTransaction(ctx, a.c.runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		return struct{}{}, a.c.indexState.Reset(ctx, txn, idx.Name)
	})
	if err != nil {
		return errors.Wrapf(err, "container: resetting index %q to disabled before rebuild", idx.Name)
	}

	throttler := throttle.New(throttle.DefaultConfig())
	progressRoot := a.c.dirs.CreateOrOpen(kv.CategoryStore, "_rebuild_progress")
	builder := &online.Builder{
		Runner:           a.c.runner,
		Throttler:        throttler,
		IndexState:       a.c.indexState,
		Dirs:             a.c.dirs,
		RecordDescriptor: descriptor,
		Targets:          []*schema.IndexDescriptor{idx},
		ProgressRoot:     progressRoot,
		ClearFirst:       true,
		MaxRetries:       10,
		Logger:           a.c.logger,
	}
	return builder.Build(ctx)
}

// UpdateStatistics recomputes CollectionStats for every registered
// type by scanning approximate range sizes, and caches the result for
// subsequent CollectionStatistics/IndexStatistics calls (spec.md §6.2
// "updateStatistics").
func (a *Admin) UpdateStatistics(ctx context.Context) error {
	stats := make(map[string]CollectionStats, len(a.c.registry.TypeNames()))
	for _, typeName := range a.c.registry.TypeNames() {
		descriptor, _ := a.c.registry.Lookup(typeName)
		recordSub := a.c.dirs.CreateOrOpen(kv.CategoryRecord, typeName)
		begin, end := recordSub.Range()
		size, err := a.c.runner.EstimatedStorageSize(ctx, begin, end)
		if err != nil {
			return errors.Wrapf(err, "container: estimating size for %q", typeName)
		}
		idxSizes := make(map[string]int64, len(descriptor.Indexes()))
		for _, idx := range descriptor.Indexes() {
			idxSub := a.c.dirs.CreateOrOpen(kv.CategoryIndex, idx.Name)
			ib, ie := idxSub.Range()
			isz, err := a.c.runner.EstimatedStorageSize(ctx, ib, ie)
			if err != nil {
				return errors.Wrapf(err, "container: estimating size for index %q", idx.Name)
			}
			idxSizes[idx.Name] = isz
		}
		stats[typeName] = CollectionStats{TypeName: typeName, ApproxByteSize: size, IndexByteSizes: idxSizes}
	}
	a.cached = stats
	return nil
}

// CollectionStatistics returns the last-computed stats for typeName,
// calling UpdateStatistics first if none have been computed yet
// (spec.md §6.2 "collectionStatistics").
func (a *Admin) CollectionStatistics(ctx context.Context, typeName string) (CollectionStats, error) {
	if a.cached == nil {
		if err := a.UpdateStatistics(ctx); err != nil {
			return CollectionStats{}, err
		}
	}
	s, ok := a.cached[typeName]
	if !ok {
		return CollectionStats{}, errors.Wrapf(&rgerr.ModelNotFound{TypeName: typeName}, "container")
	}
	return s, nil
}

// IndexStatistics returns the approximate byte size of one index,
// keyed by its declaring type's cached CollectionStats (spec.md §6.2
// "indexStatistics").
func (a *Admin) IndexStatistics(ctx context.Context, indexName string) (int64, error) {
	idx, err := a.c.lookupIndex(indexName)
	if err != nil {
		return 0, err
	}
	stats, err := a.CollectionStatistics(ctx, idx.TypeName)
	if err != nil {
		return 0, err
	}
	size, ok := stats.IndexByteSizes[indexName]
	if !ok {
		return 0, errors.Wrapf(&rgerr.IndexNotFound{Name: indexName}, "container")
	}
	return size, nil
}

// Explain returns a static query plan for p (spec.md §6.2 "explain").
func (a *Admin) Explain(p *sparql.Pattern) perfmon.PlanNode {
	return perfmon.Explain(p)
}

// ExplainAnalyze runs p via sparql.Evaluate over hexStore and returns a
// plan annotated with the cardinalities observed (spec.md §6.2
// "explainAnalyze").
func (a *Admin) ExplainAnalyze(ctx context.Context, hexStore *sparql.Env, p *sparql.Pattern) (perfmon.PlanNode, []sparql.Solution, error) {
	stats := &sparql.Stats{}
	hexStore.Stats = stats
	solutions, err := sparql.Evaluate(ctx, hexStore, p)
	if err != nil {
		return perfmon.PlanNode{}, nil, err
	}
	return perfmon.ExplainAnalyze(p, stats), solutions, nil
}

// GarbageCollect lazily clears a removed index's leftover bytes in
// bounded-size batches (spec.md §3.1 "its leftover data may be garbage
// collected lazily"), pacing itself with the throttler (SPEC_FULL.md
// §4 "indexstate.GarbageCollect").
func (a *Admin) GarbageCollect(ctx context.Context, indexName string, batchSize int) error {
	return indexstate.GarbageCollect(ctx, a.c.runner, a.c.dirs.CreateOrOpen(kv.CategoryIndex, indexName), batchSize)
}
