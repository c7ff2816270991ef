// Package online implements the Online / Multi-Target / Mutual Indexer
// (G, spec.md §4.7): resumable, batched, crash-safe background
// construction of one or many secondary indexes in a single data scan.
package online

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"

	"github.com/recordgraph/rg/indexstate"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/maintainer"
	"github.com/recordgraph/rg/rangeset"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/throttle"
	"github.com/recordgraph/rg/tuple"
	"github.com/recordgraph/rg/txrunner"
)

// Builder drives one online build for a single record type and one or
// more target indexes on it (spec.md §4.7: "mutual is the multi-target
// case of exactly two complementary indexes").
type Builder struct {
	Runner           *txrunner.Runner
	Throttler        *throttle.Throttler
	IndexState       indexstate.Store
	Dirs             *kv.DirectoryCache
	RecordDescriptor schema.RecordDescriptor
	Targets          []*schema.IndexDescriptor
	ProgressRoot     kv.Subspace // holds _progress_multi / _progress_mutual blobs
	ClearFirst       bool
	MaxRetries       int
	Logger           *slog.Logger
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// progressKey is derived from the sorted set of target index names
// (spec.md §4.7 step 3).
func (b *Builder) progressKey() []byte {
	names := make([]string, len(b.Targets))
	for i, t := range b.Targets {
		names[i] = t.Name
	}
	sort.Strings(names)
	prefix := kv.ProgressMultiPrefix
	if len(names) == 2 {
		prefix = kv.ProgressMutualPrefix
	}
	return b.ProgressRoot.Pack(tuple.Tuple{tuple.Str(prefix), tuple.Str(strings.Join(names, ","))})
}

// Build runs the full pipeline to completion: write_only, optional
// clear, batched scan-and-maintain loop, then readable (spec.md §4.7
// steps 1-7). It is safe to call again after a crash; it resumes from
// the persisted RangeSet.
func (b *Builder) Build(ctx context.Context) error {
	if err := b.enableTargets(ctx); err != nil {
		return err
	}
	if b.ClearFirst {
		if err := b.clearStaleEntries(ctx); err != nil {
			return err
		}
	}
	rs, err := b.loadOrInitRangeSet(ctx)
	if err != nil {
		return err
	}

	for {
		bounds, ok := rs.NextBatchBounds()
		if !ok {
			break
		}
		op := throttle.ThrottledOperation{
			Throttler: b.Throttler,
			Op: func(ctx context.Context, batchSize int) (int, error) {
				return b.runBatch(ctx, rs, bounds, batchSize)
			},
		}
		if _, err := op.Execute(ctx, b.MaxRetries); err != nil {
			return errors.Wrap(err, "online: batch failed")
		}
		if err := b.persistRangeSet(ctx, rs); err != nil {
			return errors.Wrap(err, "online: persisting progress")
		}
		if rs.IsEmpty() {
			break
		}
	}

	return b.finish(ctx, rs)
}

func (b *Builder) enableTargets(ctx context.Context) error {
	_, err := txrunner.WithTransaction(ctx, b.Runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		for _, t := range b.Targets {
			if err := b.IndexState.Enable(ctx, txn, t.Name); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}

func (b *Builder) clearStaleEntries(ctx context.Context) error {
	_, err := txrunner.WithTransaction(ctx, b.Runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		for _, t := range b.Targets {
			sub := b.Dirs.CreateOrOpen(kv.CategoryIndex, t.Name)
			begin, end := sub.Range()
			if err := txn.ClearRange(begin, end); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}

func (b *Builder) loadOrInitRangeSet(ctx context.Context) (*rangeset.RangeSet, error) {
	recordSub := b.Dirs.CreateOrOpen(kv.CategoryRecord, b.RecordDescriptor.TypeName())
	begin, end := recordSub.Range()
	blob, err := txrunner.WithTransaction(ctx, b.Runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) ([]byte, error) {
		return txn.GetValue(ctx, b.progressKey())
	})
	if err != nil {
		return nil, err
	}
	if blob == nil {
		rs := rangeset.New()
		rs.Init(rangeset.KeyRange{Begin: begin, End: end})
		return rs, nil
	}
	return rangeset.Decode(blob)
}

func (b *Builder) persistRangeSet(ctx context.Context, rs *rangeset.RangeSet) error {
	// A deliberately separate transaction from the data batch (spec.md
	// §4.7 step 5: "Persist the updated RangeSet in a second
	// transaction").
	_, err := txrunner.WithTransaction(ctx, b.Runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		return struct{}{}, txn.SetValue(b.progressKey(), rs.Encode())
	})
	return err
}

// runBatch scans [bounds.Begin, bounds.End) up to batchSize records,
// calling every target's ScanItem on each, in one transaction (spec.md
// §4.7 step 4).
func (b *Builder) runBatch(ctx context.Context, rs *rangeset.RangeSet, bounds rangeset.Bounds, batchSize int) (int, error) {
	recordSub := b.Dirs.CreateOrOpen(kv.CategoryRecord, b.RecordDescriptor.TypeName())
	maintainers := make([]*maintainer.Maintainer, len(b.Targets))
	for i, t := range b.Targets {
		sub := b.Dirs.CreateOrOpen(kv.CategoryIndex, t.Name)
		maintainers[i] = maintainer.New(t, sub)
	}

	var lastKey []byte
	var count int
	_, err := txrunner.WithTransaction(ctx, b.Runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		lastKey, count = nil, 0
		scanErr := txn.GetRange(ctx, bounds.Begin, bounds.End, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
			if count >= batchSize {
				return false, nil
			}
			t, err := recordSub.Unpack(kvp.Key)
			if err != nil {
				return false, err
			}
			record, err := b.RecordDescriptor.Decode(kvp.Value)
			if err != nil {
				return false, err
			}
			// One KV transaction is used by at most one task at a time
			// (spec.md §5): txn is not safe for concurrent writers, so
			// every target's maintainer runs against it in turn rather
			// than fanned out across goroutines.
			for _, m := range maintainers {
				if err := m.ScanItem(ctx, txn, record, t); err != nil {
					return false, err
				}
			}
			lastKey = kvp.Key
			count++
			return true, nil
		})
		if scanErr != nil {
			return struct{}{}, scanErr
		}
		complete := count < batchSize
		if err := rs.RecordProgress(bounds.RangeID, lastKey, complete); err != nil {
			return struct{}{}, err
		}
		if count == 0 {
			if err := rs.MarkRangeComplete(bounds.RangeID); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return count, err
}

func (b *Builder) finish(ctx context.Context, rs *rangeset.RangeSet) error {
	_, err := txrunner.WithTransaction(ctx, b.Runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		for _, t := range b.Targets {
			if err := b.IndexState.MakeReadable(ctx, txn, t.Name); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, txn.Clear(b.progressKey())
	})
	return err
}

// MutualConsistencyCheck samples up to n forward entries of fromIndex
// and verifies a reverse entry exists in toIndex, reporting (not
// failing on) inconsistencies (spec.md §4.7 "Mutual consistency
// check"). swap remaps a forward entry's values to the reverse key
// shape expected in toIndex.
func MutualConsistencyCheck(ctx context.Context, runner *txrunner.Runner, fromSub, toSub kv.Subspace, n int, swap func(tuple.Tuple) tuple.Tuple) ([]tuple.Tuple, error) {
	var inconsistent []tuple.Tuple
	sampled := roaring.New()
	_, err := txrunner.WithTransaction(ctx, runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		begin, end := fromSub.Range()
		var ordinal uint32
		return struct{}{}, txn.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
			if sampled.GetCardinality() >= uint64(n) {
				return false, nil
			}
			sampled.Add(ordinal)
			ordinal++
			fwd, err := fromSub.Unpack(kvp.Key)
			if err != nil {
				return false, err
			}
			rev := swap(fwd)
			revKey := toSub.Pack(rev)
			v, err := txn.GetValue(ctx, revKey)
			if err != nil {
				return false, err
			}
			if v == nil {
				inconsistent = append(inconsistent, fwd)
			}
			return true, nil
		})
	})
	return inconsistent, err
}
