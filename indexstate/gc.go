package indexstate

import (
	"context"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/throttle"
	"github.com/recordgraph/rg/txrunner"
)

// GarbageCollect lazily clears a removed index's leftover bytes in
// bounded-size batches (spec.md §3.1: "a removed index is treated as
// nonexistent except that its leftover data may be garbage collected
// lazily"). It paces itself with a throttler so a large leftover
// index doesn't monopolize the KV store, reusing the
// one-transaction-per-batch shape the online indexer (G) uses for its
// scan loop: each transaction scans at most one batch of keys under the
// index prefix and clears them one by one.
func GarbageCollect(ctx context.Context, runner *txrunner.Runner, indexSub kv.Subspace, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	min := batchSize / 10
	if min < 1 {
		min = 1
	}
	t := throttle.New(throttle.Config{
		Min: min, Initial: batchSize, Max: batchSize * 10,
		IncreaseRatio: 1.5, DecreaseRatio: 0.5,
		DelayIncreaseRatio: 10, DelayDecreaseRatio: 0.9,
		MinDelay: 0, MaxDelay: 0,
		SuccessesBeforeIncrease: 3,
	})
	begin, end := indexSub.Range()
	for {
		op := throttle.ThrottledOperation{
			Throttler: t,
			Op: func(ctx context.Context, batch int) (int, error) {
				return clearBatch(ctx, runner, begin, end, batch)
			},
		}
		n, err := op.Execute(ctx, 10)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func clearBatch(ctx context.Context, runner *txrunner.Runner, begin, end []byte, batch int) (int, error) {
	return txrunner.WithTransaction(ctx, runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (int, error) {
		var keys [][]byte
		err := txn.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
			if len(keys) >= batch {
				return false, nil
			}
			keys = append(keys, kvp.Key)
			return true, nil
		})
		if err != nil {
			return 0, err
		}
		for _, k := range keys {
			if err := txn.Clear(k); err != nil {
				return 0, err
			}
		}
		return len(keys), nil
	})
}
