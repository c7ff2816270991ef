// Package txrunner implements the Container / Transaction Runner (I,
// spec.md §4.9): a strict-serializable retry loop with GRV reuse and
// capped exponential backoff + jitter, plus watch/estimate
// passthroughs to the KV collaborator.
package txrunner

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/rgerr"
)

// Config bundles one withTransaction call's tunables (SPEC_FULL.md §1
// ambient stack: explicit configuration records over duck typing).
type Config struct {
	RetryLimit     int
	UseGRVCache    bool
	Timeout        time.Duration // 0 disables
	WarnSizeBytes  int64
}

// DefaultConfig matches spec.md §4.9's pseudocode defaults.
func DefaultConfig() Config {
	return Config{RetryLimit: 100, UseGRVCache: true, WarnSizeBytes: kv.WarnTransactionSize}
}

// Runner owns the GRV cache and drives withTransaction against one
// Database (spec.md §4.9, §6.2 "Container").
type Runner struct {
	DB       kv.Database
	GRV      *GRVCache
	Logger   *slog.Logger
	watchSem *semaphore.Weighted
}

// New returns a Runner over db, with a bounded-staleness GRV cache and
// at most maxConcurrentWatches in-flight Watch calls (SPEC_FULL.md §2:
// "golang.org/x/sync semaphore ... cap concurrent watches").
func New(db kv.Database, logger *slog.Logger, maxConcurrentWatches int64) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrentWatches <= 0 {
		maxConcurrentWatches = 32
	}
	return &Runner{DB: db, GRV: NewGRVCache(5 * time.Second), Logger: logger, watchSem: semaphore.NewWeighted(maxConcurrentWatches)}
}

// WithTransaction runs op against a fresh transaction, retrying
// retryable failures with capped exponential backoff and jitter
// (spec.md §4.9 pseudocode).
func WithTransaction[T any](ctx context.Context, r *Runner, cfg Config, op func(ctx context.Context, txn kv.Transaction) (T, error)) (T, error) {
	var zero T
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	retryLimit := cfg.RetryLimit
	if retryLimit <= 0 {
		retryLimit = 1
	}
	for attempt := 0; attempt < retryLimit; attempt++ {
		txn, err := r.DB.CreateTransaction(ctx)
		if err != nil {
			return zero, errors.Wrap(err, "txrunner: creating transaction")
		}
		if cfg.UseGRVCache {
			if v, ok := r.GRV.Get(); ok {
				txn.SetReadVersion(v)
			}
		}
		result, opErr := op(ctx, txn)
		if opErr == nil {
			if size, sizeErr := txn.GetApproximateSize(); sizeErr == nil && size > cfg.WarnSizeBytes && cfg.WarnSizeBytes > 0 {
				r.Logger.Warn("txrunner: large transaction", "size", size, "warn_threshold", cfg.WarnSizeBytes)
			}
			if commitErr := txn.Commit(ctx); commitErr == nil {
				if v, vErr := txn.GetCommittedVersion(); vErr == nil {
					r.GRV.RecordCommittedVersion(v)
				}
				return result, nil
			} else {
				opErr = commitErr
			}
		}
		txn.Cancel()
		if errors.Is(opErr, rgerr.ErrTransactionTooOld) {
			r.GRV.Invalidate()
		}
		if !rgerr.IsRetryable(opErr) || attempt+1 >= retryLimit {
			return zero, opErr
		}
		if err := sleepBackoff(ctx, attempt); err != nil {
			return zero, err
		}
	}
	return zero, errors.Wrap(rgerr.ErrExhaustedRetries, "txrunner: retry limit exhausted")
}

// sleepBackoff waits min(maxDelay, 10*2^min(attempt,10)) ms plus
// uniform jitter in [0, baseDelay/4) (spec.md §4.9 pseudocode).
func sleepBackoff(ctx context.Context, attempt int) error {
	const maxDelay = 1000 * time.Millisecond
	shift := attempt
	if shift > 10 {
		shift = 10
	}
	base := 10 * time.Millisecond * time.Duration(1<<uint(shift))
	if base > maxDelay {
		base = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(base/4 + 1)))
	d := base + jitter
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch passes through to the KV collaborator's watch, bounded by
// watchSem (spec.md §6.2 "watch", §5 "semaphore ... cap concurrent
// watches"). A watch firing invalidates the GRV cache, since a
// subsequent read should observe the new value rather than a stale
// cached snapshot (SPEC_FULL.md §4 "txrunner.Runner.Watch").
func (r *Runner) Watch(ctx context.Context, key []byte) error {
	if err := r.watchSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.watchSem.Release(1)
	txn, err := r.DB.CreateTransaction(ctx)
	if err != nil {
		return err
	}
	defer txn.Cancel()
	if err := txn.Watch(ctx, key); err != nil {
		return err
	}
	r.GRV.Invalidate()
	return nil
}

// EstimatedStorageSize passes through to the KV collaborator's range
// size estimate (spec.md §6.2 "estimatedStorageSize").
func (r *Runner) EstimatedStorageSize(ctx context.Context, begin, end []byte) (int64, error) {
	return r.DB.EstimatedSize(ctx, begin, end)
}

// CurrentReadVersion returns the cached read version if fresh, else
// obtains a fresh one via a throwaway read-only transaction (spec.md
// §6.2 "currentReadVersion").
func (r *Runner) CurrentReadVersion(ctx context.Context) (uint64, error) {
	if v, ok := r.GRV.Get(); ok {
		return v, nil
	}
	txn, err := r.DB.CreateTransaction(ctx)
	if err != nil {
		return 0, err
	}
	defer txn.Cancel()
	v, err := txn.GetCommittedVersion()
	if err != nil {
		return 0, err
	}
	r.GRV.RecordCommittedVersion(v)
	return v, nil
}
