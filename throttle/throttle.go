// Package throttle implements the adaptive feedback controller that
// shapes batch size and inter-batch delay for bulk work (spec.md
// §4.3). It is the system's sole load shaper (spec.md §5
// "Backpressure"): failures shrink batches and add delay; sustained
// success enlarges batches up to a configured maximum.
package throttle

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/recordgraph/rg/rgerr"
)

// Config bundles the throttler's tunables with validated construction
// (SPEC_FULL.md §1 ambient stack: explicit configuration records).
type Config struct {
	Min, Initial, Max int
	IncreaseRatio     float64 // > 1
	DecreaseRatio     float64 // in (0,1)
	DelayIncreaseRatio float64
	DelayDecreaseRatio float64
	MinDelay, MaxDelay time.Duration
	SuccessesBeforeIncrease int
}

// DefaultConfig returns the values used throughout spec.md's worked
// examples (§8.4 E5).
func DefaultConfig() Config {
	return Config{
		Min: 10, Initial: 100, Max: 1000,
		IncreaseRatio: 1.5, DecreaseRatio: 0.5,
		DelayIncreaseRatio: 10, DelayDecreaseRatio: 0.9,
		MinDelay: 0, MaxDelay: 60 * time.Second,
		SuccessesBeforeIncrease: 3,
	}
}

// Validate enforces the preconditions spec.md §4.3 requires at
// construction.
func (c Config) Validate() error {
	if !(0 < c.Min && c.Min <= c.Initial && c.Initial <= c.Max) {
		return errInvalidConfig("0 < min <= initial <= max must hold")
	}
	if !(c.IncreaseRatio > 1) {
		return errInvalidConfig("increaseRatio must be > 1")
	}
	if !(0 < c.DecreaseRatio && c.DecreaseRatio < 1) {
		return errInvalidConfig("decreaseRatio must be in (0,1)")
	}
	return nil
}

type configError struct{ msg string }

func (e *configError) Error() string { return "throttle: invalid config: " + e.msg }
func errInvalidConfig(msg string) error { return &configError{msg: msg} }

// Throttler is the mutex-guarded feedback controller (spec.md §5
// "Throttler state: guarded by a mutex; no suspension inside").
type Throttler struct {
	cfg Config

	mu                   sync.Mutex
	batchSize            int
	delay                time.Duration
	consecutiveSuccesses int
	consecutiveFailures  int
	totalSuccesses       int64
	totalFailures        int64

	limiter *rate.Limiter
}

// New constructs a Throttler from cfg, which must have passed Validate.
func New(cfg Config) *Throttler {
	return &Throttler{
		cfg:       cfg,
		batchSize: cfg.Initial,
		delay:     cfg.MinDelay,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
}

// BatchSize returns the current recommended batch size.
func (t *Throttler) BatchSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batchSize
}

// Delay returns the current inter-batch delay.
func (t *Throttler) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

// RecordSuccess applies the success transition (spec.md §4.3):
// delay decays multiplicatively down to the floor; every
// SuccessesBeforeIncrease consecutive successes grows the batch size.
func (t *Throttler) RecordSuccess(items int, dur time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveSuccesses++
	t.consecutiveFailures = 0
	t.totalSuccesses++

	t.delay = clampDuration(scaleDuration(t.delay, t.cfg.DelayDecreaseRatio), t.cfg.MinDelay, t.cfg.MaxDelay)

	if t.consecutiveSuccesses >= t.cfg.SuccessesBeforeIncrease {
		t.batchSize = clampInt(scaleInt(t.batchSize, t.cfg.IncreaseRatio), t.cfg.Min, t.cfg.Max)
		t.consecutiveSuccesses = 0
	}
	t.refreshLimiterLocked()
}

// RecordFailure applies the failure transition (spec.md §4.3): batch
// size shrinks immediately, delay grows multiplicatively up to the
// ceiling, and the success streak resets.
func (t *Throttler) RecordFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures++
	t.consecutiveSuccesses = 0
	t.totalFailures++

	t.batchSize = clampInt(scaleInt(t.batchSize, t.cfg.DecreaseRatio), t.cfg.Min, t.cfg.Max)

	base := t.delay
	if base <= 0 {
		base = 1 * time.Millisecond
	}
	t.delay = clampDuration(scaleDuration(base, t.cfg.DelayIncreaseRatio), t.cfg.MinDelay, t.cfg.MaxDelay)
	t.refreshLimiterLocked()
}

func (t *Throttler) refreshLimiterLocked() {
	if t.delay <= 0 {
		t.limiter.SetLimit(rate.Inf)
		return
	}
	t.limiter.SetLimit(rate.Every(t.delay))
}

// WaitBeforeNextBatch sleeps for the current delay, honoring
// cancellation (spec.md §5 "Task.sleep in the throttler must propagate
// cancellation").
func (t *Throttler) WaitBeforeNextBatch(ctx context.Context) error {
	d := t.Delay()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRetryable recognizes the retryable error classes named in spec.md
// §4.3, delegating to rgerr.IsRetryable which also consults any
// KV-driver-supplied Retryable() flag.
func (t *Throttler) IsRetryable(err error) bool { return rgerr.IsRetryable(err) }

// Stats is a snapshot of the throttler's counters, useful for
// diagnostics and tests.
type Stats struct {
	BatchSize, Delay                      string
	ConsecutiveSuccesses, ConsecutiveFailures int
	TotalSuccesses, TotalFailures          int64
}

// scaleInt truncates toward zero rather than rounding, so that e.g.
// 225 * 0.5 == 112 (not 113) matches spec.md §8.4 E5's worked example.
func scaleInt(v int, ratio float64) int {
	return int(float64(v) * ratio)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func scaleDuration(d time.Duration, ratio float64) time.Duration {
	return time.Duration(math.Round(float64(d) * ratio))
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// ThrottledOperation wraps a unit of batched work that consults the
// throttler for its batch size, runs, and reports the outcome back
// (spec.md §4.3: "ThrottledOperation(op).execute(maxRetries)").
type ThrottledOperation struct {
	Throttler *Throttler
	Op        func(ctx context.Context, batchSize int) (itemsProcessed int, err error)
}

// Execute loops: read batch size, run Op, record the outcome, retry on
// retryable failures up to maxRetries, otherwise propagate the error.
func (o ThrottledOperation) Execute(ctx context.Context, maxRetries int) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		batchSize := o.Throttler.BatchSize()
		start := time.Now()
		items, err := o.Op(ctx, batchSize)
		if err == nil {
			o.Throttler.RecordSuccess(items, time.Since(start))
			return items, nil
		}
		o.Throttler.RecordFailure(err)
		lastErr = err
		if !o.Throttler.IsRetryable(err) || attempt == maxRetries {
			return items, err
		}
		if werr := o.Throttler.WaitBeforeNextBatch(ctx); werr != nil {
			return items, werr
		}
	}
	return 0, lastErr
}
