package throttle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recordgraph/rg/throttle"
)

// TestConvergenceE5 reproduces spec.md §8.4 E5's worked batch-size
// progression exactly.
func TestConvergenceE5(t *testing.T) {
	cfg := throttle.Config{
		Min: 10, Initial: 100, Max: 1000,
		IncreaseRatio: 1.5, DecreaseRatio: 0.5,
		DelayIncreaseRatio: 2, DelayDecreaseRatio: 0.9,
		MinDelay: 0, MaxDelay: time.Minute,
		SuccessesBeforeIncrease: 3,
	}
	require.NoError(t, cfg.Validate())
	th := throttle.New(cfg)

	require.Equal(t, 100, th.BatchSize())

	expected := []int{100, 100, 150, 150, 150, 225, 112, 112, 112, 168, 168, 168, 252, 252, 252, 378}
	events := []bool{true, true, true, true, true, true, false, true, true, true, true, true, true, true, true, true}
	require.Equal(t, len(expected), len(events))

	for i, success := range events {
		if success {
			th.RecordSuccess(1, time.Millisecond)
		} else {
			th.RecordFailure(context.DeadlineExceeded)
		}
		require.Equalf(t, expected[i], th.BatchSize(), "after event %d", i)
	}
}

func TestValidatePreconditions(t *testing.T) {
	bad := throttle.Config{Min: 0, Initial: 10, Max: 100, IncreaseRatio: 2, DecreaseRatio: 0.5}
	require.Error(t, bad.Validate())

	bad2 := throttle.Config{Min: 10, Initial: 10, Max: 100, IncreaseRatio: 1, DecreaseRatio: 0.5}
	require.Error(t, bad2.Validate())

	bad3 := throttle.Config{Min: 10, Initial: 10, Max: 100, IncreaseRatio: 2, DecreaseRatio: 1}
	require.Error(t, bad3.Validate())

	ok := throttle.DefaultConfig()
	require.NoError(t, ok.Validate())
}

func TestThrottledOperationRetriesThenSucceeds(t *testing.T) {
	th := throttle.New(throttle.DefaultConfig())
	attempts := 0
	op := throttle.ThrottledOperation{
		Throttler: th,
		Op: func(ctx context.Context, batchSize int) (int, error) {
			attempts++
			if attempts < 3 {
				return 0, context.DeadlineExceeded // treated retryable by rgerr classification
			}
			return batchSize, nil
		},
	}
	n, err := op.Execute(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, th.BatchSize(), n)
	require.Equal(t, 3, attempts)
}
