package txrunner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/kv/mockkv"
	"github.com/recordgraph/rg/rgerr"
	"github.com/recordgraph/rg/txrunner"
)

// TestWithTransactionRetriesOnRetryableCommitError drives the retry
// loop with a mocked Database/Transaction so the exact retry count on
// a retryable commit failure can be asserted precisely, unlike
// memkv's conflict path which is hard to force deterministically.
func TestWithTransactionRetriesOnRetryableCommitError(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	db := mockkv.NewMockDatabase(ctrl)
	txn := mockkv.NewMockTransaction(ctrl)

	db.EXPECT().CreateTransaction(ctx).Return(txn, nil).Times(3)
	txn.EXPECT().SetValue([]byte("k"), []byte("v")).Return(nil).Times(3)
	txn.EXPECT().GetApproximateSize().Return(int64(0), nil).Times(3)

	commitAttempt := 0
	txn.EXPECT().Commit(ctx).DoAndReturn(func(context.Context) error {
		commitAttempt++
		if commitAttempt < 3 {
			return rgerr.ErrConflict
		}
		return nil
	}).Times(3)
	txn.EXPECT().Cancel().Times(2)
	txn.EXPECT().GetCommittedVersion().Return(uint64(42), nil).Times(1)

	r := txrunner.New(db, nil, 0)
	_, err := txrunner.WithTransaction(ctx, r, txrunner.Config{RetryLimit: 5, UseGRVCache: false}, func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		return struct{}{}, txn.SetValue([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)
	require.Equal(t, 3, commitAttempt)
}

// TestWithTransactionGivesUpAfterRetryLimit stops retrying a retryable
// commit failure once RetryLimit attempts are exhausted.
func TestWithTransactionGivesUpAfterRetryLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	db := mockkv.NewMockDatabase(ctrl)
	txn := mockkv.NewMockTransaction(ctrl)

	db.EXPECT().CreateTransaction(ctx).Return(txn, nil).Times(2)
	txn.EXPECT().SetValue([]byte("k"), []byte("v")).Return(nil).Times(2)
	txn.EXPECT().GetApproximateSize().Return(int64(0), nil).Times(2)
	txn.EXPECT().Commit(ctx).Return(rgerr.ErrConflict).Times(2)
	txn.EXPECT().Cancel().Times(2)

	r := txrunner.New(db, nil, 0)
	_, err := txrunner.WithTransaction(ctx, r, txrunner.Config{RetryLimit: 2, UseGRVCache: false}, func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		return struct{}{}, txn.SetValue([]byte("k"), []byte("v"))
	})
	require.Error(t, err)
	require.True(t, rgerr.IsRetryable(err))
}
