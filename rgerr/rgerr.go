// Package rgerr defines the error taxonomy (spec.md §6.4, §7). Kinds,
// not concrete type names, are what callers are expected to match on
// via errors.Is.
package rgerr

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel kinds. Wrap with errors.Wrap/Wrapf for context; compare
// with errors.Is.
var (
	ErrConcurrentSaveNotAllowed = errors.New("rgerr: a save is already in flight on this context")
	ErrExhaustedRetries         = errors.New("rgerr: transaction retry limit exhausted")
	ErrIndexNotConfigured       = errors.New("rgerr: index not configured")
	ErrInvalidPattern           = errors.New("rgerr: invalid query pattern")
	ErrVariableConflict         = errors.New("rgerr: variable bound to incompatible types")
	ErrNoPatterns               = errors.New("rgerr: query has no patterns")
	ErrInvalidGroupBy           = errors.New("rgerr: invalid GROUP BY")
	ErrCannotConvertSelectQuery = errors.New("rgerr: cannot convert SELECT query")
	ErrUnsupportedExpression    = errors.New("rgerr: unsupported expression")
	ErrIncompatibleLiteralType  = errors.New("rgerr: incompatible literal type")
	ErrKeyTooLarge              = errors.New("rgerr: packed key exceeds KV key size limit")
	ErrFormatVersionTooOld      = errors.New("rgerr: stored format version is older than the minimum supported version")
	ErrFormatVersionTooNew      = errors.New("rgerr: stored format version is newer than this code's current version")
	ErrFormatMajorMismatch      = errors.New("rgerr: stored format major version does not match code's major version")
	ErrFormatUpgradeFailed      = errors.New("rgerr: format version upgrade failed")
)

// ModelNotFound indicates a record type has no registered descriptor.
type ModelNotFound struct{ TypeName string }

func (e *ModelNotFound) Error() string { return fmt.Sprintf("rgerr: model not found: %s", e.TypeName) }

// IndexNotFound indicates a query referenced an index by a name that
// is not registered for the record type.
type IndexNotFound struct{ Name string }

func (e *IndexNotFound) Error() string { return fmt.Sprintf("rgerr: index not found: %s", e.Name) }

// TransactionTooLarge is raised when a transaction's approximate size
// crosses the hard limit (spec.md §4.8 step 5, §7).
type TransactionTooLarge struct {
	CurrentSize int64
	Limit       int64
	Hint        string
}

func (e *TransactionTooLarge) Error() string {
	return fmt.Sprintf("rgerr: transaction too large: %d bytes exceeds limit %d bytes (%s)", e.CurrentSize, e.Limit, e.Hint)
}

// IsRetryable reports whether err should be retried by the transaction
// runner (spec.md §4.3). It recognizes the named retryable classes
// plus anything the KV driver itself flags retryable via the
// Retryable interface.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrTransactionTooOld) ||
		errors.Is(err, ErrFutureVersion) ||
		errors.Is(err, ErrNotCommitted) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Retryable KV-driver error classes (spec.md §4.3).
var (
	ErrTimeout           = errors.New("rgerr: operation timed out")
	ErrConflict          = errors.New("rgerr: transaction conflict")
	ErrTransactionTooOld = errors.New("rgerr: transaction too old")
	ErrFutureVersion     = errors.New("rgerr: future version requested")
	ErrNotCommitted      = errors.New("rgerr: transaction not committed, outcome unknown")
)

// RetryableError wraps any error with an explicit retryable flag, for
// KV driver implementations that want to flag arbitrary failures
// without reusing the named sentinels above.
type RetryableError struct {
	Err       error
	retryable bool
}

func (e *RetryableError) Error() string   { return e.Err.Error() }
func (e *RetryableError) Unwrap() error   { return e.Err }
func (e *RetryableError) Retryable() bool { return e.retryable }

// NewRetryable wraps err as retryable.
func NewRetryable(err error) error { return &RetryableError{Err: err, retryable: true} }
