// Package kv declares the interfaces the core consumes from the
// ordered, transactional key-value collaborator (spec.md §6.1). The
// core never assumes a concrete backend; it is tested against
// kv/memkv, an in-memory reference implementation.
package kv

import (
	"context"
)

// Size limits the KV collaborator is assumed to enforce (spec.md §1,
// §4.8, §7), as plain byte counts; maintainer wraps MaxKeySize in a
// datasize.ByteSize for its error messages.
const (
	MaxKeySize         = 10 * 1024         // ~10 kB
	MaxValueSize       = 100 * 1024        // ~100 kB
	MaxTransactionSize = 10 * 1024 * 1024  // ~10 MB
	WarnTransactionSize = 8 * 1024 * 1024  // warn threshold, §4.8
	HardTransactionSize = 9_500_000        // fail threshold, §4.8
)

// KeyValue is one entry returned by a range scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// StreamingMode hints at how eagerly a range scan should prefetch, akin
// to the KV collaborator's streaming modes (spec.md §6.1).
type StreamingMode int

const (
	StreamingModeIterator StreamingMode = iota
	StreamingModeWantAll
	StreamingModeExact
)

// Transaction is one strict-serializable unit of work against the KV
// store (spec.md §6.1). Not safe for concurrent use by more than one
// goroutine at a time (spec.md §5 "Transaction discipline").
type Transaction interface {
	GetValue(ctx context.Context, key []byte) ([]byte, error)
	SetValue(key, value []byte) error
	Clear(key []byte) error
	ClearRange(begin, end []byte) error

	// GetRange streams key-value pairs in [begin, end) in key order,
	// invoking yield for each. Returning false from yield stops the
	// scan early without an error.
	GetRange(ctx context.Context, begin, end []byte, mode StreamingMode, yield func(KeyValue) (bool, error)) error

	SetReadVersion(version uint64)
	GetCommittedVersion() (uint64, error)
	GetApproximateSize() (int64, error)

	// Commit attempts to commit the transaction. A false result with a
	// nil error never occurs; failures are always returned as errors,
	// classified by IsRetryable.
	Commit(ctx context.Context) error
	Cancel()

	// Watch resolves when the value at key changes, or ctx is done.
	Watch(ctx context.Context, key []byte) error
}

// Database opens transactions against one KV store instance.
type Database interface {
	CreateTransaction(ctx context.Context) (Transaction, error)
	// EstimatedSize reports an approximate byte size for [begin, end).
	EstimatedSize(ctx context.Context, begin, end []byte) (int64, error)
}

// RetryClassifier recognizes the KV driver's retryable error classes
// (spec.md §4.3, §7). The KV collaborator's own errors are expected to
// implement this via IsRetryable, but the classifier also recognizes
// the sentinel errors in rgerr by name so higher layers can wrap.
type RetryClassifier interface {
	IsRetryable(err error) bool
}
