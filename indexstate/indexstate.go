// Package indexstate implements the per-index lifecycle state machine
// (spec.md §3.1, §4.6): disabled -> write_only -> readable/removed.
// Transitions are persisted atomically with the triggering write by
// callers passing the same kv.Transaction the write itself uses.
package indexstate

import (
	"context"

	"github.com/pkg/errors"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/rgerr"
	"github.com/recordgraph/rg/tuple"
)

// State is one of the four lifecycle stages an index occupies
// (spec.md §3.1).
type State byte

const (
	Disabled State = iota
	WriteOnly
	Readable
	Removed
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case WriteOnly:
		return "write_only"
	case Readable:
		return "readable"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Store reads and writes index state under the T/<indexName> category
// (spec.md §4.1, §6.3).
type Store struct {
	Root kv.Subspace // the T/ subspace
}

func (s Store) key(indexName string) []byte {
	return s.Root.Pack(tuple.Tuple{tuple.Str(indexName)})
}

// Get returns an index's current state, defaulting to Disabled when no
// entry has ever been written (spec.md §3.2: "created in disabled").
func (s Store) Get(ctx context.Context, txn kv.Transaction, indexName string) (State, error) {
	v, err := txn.GetValue(ctx, s.key(indexName))
	if err != nil {
		return Disabled, errors.Wrapf(err, "indexstate: reading state of %q", indexName)
	}
	if v == nil {
		return Disabled, nil
	}
	if len(v) != 1 {
		return Disabled, errors.Errorf("indexstate: corrupt state record for %q", indexName)
	}
	return State(v[0]), nil
}

func (s Store) set(ctx context.Context, txn kv.Transaction, indexName string, st State) error {
	return txn.SetValue(s.key(indexName), []byte{byte(st)})
}

// Enable transitions disabled -> write_only (spec.md §4.6). It is a
// no-op if the index is already write_only or readable, and an error
// if the index has been removed.
func (s Store) Enable(ctx context.Context, txn kv.Transaction, indexName string) error {
	cur, err := s.Get(ctx, txn, indexName)
	if err != nil {
		return err
	}
	switch cur {
	case Disabled:
		return s.set(ctx, txn, indexName, WriteOnly)
	case WriteOnly, Readable:
		return nil
	default: // Removed
		return errors.Errorf("indexstate: cannot enable removed index %q", indexName)
	}
}

// MakeReadable transitions write_only -> readable (spec.md §4.6),
// called by the online indexer (G) once a build completes for every
// target. It errors if the index is not currently write_only.
func (s Store) MakeReadable(ctx context.Context, txn kv.Transaction, indexName string) error {
	cur, err := s.Get(ctx, txn, indexName)
	if err != nil {
		return err
	}
	if cur != WriteOnly {
		return errors.Errorf("indexstate: %q is %s, not write_only", indexName, cur)
	}
	return s.set(ctx, txn, indexName, Readable)
}

// Remove transitions disabled|write_only|readable -> removed (spec.md
// §4.6), and records a tombstone under S/F/<indexName> (spec.md §4.1)
// so lazy garbage collection (SPEC_FULL.md §4) knows leftover bytes
// may still need clearing.
func (s Store) Remove(ctx context.Context, txn kv.Transaction, former kv.Subspace, indexName string) error {
	if err := s.set(ctx, txn, indexName, Removed); err != nil {
		return err
	}
	return txn.SetValue(former.Pack(tuple.Tuple{tuple.Str(indexName)}), []byte{})
}

// Reset force-sets indexName back to Disabled regardless of its
// current state, used by a rebuild that discards an index's history
// and re-runs the full online build from scratch (SPEC_FULL.md §4
// "RebuildIndex: a convenience that resets an index to disabled then
// re-enables it"). Unlike Remove, Reset writes no tombstone: a
// rebuild's caller is about to repopulate the index, not retire it.
func (s Store) Reset(ctx context.Context, txn kv.Transaction, indexName string) error {
	return s.set(ctx, txn, indexName, Disabled)
}

// IsReadable reports whether readers may use this index (spec.md
// §3.1: "a reader may only use readable indexes").
func IsReadable(s State) bool { return s == Readable }

// IsMaintained reports whether writers must keep this index up to
// date (spec.md §3.1: "writers must update all write_only ∪ readable
// indexes").
func IsMaintained(s State) bool { return s == WriteOnly || s == Readable }

// RequireConfigured returns rgerr.ErrIndexNotConfigured wrapped with
// indexName if st is Removed or was never created, used by query
// planners (spec.md §6.4).
func RequireConfigured(indexName string, st State, everSeen bool) error {
	if !everSeen || st == Removed {
		return errors.Wrapf(rgerr.ErrIndexNotConfigured, "index %q", indexName)
	}
	return nil
}
