// Package memkv is a reference in-memory implementation of the kv
// interfaces (spec.md §6.1), used by the core's own tests and by
// example programs. It is not a production KV store: durability and
// distribution are explicitly delegated to the KV collaborator
// (spec.md §1 Non-goals); this package exists only to give the rest of
// the module something concrete, ordered, and transactional to run
// against.
//
// Ordering is provided by github.com/google/btree, giving real
// getRange/prefix-scan semantics instead of a sorted-slice rescan on
// every operation (SPEC_FULL.md §2 domain stack table).
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/rgerr"
)

type item struct {
	key, value []byte
}

func (a *item) Less(b btree.Item) bool {
	return bytes.Compare(a.key, b.(*item).key) < 0
}

// Store is the in-memory database. The zero value is not usable; use
// New.
type Store struct {
	mu       sync.RWMutex
	tree     *btree.BTree
	version  uint64
	watchers map[string][]chan struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{tree: btree.New(32), watchers: make(map[string][]chan struct{})}
}

func (s *Store) CreateTransaction(ctx context.Context) (kv.Transaction, error) {
	s.mu.RLock()
	snapshot := s.tree.Clone()
	version := s.version
	s.mu.RUnlock()
	return &txn{store: s, snapshot: snapshot, readVersion: version, writes: make(map[string][]byte), clears: make(map[string]bool)}, nil
}

func (s *Store) EstimatedSize(ctx context.Context, begin, end []byte) (int64, error) {
	var total int64
	s.mu.RLock()
	s.tree.AscendRange(&item{key: begin}, &item{key: end}, func(i btree.Item) bool {
		it := i.(*item)
		total += int64(len(it.key) + len(it.value))
		return true
	})
	s.mu.RUnlock()
	return total, nil
}

type txn struct {
	store       *Store
	snapshot    *btree.BTree
	readVersion uint64
	committed   atomic.Bool
	writes      map[string][]byte
	clears      map[string]bool
	clearRanges [][2][]byte
}

func (t *txn) SetReadVersion(version uint64) { t.readVersion = version }

func (t *txn) GetValue(ctx context.Context, key []byte) ([]byte, error) {
	k := string(key)
	if t.clears[k] {
		return nil, nil
	}
	if v, ok := t.writes[k]; ok {
		return v, nil
	}
	if it := t.snapshot.Get(&item{key: key}); it != nil {
		v := it.(*item).value
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp, nil
	}
	return nil, nil
}

func (t *txn) SetValue(key, value []byte) error {
	k := string(key)
	delete(t.clears, k)
	cp := make([]byte, len(value))
	copy(cp, value)
	t.writes[k] = cp
	return nil
}

func (t *txn) Clear(key []byte) error {
	k := string(key)
	delete(t.writes, k)
	t.clears[k] = true
	return nil
}

func (t *txn) ClearRange(begin, end []byte) error {
	t.clearRanges = append(t.clearRanges, [2][]byte{begin, end})
	t.snapshot.AscendRange(&item{key: begin}, &item{key: end}, func(i btree.Item) bool {
		t.clears[string(i.(*item).key)] = true
		return true
	})
	for k := range t.writes {
		kb := []byte(k)
		if bytes.Compare(kb, begin) >= 0 && bytes.Compare(kb, end) < 0 {
			delete(t.writes, k)
		}
	}
	return nil
}

func (t *txn) GetRange(ctx context.Context, begin, end []byte, mode kv.StreamingMode, yield func(kv.KeyValue) (bool, error)) error {
	// Merge the snapshot with this transaction's own pending writes so
	// a write-then-read-range within one transaction is consistent.
	merged := map[string][]byte{}
	t.snapshot.AscendRange(&item{key: begin}, &item{key: end}, func(i btree.Item) bool {
		it := i.(*item)
		merged[string(it.key)] = it.value
		return true
	})
	for k, v := range t.writes {
		kb := []byte(k)
		if bytes.Compare(kb, begin) >= 0 && bytes.Compare(kb, end) < 0 {
			merged[k] = v
		}
	}
	for k := range t.clears {
		delete(merged, k)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		cont, err := yield(kv.KeyValue{Key: []byte(k), Value: merged[k]})
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (t *txn) GetCommittedVersion() (uint64, error) { return t.readVersion, nil }

func (t *txn) GetApproximateSize() (int64, error) {
	var n int64
	for k, v := range t.writes {
		n += int64(len(k) + len(v))
	}
	for k := range t.clears {
		n += int64(len(k))
	}
	return n, nil
}

func (t *txn) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.readVersion != 0 && t.readVersion < t.store.version {
		// Optimistic check: a stale read version combined with any
		// write is treated as a conflict, matching strict-serializable
		// KV stores' behavior under contention (spec.md §4.3).
		if len(t.writes) > 0 || len(t.clears) > 0 {
			return rgerr.NewRetryable(rgerr.ErrConflict)
		}
	}
	for _, r := range t.clearRanges {
		t.store.tree.AscendRange(&item{key: r[0]}, &item{key: r[1]}, func(i btree.Item) bool {
			t.store.tree.Delete(i)
			return true
		})
	}
	for k := range t.clears {
		t.store.tree.Delete(&item{key: []byte(k)})
	}
	var touched [][]byte
	for k, v := range t.writes {
		t.store.tree.ReplaceOrInsert(&item{key: []byte(k), value: v})
		touched = append(touched, []byte(k))
	}
	t.store.version++
	t.readVersion = t.store.version
	for _, k := range touched {
		t.store.fireWatchersLocked(k)
	}
	t.committed.Store(true)
	return nil
}

func (t *txn) Cancel() {}

func (t *txn) Watch(ctx context.Context, key []byte) error {
	ch := make(chan struct{}, 1)
	t.store.mu.Lock()
	t.store.watchers[string(key)] = append(t.store.watchers[string(key)], ch)
	t.store.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) fireWatchersLocked(key []byte) {
	k := string(key)
	for _, ch := range s.watchers[k] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	delete(s.watchers, k)
}
