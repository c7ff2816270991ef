// Package session implements the Write Session / Context (H, spec.md
// §4.8): buffered insert/delete calls grouped by record type, a single
// grouped-write transaction per save() with atomic secondary-index
// maintenance, transaction size policing, and an autosave debounce.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/recordgraph/rg/indexstate"
	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/maintainer"
	"github.com/recordgraph/rg/rgerr"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/tuple"
	"github.com/recordgraph/rg/txrunner"
)

// Store bundles the dependencies a Context needs to resolve types,
// maintain indexes, and commit (the non-owning references described in
// spec.md §9 Design Notes: "contexts hold a non-owning reference to
// the container").
type Store struct {
	Runner     *txrunner.Runner
	Registry   *schema.Registry
	Dirs       *kv.DirectoryCache
	IndexState indexstate.Store
	Logger     *slog.Logger
}

type pendingKey struct {
	typeName string
	id       string // packed tuple, used as a map key
}

// pendingWrite is either an inserted record (Record != nil) or a
// deletion marker (Record == nil, IsDelete true).
type pendingWrite struct {
	typeName string
	id       tuple.Tuple
	record   any
	isDelete bool
}

// Context accumulates insert/delete calls until save() or rollback()
// (spec.md §3.1 "WriteSession state", §4.8).
type Context struct {
	store *Store

	mu         sync.Mutex
	pending    map[pendingKey]pendingWrite
	isSaving   bool
	savedGen   int

	autosave        bool
	autosaveTimer   *time.Timer
	autosaveHandler func(error)
	autosaveDebounce time.Duration
}

// NewContext returns a fresh Context over store (spec.md §6.2
// "Container.newContext(autosave?) -> Context").
func NewContext(store *Store, autosave bool) *Context {
	c := &Context{
		store:            store,
		pending:          make(map[pendingKey]pendingWrite),
		autosave:         autosave,
		autosaveDebounce: 10 * time.Millisecond,
	}
	return c
}

// OnAutosaveError sets the handler invoked when a scheduled autosave
// fails; autosave is disabled after any such failure (spec.md §4.8:
// "Autosave failures invoke an optional handler and disable autosave
// to avoid loops").
func (c *Context) OnAutosaveError(h func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autosaveHandler = h
}

func (c *Context) identify(record any) (typeName string, id tuple.Tuple, err error) {
	for _, name := range c.store.Registry.TypeNames() {
		d, _ := c.store.Registry.Lookup(name)
		if idTuple, idErr := d.ID(record); idErr == nil {
			// ID() type-asserts internally and returns an error for the
			// wrong type, so a nil error here means record matches this
			// descriptor's type.
			return name, idTuple, nil
		}
	}
	return "", nil, errors.Errorf("session: no registered record type accepts %T", record)
}

// Insert schedules record for upsert, overriding any pending delete of
// the same key (spec.md §3.1, §4.8: "insert of a key overrides and
// removes any pending delete of the same key").
func (c *Context) Insert(record any) error {
	typeName, id, err := c.identify(record)
	if err != nil {
		return err
	}
	key := pendingKey{typeName, string(tuple.Pack(id))}
	c.mu.Lock()
	c.pending[key] = pendingWrite{typeName: typeName, id: id, record: record}
	c.mu.Unlock()
	c.maybeScheduleAutosave()
	return nil
}

// Delete schedules record's id for removal, overriding any pending
// insert of the same key.
func (c *Context) Delete(record any) error {
	typeName, id, err := c.identify(record)
	if err != nil {
		return err
	}
	key := pendingKey{typeName, string(tuple.Pack(id))}
	c.mu.Lock()
	c.pending[key] = pendingWrite{typeName: typeName, id: id, isDelete: true}
	c.mu.Unlock()
	c.maybeScheduleAutosave()
	return nil
}

// Rollback discards every pending write without touching storage.
func (c *Context) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[pendingKey]pendingWrite)
	if c.autosaveTimer != nil {
		c.autosaveTimer.Stop()
	}
}

func (c *Context) maybeScheduleAutosave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.autosave {
		return
	}
	if c.autosaveTimer != nil {
		c.autosaveTimer.Stop()
	}
	c.autosaveTimer = time.AfterFunc(c.autosaveDebounce, func() {
		if err := c.Save(context.Background()); err != nil {
			c.mu.Lock()
			handler := c.autosaveHandler
			c.autosave = false // disable to avoid loops (spec.md §4.8)
			c.mu.Unlock()
			if handler != nil {
				handler(err)
			}
		}
	})
}

// Save commits every pending insert/delete in one transaction, grouped
// by type, maintaining every write_only|readable index alongside each
// record write (spec.md §4.8 step 4). On any error the pending maps
// are restored to their pre-save snapshot so the caller may retry
// (spec.md §7, §8.1).
func (c *Context) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.isSaving {
		c.mu.Unlock()
		return errors.Wrap(rgerr.ErrConcurrentSaveNotAllowed, "session: save already in flight")
	}
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	c.isSaving = true
	snapshot := c.pending
	c.pending = make(map[pendingKey]pendingWrite)
	c.mu.Unlock()

	byType := make(map[string][]pendingWrite, 4)
	for _, w := range snapshot {
		byType[w.typeName] = append(byType[w.typeName], w)
	}

	cfg := txrunner.DefaultConfig()
	_, err := txrunner.WithTransaction(ctx, c.store.Runner, cfg, func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		for typeName, writes := range byType {
			if err := c.applyType(ctx, txn, typeName, writes); err != nil {
				return struct{}{}, err
			}
			if size, sizeErr := txn.GetApproximateSize(); sizeErr == nil {
				if size >= kv.HardTransactionSize {
					return struct{}{}, errors.Wrap(&rgerr.TransactionTooLarge{
						CurrentSize: size, Limit: kv.HardTransactionSize, Hint: "split the save across smaller batches",
					}, "session: transaction too large")
				}
				if size >= kv.WarnTransactionSize && c.store.Logger != nil {
					c.store.Logger.Warn("session: large save transaction", "size", size)
				}
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		c.mu.Lock()
		// Merge the snapshot back in front of anything queued meanwhile.
		for k, w := range snapshot {
			if _, stillPending := c.pending[k]; !stillPending {
				c.pending[k] = w
			}
		}
		c.isSaving = false
		c.mu.Unlock()
		return err
	}
	c.mu.Lock()
	c.isSaving = false
	c.savedGen++
	c.mu.Unlock()
	return nil
}

func (c *Context) applyType(ctx context.Context, txn kv.Transaction, typeName string, writes []pendingWrite) error {
	descriptor, ok := c.store.Registry.Lookup(typeName)
	if !ok {
		return errors.Wrapf(&rgerr.ModelNotFound{TypeName: typeName}, "session")
	}
	recordSub := c.store.Dirs.CreateOrOpen(kv.CategoryRecord, typeName)
	maintainers := make([]*maintainer.Maintainer, 0, len(descriptor.Indexes()))
	for _, idx := range descriptor.Indexes() {
		st, err := c.store.IndexState.Get(ctx, txn, idx.Name)
		if err != nil {
			return err
		}
		if !indexstate.IsMaintained(st) {
			continue
		}
		idxSub := c.store.Dirs.CreateOrOpen(kv.CategoryIndex, idx.Name)
		maintainers = append(maintainers, maintainer.New(idx, idxSub))
	}

	for _, w := range writes {
		key := recordSub.Pack(w.id)
		oldBytes, err := txn.GetValue(ctx, key)
		if err != nil {
			return errors.Wrapf(err, "session: reading old value for %s", typeName)
		}
		var oldRecord any
		if oldBytes != nil {
			oldRecord, err = descriptor.Decode(oldBytes)
			if err != nil {
				return errors.Wrapf(err, "session: decoding old value for %s", typeName)
			}
		}
		if w.isDelete {
			if oldRecord != nil {
				if err := txn.Clear(key); err != nil {
					return err
				}
				for _, m := range maintainers {
					if err := m.DeleteEntries(ctx, txn, oldRecord, w.id); err != nil {
						return err
					}
				}
			}
			continue
		}
		newBytes, err := descriptor.Encode(w.record)
		if err != nil {
			return errors.Wrapf(err, "session: encoding %s", typeName)
		}
		if err := txn.SetValue(key, newBytes); err != nil {
			return err
		}
		for _, m := range maintainers {
			if err := m.Replace(ctx, txn, oldRecord, w.record, w.id); err != nil {
				return err
			}
		}
	}
	return nil
}
