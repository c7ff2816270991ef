package session

import (
	"context"

	"github.com/pkg/errors"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/rgerr"
	"github.com/recordgraph/rg/tuple"
	"github.com/recordgraph/rg/txrunner"
)

// Fetch returns storage results for typeName merged with this
// context's pending operations: pending deletes are filtered out,
// pending inserts are unioned in, and the result is deduplicated by id
// (spec.md §4.8: "fetch(query) returns storage results merged with
// pending operations"). predicate may be nil to return every record.
func (c *Context) Fetch(ctx context.Context, typeName string, predicate func(record any) bool) ([]any, error) {
	descriptor, ok := c.store.Registry.Lookup(typeName)
	if !ok {
		return nil, errors.Wrapf(&rgerr.ModelNotFound{TypeName: typeName}, "session")
	}
	recordSub := c.store.Dirs.CreateOrOpen(kv.CategoryRecord, typeName)

	c.mu.Lock()
	deleted := make(map[string]bool)
	inserted := make(map[string]any)
	for k, w := range c.pending {
		if k.typeName != typeName {
			continue
		}
		if w.isDelete {
			deleted[k.id] = true
		} else {
			inserted[k.id] = w.record
		}
	}
	c.mu.Unlock()

	var out []any
	seen := make(map[string]bool)
	_, err := txrunner.WithTransaction(ctx, c.store.Runner, txrunner.DefaultConfig(), func(ctx context.Context, txn kv.Transaction) (struct{}, error) {
		begin, end := recordSub.Range()
		scanErr := txn.GetRange(ctx, begin, end, kv.StreamingModeIterator, func(kvp kv.KeyValue) (bool, error) {
			t, err := recordSub.Unpack(kvp.Key)
			if err != nil {
				return false, err
			}
			idKey := string(tuple.Pack(t))
			if deleted[idKey] {
				return true, nil
			}
			seen[idKey] = true
			if ins, ok := inserted[idKey]; ok {
				if predicate == nil || predicate(ins) {
					out = append(out, ins)
				}
				return true, nil
			}
			record, err := descriptor.Decode(kvp.Value)
			if err != nil {
				return false, err
			}
			if predicate == nil || predicate(record) {
				out = append(out, record)
			}
			return true, nil
		})
		return struct{}{}, scanErr
	})
	if err != nil {
		return nil, err
	}
	for idKey, record := range inserted {
		if seen[idKey] {
			continue
		}
		if predicate == nil || predicate(record) {
			out = append(out, record)
		}
	}
	return out, nil
}

// Enumerate streams every record of typeName merged with pending
// writes, i.e. Fetch without a predicate (spec.md §6.2 "enumerate";
// SPEC_FULL.md §4: "defined as fetch without a query predicate").
func (c *Context) Enumerate(ctx context.Context, typeName string) ([]any, error) {
	return c.Fetch(ctx, typeName, nil)
}

// PerformAndSave runs fn against this context and, if it succeeds,
// calls Save (spec.md §6.2 "performAndSave").
func (c *Context) PerformAndSave(ctx context.Context, fn func(*Context) error) error {
	if err := fn(c); err != nil {
		return err
	}
	return c.Save(ctx)
}
