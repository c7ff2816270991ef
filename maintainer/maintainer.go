// Package maintainer implements the Index Maintainer (F, spec.md
// §4.5): for one record type and one index, it derives index entries
// from a record's value and adds/removes them atomically alongside
// the record write. It is the only component allowed to write under
// an index's I/<name>/... subspace.
package maintainer

import (
	"context"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/rgerr"
	"github.com/recordgraph/rg/schema"
	"github.com/recordgraph/rg/tuple"
)

// MaxIndexKeySize is the KV collaborator's key-size limit index
// entries are policed against (spec.md §4.5, kv.MaxKeySize).
const MaxIndexKeySize = datasize.ByteSize(kv.MaxKeySize)

// Maintainer derives and writes/clears the entries of one index
// (spec.md §4.5). Root is the index's own subspace, already resolved
// via the directory cache (kv.DirectoryCache).
type Maintainer struct {
	Descriptor *schema.IndexDescriptor
	Root       kv.Subspace
}

// New returns a Maintainer for idx rooted at root.
func New(idx *schema.IndexDescriptor, root kv.Subspace) *Maintainer {
	return &Maintainer{Descriptor: idx, Root: root}
}

// InsertEntries derives entries from record and writes them (spec.md
// §4.5). Entries whose packed key exceeds the KV key-size limit are
// rejected with rgerr.ErrKeyTooLarge rather than silently truncated or
// dropped, since a silently-missing entry would violate the index
// invariant (spec.md §8.1).
func (m *Maintainer) InsertEntries(ctx context.Context, txn kv.Transaction, record any, id tuple.Tuple) error {
	entries, err := m.Descriptor.PackedEntries(record, id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		key := m.Root.Pack(e)
		if datasize.ByteSize(len(key)) > MaxIndexKeySize {
			return errors.Wrapf(rgerr.ErrKeyTooLarge, "index %q entry key is %s, limit %s", m.Descriptor.Name, datasize.ByteSize(len(key)), MaxIndexKeySize)
		}
		if err := txn.SetValue(key, nil); err != nil {
			return errors.Wrapf(err, "maintainer: writing entry for index %q", m.Descriptor.Name)
		}
	}
	return nil
}

// DeleteEntries derives entries from oldRecord and clears them
// (spec.md §4.5), the symmetric counterpart of InsertEntries.
func (m *Maintainer) DeleteEntries(ctx context.Context, txn kv.Transaction, oldRecord any, id tuple.Tuple) error {
	entries, err := m.Descriptor.PackedEntries(oldRecord, id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		key := m.Root.Pack(e)
		if err := txn.Clear(key); err != nil {
			return errors.Wrapf(err, "maintainer: clearing entry for index %q", m.Descriptor.Name)
		}
	}
	return nil
}

// ScanItem is the background variant used by the online indexer (G):
// behaviorally identical to InsertEntries for the build phase (spec.md
// §4.5), named separately because callers reach it from a batch scan
// rather than a write-session save.
func (m *Maintainer) ScanItem(ctx context.Context, txn kv.Transaction, record any, id tuple.Tuple) error {
	return m.InsertEntries(ctx, txn, record, id)
}

// Replace clears oldRecord's entries (if any) and inserts newRecord's,
// the combined operation a write session performs per changed record
// per maintained index (spec.md §4.8 step 4).
func (m *Maintainer) Replace(ctx context.Context, txn kv.Transaction, oldRecord, newRecord any, id tuple.Tuple) error {
	if oldRecord != nil {
		if err := m.DeleteEntries(ctx, txn, oldRecord, id); err != nil {
			return err
		}
	}
	if newRecord != nil {
		if err := m.InsertEntries(ctx, txn, newRecord, id); err != nil {
			return err
		}
	}
	return nil
}
