// Package rangeset implements the durable progress record for
// resumable batch work over a key range (spec.md §4.2). It is the
// continuation the online indexer (G) persists between batches so a
// crash mid-build resumes without reprocessing already-completed
// ranges, and without losing partially-completed ones.
//
// Grounded on the resumable-backfill checkpoint shape in
// _examples/other_examples/.../vazrupe-cockroach__pkg-sql-distsqlrun-indexbackfiller.go.go
// and the range-merge idiom in
// _examples/other_examples/.../cci-smoketests-cockroach__storage-range.go.go.
package rangeset

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
	"github.com/tidwall/btree"
)

// KeyRange is a half-open byte-key range [Begin, End).
type KeyRange struct {
	Begin, End []byte
}

// entry tracks one KeyRange's remaining work.
type entry struct {
	Range          KeyRange
	LastProcessed  []byte // nil until at least one batch has recorded progress
	Complete       bool
}

// RangeSet is the ordered list of ranges plus per-range progress
// (spec.md §3.1, §4.2). The zero value is not usable; use New.
type RangeSet struct {
	byBegin *btree.Map[string, *entry]
	total   int64 // byte-proportional total, for ProgressEstimate
}

// New constructs an empty RangeSet; call Init before use.
func New() *RangeSet {
	return &RangeSet{byBegin: &btree.Map[string, *entry]{}}
}

// Init seeds the set with one or more ranges, normalized and sorted by
// Begin (spec.md §4.2: "init(range) ... init(ranges) — normalized,
// sorted by begin").
func (rs *RangeSet) Init(ranges ...KeyRange) {
	rs.byBegin = &btree.Map[string, *entry]{}
	for _, r := range ranges {
		rs.byBegin.Set(string(r.Begin), &entry{Range: r})
	}
	rs.Normalize()
}

// IsEmpty reports whether every range is complete (equivalently: the
// build has no more work — spec.md §4.7 step 7: "When the range set is
// empty").
func (rs *RangeSet) IsEmpty() bool {
	empty := true
	rs.byBegin.Scan(func(_ string, e *entry) bool {
		if !e.Complete {
			empty = false
			return false
		}
		return true
	})
	return empty
}

// Bounds describes one batch's scan range, identified by its
// RangeID (here, the Begin key of the underlying range, which is
// stable across Normalize calls as long as the range itself survives).
type Bounds struct {
	RangeID    string
	Begin, End []byte
}

// NextBatchBounds returns the next incomplete range's current
// resumption point, or ok=false if every range is complete (spec.md
// §4.2). nextBatchBegin = lastProcessedKey++0x00 if present, else
// begin (spec.md §3.1 invariant).
func (rs *RangeSet) NextBatchBounds() (b Bounds, ok bool) {
	var found *entry
	var foundKey string
	rs.byBegin.Scan(func(k string, e *entry) bool {
		if !e.Complete {
			found = e
			foundKey = k
			return false
		}
		return true
	})
	if found == nil {
		return Bounds{}, false
	}
	begin := found.Range.Begin
	if found.LastProcessed != nil {
		begin = append(append([]byte{}, found.LastProcessed...), 0x00)
	}
	return Bounds{RangeID: foundKey, Begin: begin, End: found.Range.End}, true
}

// RecordProgress updates a range's last-processed key and completion
// flag after one batch transaction commits (spec.md §4.2,
// §8.1 "After `recordProgress(k, complete = (count < batchSize))`, the
// next resumption begins strictly after k").
func (rs *RangeSet) RecordProgress(rangeID string, lastKey []byte, complete bool) error {
	e, ok := rs.byBegin.Get(rangeID)
	if !ok {
		return errors.Errorf("rangeset: unknown range id %q", rangeID)
	}
	if lastKey != nil {
		e.LastProcessed = append([]byte{}, lastKey...)
	}
	if complete {
		e.Complete = true
	}
	return nil
}

// MarkRangeComplete forces a range complete, used when a batch yields
// zero records over a still-live range (spec.md §4.7 step 4).
func (rs *RangeSet) MarkRangeComplete(rangeID string) error {
	e, ok := rs.byBegin.Get(rangeID)
	if !ok {
		return errors.Errorf("rangeset: unknown range id %q", rangeID)
	}
	e.Complete = true
	return nil
}

// Normalize merges overlapping or adjacent incomplete remainders
// (spec.md §4.2). Complete ranges are left as markers (they contribute
// nothing further but are kept so ProgressEstimate remains accurate).
func (rs *RangeSet) Normalize() {
	type live struct {
		begin, end []byte
		e          *entry
	}
	var entries []live
	rs.byBegin.Scan(func(_ string, e *entry) bool {
		begin := e.Range.Begin
		if e.LastProcessed != nil {
			begin = append(append([]byte{}, e.LastProcessed...), 0x00)
		}
		entries = append(entries, live{begin: begin, end: e.Range.End, e: e})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].begin, entries[j].begin) < 0 })

	merged := &btree.Map[string, *entry]{}
	var prev *live
	for i := range entries {
		cur := entries[i]
		if prev != nil && !prev.e.Complete && !cur.e.Complete && bytes.Compare(cur.begin, prev.end) <= 0 {
			// Overlapping/adjacent incomplete ranges collapse into one.
			if bytes.Compare(cur.end, prev.end) > 0 {
				prev.end = cur.end
				prev.e.Range.End = cur.end
			}
			continue
		}
		newEntry := &entry{
			Range:         KeyRange{Begin: entries[i].e.Range.Begin, End: cur.end},
			LastProcessed: entries[i].e.LastProcessed,
			Complete:      entries[i].e.Complete,
		}
		merged.Set(string(newEntry.Range.Begin), newEntry)
		prev = &live{begin: cur.begin, end: cur.end, e: newEntry}
	}
	rs.byBegin = merged
}

// ProgressEstimate returns a byte-proportional completion fraction in
// [0,1], used to surface build progress to callers (spec.md §4.2).
func (rs *RangeSet) ProgressEstimate(sizeOf func(begin, end []byte) int64) float64 {
	var total, done int64
	rs.byBegin.Scan(func(_ string, e *entry) bool {
		full := sizeOf(e.Range.Begin, e.Range.End)
		total += full
		if e.Complete {
			done += full
		} else if e.LastProcessed != nil {
			done += sizeOf(e.Range.Begin, e.LastProcessed)
		}
		return true
	})
	if total == 0 {
		return 1
	}
	return float64(done) / float64(total)
}

// --- Encoding ---
//
// The encoding is an opaque, versioned, self-describing blob (spec.md
// §4.2): a version byte followed by a count and, per range, Begin/End/
// LastProcessed (length-prefixed) and a completion flag.

const encodingVersion byte = 1

// Encode serializes the RangeSet to its durable continuation form.
func (rs *RangeSet) Encode() []byte {
	var buf []byte
	buf = append(buf, encodingVersion)
	var count uint32
	rs.byBegin.Scan(func(_ string, _ *entry) bool { count++; return true })
	buf = appendUint32(buf, count)
	rs.byBegin.Scan(func(_ string, e *entry) bool {
		buf = appendBytes(buf, e.Range.Begin)
		buf = appendBytes(buf, e.Range.End)
		buf = appendBytes(buf, e.LastProcessed)
		if e.Complete {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		return true
	})
	return buf
}

// Decode parses a blob produced by Encode.
func Decode(b []byte) (*RangeSet, error) {
	if len(b) == 0 {
		return New(), nil
	}
	if b[0] != encodingVersion {
		return nil, errors.Errorf("rangeset: unsupported encoding version %d", b[0])
	}
	b = b[1:]
	count, b, err := readUint32(b)
	if err != nil {
		return nil, err
	}
	rs := New()
	for i := uint32(0); i < count; i++ {
		var begin, end, lastProcessed []byte
		begin, b, err = readBytes(b)
		if err != nil {
			return nil, err
		}
		end, b, err = readBytes(b)
		if err != nil {
			return nil, err
		}
		lastProcessed, b, err = readBytes(b)
		if err != nil {
			return nil, err
		}
		if len(b) == 0 {
			return nil, errors.New("rangeset: truncated completion flag")
		}
		complete := b[0] == 1
		b = b[1:]
		e := &entry{Range: KeyRange{Begin: begin, End: end}, LastProcessed: lastProcessed, Complete: complete}
		rs.byBegin.Set(string(begin), e)
	}
	return rs, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, errors.New("rangeset: truncated uint32")
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}

func appendBytes(buf, b []byte) []byte {
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func readBytes(b []byte) ([]byte, []byte, error) {
	n, b, err := readUint32(b)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(b)) < n {
		return nil, nil, errors.New("rangeset: truncated byte field")
	}
	if n == 0 {
		return nil, b, nil
	}
	return append([]byte{}, b[:n]...), b[n:], nil
}
