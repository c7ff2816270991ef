// Package format implements the compatibility gate on store open
// (spec.md §4.4): a (major, minor, patch) triple with total order,
// checked against a minimum-supported and a current (code) version.
package format

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/recordgraph/rg/kv"
	"github.com/recordgraph/rg/rgerr"
)

// Version is a (major, minor, patch) triple with total order.
type Version struct {
	Major, Minor, Patch int32
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than other.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return cmp32(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmp32(v.Minor, other.Minor)
	}
	return cmp32(v.Patch, other.Patch)
}

func cmp32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Version) Less(other Version) bool    { return v.Compare(other) < 0 }
func (v Version) Equal(other Version) bool   { return v.Compare(other) == 0 }

// ToBytes encodes v as three big-endian int32s (spec.md §6.3).
func (v Version) ToBytes() []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], uint32(v.Major))
	binary.BigEndian.PutUint32(b[4:8], uint32(v.Minor))
	binary.BigEndian.PutUint32(b[8:12], uint32(v.Patch))
	return b
}

// FromBytes is the inverse of ToBytes (spec.md §8.2 round-trip law).
func FromBytes(b []byte) (Version, error) {
	if len(b) != 12 {
		return Version{}, errors.Errorf("format: expected 12-byte version, got %d", len(b))
	}
	return Version{
		Major: int32(binary.BigEndian.Uint32(b[0:4])),
		Minor: int32(binary.BigEndian.Uint32(b[4:8])),
		Patch: int32(binary.BigEndian.Uint32(b[8:12])),
	}, nil
}

// Manager gates store open against a code-declared current version and
// minimum-supported version (spec.md §4.4).
type Manager struct {
	Current           Version
	MinimumSupported  Version
	VersionKey        []byte
	Upgrade           func(ctx context.Context, from, to Version, txn kv.Transaction) error
}

// Open reads the stored version and enforces the compatibility gate.
// If absent, it writes Current. If stale but compatible (same major,
// older), it invokes Upgrade and writes Current.
func (m *Manager) Open(ctx context.Context, txn kv.Transaction) error {
	existing, err := txn.GetValue(ctx, m.VersionKey)
	if err != nil {
		return errors.Wrap(err, "format: reading stored version")
	}
	if existing == nil {
		return txn.SetValue(m.VersionKey, m.Current.ToBytes())
	}
	stored, err := FromBytes(existing)
	if err != nil {
		return errors.Wrap(err, "format: decoding stored version")
	}
	switch {
	case stored.Less(m.MinimumSupported):
		return errors.Wrapf(rgerr.ErrFormatVersionTooOld, "stored %+v < minimum supported %+v", stored, m.MinimumSupported)
	case m.Current.Less(stored):
		return errors.Wrapf(rgerr.ErrFormatVersionTooNew, "stored %+v > current %+v", stored, m.Current)
	case stored.Major != m.Current.Major:
		return errors.Wrapf(rgerr.ErrFormatMajorMismatch, "stored major %d != current major %d", stored.Major, m.Current.Major)
	case stored.Less(m.Current):
		if m.Upgrade != nil {
			if err := m.Upgrade(ctx, stored, m.Current, txn); err != nil {
				return errors.Wrapf(rgerr.ErrFormatUpgradeFailed, "%v", err)
			}
		}
		return txn.SetValue(m.VersionKey, m.Current.ToBytes())
	default:
		return nil
	}
}

// CanUpgradeOnline reports whether an online (no-downtime) upgrade
// path exists between from and to: same major version (spec.md §4.4).
func CanUpgradeOnline(from, to Version) bool { return from.Major == to.Major }
