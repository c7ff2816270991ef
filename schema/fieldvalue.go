// Package schema declares the record type / index descriptor
// capability set (spec.md §9), and FieldValue, the typed value used
// throughout the SPARQL evaluator (spec.md §4.11.2).
package schema

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/recordgraph/rg/tuple"
)

// Kind enumerates FieldValue's variants (spec.md §4.11.2: "null, bool,
// int64, double, string, data, array").
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindDouble
	KindString
	KindData
	KindArray
)

// FieldValue is the typed value carried by SPARQL solutions and record
// fields. Exactly one of the typed fields is meaningful, selected by
// Kind.
type FieldValue struct {
	Kind   Kind
	Bool   bool
	Int64  int64
	Double float64
	String string
	Data   []byte
	Array  []FieldValue
}

func Null() FieldValue              { return FieldValue{Kind: KindNull} }
func Bool(b bool) FieldValue        { return FieldValue{Kind: KindBool, Bool: b} }
func Int64(i int64) FieldValue      { return FieldValue{Kind: KindInt64, Int64: i} }
func Double(f float64) FieldValue   { return FieldValue{Kind: KindDouble, Double: f} }
func String(s string) FieldValue    { return FieldValue{Kind: KindString, String: s} }
func Data(b []byte) FieldValue      { return FieldValue{Kind: KindData, Data: b} }
func Array(vs ...FieldValue) FieldValue { return FieldValue{Kind: KindArray, Array: vs} }

func (v FieldValue) IsNull() bool { return v.Kind == KindNull }

// isNumeric reports whether v is int64 or double.
func (v FieldValue) isNumeric() bool { return v.Kind == KindInt64 || v.Kind == KindDouble }

func (v FieldValue) asFloat() (float64, bool) {
	switch v.Kind {
	case KindInt64:
		return float64(v.Int64), true
	case KindDouble:
		return v.Double, true
	default:
		return 0, false
	}
}

// Equal implements spec.md §4.11.2's cross-type numeric equality:
// int64(n) == double(x) iff x is finite and (double)n == x. Arrays
// compare element-wise.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.isNumeric() && other.isNumeric() {
		if v.Kind == KindInt64 && other.Kind == KindInt64 {
			return v.Int64 == other.Int64
		}
		a, _ := v.asFloat()
		b, _ := other.asFloat()
		if math.IsNaN(a) || math.IsNaN(b) {
			return false
		}
		return a == b
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindString:
		return v.String == other.String
	case KindData:
		if len(v.Data) != len(other.Data) {
			return false
		}
		for i := range v.Data {
			if v.Data[i] != other.Data[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Ordering is the tri-state result of Compare.
type Ordering int

const (
	LT Ordering = -1
	EQ Ordering = 0
	GT Ordering = 1
)

// typeRank gives a deterministic fallback order across incomparable
// kinds (spec.md §4.11.6: "incomparable types tie-break via a
// deterministic type order").
func (k Kind) typeRank() int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt64, KindDouble:
		return 2
	case KindString:
		return 3
	case KindData:
		return 4
	case KindArray:
		return 5
	default:
		return 6
	}
}

// Compare returns the ordering between v and other, or ok=false if the
// pair is incomparable (spec.md §4.11.2: "returns none for
// incomparable types").
func (v FieldValue) Compare(other FieldValue) (ord Ordering, ok bool) {
	if v.isNumeric() && other.isNumeric() {
		a, _ := v.asFloat()
		b, _ := other.asFloat()
		if math.IsNaN(a) || math.IsNaN(b) {
			return 0, false
		}
		switch {
		case a < b:
			return LT, true
		case a > b:
			return GT, true
		default:
			return EQ, true
		}
	}
	if v.Kind != other.Kind {
		return 0, false
	}
	switch v.Kind {
	case KindNull:
		return EQ, true
	case KindBool:
		if v.Bool == other.Bool {
			return EQ, true
		}
		if !v.Bool {
			return LT, true
		}
		return GT, true
	case KindString:
		switch {
		case v.String < other.String:
			return LT, true
		case v.String > other.String:
			return GT, true
		default:
			return EQ, true
		}
	case KindData:
		n := len(v.Data)
		if len(other.Data) < n {
			n = len(other.Data)
		}
		for i := 0; i < n; i++ {
			if v.Data[i] != other.Data[i] {
				if v.Data[i] < other.Data[i] {
					return LT, true
				}
				return GT, true
			}
		}
		switch {
		case len(v.Data) < len(other.Data):
			return LT, true
		case len(v.Data) > len(other.Data):
			return GT, true
		default:
			return EQ, true
		}
	default:
		return 0, false
	}
}

// SortKey imposes a total order for ORDER BY even across incomparable
// types, via Compare falling back to typeRank (spec.md §4.11.6).
func SortKey(a, b FieldValue) int {
	if ord, ok := a.Compare(b); ok {
		return int(ord)
	}
	ra, rb := a.Kind.typeRank(), b.Kind.typeRank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// Hash is consistent with Equal: equal values (including cross-type
// numeric equality) hash equal (spec.md §4.11.2).
func (v FieldValue) Hash() uint64 {
	h := murmur3.New64()
	switch {
	case v.isNumeric():
		f, _ := v.asFloat()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			// Normalize integral floats and ints to the same hash input.
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(int64(f)))
			h.Write([]byte{byte(KindInt64)})
			h.Write(b[:])
		} else {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
			h.Write([]byte{byte(KindDouble)})
			h.Write(b[:])
		}
	case v.Kind == KindString:
		h.Write([]byte{byte(KindString)})
		h.Write([]byte(v.String))
	case v.Kind == KindBool:
		h.Write([]byte{byte(KindBool)})
		if v.Bool {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case v.Kind == KindData:
		h.Write([]byte{byte(KindData)})
		h.Write(v.Data)
	case v.Kind == KindArray:
		h.Write([]byte{byte(KindArray)})
		for _, e := range v.Array {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], e.Hash())
			h.Write(b[:])
		}
	default:
		h.Write([]byte{byte(KindNull)})
	}
	return h.Sum64()
}

// EBV computes the Effective Boolean Value (spec.md §4.11.2, §17.2 of
// SPARQL): bool -> self, numeric -> != 0 and not NaN, string -> not
// empty, null -> false.
func (v FieldValue) EBV() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt64:
		return v.Int64 != 0
	case KindDouble:
		return v.Double != 0 && !math.IsNaN(v.Double)
	case KindString:
		return v.String != ""
	case KindNull:
		return false
	default:
		return false
	}
}

// ToTupleElement converts v to its native tuple.Element, preserving
// type (spec.md §4.11.4: "bind the remaining variables to the native
// FieldValue decoded from the tuple element (no string-based type
// inference)").
func (v FieldValue) ToTupleElement() tuple.Element {
	switch v.Kind {
	case KindNull:
		return tuple.Element{Kind: tuple.KindNull}
	case KindBool:
		return tuple.Bool(v.Bool)
	case KindInt64:
		return tuple.Int(v.Int64)
	case KindDouble:
		return tuple.Float(v.Double)
	case KindString:
		return tuple.Str(v.String)
	case KindData:
		return tuple.Bytes(v.Data)
	case KindArray:
		elems := make([]tuple.Element, len(v.Array))
		for i, e := range v.Array {
			elems[i] = e.ToTupleElement()
		}
		return tuple.Nested(elems...)
	default:
		return tuple.Element{Kind: tuple.KindNull}
	}
}

// FromTupleElement is ToTupleElement's inverse.
func FromTupleElement(e tuple.Element) FieldValue {
	switch e.Kind {
	case tuple.KindNull:
		return Null()
	case tuple.KindBool:
		return Bool(e.Bool)
	case tuple.KindInt:
		return Int64(e.Int)
	case tuple.KindFloat:
		return Double(e.Float)
	case tuple.KindString:
		return String(e.Str)
	case tuple.KindBytes:
		return Data(e.Bytes)
	case tuple.KindTuple:
		vs := make([]FieldValue, len(e.Tuple))
		for i, sub := range e.Tuple {
			vs[i] = FromTupleElement(sub)
		}
		return Array(vs...)
	default:
		return Null()
	}
}

// SortValues sorts a slice of FieldValue using SortKey, for
// deterministic group emission and similar needs.
func SortValues(vs []FieldValue) {
	sort.Slice(vs, func(i, j int) bool { return SortKey(vs[i], vs[j]) < 0 })
}
