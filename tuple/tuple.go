// Package tuple implements the element-tagged, order-preserving byte
// encoding shared by the keyspace layout (SPEC_FULL.md §A) and the
// reference in-memory KV driver. It mirrors the tuple layer the KV
// collaborator is assumed to provide (spec.md §6.1): strings, signed
// 64-bit integers, float64, bool, byte strings, and nested tuples, all
// packed so that lexicographic byte order matches value order.
package tuple

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Element type tags. Ordered so that tag byte order matches the
// cross-type ordering used nowhere except tie-breaking (values of
// different declared element types are never compared within one
// index, but the tags must still sort consistently for nested tuples).
const (
	tagNull   byte = 0x00
	tagBytes  byte = 0x01
	tagString byte = 0x02
	tagNested byte = 0x03 // nested tuple
	tagNegInt byte = 0x0b
	tagIntZero byte = 0x14 // integers encoded relative to this tag by byte-length
	tagPosInt byte = 0x15
	tagFloat  byte = 0x20
	tagFalse  byte = 0x26
	tagTrue   byte = 0x27
)

// Element is one typed component of a tuple. Exactly one field is
// meaningful, selected by Kind.
type Element struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Bytes []byte
	// Tuple holds nested elements when Kind == KindTuple.
	Tuple []Element
}

// Kind enumerates the supported tuple element types (spec.md §3.1:
// "string/int/double/bool/bytes").
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindBytes
	KindTuple
)

func Str(s string) Element        { return Element{Kind: KindString, Str: s} }
func Int(i int64) Element         { return Element{Kind: KindInt, Int: i} }
func Float(f float64) Element      { return Element{Kind: KindFloat, Float: f} }
func Bool(b bool) Element         { return Element{Kind: KindBool, Bool: b} }
func Bytes(b []byte) Element      { return Element{Kind: KindBytes, Bytes: b} }
func Nested(elems ...Element) Element { return Element{Kind: KindTuple, Tuple: elems} }

// Tuple is an ordered sequence of Elements; it is the unit the
// keyspace layout packs into byte keys.
type Tuple []Element

// Pack serializes t into an order-preserving byte string.
func Pack(t Tuple) []byte {
	var buf bytes.Buffer
	for _, e := range t {
		packElement(&buf, e)
	}
	return buf.Bytes()
}

func packElement(buf *bytes.Buffer, e Element) {
	switch e.Kind {
	case KindNull:
		buf.WriteByte(tagNull)
	case KindBytes:
		buf.WriteByte(tagBytes)
		writeEscaped(buf, e.Bytes)
		buf.WriteByte(0x00)
	case KindString:
		buf.WriteByte(tagString)
		writeEscaped(buf, []byte(e.Str))
		buf.WriteByte(0x00)
	case KindTuple:
		buf.WriteByte(tagNested)
		for _, sub := range e.Tuple {
			packElement(buf, sub)
		}
		buf.WriteByte(0x00)
	case KindInt:
		packInt(buf, e.Int)
	case KindFloat:
		packFloat(buf, e.Float)
	case KindBool:
		if e.Bool {
			buf.WriteByte(tagTrue)
		} else {
			buf.WriteByte(tagFalse)
		}
	default:
		panic(fmt.Sprintf("tuple: unknown element kind %d", e.Kind))
	}
}

// writeEscaped writes b with 0x00 bytes escaped as 0x00 0xFF, so the
// terminating 0x00 is unambiguous (FoundationDB tuple-layer convention).
func writeEscaped(buf *bytes.Buffer, b []byte) {
	for _, c := range b {
		buf.WriteByte(c)
		if c == 0x00 {
			buf.WriteByte(0xFF)
		}
	}
}

// packInt encodes a signed integer with a length-prefixed,
// sign-adjusted representation: magnitude bytes are stored so that
// larger magnitudes sort after smaller ones of the same sign, and
// negative numbers sort before positive numbers via the tag split at
// tagIntZero.
func packInt(buf *bytes.Buffer, v int64) {
	if v == 0 {
		buf.WriteByte(tagIntZero)
		return
	}
	if v > 0 {
		n := byteLen(uint64(v))
		buf.WriteByte(tagIntZero + byte(n))
		writeBigEndian(buf, uint64(v), n)
		return
	}
	// Negative: encode magnitude's one's complement so that more
	// negative values sort first.
	mag := uint64(-v)
	n := byteLen(mag)
	buf.WriteByte(tagIntZero - byte(n))
	comp := onesComplementN(mag, n)
	writeBigEndian(buf, comp, n)
}

func byteLen(v uint64) int {
	n := 0
	for v > 0 {
		n++
		v >>= 8
	}
	if n == 0 {
		n = 1
	}
	return n
}

func onesComplementN(v uint64, n int) uint64 {
	mask := uint64(1)<<(uint(n)*8) - 1
	if n == 8 {
		mask = math.MaxUint64
	}
	return (^v) & mask
}

func writeBigEndian(buf *bytes.Buffer, v uint64, n int) {
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	buf.Write(b)
}

// packFloat encodes a float64 so IEEE-754 bit patterns sort in value
// order: flip the sign bit always, and flip all bits for negatives.
func packFloat(buf *bytes.Buffer, f float64) {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	buf.WriteByte(tagFloat)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	buf.Write(b[:])
}

// Unpack parses a packed byte string back into a Tuple. It is the
// left inverse of Pack (spec.md §8.2: "tuple(pack(x)) == x").
func Unpack(b []byte) (Tuple, error) {
	var out Tuple
	for len(b) > 0 {
		e, rest, err := unpackOne(b)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		b = rest
	}
	return out, nil
}

func unpackOne(b []byte) (Element, []byte, error) {
	if len(b) == 0 {
		return Element{}, nil, errors.New("tuple: unexpected end of input")
	}
	tag := b[0]
	rest := b[1:]
	switch {
	case tag == tagNull:
		return Element{Kind: KindNull}, rest, nil
	case tag == tagBytes:
		raw, r, err := readEscaped(rest)
		if err != nil {
			return Element{}, nil, err
		}
		return Element{Kind: KindBytes, Bytes: raw}, r, nil
	case tag == tagString:
		raw, r, err := readEscaped(rest)
		if err != nil {
			return Element{}, nil, err
		}
		return Element{Kind: KindString, Str: string(raw)}, r, nil
	case tag == tagNested:
		var elems []Element
		for {
			if len(rest) == 0 {
				return Element{}, nil, errors.New("tuple: unterminated nested tuple")
			}
			if rest[0] == 0x00 {
				rest = rest[1:]
				break
			}
			e, r, err := unpackOne(rest)
			if err != nil {
				return Element{}, nil, err
			}
			elems = append(elems, e)
			rest = r
		}
		return Element{Kind: KindTuple, Tuple: elems}, rest, nil
	case tag == tagFloat:
		if len(rest) < 8 {
			return Element{}, nil, errors.New("tuple: truncated float")
		}
		bits := binary.BigEndian.Uint64(rest[:8])
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return Element{Kind: KindFloat, Float: math.Float64frombits(bits)}, rest[8:], nil
	case tag == tagFalse:
		return Element{Kind: KindBool, Bool: false}, rest, nil
	case tag == tagTrue:
		return Element{Kind: KindBool, Bool: true}, rest, nil
	case tag >= tagIntZero-8 && tag <= tagIntZero+8:
		n := int(tag) - int(tagIntZero)
		if n == 0 {
			return Element{Kind: KindInt, Int: 0}, rest, nil
		}
		neg := n < 0
		if neg {
			n = -n
		}
		if len(rest) < n {
			return Element{}, nil, errors.New("tuple: truncated integer")
		}
		var v uint64
		for i := 0; i < n; i++ {
			v = v<<8 | uint64(rest[i])
		}
		rest = rest[n:]
		if neg {
			v = onesComplementN(v, n)
			return Element{Kind: KindInt, Int: -int64(v)}, rest, nil
		}
		return Element{Kind: KindInt, Int: int64(v)}, rest, nil
	default:
		return Element{}, nil, errors.Errorf("tuple: unknown tag byte 0x%02x", tag)
	}
}

func readEscaped(b []byte) ([]byte, []byte, error) {
	var out []byte
	for i := 0; i < len(b); i++ {
		if b[i] == 0x00 {
			if i+1 < len(b) && b[i+1] == 0xFF {
				out = append(out, 0x00)
				i++
				continue
			}
			return out, b[i+1:], nil
		}
		out = append(out, b[i])
	}
	return nil, nil, errors.New("tuple: unterminated string/bytes element")
}

// Strinc returns the smallest byte string greater than every string
// with prefix b, used to build half-open prefix ranges (spec.md §4.1).
// It strips trailing 0xFF bytes and increments the last remaining byte.
func Strinc(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	for len(out) > 0 && out[len(out)-1] == 0xFF {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		panic("tuple: Strinc of all-0xFF key has no successor")
	}
	out[len(out)-1]++
	return out
}
