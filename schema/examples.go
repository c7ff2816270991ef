package schema

import (
	"bytes"

	"github.com/ugorji/go/codec"

	"github.com/recordgraph/rg/tuple"
)

var cborHandle = &codec.CborHandle{}

// User is the worked example record type from spec.md §8.4 E1: an
// int64 id and a string email, with one index over email.
type User struct {
	ID    int64
	Email string
}

type userDescriptor struct {
	emailIndex *IndexDescriptor
}

// NewUserDescriptor returns the RecordDescriptor for User, with its
// by_email index (spec.md §8.4 E1), encoded with ugorji/go/codec's
// CBOR handle as a concrete witness of the "opaque encode/decode
// pair" §1 leaves external (SPEC_FULL.md §2 domain stack table).
func NewUserDescriptor() RecordDescriptor {
	d := &userDescriptor{}
	d.emailIndex = &IndexDescriptor{
		Name:     "by_email",
		TypeName: "User",
		KeyExpressions: func(record any) ([]IndexEntryValues, error) {
			u, ok := record.(User)
			if !ok {
				return nil, errWrongType("User", record)
			}
			return []IndexEntryValues{{tuple.Str(u.Email)}}, nil
		},
	}
	return d
}

func (d *userDescriptor) TypeName() string { return "User" }

func (d *userDescriptor) Encode(record any) ([]byte, error) {
	u, ok := record.(User)
	if !ok {
		return nil, errWrongType("User", record)
	}
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, cborHandle).Encode(u); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *userDescriptor) Decode(data []byte) (any, error) {
	var u User
	if err := codec.NewDecoderBytes(data, cborHandle).Decode(&u); err != nil {
		return nil, err
	}
	return u, nil
}

func (d *userDescriptor) ID(record any) (tuple.Tuple, error) {
	u, ok := record.(User)
	if !ok {
		return nil, errWrongType("User", record)
	}
	return tuple.Tuple{tuple.Int(u.ID)}, nil
}

func (d *userDescriptor) Indexes() []*IndexDescriptor { return []*IndexDescriptor{d.emailIndex} }

// Statement is the worked example graph triple type from spec.md
// §8.4 E3/E4: (subject, predicate, object), optionally graph-scoped.
type Statement struct {
	Subject   string
	Predicate string
	Object    FieldValue
	Graph     string
}

type statementDescriptor struct{}

// NewStatementDescriptor returns the RecordDescriptor for Statement.
// It declares no secondary indexes of its own; the hexastore (J)
// maintains its own six orderings directly rather than through F/G,
// since those orderings are the index (spec.md §4.10).
func NewStatementDescriptor() RecordDescriptor { return &statementDescriptor{} }

func (d *statementDescriptor) TypeName() string { return "Statement" }

func (d *statementDescriptor) Encode(record any) ([]byte, error) {
	s, ok := record.(Statement)
	if !ok {
		return nil, errWrongType("Statement", record)
	}
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, cborHandle).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *statementDescriptor) Decode(data []byte) (any, error) {
	var s Statement
	if err := codec.NewDecoderBytes(data, cborHandle).Decode(&s); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *statementDescriptor) ID(record any) (tuple.Tuple, error) {
	s, ok := record.(Statement)
	if !ok {
		return nil, errWrongType("Statement", record)
	}
	return tuple.Tuple{tuple.Str(s.Subject), tuple.Str(s.Predicate), s.Object.ToTupleElement(), tuple.Str(s.Graph)}, nil
}

func (d *statementDescriptor) Indexes() []*IndexDescriptor { return nil }

type wrongTypeError struct {
	expected string
	got      any
}

func (e *wrongTypeError) Error() string {
	return "schema: expected " + e.expected + " record"
}

func errWrongType(expected string, got any) error { return &wrongTypeError{expected: expected, got: got} }
