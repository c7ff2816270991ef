package kv

import "github.com/pkg/errors"

var errNotInSubspace = errors.New("kv: key is not within subspace")
