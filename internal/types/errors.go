package types

import "github.com/cockroachdb/errors"

// ErrIO is the base error for filesystem failures, propagated
// unchanged from the underlying os/io call.
var ErrIO = errors.New("types: io error")

// ErrQuery is the base error for row-evaluator and engine failures
// that reference a column absent from the materialized set.
var ErrQuery = errors.New("types: query error")
