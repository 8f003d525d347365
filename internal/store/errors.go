package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by point lookups for an identifier or token that
// has no row. It is the only non-failure outcome of a read that returns
// no data.
var ErrNotFound = errors.New("store: not found")

// ErrSchemeMismatch is returned when a build tries to write identifiers of
// a different addressing scheme into a store that already holds another.
var ErrSchemeMismatch = errors.New("store: addressing scheme mismatch")

// Kind separates read failures from write failures.
type Kind string

const (
	KindRead  Kind = "read"
	KindWrite Kind = "write"
)

// Error is an I/O failure in the store. NotFound is never an Error.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsWriteError reports whether err is a store write failure.
func IsWriteError(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindWrite
}

// IsReadError reports whether err is a store read failure.
func IsReadError(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindRead
}

func readErr(op string, err error) error {
	return &Error{Op: op, Kind: KindRead, Err: err}
}

func writeErr(op string, err error) error {
	return &Error{Op: op, Kind: KindWrite, Err: err}
}
