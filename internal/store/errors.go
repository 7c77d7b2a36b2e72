package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when the unique email constraint is violated.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrUnavailable wraps transient infrastructure failures (connection loss,
// query timeout). Callers may retry; every other store error is final.
var ErrUnavailable = errors.New("store unavailable")
