package store

import "errors"

// ErrNotFound is returned by Update operations when no row matches the
// entity's ID. Reconciliation relies on it to switch from update to create.
var ErrNotFound = errors.New("record not found")

// ErrReadOnly is returned by write operations on a store wrapped in read-only
// mode.
var ErrReadOnly = errors.New("store is in read-only mode")
