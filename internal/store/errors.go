package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned when an insert collides with the
// unique constraint on members.username. The constraint is the
// serialization point for concurrent registrations, so callers must
// handle this error even after a prior existence check.
var ErrDuplicateUsername = errors.New("username already exists")
