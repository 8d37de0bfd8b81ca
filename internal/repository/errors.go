// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the handler layer to
// distinguish failure scenarios without inspecting driver errors: a
// duplicate email on registration, a lookup that matched no row, or a
// refresh session that was already rotated or revoked by a concurrent
// request.
package repository

import "errors"

// ErrEmailExists is returned when an insert would violate the unique
// email constraint. Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a user lookup or conditional update
// matched no row, including single-use token consumption where the
// token was already spent.
var ErrNotFound = errors.New("not found")

// ErrSessionNotFound is returned when a refresh session does not exist,
// is expired, or was rotated away by a concurrent refresh. Handlers
// translate this into HTTP 401.
var ErrSessionNotFound = errors.New("session not found")
