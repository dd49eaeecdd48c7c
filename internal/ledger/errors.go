// Package ledger wraps the external booking ledger: a queryable,
// filterable record store reached over HTTP.  The ledger is the
// authoritative side for booking existence, ownership and totals.
package ledger

import "errors"

// ErrNotConfigured is returned when the ledger credentials are absent.
// Callers must degrade to "not persisted" behaviour instead of crashing;
// handlers translate this into a configuration error distinct from any
// user-facing failure.
var ErrNotConfigured = errors.New("ledger: not configured")

// ErrNotFound is returned when a record lookup matches nothing.
var ErrNotFound = errors.New("ledger: record not found")
