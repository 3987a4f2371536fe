// Package store is the data access layer for courrier.
//
// All coordination between stateless invocations goes through this layer's
// atomic single-row operations: insert-or-ignore on unique keys and
// conditional counters. No in-process locking exists anywhere above it.
package store

import "database/sql"

// Store wraps an opened database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}
