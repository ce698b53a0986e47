package session

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	// ErrNotFound is returned when a session doesn't exist.
	ErrNotFound = errors.New("session not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("session store is closed")
)

// Store abstracts session persistence. Implementations must be safe for
// concurrent use. The store is injected at process start; there is no
// package-level default.
type Store interface {
	// Get retrieves a session by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Session, error)

	// Put creates or replaces a session.
	Put(ctx context.Context, sess *Session) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of all stored sessions.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
