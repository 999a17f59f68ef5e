package registry

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable means the store could not be reached or did not answer
	// in time. Callers retry once the connection is re-established.
	ErrUnavailable = errors.New("registry unavailable")

	// ErrNotFound means the key (or its lease) no longer exists.
	ErrNotFound = errors.New("registry key not found")

	// ErrConflict means the key is held by a different host. Keys are
	// derived deterministically, so this indicates a misconfiguration
	// (two agents sharing a host id) and is never retried.
	ErrConflict = errors.New("registry key conflict")
)

func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool    { return errors.Is(err, ErrConflict) }

// Store is the registry capability the reconciler consumes.
type Store interface {
	// Put creates or overwrites the entry at entry.Key with a fresh lease of
	// the given ttl. Putting the same entry twice leaves one entry.
	Put(ctx context.Context, entry Entry, ttl time.Duration) error

	// Renew refreshes the lease of key without touching its value. It
	// returns ErrNotFound if the key expired or was deleted.
	Renew(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error

	// List returns every entry under prefix.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
