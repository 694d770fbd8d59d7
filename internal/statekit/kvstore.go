// Package statekit holds the identity-scoped client state: the persistent
// key/value medium, the identity-partitioned collections built on top of it,
// and the cart and wishlist aggregates.
package statekit

import "context"

// KeyValueStore abstracts the persistent, synchronous key/value medium that
// every identity-scoped collection writes through. Values survive process
// restarts when backed by a database; the in-memory implementation is for
// tests and local development.
type KeyValueStore interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value string) error
	// Remove deletes the value stored under key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
