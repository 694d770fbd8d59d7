package statekit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Identity is the partition key for persisted collections: the authenticated
// subject id, or GuestIdentity when no valid credential exists.
type Identity string

// GuestIdentity is the sentinel partition key used while no user is signed in.
const GuestIdentity Identity = "guest"

// ErrEmptyIdentity indicates an empty partition key was supplied.
var ErrEmptyIdentity = errors.New("collection.empty_identity")

// IdentityKeyedCollection maps the active identity to its own persisted
// payload of type T. Exactly one identity is active at a time; switching
// identities reloads the payload from the new identity's key and guarantees
// that a save triggered by the outgoing identity's teardown is never written
// under the incoming identity's key.
type IdentityKeyedCollection[T any] struct {
	baseName string
	store    KeyValueStore
	empty    func() T
	logger   *zap.Logger

	mutex            sync.Mutex
	identity         Identity
	payload          T
	skipNextAutosave bool
}

// NewIdentityKeyedCollection constructs a collection bound to GuestIdentity.
// The payload is the empty value until Load or SwitchIdentity runs.
func NewIdentityKeyedCollection[T any](baseName string, store KeyValueStore, empty func() T, logger *zap.Logger) *IdentityKeyedCollection[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityKeyedCollection[T]{
		baseName: baseName,
		store:    store,
		empty:    empty,
		logger:   logger,
		identity: GuestIdentity,
		payload:  empty(),
	}
}

// ResolveKey returns the storage key for the given identity.
func (collection *IdentityKeyedCollection[T]) ResolveKey(identity Identity) string {
	if identity == "" {
		identity = GuestIdentity
	}
	return collection.baseName + "-" + string(identity)
}

// Identity returns the identity whose payload is currently loaded.
func (collection *IdentityKeyedCollection[T]) Identity() Identity {
	collection.mutex.Lock()
	defer collection.mutex.Unlock()
	return collection.identity
}

// Load reads the persisted payload for the given identity into memory.
// A missing blob yields the empty payload; a corrupt blob is reset to the
// empty payload and overwritten so corruption never propagates.
func (collection *IdentityKeyedCollection[T]) Load(ctx context.Context, identity Identity) error {
	collection.mutex.Lock()
	defer collection.mutex.Unlock()
	collection.payload = collection.loadLocked(ctx, identity)
	collection.identity = identity
	return nil
}

// SwitchIdentity atomically replaces the active identity and its payload.
// The skip-next-autosave flag is raised before the swap and consumed by the
// autosave attempt the swap itself produces, so a save still in flight for
// the outgoing identity becomes a no-op instead of a write under the new key.
func (collection *IdentityKeyedCollection[T]) SwitchIdentity(ctx context.Context, next Identity) {
	if next == "" {
		next = GuestIdentity
	}
	collection.mutex.Lock()
	defer collection.mutex.Unlock()
	collection.skipNextAutosave = true
	collection.payload = collection.loadLocked(ctx, next)
	collection.identity = next
	if saveErr := collection.autosaveLocked(ctx); saveErr != nil {
		collection.logger.Warn("autosave after identity switch failed",
			zap.String("code", "collection.switch.autosave_failed"),
			zap.String("key", collection.ResolveKey(next)),
			zap.Error(saveErr))
	}
}

// Update applies a mutation to the payload and persists it within the same
// synchronous call. Mutations for one identity are applied and persisted in
// invocation order.
func (collection *IdentityKeyedCollection[T]) Update(ctx context.Context, mutate func(payload *T)) error {
	collection.mutex.Lock()
	defer collection.mutex.Unlock()
	mutate(&collection.payload)
	return collection.autosaveLocked(ctx)
}

// Snapshot returns the current payload. Callers must treat the returned
// value as read-only; reference fields still alias the live payload.
func (collection *IdentityKeyedCollection[T]) Snapshot() T {
	collection.mutex.Lock()
	defer collection.mutex.Unlock()
	return collection.payload
}

func (collection *IdentityKeyedCollection[T]) loadLocked(ctx context.Context, identity Identity) T {
	key := collection.ResolveKey(identity)
	blob, getErr := collection.store.Get(ctx, key)
	if getErr != nil {
		if !errors.Is(getErr, ErrKeyNotFound) {
			collection.logger.Warn("persisted blob unreadable; starting empty",
				zap.String("code", "collection.load.read_failed"),
				zap.String("key", key),
				zap.Error(getErr))
		}
		return collection.empty()
	}
	var payload T
	if unmarshalErr := json.Unmarshal([]byte(blob), &payload); unmarshalErr != nil {
		collection.logger.Warn("corrupt persisted blob; resetting",
			zap.String("code", "collection.load.corrupt_blob"),
			zap.String("key", key),
			zap.Error(unmarshalErr))
		resetPayload := collection.empty()
		if overwriteErr := collection.persist(ctx, key, resetPayload); overwriteErr != nil {
			collection.logger.Warn("overwriting corrupt blob failed",
				zap.String("code", "collection.load.reset_failed"),
				zap.String("key", key),
				zap.Error(overwriteErr))
		}
		return resetPayload
	}
	return payload
}

// autosaveLocked persists the payload unless the skip-next-autosave flag is
// raised, in which case the flag is consumed and the write is dropped. The
// read-and-clear happens under the collection mutex, so an interleaved save
// attempt can neither double-consume the flag nor slip past it.
func (collection *IdentityKeyedCollection[T]) autosaveLocked(ctx context.Context) error {
	if collection.skipNextAutosave {
		collection.skipNextAutosave = false
		return nil
	}
	return collection.persist(ctx, collection.ResolveKey(collection.identity), collection.payload)
}

func (collection *IdentityKeyedCollection[T]) persist(ctx context.Context, key string, payload T) error {
	encoded, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return fmt.Errorf("collection.persist.encode: %w", marshalErr)
	}
	if setErr := collection.store.Set(ctx, key, string(encoded)); setErr != nil {
		return fmt.Errorf("collection.persist.write: %w", setErr)
	}
	return nil
}
