package sessionkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tyemirov/shopkit/internal/statekit"
	"go.uber.org/zap"
)

// State is the session lifecycle state.
type State string

// Session lifecycle states. Expiry and logout both return to StateAnonymous.
const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

// Fixed storage keys for the credential and profile. They are not identity
// partitioned: only one credential can be active at a time.
const (
	CredentialStorageKey = "auth-token"
	ProfileStorageKey    = "auth-profile"
)

// IdentityListener observes identity changes. Listeners run synchronously in
// subscription order, and only after the storage writes that caused the
// change have completed, so a listener never reads a stale credential.
type IdentityListener func(ctx context.Context, identity statekit.Identity)

// ManagerConfig configures a session Manager.
type ManagerConfig struct {
	Store    statekit.KeyValueStore
	Codec    *TokenCodec
	Profiles ProfileClient
	Clock    Clock
	Logger   *zap.Logger
	Metrics  *SessionMetrics
}

// Manager owns the authentication state machine: it validates the persisted
// credential, keeps the cached profile in step with it, and broadcasts
// identity changes to the registered collections.
type Manager struct {
	store    statekit.KeyValueStore
	codec    *TokenCodec
	profiles ProfileClient
	clock    Clock
	logger   *zap.Logger
	metrics  *SessionMetrics

	mutex      sync.Mutex
	state      State
	identity   statekit.Identity
	credential string
	profile    Profile
	listeners  []IdentityListener
	watcher    *ExpirationWatcher
}

// NewManager constructs a Manager in the anonymous state.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Store == nil {
		return nil, ErrMissingStore
	}
	if config.Codec == nil {
		return nil, ErrMissingCodec
	}
	clock := config.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    config.Store,
		codec:    config.Codec,
		profiles: config.Profiles,
		clock:    clock,
		logger:   logger,
		metrics:  config.Metrics,
		state:    StateAnonymous,
		identity: statekit.GuestIdentity,
	}, nil
}

// Subscribe registers an identity listener. Subscription order is delivery
// order.
func (manager *Manager) Subscribe(listener IdentityListener) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	manager.listeners = append(manager.listeners, listener)
}

// State returns the current lifecycle state.
func (manager *Manager) State() State {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.state
}

// Identity returns the active identity.
func (manager *Manager) Identity() statekit.Identity {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.identity
}

// Credential returns the in-memory credential for the authenticated session.
func (manager *Manager) Credential() (string, bool) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	if manager.state != StateAuthenticated {
		return "", false
	}
	return manager.credential, true
}

// Profile returns the cached profile for the authenticated session.
func (manager *Manager) Profile() (Profile, bool) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	if manager.state != StateAuthenticated {
		return Profile{}, false
	}
	return manager.profile, true
}

// Restore rebuilds the session from persisted state. A decodable, unexpired
// credential with a cached profile authenticates without a network round
// trip; a missing profile triggers one fetch; every failure path lands in
// the anonymous state, never in a stale authenticated one.
func (manager *Manager) Restore(ctx context.Context) error {
	manager.mutex.Lock()

	token, getErr := manager.store.Get(ctx, CredentialStorageKey)
	if getErr != nil {
		if !errors.Is(getErr, statekit.ErrKeyNotFound) {
			manager.logger.Warn("credential unreadable during restore",
				zap.String("code", "session.restore.credential_unreadable"),
				zap.Error(getErr))
		}
		manager.becomeAnonymousLocked(ctx, false)
		return manager.finishLocked(ctx)
	}

	claims := manager.codec.Decode(token)
	if claims == nil {
		manager.logger.Warn("persisted credential undecodable; discarding",
			zap.String("code", "session.restore.credential_undecodable"))
		manager.becomeAnonymousLocked(ctx, true)
		return manager.finishLocked(ctx)
	}
	if manager.codec.IsExpired(claims, manager.clock.Now()) {
		manager.logger.Info("persisted credential expired; discarding",
			zap.String("code", "session.restore.credential_expired"))
		manager.becomeAnonymousLocked(ctx, true)
		return manager.finishLocked(ctx)
	}

	if profile, ok := manager.readCachedProfileLocked(ctx); ok {
		manager.becomeAuthenticatedLocked(token, claims, profile)
		manager.metrics.Increment(MetricRestore)
		return manager.finishLocked(ctx)
	}

	if manager.profiles == nil {
		manager.becomeAnonymousLocked(ctx, true)
		return manager.finishLocked(ctx)
	}

	manager.state = StateAuthenticating
	manager.mutex.Unlock()
	fetched, fetchErr := manager.profiles.FetchProfile(ctx)
	manager.mutex.Lock()

	if fetchErr != nil {
		if errors.Is(fetchErr, ErrProfileUnauthorized) {
			manager.logger.Warn("backend rejected persisted credential",
				zap.String("code", "session.restore.credential_rejected"))
			manager.becomeAnonymousLocked(ctx, true)
			return manager.finishLocked(ctx)
		}
		// Connectivity failure with no cached profile: the session cannot be
		// proven, so stay anonymous but keep the credential for a later retry.
		manager.logger.Warn("profile fetch failed during restore",
			zap.String("code", "session.restore.profile_fetch_failed"),
			zap.Error(fetchErr))
		manager.becomeAnonymousLocked(ctx, false)
		return manager.finishLocked(ctx)
	}

	manager.persistProfileLocked(ctx, fetched)
	manager.becomeAuthenticatedLocked(token, claims, fetched)
	manager.metrics.Increment(MetricRestore)
	return manager.finishLocked(ctx)
}

// Login persists the credential, derives and persists the profile from its
// claims, and moves to the authenticated state. The identity notification
// fires only after both storage writes complete.
func (manager *Manager) Login(ctx context.Context, credential string) error {
	claims := manager.codec.Decode(credential)
	if claims == nil {
		return ErrInvalidCredential
	}
	if manager.codec.IsExpired(claims, manager.clock.Now()) {
		return ErrExpiredCredential
	}

	manager.mutex.Lock()
	if setErr := manager.store.Set(ctx, CredentialStorageKey, credential); setErr != nil {
		manager.mutex.Unlock()
		return fmt.Errorf("session.login.persist_credential: %w", setErr)
	}
	profile := Profile{
		SubjectID:   claims.Subject,
		Email:       claims.UserEmail,
		DisplayName: claims.UserDisplayName,
		Role:        claims.UserRole,
	}
	manager.persistProfileLocked(ctx, profile)
	manager.becomeAuthenticatedLocked(credential, claims, profile)
	manager.metrics.Increment(MetricLogin)
	return manager.finishLocked(ctx)
}

// Logout clears persisted credential and profile, invalidates the decode
// cache, stops any expiry watcher, and notifies listeners with the guest
// identity. The notification fires strictly after storage is cleared.
func (manager *Manager) Logout(ctx context.Context) error {
	manager.mutex.Lock()
	manager.becomeAnonymousLocked(ctx, true)
	manager.metrics.Increment(MetricLogout)
	return manager.finishLocked(ctx)
}

// ForceLogout is the expiry path: identical side effects to Logout but
// recorded separately. It is a no-op unless the session is authenticated,
// which makes a dangling watcher tick after logout harmless.
func (manager *Manager) ForceLogout(ctx context.Context, reason string) {
	manager.mutex.Lock()
	if manager.state != StateAuthenticated {
		manager.mutex.Unlock()
		return
	}
	manager.logger.Warn("session forcibly terminated",
		zap.String("code", "session.forced_logout"),
		zap.String("reason", reason))
	manager.becomeAnonymousLocked(ctx, true)
	manager.metrics.Increment(MetricForcedLogout)
	_ = manager.finishLocked(ctx)
}

// Refresh re-runs the restore procedure; used after profile edits.
func (manager *Manager) Refresh(ctx context.Context) error {
	return manager.Restore(ctx)
}

// UpdateProfile pushes profile changes to the backend and re-caches the
// returned record. The identity does not change.
func (manager *Manager) UpdateProfile(ctx context.Context, profile Profile) error {
	if manager.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}
	if manager.profiles == nil {
		return ErrNotAuthenticated
	}
	updated, updateErr := manager.profiles.UpdateProfile(ctx, profile)
	if updateErr != nil {
		return fmt.Errorf("session.update_profile: %w", updateErr)
	}
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	manager.persistProfileLocked(ctx, updated)
	manager.profile = updated
	return nil
}

func (manager *Manager) readCachedProfileLocked(ctx context.Context) (Profile, bool) {
	blob, getErr := manager.store.Get(ctx, ProfileStorageKey)
	if getErr != nil {
		return Profile{}, false
	}
	var profile Profile
	if unmarshalErr := json.Unmarshal([]byte(blob), &profile); unmarshalErr != nil {
		manager.logger.Warn("cached profile corrupt; discarding",
			zap.String("code", "session.restore.profile_corrupt"),
			zap.Error(unmarshalErr))
		return Profile{}, false
	}
	if profile.SubjectID == "" {
		return Profile{}, false
	}
	return profile, true
}

func (manager *Manager) persistProfileLocked(ctx context.Context, profile Profile) {
	encoded, marshalErr := json.Marshal(profile)
	if marshalErr != nil {
		manager.logger.Error("profile encode failed",
			zap.String("code", "session.persist_profile.encode"),
			zap.Error(marshalErr))
		return
	}
	if setErr := manager.store.Set(ctx, ProfileStorageKey, string(encoded)); setErr != nil {
		manager.logger.Error("profile write failed",
			zap.String("code", "session.persist_profile.write"),
			zap.Error(setErr))
	}
}

func (manager *Manager) becomeAuthenticatedLocked(credential string, claims *Claims, profile Profile) {
	manager.state = StateAuthenticated
	manager.identity = statekit.Identity(claims.Subject)
	manager.credential = credential
	manager.profile = profile
}

// becomeAnonymousLocked drops session state. When clearStorage is set the
// persisted credential and profile are removed before any listener can run.
func (manager *Manager) becomeAnonymousLocked(ctx context.Context, clearStorage bool) {
	if clearStorage {
		if removeErr := manager.store.Remove(ctx, CredentialStorageKey); removeErr != nil {
			manager.logger.Warn("credential removal failed",
				zap.String("code", "session.clear.credential"),
				zap.Error(removeErr))
		}
		if removeErr := manager.store.Remove(ctx, ProfileStorageKey); removeErr != nil {
			manager.logger.Warn("profile removal failed",
				zap.String("code", "session.clear.profile"),
				zap.Error(removeErr))
		}
		manager.codec.Invalidate()
	}
	manager.stopWatcherLocked()
	manager.state = StateAnonymous
	manager.identity = statekit.GuestIdentity
	manager.credential = ""
	manager.profile = Profile{}
}

// finishLocked snapshots the outcome, releases the lock, and notifies
// listeners. Listeners therefore observe storage that already reflects the
// identity they are told about.
func (manager *Manager) finishLocked(ctx context.Context) error {
	identity := manager.identity
	listeners := make([]IdentityListener, len(manager.listeners))
	copy(listeners, manager.listeners)
	manager.mutex.Unlock()
	for _, listener := range listeners {
		listener(ctx, identity)
	}
	return nil
}

func (manager *Manager) stopWatcherLocked() {
	if manager.watcher != nil {
		manager.watcher.Stop()
		manager.watcher = nil
	}
}
