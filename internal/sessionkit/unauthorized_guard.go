package sessionkit

import (
	"net/http"
	"strings"
	"sync"

	"github.com/tyemirov/shopkit/internal/statekit"
	"go.uber.org/zap"
)

// UnauthorizedGuard is the response-side companion of the request
// interceptor: a 401 on any non-auth request triggers the soft-logout and
// redirect path exactly once per armed generation, so a burst of concurrent
// requests all receiving 401 cannot stack redirects. Each login re-arms the
// guard.
type UnauthorizedGuard struct {
	base           http.RoundTripper
	store          statekit.KeyValueStore
	onUnauthorized func()
	logger         *zap.Logger

	mutex sync.Mutex
	armed bool
}

// NewUnauthorizedGuard wraps base. onUnauthorized is the redirect hook; it
// runs at most once until Rearm is called.
func NewUnauthorizedGuard(base http.RoundTripper, store statekit.KeyValueStore, onUnauthorized func(), logger *zap.Logger) *UnauthorizedGuard {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnauthorizedGuard{
		base:           base,
		store:          store,
		onUnauthorized: onUnauthorized,
		logger:         logger,
		armed:          true,
	}
}

// Rearm enables the guard for the next unauthorized response.
func (guard *UnauthorizedGuard) Rearm() {
	guard.mutex.Lock()
	defer guard.mutex.Unlock()
	guard.armed = true
}

// RoundTrip implements http.RoundTripper.
func (guard *UnauthorizedGuard) RoundTrip(request *http.Request) (*http.Response, error) {
	response, err := guard.base.RoundTrip(request)
	if err != nil {
		return nil, err
	}
	if response.StatusCode == http.StatusUnauthorized && !isAuthPath(request.URL.Path) {
		guard.trip(request)
	}
	return response, nil
}

// trip consumes the armed flag atomically so concurrent 401s race for one
// winner.
func (guard *UnauthorizedGuard) trip(request *http.Request) {
	guard.mutex.Lock()
	wasArmed := guard.armed
	guard.armed = false
	guard.mutex.Unlock()
	if !wasArmed {
		return
	}

	ctx := request.Context()
	if removeErr := guard.store.Remove(ctx, CredentialStorageKey); removeErr != nil {
		guard.logger.Warn("credential removal failed after 401",
			zap.String("code", "guard.unauthorized.credential"),
			zap.Error(removeErr))
	}
	if removeErr := guard.store.Remove(ctx, ProfileStorageKey); removeErr != nil {
		guard.logger.Warn("profile removal failed after 401",
			zap.String("code", "guard.unauthorized.profile"),
			zap.Error(removeErr))
	}
	guard.logger.Info("unauthorized response; session cleared",
		zap.String("code", "guard.unauthorized"),
		zap.String("path", request.URL.Path))
	if guard.onUnauthorized != nil {
		guard.onUnauthorized()
	}
}

// isAuthPath reports whether the request targets the auth surface itself,
// where a 401 is an expected outcome rather than a session failure.
func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}
