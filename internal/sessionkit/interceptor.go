package sessionkit

import (
	"errors"
	"net/http"

	"github.com/tyemirov/shopkit/internal/statekit"
	"go.uber.org/zap"
)

// RequestAuthInterceptor is an http.RoundTripper consulted before every
// outgoing request. A decodable, unexpired persisted credential is attached
// as a bearer header; an invalid or expired one is stripped from storage (a
// soft logout, without the UI side effects of Logout) and the request goes
// out unauthenticated.
type RequestAuthInterceptor struct {
	base    http.RoundTripper
	store   statekit.KeyValueStore
	codec   *TokenCodec
	clock   Clock
	logger  *zap.Logger
	metrics *SessionMetrics
}

// NewRequestAuthInterceptor wraps base with credential handling. A nil base
// falls back to http.DefaultTransport.
func NewRequestAuthInterceptor(base http.RoundTripper, store statekit.KeyValueStore, codec *TokenCodec, clock Clock, logger *zap.Logger, metrics *SessionMetrics) *RequestAuthInterceptor {
	if base == nil {
		base = http.DefaultTransport
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestAuthInterceptor{
		base:    base,
		store:   store,
		codec:   codec,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// RoundTrip implements http.RoundTripper.
func (interceptor *RequestAuthInterceptor) RoundTrip(request *http.Request) (*http.Response, error) {
	ctx := request.Context()
	token, getErr := interceptor.store.Get(ctx, CredentialStorageKey)
	if getErr != nil {
		if !errors.Is(getErr, statekit.ErrKeyNotFound) {
			interceptor.logger.Warn("credential unreadable; sending unauthenticated",
				zap.String("code", "interceptor.credential_unreadable"),
				zap.Error(getErr))
		}
		return interceptor.base.RoundTrip(request)
	}

	claims := interceptor.codec.Decode(token)
	if claims == nil || interceptor.codec.IsExpired(claims, interceptor.clock.Now()) {
		interceptor.softLogout(request)
		return interceptor.base.RoundTrip(request)
	}

	authenticated := request.Clone(ctx)
	authenticated.Header.Set("Authorization", "Bearer "+token)
	return interceptor.base.RoundTrip(authenticated)
}

// softLogout strips the persisted credential and profile so no later request
// carries a dead token.
func (interceptor *RequestAuthInterceptor) softLogout(request *http.Request) {
	ctx := request.Context()
	if removeErr := interceptor.store.Remove(ctx, CredentialStorageKey); removeErr != nil {
		interceptor.logger.Warn("credential removal failed during soft logout",
			zap.String("code", "interceptor.soft_logout.credential"),
			zap.Error(removeErr))
	}
	if removeErr := interceptor.store.Remove(ctx, ProfileStorageKey); removeErr != nil {
		interceptor.logger.Warn("profile removal failed during soft logout",
			zap.String("code", "interceptor.soft_logout.profile"),
			zap.Error(removeErr))
	}
	interceptor.metrics.Increment(MetricSoftLogout)
	interceptor.logger.Info("stale credential stripped before request",
		zap.String("code", "interceptor.soft_logout"),
		zap.String("path", request.URL.Path))
}
