package sessionkit

import "errors"

var (
	// ErrMissingStore indicates the manager was constructed without a key/value store.
	ErrMissingStore = errors.New("session.missing_store")
	// ErrMissingCodec indicates the manager was constructed without a token codec.
	ErrMissingCodec = errors.New("session.missing_codec")
	// ErrInvalidCredential indicates the supplied credential does not decode.
	ErrInvalidCredential = errors.New("session.invalid_credential")
	// ErrExpiredCredential indicates the supplied credential is already expired.
	ErrExpiredCredential = errors.New("session.expired_credential")
	// ErrNotAuthenticated indicates an operation that requires an authenticated session.
	ErrNotAuthenticated = errors.New("session.not_authenticated")

	// ErrProfileUnauthorized indicates the backend rejected the credential.
	ErrProfileUnauthorized = errors.New("profile_client.unauthorized")
	// ErrProfileUnavailable indicates a connectivity failure reaching the backend.
	ErrProfileUnavailable = errors.New("profile_client.unavailable")
)
