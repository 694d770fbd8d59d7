package sessionkit

import "context"

// Profile is the denormalized user record cached alongside the credential for
// fast restores. It is invalidated whenever the credential is invalidated.
type Profile struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// ProfileClient fetches and updates the profile on the backend. The active
// credential travels on the transport, not as a parameter. Implementations
// return ErrProfileUnauthorized when the backend rejects the credential and
// wrap connectivity failures in ErrProfileUnavailable so the session manager
// can fall back to the last-known profile.
type ProfileClient interface {
	FetchProfile(ctx context.Context) (Profile, error)
	UpdateProfile(ctx context.Context, profile Profile) (Profile, error)
}
