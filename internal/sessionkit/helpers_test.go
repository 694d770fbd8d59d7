package sessionkit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fixedClock struct {
	timestamp time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.timestamp
}

type controllableClock struct {
	mutex   sync.Mutex
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.current = clock.current.Add(duration)
}

func mintTestCredential(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserEmail:       subject + "@example.com",
		UserDisplayName: "Test " + subject,
		UserRole:        "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString([]byte("test-signing-key"))
	if signErr != nil {
		t.Fatalf("failed to sign test credential: %v", signErr)
	}
	return signed
}

type stubProfileClient struct {
	mutex       sync.Mutex
	profile     Profile
	fetchErr    error
	fetchCalls  int
	updateCalls int
}

func (client *stubProfileClient) FetchProfile(ctx context.Context) (Profile, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.fetchCalls++
	if client.fetchErr != nil {
		return Profile{}, client.fetchErr
	}
	return client.profile, nil
}

func (client *stubProfileClient) UpdateProfile(ctx context.Context, profile Profile) (Profile, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.updateCalls++
	client.profile = profile
	return profile, nil
}

type recordingNotifier struct {
	mutex        sync.Mutex
	expiredCount int
	warnings     []time.Duration
}

func (notifier *recordingNotifier) SessionExpired() {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.expiredCount++
}

func (notifier *recordingNotifier) ExpiryWarning(remaining time.Duration) {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.warnings = append(notifier.warnings, remaining)
}

func (notifier *recordingNotifier) snapshot() (int, []time.Duration) {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	warnings := make([]time.Duration, len(notifier.warnings))
	copy(warnings, notifier.warnings)
	return notifier.expiredCount, warnings
}
