package sessionkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tyemirov/shopkit/internal/statekit"
)

func TestStartExpirationWatcherRequiresAuthentication(t *testing.T) {
	t.Parallel()
	manager := newTestManager(t, statekit.NewMemoryKeyValueStore(), nil, fixedClock{timestamp: time.Unix(1700000000, 0)})

	_, err := manager.StartExpirationWatcher(context.Background(), WatcherConfig{})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestWatcherForcesLogoutOnExpiry(t *testing.T) {
	t.Parallel()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	store := statekit.NewMemoryKeyValueStore()
	manager := newTestManager(t, store, nil, clock)
	notifier := &recordingNotifier{}

	token := mintTestCredential(t, "u1", clock.Now().Add(2*time.Minute))
	if err := manager.Login(context.Background(), token); err != nil {
		t.Fatalf("login error: %v", err)
	}

	watcher, err := manager.StartExpirationWatcher(context.Background(), WatcherConfig{
		Interval: time.Hour, // ticks driven manually via check
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	clock.Advance(3 * time.Minute)
	watcher.check(context.Background())

	if manager.State() != StateAnonymous {
		t.Fatalf("expected anonymous after expiry, got %s", manager.State())
	}
	if _, getErr := store.Get(context.Background(), CredentialStorageKey); !errors.Is(getErr, statekit.ErrKeyNotFound) {
		t.Fatalf("expected credential cleared, got %v", getErr)
	}
	expiredCount, _ := notifier.snapshot()
	if expiredCount != 1 {
		t.Fatalf("expected one expired notice, got %d", expiredCount)
	}

	// Further ticks never re-trigger a second logout notification.
	watcher.check(context.Background())
	watcher.check(context.Background())
	expiredCount, _ = notifier.snapshot()
	if expiredCount != 1 {
		t.Fatalf("expected expired notice to stay at 1, got %d", expiredCount)
	}
	if manager.metrics.Count(MetricForcedLogout) != 1 {
		t.Fatalf("expected one forced logout, got %d", manager.metrics.Count(MetricForcedLogout))
	}
}

func TestWatcherForcesLogoutOnUndecodableCredential(t *testing.T) {
	t.Parallel()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	store := statekit.NewMemoryKeyValueStore()
	manager := newTestManager(t, store, nil, clock)
	notifier := &recordingNotifier{}

	token := mintTestCredential(t, "u1", clock.Now().Add(time.Hour))
	if err := manager.Login(context.Background(), token); err != nil {
		t.Fatalf("login error: %v", err)
	}

	watcher, err := manager.StartExpirationWatcher(context.Background(), WatcherConfig{
		Interval: time.Hour,
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	// Corrupt the in-memory credential decode path by invalidating the cache
	// and replacing the stored token with garbage, then breaking the session
	// copy directly.
	manager.mutex.Lock()
	manager.credential = "garbage"
	manager.mutex.Unlock()
	manager.codec.Invalidate()

	watcher.check(context.Background())
	if manager.State() != StateAnonymous {
		t.Fatalf("expected anonymous after undecodable credential, got %s", manager.State())
	}
	expiredCount, _ := notifier.snapshot()
	if expiredCount != 1 {
		t.Fatalf("expected one expired notice, got %d", expiredCount)
	}
}

func TestWatcherWarnsOncePerCrossing(t *testing.T) {
	t.Parallel()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager := newTestManager(t, statekit.NewMemoryKeyValueStore(), nil, clock)
	notifier := &recordingNotifier{}

	token := mintTestCredential(t, "u1", clock.Now().Add(10*time.Minute))
	if err := manager.Login(context.Background(), token); err != nil {
		t.Fatalf("login error: %v", err)
	}

	watcher, err := manager.StartExpirationWatcher(context.Background(), WatcherConfig{
		Interval:   time.Hour,
		WarnWindow: 5 * time.Minute,
		Notifier:   notifier,
	})
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	// Outside the window: no warning.
	_, warnings := notifier.snapshot()
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings outside window, got %v", warnings)
	}

	// Inside the window: exactly one warning across repeated ticks.
	clock.Advance(6 * time.Minute)
	watcher.check(context.Background())
	watcher.check(context.Background())
	watcher.check(context.Background())
	_, warnings = notifier.snapshot()
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if warnings[0] != 4*time.Minute {
		t.Fatalf("expected 4m remaining, got %v", warnings[0])
	}
	if manager.State() != StateAuthenticated {
		t.Fatalf("warning must not end the session, got %s", manager.State())
	}
	if manager.metrics.Count(MetricExpiryWarning) != 1 {
		t.Fatalf("expected one warning metric, got %d", manager.metrics.Count(MetricExpiryWarning))
	}
}

func TestWatcherRearmsWarningAfterNewCredential(t *testing.T) {
	t.Parallel()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager := newTestManager(t, statekit.NewMemoryKeyValueStore(), nil, clock)
	notifier := &recordingNotifier{}

	token := mintTestCredential(t, "u1", clock.Now().Add(6*time.Minute))
	if err := manager.Login(context.Background(), token); err != nil {
		t.Fatalf("login error: %v", err)
	}
	watcher, err := manager.StartExpirationWatcher(context.Background(), WatcherConfig{
		Interval:   time.Hour,
		WarnWindow: 5 * time.Minute,
		Notifier:   notifier,
	})
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	clock.Advance(2 * time.Minute)
	watcher.check(context.Background())
	_, warnings := notifier.snapshot()
	if len(warnings) != 1 {
		t.Fatalf("expected first warning, got %v", warnings)
	}

	// A fresh credential moves expiry back above the window; the next dip
	// below warns again.
	fresh := mintTestCredential(t, "u1", clock.Now().Add(20*time.Minute))
	if loginErr := manager.Login(context.Background(), fresh); loginErr != nil {
		t.Fatalf("re-login error: %v", loginErr)
	}
	watcher.check(context.Background())

	clock.Advance(16 * time.Minute)
	watcher.check(context.Background())
	_, warnings = notifier.snapshot()
	if len(warnings) != 2 {
		t.Fatalf("expected second warning after re-crossing, got %v", warnings)
	}
}

func TestDanglingTickAfterLogoutIsNoOp(t *testing.T) {
	t.Parallel()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	manager := newTestManager(t, statekit.NewMemoryKeyValueStore(), nil, clock)
	notifier := &recordingNotifier{}

	token := mintTestCredential(t, "u1", clock.Now().Add(time.Hour))
	if err := manager.Login(context.Background(), token); err != nil {
		t.Fatalf("login error: %v", err)
	}
	watcher, err := manager.StartExpirationWatcher(context.Background(), WatcherConfig{
		Interval: time.Hour,
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	if logoutErr := manager.Logout(context.Background()); logoutErr != nil {
		t.Fatalf("logout error: %v", logoutErr)
	}

	// The watcher timer was cancelled by logout; a straggler tick must not
	// re-trigger any logout notification.
	watcher.check(context.Background())
	expiredCount, _ := notifier.snapshot()
	if expiredCount != 0 {
		t.Fatalf("expected no expired notices after plain logout, got %d", expiredCount)
	}
	if manager.metrics.Count(MetricForcedLogout) != 0 {
		t.Fatalf("expected no forced logout, got %d", manager.metrics.Count(MetricForcedLogout))
	}

	select {
	case <-watcher.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher loop did not exit after logout")
	}
}
