package sessionkit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default watcher cadence and warning window.
const (
	DefaultCheckInterval = 60 * time.Second
	DefaultWarnWindow    = 5 * time.Minute
)

// ExpiryNotifier surfaces the user-visible expiry outcomes. SessionExpired
// fires at most once per watcher; ExpiryWarning fires once per threshold
// crossing, not once per polling tick.
type ExpiryNotifier interface {
	SessionExpired()
	ExpiryWarning(remaining time.Duration)
}

// WatcherConfig configures an ExpirationWatcher.
type WatcherConfig struct {
	Interval   time.Duration
	WarnWindow time.Duration
	Notifier   ExpiryNotifier
}

// ExpirationWatcher polls the active credential's expiry and forces logout
// when it lapses. The watcher is owned by the Manager that started it, so
// leaving the authenticated state cancels the timer structurally; a tick
// that fires after logout is a no-op.
type ExpirationWatcher struct {
	manager    *Manager
	interval   time.Duration
	warnWindow time.Duration
	notifier   ExpiryNotifier
	clock      Clock
	logger     *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mutex   sync.Mutex
	warned  bool
	expired bool
	stopped bool
}

// StartExpirationWatcher runs an immediate expiry check and then a recurring
// one. It fails unless the session is currently authenticated. The watcher
// is registered on the manager so logout and expiry cancel it.
func (manager *Manager) StartExpirationWatcher(ctx context.Context, config WatcherConfig) (*ExpirationWatcher, error) {
	if manager.State() != StateAuthenticated {
		return nil, ErrNotAuthenticated
	}
	interval := config.Interval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	warnWindow := config.WarnWindow
	if warnWindow <= 0 {
		warnWindow = DefaultWarnWindow
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher := &ExpirationWatcher{
		manager:    manager,
		interval:   interval,
		warnWindow: warnWindow,
		notifier:   config.Notifier,
		clock:      manager.clock,
		logger:     manager.logger,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	manager.mutex.Lock()
	manager.stopWatcherLocked()
	manager.watcher = watcher
	manager.mutex.Unlock()

	watcher.check(watchCtx)
	go watcher.run(watchCtx)
	return watcher, nil
}

// Stop cancels the recurring check. Safe to call more than once and from a
// check in flight.
func (watcher *ExpirationWatcher) Stop() {
	watcher.mutex.Lock()
	alreadyStopped := watcher.stopped
	watcher.stopped = true
	watcher.mutex.Unlock()
	if !alreadyStopped {
		watcher.cancel()
	}
}

// Done is closed when the recurring check loop has exited.
func (watcher *ExpirationWatcher) Done() <-chan struct{} {
	return watcher.done
}

func (watcher *ExpirationWatcher) run(ctx context.Context) {
	defer close(watcher.done)
	ticker := time.NewTicker(watcher.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			watcher.check(ctx)
		}
	}
}

// check decodes the current credential and applies the expiry policy: force
// logout at or past expiry, a deduplicated warning inside the warning window.
func (watcher *ExpirationWatcher) check(ctx context.Context) {
	if watcher.manager.State() != StateAuthenticated {
		watcher.Stop()
		return
	}
	token, ok := watcher.manager.Credential()
	if !ok {
		watcher.Stop()
		return
	}
	claims := watcher.manager.codec.Decode(token)
	if claims == nil || claims.ExpiresAt == nil {
		watcher.expire(ctx, "credential undecodable")
		return
	}

	remaining := time.Duration(claims.ExpiresAt.Unix()-watcher.clock.Now().Unix()) * time.Second
	if remaining <= 0 {
		watcher.expire(ctx, "session expired")
		return
	}
	if remaining <= watcher.warnWindow {
		watcher.warnOnce(remaining)
		return
	}

	// Back above the window (new credential): re-arm the warning.
	watcher.mutex.Lock()
	watcher.warned = false
	watcher.mutex.Unlock()
}

func (watcher *ExpirationWatcher) expire(ctx context.Context, reason string) {
	watcher.mutex.Lock()
	alreadyExpired := watcher.expired
	watcher.expired = true
	watcher.mutex.Unlock()
	if alreadyExpired {
		return
	}
	watcher.manager.ForceLogout(ctx, reason)
	if watcher.notifier != nil {
		watcher.notifier.SessionExpired()
	}
	watcher.Stop()
}

func (watcher *ExpirationWatcher) warnOnce(remaining time.Duration) {
	watcher.mutex.Lock()
	alreadyWarned := watcher.warned
	watcher.warned = true
	watcher.mutex.Unlock()
	if alreadyWarned {
		return
	}
	watcher.logger.Info("session expiring soon",
		zap.String("code", "session.expiry_warning"),
		zap.Duration("remaining", remaining))
	watcher.manager.metrics.Increment(MetricExpiryWarning)
	if watcher.notifier != nil {
		watcher.notifier.ExpiryWarning(remaining)
	}
}
