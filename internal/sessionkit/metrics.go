package sessionkit

import "sync"

// Session event names recorded by SessionMetrics.
const (
	MetricLogin         = "session.login"
	MetricLogout        = "session.logout"
	MetricRestore       = "session.restore"
	MetricForcedLogout  = "session.forced_logout"
	MetricSoftLogout    = "session.soft_logout"
	MetricExpiryWarning = "session.expiry_warning"
)

// SessionMetrics counts session lifecycle events in memory.
type SessionMetrics struct {
	mutex  sync.Mutex
	counts map[string]int64
}

// NewSessionMetrics constructs an in-memory metrics recorder.
func NewSessionMetrics() *SessionMetrics {
	return &SessionMetrics{counts: make(map[string]int64)}
}

// Increment increases the counter for the given event.
func (metrics *SessionMetrics) Increment(event string) {
	if metrics == nil {
		return
	}
	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()
	metrics.counts[event]++
}

// Count returns the current value for the given event.
func (metrics *SessionMetrics) Count(event string) int64 {
	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()
	return metrics.counts[event]
}

// Snapshot returns a copy of all recorded counters.
func (metrics *SessionMetrics) Snapshot() map[string]int64 {
	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()
	clone := make(map[string]int64, len(metrics.counts))
	for event, value := range metrics.counts {
		clone[event] = value
	}
	return clone
}
