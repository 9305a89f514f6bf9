package metrics

import "sync/atomic"

// ID identifies a specific counter.
type ID uint8

const (
	// MetricLoginSuccess counts successful credential exchanges.
	MetricLoginSuccess ID = iota
	// MetricRefreshSuccess counts refresh calls that produced a new pair.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh calls that ended the session.
	MetricRefreshFailure
	// MetricRefreshShared counts callers served by an in-flight refresh
	// instead of a network round trip of their own.
	MetricRefreshShared
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricChannelConnects counts successful websocket dials.
	MetricChannelConnects
	// MetricChannelRetries counts reconnect attempts after a failure.
	MetricChannelRetries
	// MetricChannelTerminal counts channels that exhausted their retry
	// budget and degraded to poll-only mode.
	MetricChannelTerminal
	// MetricFramesDropped counts malformed inbound frames.
	MetricFramesDropped
	// MetricNotificationsIngested counts push events inserted into the store.
	MetricNotificationsIngested
	// MetricNotificationsDeduped counts push events ignored as duplicates.
	MetricNotificationsDeduped

	idCount
)

// slot pads each counter to its own cache line to avoid false sharing.
type slot struct {
	value atomic.Uint64
	_     [56]byte
}

// Metrics holds the counter slots. A nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled bool
	slots   [idCount]slot
}

// New creates a Metrics instance. When enabled is false all operations are
// no-ops and Snapshot returns an empty map.
func New(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	m.slots[id].value.Add(1)
}

// Get returns the current value of the counter for id.
func (m *Metrics) Get(id ID) uint64 {
	if m == nil || !m.enabled || id >= idCount {
		return 0
	}
	return m.slots[id].value.Load()
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() map[ID]uint64 {
	out := make(map[ID]uint64, idCount)
	if m == nil || !m.enabled {
		return out
	}
	for id := ID(0); id < idCount; id++ {
		out[id] = m.slots[id].value.Load()
	}
	return out
}
