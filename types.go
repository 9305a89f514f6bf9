package safevoice

import (
	"github.com/safevoice/safevoice-go/internal/metrics"
	"github.com/safevoice/safevoice-go/notify"
	"github.com/safevoice/safevoice-go/session"
	"github.com/safevoice/safevoice-go/tokenstore"
)

// Role is the authorization label carried in token claims. The enumeration
// is open: a role string the SDK does not know passes through untouched and
// simply matches no gate requirement unless the caller names it.
type Role string

const (
	// RoleUser is a regular reporter account.
	RoleUser Role = "user"
	// RoleAdmin reviews submitted reports.
	RoleAdmin Role = "admin"
	// RolePremiumAdmin is an admin with access to the premium review queue.
	RolePremiumAdmin Role = "premium_admin"
)

// Status re-exports the session lifecycle state.
type Status = session.Status

const (
	// StatusUnauthenticated is an alias of [session.StatusUnauthenticated].
	StatusUnauthenticated = session.StatusUnauthenticated
	// StatusAuthenticating is an alias of [session.StatusAuthenticating].
	StatusAuthenticating = session.StatusAuthenticating
	// StatusAuthenticated is an alias of [session.StatusAuthenticated].
	StatusAuthenticated = session.StatusAuthenticated
	// StatusRefreshing is an alias of [session.StatusRefreshing].
	StatusRefreshing = session.StatusRefreshing
)

// Snapshot is the read-only session view exposed to the application.
type Snapshot = session.Snapshot

// TokenPair is the access/refresh token pair produced by a credential
// exchange and consumed by [Client.Login].
type TokenPair = tokenstore.Pair

// Notification is a single notification record.
type Notification = notify.Record

// MetricID identifies a counter in [Client.MetricsSnapshot].
type MetricID = metrics.ID

const (
	// MetricLoginSuccess is an alias of the internal counter id.
	MetricLoginSuccess = metrics.MetricLoginSuccess
	// MetricRefreshSuccess is an alias of the internal counter id.
	MetricRefreshSuccess = metrics.MetricRefreshSuccess
	// MetricRefreshFailure is an alias of the internal counter id.
	MetricRefreshFailure = metrics.MetricRefreshFailure
	// MetricRefreshShared is an alias of the internal counter id.
	MetricRefreshShared = metrics.MetricRefreshShared
	// MetricLogout is an alias of the internal counter id.
	MetricLogout = metrics.MetricLogout
	// MetricChannelConnects is an alias of the internal counter id.
	MetricChannelConnects = metrics.MetricChannelConnects
	// MetricChannelRetries is an alias of the internal counter id.
	MetricChannelRetries = metrics.MetricChannelRetries
	// MetricChannelTerminal is an alias of the internal counter id.
	MetricChannelTerminal = metrics.MetricChannelTerminal
	// MetricFramesDropped is an alias of the internal counter id.
	MetricFramesDropped = metrics.MetricFramesDropped
	// MetricNotificationsIngested is an alias of the internal counter id.
	MetricNotificationsIngested = metrics.MetricNotificationsIngested
	// MetricNotificationsDeduped is an alias of the internal counter id.
	MetricNotificationsDeduped = metrics.MetricNotificationsDeduped
)
