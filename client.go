package safevoice

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/safevoice/safevoice-go/internal/metrics"
	"github.com/safevoice/safevoice-go/internal/rest"
	"github.com/safevoice/safevoice-go/notify"
	"github.com/safevoice/safevoice-go/session"
)

// Client is the assembled SafeVoice SDK facade. Construct it through
// [Builder.Build], start it once with [Client.Start], and tear it down with
// [Client.Close].
type Client struct {
	config        Config
	log           *zap.Logger
	metrics       *metrics.Metrics
	rest          *rest.Client
	session       *session.Manager
	notifications *notify.Store
	channel       *notify.Channel // nil when no SocketURL is configured

	mu          sync.Mutex
	started     bool
	closed      bool
	unsubscribe func()
	chSubject   string
	chCancel    context.CancelFunc
	chDone      chan struct{}
}

// Start hydrates the session from the token store and begins supervising
// the notification channel from session transitions. It returns the settled
// session snapshot.
func (c *Client) Start(ctx context.Context) Snapshot {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return c.session.Snapshot()
	}
	c.started = true
	c.unsubscribe = c.session.Subscribe(c.superviseChannel)
	c.mu.Unlock()

	snap := c.session.Start(ctx)
	// Subscribe fires only on transitions; align the channel with whatever
	// state hydration settled in.
	c.superviseChannel(snap)
	return snap
}

// Close tears the client down deterministically: the channel connection and
// the proactive-refresh timer stop, and no callback fires afterwards. Close
// does not log the user out; stored tokens survive for the next start.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	cancel, done := c.chCancel, c.chDone
	c.chCancel, c.chDone = nil, nil
	c.chSubject = ""
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.session.Close()
}

// superviseChannel keeps the push connection aligned with session state:
// open while an authenticated subject is known, closed otherwise, restarted
// on subject change.
func (c *Client) superviseChannel(snap Snapshot) {
	if snap.IsAuthenticated() && snap.Subject != "" {
		c.startChannel(snap.Subject)
		return
	}
	c.stopChannel()
	c.notifications.Reset()
}

func (c *Client) startChannel(subject string) {
	if c.channel == nil {
		return
	}

	c.mu.Lock()
	if c.closed || c.chSubject == subject {
		c.mu.Unlock()
		return
	}
	prevCancel := c.chCancel

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.chSubject = subject
	c.chCancel = cancel
	c.chDone = done
	c.mu.Unlock()

	// The previous loop (old subject) is cancelled, not awaited: this can
	// run on the channel's own goroutine, and ingestion is idempotent, so a
	// brief overlap is harmless.
	if prevCancel != nil {
		prevCancel()
	}

	go func() {
		defer close(done)
		c.channel.Run(ctx, subject)
	}()
}

// stopChannel cancels without awaiting: it can be reached from the
// channel's own goroutine (a refresh failure during the channel's token
// fetch publishes the transition), where waiting would deadlock. Close is
// the blocking teardown path.
func (c *Client) stopChannel() {
	c.mu.Lock()
	cancel := c.chCancel
	c.chCancel, c.chDone = nil, nil
	c.chSubject = ""
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// LoginWithCredentials exchanges credentials at the backend and installs the
// resulting token pair.
func (c *Client) LoginWithCredentials(ctx context.Context, identifier, password string) error {
	pair, err := c.rest.Login(ctx, identifier, password)
	if err != nil {
		return err
	}
	return c.session.Login(ctx, pair)
}

// Login installs a token pair obtained elsewhere (an external credential
// exchange) and transitions the session directly to Authenticated.
func (c *Client) Login(ctx context.Context, pair TokenPair) error {
	return c.session.Login(ctx, pair)
}

// Logout ends the session unconditionally: tokens cleared, channel closed,
// notifications reset. It never fails.
func (c *Client) Logout(ctx context.Context) {
	c.session.Logout(ctx)
}

// Refresh forces a token refresh. Overlapping callers share one attempt.
func (c *Client) Refresh(ctx context.Context) error {
	return c.session.Refresh(ctx)
}

// Session returns the current session snapshot.
func (c *Client) Session() Snapshot {
	return c.session.Snapshot()
}

// AccessToken returns a currently-valid bearer token for the application's
// own backend calls, refreshing on demand.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.session.AccessToken(ctx)
}

// Authorize runs the authorization gate over the current session with the
// configured redirect targets.
func (c *Client) Authorize(required ...Role) Decision {
	return authorize(c.session.Snapshot(), c.config.Gate.LoginTarget, c.config.Gate.HomeTarget, required)
}

// Notifications returns the current records (newest first) and the derived
// unread count.
func (c *Client) Notifications() ([]Notification, int) {
	return c.notifications.Snapshot()
}

// RefetchNotifications replaces the notification set from the backend.
func (c *Client) RefetchNotifications(ctx context.Context) error {
	return c.notifications.Refetch(ctx)
}

// MarkRead flags one notification read (optimistic, rolled back on backend
// failure).
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.notifications.MarkRead(ctx, id)
}

// MarkAllRead marks every unread notification read and refetches so the set
// converges even when some per-item requests failed.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.notifications.MarkAllRead(ctx)
}

// NotificationsDegraded reports whether the push channel gave up and the
// store is in poll-only mode.
func (c *Client) NotificationsDegraded() bool {
	return c.notifications.Degraded()
}

// MetricsSnapshot returns a point-in-time copy of the client's counters.
func (c *Client) MetricsSnapshot() map[MetricID]uint64 {
	return c.metrics.Snapshot()
}
