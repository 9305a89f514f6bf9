package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/safevoice/safevoice-go/internal/metrics"
)

const frameTypeNotification = "notification"

// TokenSource supplies a currently-valid bearer token, refreshing on demand.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ChannelConfig controls dialing and the reconnection policy.
type ChannelConfig struct {
	// URL is the push endpoint base; the subject id is appended as a path
	// segment ("wss://host/ws/notifications" + "/{subject}/").
	URL string
	// DialTimeout bounds each websocket dial.
	DialTimeout time.Duration
	// InitialBackoff, MaxBackoff, and Multiplier shape the delay between
	// reconnect attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// MaxRetries is the consecutive-failure budget. Once exceeded the
	// channel signals terminal degradation and stops.
	MaxRetries int
	// ReadLimit caps the size of a single inbound frame.
	ReadLimit int64
}

// Channel maintains the push connection for one authenticated subject.
// It runs until its context is cancelled or the retry budget is exhausted.
type Channel struct {
	cfg        ChannelConfig
	store      *Store
	tokens     TokenSource // optional; bearer header added when present
	httpClient *http.Client
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// NewChannel creates a channel that forwards inbound notification frames
// into store.
func NewChannel(cfg ChannelConfig, store *Store, tokens TokenSource, httpClient *http.Client, log *zap.Logger, m *metrics.Metrics) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Channel{
		cfg:        cfg,
		store:      store,
		tokens:     tokens,
		httpClient: httpClient,
		log:        log,
		metrics:    m,
	}
}

// Run connects, reads frames, and reconnects with exponential backoff until
// ctx is cancelled. A successfully read frame resets the retry budget; once
// MaxRetries consecutive failures accumulate, Run marks the store degraded
// and returns.
func (c *Channel) Run(ctx context.Context, subject string) {
	bo := c.newBackOff()
	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		delivered, err := c.connect(ctx, subject)
		if ctx.Err() != nil {
			return
		}
		if delivered {
			failures = 0
			bo = c.newBackOff()
		}
		failures++
		if failures > c.cfg.MaxRetries {
			c.log.Warn("notification channel retry budget exhausted, degrading to poll-only",
				zap.String("subject", subject),
				zap.Int("retries", c.cfg.MaxRetries),
				zap.Error(err))
			c.metrics.Inc(metrics.MetricChannelTerminal)
			c.store.SetDegraded(true)
			return
		}

		c.metrics.Inc(metrics.MetricChannelRetries)
		delay := bo.NextBackOff()
		c.log.Debug("notification channel reconnecting",
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connect dials once and reads frames until the connection drops. It reports
// whether at least one frame was read on this connection.
func (c *Channel) connect(ctx context.Context, subject string) (bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	opts := &websocket.DialOptions{HTTPClient: c.httpClient}
	if c.tokens != nil {
		token, err := c.tokens.AccessToken(dialCtx)
		if err != nil {
			return false, fmt.Errorf("channel token: %w", err)
		}
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + token}}
	}

	conn, _, err := websocket.Dial(dialCtx, c.endpoint(subject), opts)
	if err != nil {
		return false, fmt.Errorf("channel dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "closed")

	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}
	c.metrics.Inc(metrics.MetricChannelConnects)
	c.store.SetDegraded(false)

	delivered := false
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return delivered, fmt.Errorf("channel read: %w", err)
		}
		delivered = true
		c.handleFrame(msg)
	}
}

func (c *Channel) handleFrame(msg []byte) {
	var frame struct {
		Type    string          `json:"type"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(msg, &frame); err != nil {
		c.metrics.Inc(metrics.MetricFramesDropped)
		c.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}
	if frame.Type != frameTypeNotification {
		return
	}

	var rec Record
	if err := json.Unmarshal(frame.Message, &rec); err != nil || rec.ID == 0 {
		c.metrics.Inc(metrics.MetricFramesDropped)
		c.log.Warn("dropping malformed notification payload", zap.Error(err))
		return
	}
	c.store.Ingest(rec)
}

func (c *Channel) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.Multiplier = c.cfg.Multiplier
	return bo
}

func (c *Channel) endpoint(subject string) string {
	return strings.TrimRight(c.cfg.URL, "/") + "/" + subject + "/"
}
