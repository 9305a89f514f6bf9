package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/safevoice/safevoice-go/claims"
	"github.com/safevoice/safevoice-go/internal/metrics"
	"github.com/safevoice/safevoice-go/tokenstore"
)

// ErrNotAuthenticated is returned when an operation needs a live session and
// none exists (or the last refresh ended it).
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrClosed is returned after [Manager.Close].
var ErrClosed = errors.New("session manager closed")

// Status is the session lifecycle state.
type Status uint8

const (
	// StatusUnauthenticated is the initial and terminal state.
	StatusUnauthenticated Status = iota
	// StatusAuthenticating covers startup hydration through its first refresh.
	StatusAuthenticating
	// StatusAuthenticated means a decodable access token whose expiry was
	// beyond the configured skew at the last check.
	StatusAuthenticated
	// StatusRefreshing is Authenticated with a refresh round trip in flight.
	StatusRefreshing
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusRefreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// Snapshot is a read-only view of the session handed to dependents. Subject
// and Role are empty unless claims are held.
type Snapshot struct {
	Status  Status
	Subject string
	Role    string
}

// IsAuthenticated reports whether the snapshot represents a live session.
// Refreshing counts: the previous token is still the working credential
// until the refresh settles.
func (s Snapshot) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated || s.Status == StatusRefreshing
}

// Refresher performs the backend refresh exchange.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (tokenstore.Pair, error)
}

// Config holds the manager's timing policy. All fields must be positive.
type Config struct {
	// ExpirySkew is how much remaining token lifetime is required before the
	// token is treated as expiring (startup hydration and AccessToken).
	ExpirySkew time.Duration
	// ProactiveInterval is the period of the background expiry check.
	ProactiveInterval time.Duration
	// RefreshThreshold is the remaining lifetime below which the proactive
	// check triggers a refresh.
	RefreshThreshold time.Duration
	// RefreshTimeout bounds one refresh round trip. A hung call is a
	// refresh failure, never a stuck Refreshing state.
	RefreshTimeout time.Duration
}

// Manager owns the session state machine. Safe for concurrent use.
type Manager struct {
	cfg     Config
	store   tokenstore.Store
	backend Refresher
	log     *zap.Logger
	metrics *metrics.Metrics
	group   singleflight.Group

	mu          sync.Mutex
	status      Status
	pair        tokenstore.Pair
	claims      *claims.Claims
	gen         uint64
	subs        map[int]func(Snapshot)
	nextSub     int
	timerCancel context.CancelFunc
	closed      bool
}

// NewManager creates a manager in the Unauthenticated state. Call
// [Manager.Start] to hydrate from the token store.
func NewManager(cfg Config, store tokenstore.Store, backend Refresher, log *zap.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		store:   store,
		backend: backend,
		log:     log,
		metrics: m,
		subs:    make(map[int]func(Snapshot)),
	}
}

// Start hydrates the session from the token store. A stored access token
// with more than ExpirySkew of lifetime left authenticates directly; an
// expiring or undecodable one falls back to the refresh token; nothing
// stored settles in Unauthenticated. Start returns the settled snapshot.
func (m *Manager) Start(ctx context.Context) Snapshot {
	pair, ok, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("token store load, starting unauthenticated", zap.Error(err))
		ok = false
	}
	if !ok {
		return m.Snapshot()
	}

	if pair.Access != "" {
		if cl, err := claims.Decode(pair.Access); err == nil && !cl.ExpiresWithin(m.cfg.ExpirySkew) {
			m.mu.Lock()
			m.pair = pair
			m.claims = cl
			m.status = StatusAuthenticated
			m.startTimerLocked()
			snap := m.snapshotLocked()
			m.mu.Unlock()
			m.publish(snap)
			return snap
		}
	}

	if pair.Refresh == "" {
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn("token store clear", zap.Error(err))
		}
		return m.Snapshot()
	}

	m.mu.Lock()
	m.pair = pair
	m.status = StatusAuthenticating
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	_ = m.Refresh(ctx)
	return m.Snapshot()
}

// Refresh exchanges the held refresh token for a new pair. Overlapping
// callers share one in-flight attempt and receive its outcome; exactly one
// backend round trip happens per attempt. On failure the session ends:
// tokens are cleared and the state becomes Unauthenticated.
func (m *Manager) Refresh(ctx context.Context) error {
	ch := m.group.DoChan("refresh", func() (any, error) {
		return nil, m.refreshOnce()
	})
	select {
	case res := <-ch:
		if res.Shared {
			m.metrics.Inc(metrics.MetricRefreshShared)
		}
		return res.Err
	case <-ctx.Done():
		// The in-flight attempt keeps running and still settles the state.
		return ctx.Err()
	}
}

func (m *Manager) refreshOnce() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	gen := m.gen
	refresh := m.pair.Refresh
	var entering *Snapshot
	if m.status == StatusAuthenticated {
		m.status = StatusRefreshing
		snap := m.snapshotLocked()
		entering = &snap
	}
	m.mu.Unlock()
	if entering != nil {
		m.publish(*entering)
	}

	if refresh == "" {
		m.metrics.Inc(metrics.MetricRefreshFailure)
		m.endSession(gen, "no refresh token")
		return ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RefreshTimeout)
	defer cancel()

	pair, err := m.backend.Refresh(ctx, refresh)
	if err != nil {
		m.metrics.Inc(metrics.MetricRefreshFailure)
		m.endSession(gen, "refresh rejected")
		return fmt.Errorf("refresh: %w", err)
	}
	if pair.Refresh == "" {
		// server did not rotate, keep the previous refresh token
		pair.Refresh = refresh
	}

	cl, err := claims.Decode(pair.Access)
	if err != nil {
		m.metrics.Inc(metrics.MetricRefreshFailure)
		m.endSession(gen, "undecodable access token")
		return fmt.Errorf("refresh: %w", err)
	}

	if err := m.store.Save(ctx, pair); err != nil {
		// the in-memory session stays usable; durability degrades until the
		// next successful save
		m.log.Warn("token store save", zap.Error(err))
	}

	m.mu.Lock()
	if m.closed || m.gen != gen {
		// logout or login won the race; discard this outcome
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.pair = pair
	m.claims = cl
	m.status = StatusAuthenticated
	m.startTimerLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.metrics.Inc(metrics.MetricRefreshSuccess)
	m.publish(snap)
	return nil
}

// endSession clears tokens and settles in Unauthenticated, unless a
// concurrent login/logout already superseded generation gen.
func (m *Manager) endSession(gen uint64, reason string) {
	m.mu.Lock()
	if m.closed || m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.stopTimerLocked()
	m.pair = tokenstore.Pair{}
	m.claims = nil
	m.status = StatusUnauthenticated
	snap := m.snapshotLocked()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RefreshTimeout)
	defer cancel()
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn("token store clear", zap.Error(err))
	}
	m.log.Info("session ended", zap.String("reason", reason))
	m.publish(snap)
}

// Login installs a fresh token pair from a successful credential exchange
// and transitions directly to Authenticated.
func (m *Manager) Login(ctx context.Context, pair tokenstore.Pair) error {
	cl, err := claims.Decode(pair.Access)
	if err != nil {
		return fmt.Errorf("login token: %w", err)
	}
	if err := m.store.Save(ctx, pair); err != nil {
		m.log.Warn("token store save", zap.Error(err))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.gen++
	m.pair = pair
	m.claims = cl
	m.status = StatusAuthenticated
	m.startTimerLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.metrics.Inc(metrics.MetricLoginSuccess)
	m.publish(snap)
	return nil
}

// Logout clears the token store and the in-memory session unconditionally.
// It always succeeds; a store failure is logged, never surfaced.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.stopTimerLocked()
	m.pair = tokenstore.Pair{}
	m.claims = nil
	changed := m.status != StatusUnauthenticated
	m.status = StatusUnauthenticated
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn("token store clear on logout", zap.Error(err))
	}
	m.metrics.Inc(metrics.MetricLogout)
	if changed {
		m.publish(snap)
	}
}

// Close cancels the proactive timer and rejects further operations. It does
// not clear the token store; use Logout for that.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.gen++
	m.stopTimerLocked()
}

// AccessToken returns a currently-valid bearer token, refreshing on demand
// when the held token is missing or within ExpirySkew of expiry.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	status := m.status
	cl := m.claims
	access := m.pair.Access
	m.mu.Unlock()

	if status == StatusAuthenticated && cl != nil && !cl.ExpiresWithin(m.cfg.ExpirySkew) {
		return access, nil
	}

	if err := m.Refresh(ctx); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusAuthenticated || m.pair.Access == "" {
		return "", ErrNotAuthenticated
	}
	return m.pair.Access, nil
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{Status: m.status}
	if m.claims != nil {
		snap.Subject = m.claims.Subject
		snap.Role = m.claims.Role
	}
	return snap
}

// Subscribe registers fn to be called on every state transition. The
// returned function cancels the subscription. fn runs outside the manager's
// lock and may call back into the manager.
func (m *Manager) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) publish(snap Snapshot) {
	m.mu.Lock()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Manager) startTimerLocked() {
	if m.timerCancel != nil || m.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.timerCancel = cancel
	go m.proactiveLoop(ctx)
}

func (m *Manager) stopTimerLocked() {
	if m.timerCancel != nil {
		m.timerCancel()
		m.timerCancel = nil
	}
}

func (m *Manager) proactiveLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ProactiveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkExpiry(ctx)
		}
	}
}

// checkExpiry re-decodes the held access token so a since-corrupted token
// forces a refresh instead of crashing the timer.
func (m *Manager) checkExpiry(ctx context.Context) {
	m.mu.Lock()
	if m.status != StatusAuthenticated {
		m.mu.Unlock()
		return
	}
	access := m.pair.Access
	m.mu.Unlock()

	cl, err := claims.Decode(access)
	if err != nil {
		m.log.Warn("held access token no longer decodes, forcing refresh", zap.Error(err))
		_ = m.Refresh(ctx)
		return
	}
	if cl.ExpiresWithin(m.cfg.RefreshThreshold) {
		_ = m.Refresh(ctx)
	}
}
