package safevoice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safevoice/safevoice-go/tokenstore"
)

func mintToken(t *testing.T, subject, role string, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// testBackend fakes enough of the SafeVoice API for end-to-end runs: a
// credential exchange, token refresh, the notification list, per-item
// mark-read, and the push websocket.
type testBackend struct {
	t *testing.T

	mu            sync.Mutex
	accessToken   string
	refreshToken  string
	notifications []backendNotification
	refreshCalls  int
	pushConns     []*websocket.Conn

	srv *httptest.Server
}

type backendNotification struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func newTestBackend(t *testing.T, role string) *testBackend {
	b := &testBackend{
		t:            t,
		accessToken:  mintToken(t, "42", role, time.Hour),
		refreshToken: "refresh-1",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", b.handleLogin)
	mux.HandleFunc("/token/refresh", b.handleRefresh)
	mux.HandleFunc("/notifications", b.handleList)
	mux.HandleFunc("/notifications/", b.handleMarkRead)
	mux.HandleFunc("/ws/notifications/", b.handlePush)
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *testBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)
	if body["username"] != "alice" || body["password"] != "s3cret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]string{"access": b.accessToken, "refresh": b.refreshToken})
}

func (b *testBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshCalls++
	if body["refresh"] != b.refreshToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"access": b.accessToken, "refresh": b.refreshToken})
}

func (b *testBackend) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+b.accessToken
}

func (b *testBackend) handleList(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	json.NewEncoder(w).Encode(b.notifications)
}

func (b *testBackend) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "mark-read" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var id int64
	fmt.Sscanf(parts[1], "%d", &id)

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications {
		if b.notifications[i].ID == id {
			b.notifications[i].IsRead = true
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (b *testBackend) handlePush(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.pushConns = append(b.pushConns, conn)
	b.mu.Unlock()
	conn.Read(r.Context())
}

func (b *testBackend) seed(n backendNotification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append([]backendNotification{n}, b.notifications...)
}

func (b *testBackend) push(t *testing.T, n backendNotification) {
	t.Helper()
	b.seed(n)
	frame, err := json.Marshal(map[string]any{"type": "notification", "message": n})
	require.NoError(t, err)

	b.mu.Lock()
	conns := append([]*websocket.Conn(nil), b.pushConns...)
	b.mu.Unlock()
	for _, conn := range conns {
		conn.Write(context.Background(), websocket.MessageText, frame)
	}
}

func (b *testBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws/notifications"
}

func newTestClient(t *testing.T, b *testBackend, store tokenstore.Store) *Client {
	t.Helper()
	builder := New().
		WithBaseURL(b.srv.URL).
		WithSocketURL(b.wsURL()).
		WithHTTPClient(b.srv.Client())
	if store != nil {
		builder.WithTokenStore(store)
	}
	c, err := builder.Build()
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestClientLoginFlow(t *testing.T) {
	backend := newTestBackend(t, "user")
	c := newTestClient(t, backend, nil)

	snap := c.Start(context.Background())
	require.Equal(t, StatusUnauthenticated, snap.Status)

	require.ErrorIs(t,
		c.LoginWithCredentials(context.Background(), "alice", "wrong"),
		ErrInvalidCredentials)

	require.NoError(t, c.LoginWithCredentials(context.Background(), "alice", "s3cret"))
	snap = c.Session()
	assert.Equal(t, StatusAuthenticated, snap.Status)
	assert.Equal(t, "42", snap.Subject)
	assert.Equal(t, "user", snap.Role)
}

func TestClientStartResumesStoredSession(t *testing.T) {
	backend := newTestBackend(t, "admin")
	store := tokenstore.NewMemory()
	require.NoError(t, store.Save(context.Background(), TokenPair{
		Access:  mintToken(t, "42", "admin", time.Hour),
		Refresh: "refresh-1",
	}))

	c := newTestClient(t, backend, store)
	snap := c.Start(context.Background())
	assert.Equal(t, StatusAuthenticated, snap.Status)
	assert.Equal(t, "admin", snap.Role)

	backend.mu.Lock()
	calls := backend.refreshCalls
	backend.mu.Unlock()
	assert.Zero(t, calls, "a valid stored token needs no refresh")
}

func TestClientStartRefreshesExpiringStoredToken(t *testing.T) {
	backend := newTestBackend(t, "user")
	store := tokenstore.NewMemory()
	require.NoError(t, store.Save(context.Background(), TokenPair{
		Access:  mintToken(t, "42", "user", 5*time.Second),
		Refresh: "refresh-1",
	}))

	c := newTestClient(t, backend, store)
	snap := c.Start(context.Background())
	assert.Equal(t, StatusAuthenticated, snap.Status)

	backend.mu.Lock()
	calls := backend.refreshCalls
	backend.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestClientAuthorize(t *testing.T) {
	backend := newTestBackend(t, "user")
	c := newTestClient(t, backend, nil)
	c.Start(context.Background())

	d := c.Authorize()
	assert.False(t, d.Allowed)
	assert.Equal(t, "/login", d.Target)

	require.NoError(t, c.LoginWithCredentials(context.Background(), "alice", "s3cret"))

	assert.True(t, c.Authorize().Allowed)
	assert.True(t, c.Authorize(RoleUser).Allowed)

	d = c.Authorize(RoleAdmin)
	assert.False(t, d.Allowed)
	assert.Equal(t, "/", d.Target)
}

func TestClientNotificationLifecycle(t *testing.T) {
	backend := newTestBackend(t, "user")
	backend.seed(backendNotification{ID: 1, Message: "report received", CreatedAt: time.Now()})
	c := newTestClient(t, backend, nil)
	c.Start(context.Background())
	require.NoError(t, c.LoginWithCredentials(context.Background(), "alice", "s3cret"))

	require.NoError(t, c.RefetchNotifications(context.Background()))
	records, unread := c.Notifications()
	require.Len(t, records, 1)
	require.Equal(t, 1, unread)

	// a live push lands in the same set
	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.pushConns) > 0
	}, 5*time.Second, 10*time.Millisecond, "push channel never connected")

	backend.push(t, backendNotification{ID: 2, Message: "status update", CreatedAt: time.Now()})
	require.Eventually(t, func() bool {
		_, unread := c.Notifications()
		return unread == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.MarkRead(context.Background(), 1))
	_, unread = c.Notifications()
	assert.Equal(t, 1, unread)

	require.NoError(t, c.MarkAllRead(context.Background()))
	_, unread = c.Notifications()
	assert.Zero(t, unread)
}

func TestClientMarkReadUnknown(t *testing.T) {
	backend := newTestBackend(t, "user")
	c := newTestClient(t, backend, nil)
	c.Start(context.Background())
	require.NoError(t, c.LoginWithCredentials(context.Background(), "alice", "s3cret"))

	require.ErrorIs(t, c.MarkRead(context.Background(), 404), ErrUnknownNotification)
}

func TestClientLogoutResetsEverything(t *testing.T) {
	backend := newTestBackend(t, "user")
	backend.seed(backendNotification{ID: 1, Message: "m", CreatedAt: time.Now()})
	store := tokenstore.NewMemory()
	c := newTestClient(t, backend, store)
	c.Start(context.Background())
	require.NoError(t, c.LoginWithCredentials(context.Background(), "alice", "s3cret"))
	require.NoError(t, c.RefetchNotifications(context.Background()))

	c.Logout(context.Background())

	assert.Equal(t, StatusUnauthenticated, c.Session().Status)
	records, unread := c.Notifications()
	assert.Empty(t, records, "notifications must not leak across subjects")
	assert.Zero(t, unread)
	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "token store not cleared")
}

func TestClientAccessTokenRoundTrip(t *testing.T) {
	backend := newTestBackend(t, "user")
	c := newTestClient(t, backend, nil)
	c.Start(context.Background())

	_, err := c.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, c.LoginWithCredentials(context.Background(), "alice", "s3cret"))
	token, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestClientMetrics(t *testing.T) {
	backend := newTestBackend(t, "user")
	c := newTestClient(t, backend, nil)
	c.Start(context.Background())
	require.NoError(t, c.LoginWithCredentials(context.Background(), "alice", "s3cret"))

	snap := c.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap[MetricLoginSuccess])
}

func TestBuilderBuildsOnce(t *testing.T) {
	b := New().WithBaseURL("http://localhost:1")
	_, err := b.Build()
	require.NoError(t, err)
	_, err = b.Build()
	require.Error(t, err)
}

func TestBuilderRejectsMissingBaseURL(t *testing.T) {
	_, err := New().Build()
	require.Error(t, err)
}
