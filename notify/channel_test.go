package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

type staticTokens struct{ token string }

func (s staticTokens) AccessToken(ctx context.Context) (string, error) {
	return s.token, nil
}

func testChannelConfig(url string) ChannelConfig {
	return ChannelConfig{
		URL:            url,
		DialTimeout:    2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
		MaxRetries:     3,
		ReadLimit:      1 << 20,
	}
}

func TestChannelDeliversFramesIntoStore(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotAuth  string
		accepted = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		ctx := r.Context()
		frames := []string{
			`{"type":"notification","message":{"id":1,"message":"report received","is_read":false}}`,
			`{"type":"notification","message":{"id":1,"message":"report received","is_read":false}}`,
			`{"type":"ping","message":{}}`,
			`not even json`,
			`{"type":"notification","message":{"id":2,"message":"status update","is_read":false}}`,
		}
		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		close(accepted)
		// hold the connection open until the client walks away
		conn.Read(ctx)
	}))
	defer srv.Close()

	store := NewStore(&fakeBackend{}, nil, nil)
	ch := NewChannel(testChannelConfig(srv.URL+"/ws/notifications"), store, staticTokens{token: "tok-1"}, srv.Client(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch.Run(ctx, "42")
	}()

	select {
	case <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("server never finished writing frames")
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.UnreadCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	records, unread := store.Snapshot()
	if len(records) != 2 || unread != 2 {
		t.Fatalf("records = %d unread = %d, want duplicate and junk frames dropped", len(records), unread)
	}

	mu.Lock()
	path, auth := gotPath, gotAuth
	mu.Unlock()
	if path != "/ws/notifications/42/" {
		t.Fatalf("dial path = %q", path)
	}
	if auth != "Bearer tok-1" {
		t.Fatalf("authorization header = %q", auth)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not stop on cancel")
	}
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	var (
		mu    sync.Mutex
		dials int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		if n == 1 {
			// deliver one frame, then drop the connection
			conn.Write(r.Context(), websocket.MessageText,
				[]byte(`{"type":"notification","message":{"id":10,"message":"first","is_read":false}}`))
			conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		conn.Write(r.Context(), websocket.MessageText,
			[]byte(`{"type":"notification","message":{"id":11,"message":"second","is_read":false}}`))
		conn.Read(r.Context())
	}))
	defer srv.Close()

	store := NewStore(&fakeBackend{}, nil, nil)
	ch := NewChannel(testChannelConfig(srv.URL+"/ws/notifications"), store, nil, srv.Client(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch.Run(ctx, "7")
	}()

	deadline := time.Now().Add(5 * time.Second)
	for store.UnreadCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := store.UnreadCount(); n != 2 {
		t.Fatalf("unread = %d, want frames from both connections", n)
	}
	if store.Degraded() {
		t.Fatal("store degraded despite successful reconnect")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not stop on cancel")
	}
}

func TestChannelDegradesAfterRetryBudget(t *testing.T) {
	// the handler never upgrades, so every dial fails
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := NewStore(&fakeBackend{}, nil, nil)
	cfg := testChannelConfig(srv.URL + "/ws/notifications")
	cfg.MaxRetries = 2
	ch := NewChannel(cfg, store, nil, srv.Client(), nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ch.Run(context.Background(), "7")
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("channel never gave up")
	}
	if !store.Degraded() {
		t.Fatal("store not marked degraded after exhausting the retry budget")
	}
}
