package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safevoice/safevoice-go/notify"
	"github.com/safevoice/safevoice-go/tokenstore"
)

// ErrRefreshRejected is returned when the backend refuses the refresh token.
// The session cannot be recovered without a new login.
var ErrRefreshRejected = errors.New("refresh token rejected")

// ErrInvalidCredentials is returned when the credential exchange fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUnauthorized is returned when an authenticated call is rejected with
// 401 despite a fresh token.
var ErrUnauthorized = errors.New("unauthorized")

// TokenSource supplies a currently-valid bearer token for authenticated
// calls, refreshing on demand when the held token is missing or expiring.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client talks to the SafeVoice REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	log        *zap.Logger

	tokens TokenSource
}

// NewClient creates a REST client rooted at baseURL. timeout bounds each
// individual call.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
		log:        log,
	}
}

// SetTokenSource wires the bearer source for authenticated calls. Login and
// Refresh never use it, so the session manager can be constructed on top of
// this client without a cycle.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for a token pair via POST /login.
func (c *Client) Login(ctx context.Context, identifier, password string) (tokenstore.Pair, error) {
	body := map[string]string{"username": identifier, "password": password}

	var resp tokenResponse
	status, err := c.call(ctx, http.MethodPost, "/login", "", body, &resp)
	if err != nil {
		return tokenstore.Pair{}, err
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusBadRequest:
		return tokenstore.Pair{}, ErrInvalidCredentials
	case status < 200 || status > 299:
		return tokenstore.Pair{}, fmt.Errorf("login: unexpected status %d", status)
	}
	if resp.Access == "" {
		return tokenstore.Pair{}, fmt.Errorf("login: empty access token in response")
	}
	return tokenstore.Pair{Access: resp.Access, Refresh: resp.Refresh}, nil
}

// Refresh exchanges a refresh token for a new pair via POST /token/refresh.
// The backend may omit a rotated refresh token, in which case Pair.Refresh
// is empty and the caller keeps its previous one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (tokenstore.Pair, error) {
	body := map[string]string{"refresh": refreshToken}

	var resp tokenResponse
	status, err := c.call(ctx, http.MethodPost, "/token/refresh", "", body, &resp)
	if err != nil {
		return tokenstore.Pair{}, err
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return tokenstore.Pair{}, ErrRefreshRejected
	case status < 200 || status > 299:
		return tokenstore.Pair{}, fmt.Errorf("refresh: unexpected status %d", status)
	}
	if resp.Access == "" {
		return tokenstore.Pair{}, fmt.Errorf("refresh: %w", errMalformedResponse)
	}
	return tokenstore.Pair{Access: resp.Access, Refresh: resp.Refresh}, nil
}

var errMalformedResponse = errors.New("malformed response")

// Notifications fetches the full notification list via GET /notifications.
func (c *Client) Notifications(ctx context.Context) ([]notify.Record, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	var records []notify.Record
	status, err := c.call(ctx, http.MethodGet, "/notifications", token, nil, &records)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("notifications: unexpected status %d", status)
	}
	return records, nil
}

// MarkRead flags one notification read via POST /notifications/{id}/mark-read.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/notifications/%d/mark-read", id)
	status, err := c.call(ctx, http.MethodPost, path, token, nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("mark-read: unexpected status %d", status)
	}
	return nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", errors.New("rest client has no token source")
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("bearer token: %w", err)
	}
	return token, nil
}

// call performs one bounded request and decodes a 2xx JSON body into out
// when out is non-nil. Non-2xx statuses are returned to the caller for
// endpoint-specific mapping; the body is drained either way.
func (c *Client) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
