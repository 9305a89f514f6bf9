package claims

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when the token is not a structurally valid JWT.
var ErrMalformed = errors.New("malformed token")

// ErrMissingRole is returned when the token payload carries no role claim.
var ErrMissingRole = errors.New("token missing role claim")

// ErrMissingExpiry is returned when the token payload carries no exp claim.
var ErrMissingExpiry = errors.New("token missing exp claim")

// ErrMissingSubject is returned when no subject can be resolved from the
// token payload (neither sub, user_id, nor id).
var ErrMissingSubject = errors.New("token missing subject claim")

// Claims is the immutable decoded payload of an access token.
//
// Claims values are produced only by [Decode] and never constructed by hand.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
	IssuedAt  time.Time // zero when the token carries no iat
}

type wirePayload struct {
	Role   string          `json:"role"`
	UserID json.RawMessage `json:"user_id"`
	ID     json.RawMessage `json:"id"`
	jwt.RegisteredClaims
}

// Decode parses a compact signed token and extracts its claims. The signature
// is not verified. Decode fails on malformed structure, invalid segment
// encoding, or missing required claims (role, exp, subject). An expired token
// decodes successfully; use [Claims.Expired] or [Claims.ExpiresWithin].
func Decode(token string) (*Claims, error) {
	parser := jwt.NewParser()
	payload := &wirePayload{}
	if _, _, err := parser.ParseUnverified(token, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if payload.Role == "" {
		return nil, ErrMissingRole
	}
	if payload.ExpiresAt == nil {
		return nil, ErrMissingExpiry
	}

	subject := payload.Subject
	if subject == "" {
		subject = rawToString(payload.UserID)
	}
	if subject == "" {
		subject = rawToString(payload.ID)
	}
	if subject == "" {
		return nil, ErrMissingSubject
	}

	c := &Claims{
		Subject:   subject,
		Role:      payload.Role,
		ExpiresAt: payload.ExpiresAt.Time,
	}
	if payload.IssuedAt != nil {
		c.IssuedAt = payload.IssuedAt.Time
	}
	return c, nil
}

// Expired reports whether the token's exp claim is in the past.
func (c *Claims) Expired() bool {
	return c.ExpiresWithin(0)
}

// ExpiresWithin reports whether the token's remaining lifetime is at or below
// d. The session manager uses this both for the startup skew check and for
// the proactive-refresh threshold.
func (c *Claims) ExpiresWithin(d time.Duration) bool {
	return time.Until(c.ExpiresAt) <= d
}

// rawToString normalizes a subject-bearing claim that backends emit either as
// a JSON string or as a bare number.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}
