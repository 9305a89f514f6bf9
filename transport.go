package safevoice

import "net/http"

// bearerTransport injects a fresh bearer token into every outbound request,
// refreshing on demand when the held token is missing or expiring.
type bearerTransport struct {
	base   http.RoundTripper
	client *Client
}

// Transport returns an [http.RoundTripper] that authenticates the
// application's own backend calls through this client's session. base may
// be nil, in which case [http.DefaultTransport] is used.
func (c *Client) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerTransport{base: base, client: c}
}

// RoundTrip implements [http.RoundTripper]. Requests never go out without a
// valid access token; a failed on-demand refresh fails the request instead.
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.client.AccessToken(req.Context())
	if err != nil {
		return nil, err
	}

	// Per RoundTripper contract the original request is not mutated.
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}
