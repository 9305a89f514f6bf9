// Package session owns the client-side authentication lifecycle: token
// hydration at startup, login and logout transitions, and proactive plus
// reactive refresh with single-flight de-duplication.
//
// # State machine
//
// Unauthenticated → Authenticating → Authenticated ⇄ Refreshing, with a
// transition back to Unauthenticated on logout or unrecoverable refresh
// failure. Authenticated always implies a present access token whose expiry
// was beyond the configured skew at the last check.
//
// # Architecture boundaries
//
// This package owns in-memory session state and refresh scheduling. Token
// persistence belongs to tokenstore, payload decoding to claims, and the
// network call to the injected [Refresher]. Dependents observe state through
// [Manager.Snapshot] and [Manager.Subscribe], never through errors escaping
// the refresh path.
//
// # What this package must NOT do
//
//   - Issue two concurrent refresh round trips for one session.
//   - Leave a timer running after logout or Close.
//   - Persist the access and refresh tokens separately.
package session
