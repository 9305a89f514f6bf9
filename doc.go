// Package safevoice is the Go client SDK for the SafeVoice
// anonymous-incident-reporting backend. It owns the authentication
// lifecycle (durable token storage, claims decoding, proactive and reactive
// refresh with single-flight de-duplication), a role-based authorization
// gate for protected views, and a live notification subsystem (websocket
// channel with bounded reconnection, reconciled against fetched lists).
//
// The package is designed for concurrent callers: Client methods are safe
// to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// safevoice is the public surface. It exposes [Client], [Builder], [Config],
// the [Authorize] gate, and value types. Claims decoding lives in claims/,
// token persistence in tokenstore/, the session state machine in session/,
// and notification state in notify/; the REST plumbing is internal.
//
// # What this package must NOT do
//
//   - Let an error in this subsystem be fatal to the hosting application
//     (the worst outcome is a forced logout).
//   - Issue two concurrent refresh round trips for one session.
//   - Leave timers or connections running after Close.
package safevoice
