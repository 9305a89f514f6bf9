// Package notify maintains the live notification state of a SafeVoice
// client: a [Store] that reconciles push events with fetched lists and
// derives the unread count, and a [Channel] that keeps a websocket
// connection open for the authenticated subject with bounded reconnection.
//
// # Architecture boundaries
//
// The Channel only moves frames; all bookkeeping (idempotent ingestion,
// read flags, unread count) lives in the Store. Neither type knows about
// session state — the client supervises the Channel from session
// transitions and tears it down by cancelling its context.
//
// # What this package must NOT do
//
//   - Trust a server-provided unread count (always derived locally).
//   - Retry a failed connection forever (budget exceeded means degrade to
//     poll-only and signal the Store).
//   - Crash on a malformed frame (drop and log).
package notify
