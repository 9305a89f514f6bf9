// Package rest is the thin JSON client for the SafeVoice backend endpoints
// the session and notification subsystems consume. Every call is bounded by
// an explicit timeout and tagged with an X-Request-ID for correlation.
//
// # What this package must NOT do
//
//   - Hold session state or interpret claims (it only moves tokens).
//   - Retry on its own (retry policy belongs to the callers).
package rest
