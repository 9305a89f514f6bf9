// Package claims decodes SafeVoice access tokens into structured claim values
// without verifying signatures. Verification is the backend's job; the client
// only needs the payload (subject, role, expiry) to drive session state.
//
// # Architecture boundaries
//
// This package owns token payload decoding and expiry arithmetic. It does NOT
// decide what an expired or invalid token means for the session — that policy
// belongs to the session manager.
//
// # What this package must NOT do
//
//   - Perform network or storage I/O.
//   - Import any sibling package.
//   - Treat expiry as a decode failure (callers must be able to tell a
//     malformed token from an expired one).
package claims
