// Package tokenstore provides durable persistence for the access/refresh
// token pair, surviving process restarts within one deployment of the client.
//
// # Implementations
//
// [Memory] for tests and throwaway sessions, [File] for single-host clients
// (atomic temp-file-and-rename writes), and [Redis] for clients that already
// carry a Redis connection and want shared durability.
//
// # Architecture boundaries
//
// This package owns token persistence only. It does NOT decode tokens, judge
// their validity, or decide session state — an absent pair is the ordinary
// unauthenticated initial condition, never an error.
//
// # What this package must NOT do
//
//   - Write the access and refresh tokens separately (a pair is stored and
//     cleared as one unit).
//   - Import any sibling package.
package tokenstore
