// Package metrics provides lock-free counters for client observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The write path is allocation-free; Snapshot allocates one map.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshot creation only. It performs
// no I/O, exposes no global registry, and imports no sibling package.
package metrics
