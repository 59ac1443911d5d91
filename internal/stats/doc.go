// Package stats defines the append-only event sink the cache engine reports
// hit/miss/strip/sync/prefetch/passthrough outcomes to, plus the in-memory
// raw-size table used to credit cache hits with bandwidth savings. The core
// only writes; aggregation queries exist for an external dashboard that is
// not part of this package.
package stats
