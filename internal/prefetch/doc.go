// Package prefetch walks the dependency closure of a freshly cached package
// breadth-first, warming the cache for packages the client has not yet
// asked for. Traversals are bounded by a concurrency semaphore and a total
// package budget, and de-duplicated against a process-wide inflight set so
// overlapping traversals never fetch the same package twice.
package prefetch
