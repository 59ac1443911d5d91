// Package proxy is the HTTP front door: it classifies every request into a
// health probe, a passthrough, or a metadata GET, serves cache hits from the
// store, and on a cache miss reads the full upstream body before sending it
// to the client, handing a copy to the async strip pipeline. The upstream
// body is not streamed to the client as it arrives. Tarball and non-GET
// traffic always passes through unmodified.
package proxy
