// Package server provides the shared HTTP transport used for upstream
// registry requests: a tuned *http.Client with connection reuse, and the
// hop-by-hop header filtering required to copy headers between the inbound
// request and the outbound upstream fetch without leaking proxy-only fields.
package server
