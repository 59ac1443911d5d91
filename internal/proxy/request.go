package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/npmcache/internal/server"
)

// ErrEmptyPackageName is returned when the request path carries no package
// name segment.
var ErrEmptyPackageName = errors.New("empty package name")

// decodePackageName derives the package name from a request path, percent-
// decoding as needed. Scoped names keep their slash (e.g. "@types/node").
func decodePackageName(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/")
	name, err := url.PathUnescape(trimmed)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrEmptyPackageName
	}
	return name, nil
}

// conditionalHeaders are stripped from the outbound upstream request on a
// metadata miss so the upstream body is always returned in full.
var conditionalHeaders = map[string]bool{
	"If-None-Match":     true,
	"If-Modified-Since": true,
}

// buildUpstreamRequest constructs the outbound request for targetURL,
// copying the inbound client's headers minus hop-by-hop fields, the Host
// header (rewritten by http.Request from targetURL), and, when
// stripConditional is set, the conditional-request headers.
func buildUpstreamRequest(ctx context.Context, c fiber.Ctx, targetURL string, stripConditional bool) (*http.Request, error) {
	var bodyReader io.Reader
	if body := c.Body(); len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), targetURL, bodyReader)
	if err != nil {
		return nil, err
	}

	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if server.IsHopByHopHeader(k) || strings.EqualFold(k, fiber.HeaderHost) {
			return
		}
		if stripConditional && conditionalHeaders[http.CanonicalHeaderKey(k)] {
			return
		}
		req.Header.Add(k, string(value))
	})

	return req, nil
}

// copyUpstreamHeaders copies every non-hop-by-hop header from an upstream
// http.Response onto the outbound Fiber response.
func copyUpstreamHeaders(c fiber.Ctx, header http.Header) {
	for key, values := range header {
		if server.IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
}

// requestContext returns the Fiber context's request-scoped context, falling
// back to context.Background() when unset.
func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
