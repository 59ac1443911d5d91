package proxy

import (
	"net/http"
	"strings"
)

// Disposition is the outcome of classifying an inbound request.
type Disposition int

const (
	// DispositionHealth is the liveness probe path, answered without
	// contacting upstream.
	DispositionHealth Disposition = iota
	// DispositionPassthrough forwards the request to upstream verbatim:
	// non-GET methods, and any path containing the "/-/" sentinel segment
	// (tarballs, search, dist-tag management, login, ...).
	DispositionPassthrough
	// DispositionMetadata is a GET for "/<pkg>" or "/<@scope>/<pkg>".
	DispositionMetadata
)

const healthPath = "/-/health"

// Classify applies the request classifier chain in order: health probe,
// non-GET passthrough, special-path passthrough, metadata GET.
func Classify(method, path string) Disposition {
	if path == healthPath {
		return DispositionHealth
	}
	if method != http.MethodGet {
		return DispositionPassthrough
	}
	if strings.Contains(path, "/-/") {
		return DispositionPassthrough
	}
	return DispositionMetadata
}
