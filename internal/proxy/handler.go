package proxy

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/npmcache/internal/cache"
	"github.com/any-hub/npmcache/internal/stats"
)

// Handler is the single front-door handler for all inbound requests. It
// implements server.ProxyHandler.
type Handler struct {
	client      *http.Client
	logger      *logrus.Logger
	store       cache.Store
	sink        stats.Sink
	strip       *StripPipeline
	registryURL string
}

// NewHandler builds a Handler wired to the shared upstream client, logger,
// cache store, stats sink, and strip pipeline.
func NewHandler(client *http.Client, logger *logrus.Logger, store cache.Store, sink stats.Sink, strip *StripPipeline, registryURL string) *Handler {
	return &Handler{
		client:      client,
		logger:      logger,
		store:       store,
		sink:        sink,
		strip:       strip,
		registryURL: registryURL,
	}
}

// Handle routes a request per the classifier chain: health probe, non-GET
// passthrough, special-path passthrough, metadata GET.
func (h *Handler) Handle(c fiber.Ctx) error {
	start := time.Now()
	method := c.Method()
	path := string(c.Request().URI().Path())

	switch Classify(method, path) {
	case DispositionHealth:
		return c.Status(fiber.StatusOK).SendString("ok")
	case DispositionPassthrough:
		return h.passthrough(c, path, start)
	default:
		return h.metadataGet(c, path, start)
	}
}

func (h *Handler) passthrough(c fiber.Ctx, path string, start time.Time) error {
	ctx := requestContext(c)
	targetURL := h.registryURL + path
	if qs := c.Request().URI().QueryString(); len(qs) > 0 {
		targetURL += "?" + string(qs)
	}

	req, err := buildUpstreamRequest(ctx, c, targetURL, false)
	if err != nil {
		h.logger.WithError(err).WithField("path", path).Warn("passthrough_request_build_failed")
		return c.Status(fiber.StatusBadGateway).SendString("bad gateway")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.WithError(err).WithField("path", path).Warn("passthrough_upstream_failed")
		return c.Status(fiber.StatusBadGateway).SendString("bad gateway")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logger.WithError(err).WithField("path", path).Warn("passthrough_read_failed")
		return c.Status(fiber.StatusBadGateway).SendString("bad gateway")
	}

	copyUpstreamHeaders(c, resp.Header)
	c.Response().Header.Del(fiber.HeaderTransferEncoding)
	c.Response().Header.SetContentLength(len(body))

	h.sink.RecordPassthrough(path, time.Since(start))
	return c.Status(resp.StatusCode).Send(body)
}

func (h *Handler) metadataGet(c fiber.Ctx, path string, start time.Time) error {
	ctx := requestContext(c)

	name, err := decodePackageName(path)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("invalid package name")
	}

	cached, err := h.store.Get(ctx, name)
	switch {
	case err == nil:
		c.Set(fiber.HeaderContentType, "application/json")
		c.Response().Header.SetContentLength(len(cached))
		h.sink.RecordHit(name, int64(len(cached)))
		return c.Status(fiber.StatusOK).Send(cached)
	case errors.Is(err, cache.ErrNotFound):
		// fall through to upstream fetch
	default:
		h.logger.WithError(err).WithField("package", name).Warn("cache_get_failed")
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}

	targetURL := h.registryURL + path
	req, err := buildUpstreamRequest(ctx, c, targetURL, true)
	if err != nil {
		h.logger.WithError(err).WithField("package", name).Warn("metadata_request_build_failed")
		return c.Status(fiber.StatusBadGateway).SendString("bad gateway")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.WithError(err).WithField("package", name).Warn("metadata_upstream_failed")
		return c.Status(fiber.StatusBadGateway).SendString("bad gateway")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logger.WithError(err).WithField("package", name).Warn("metadata_read_failed")
		return c.Status(fiber.StatusBadGateway).SendString("bad gateway")
	}

	copyUpstreamHeaders(c, resp.Header)
	c.Response().Header.Del(fiber.HeaderTransferEncoding)
	c.Response().Header.SetContentLength(len(body))

	h.sink.RecordMiss(name, int64(len(body)), time.Since(start))

	if h.strip != nil {
		h.strip.Enqueue(StripJob{
			Package:  name,
			Encoding: resp.Header.Get(fiber.HeaderContentEncoding),
			Body:     append([]byte(nil), body...),
		})
	}

	return c.Status(resp.StatusCode).Send(body)
}
