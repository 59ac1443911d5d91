package prefetch

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/any-hub/npmcache/internal/cache"
	"github.com/any-hub/npmcache/internal/stats"
	"github.com/any-hub/npmcache/internal/trimmer"
	"github.com/any-hub/npmcache/internal/upstream"
)

// Prefetcher walks the dependency closure of a document breadth-first.
type Prefetcher struct {
	client      *http.Client
	store       cache.Store
	sink        stats.Sink
	logger      *logrus.Logger
	registryURL string

	sem      *semaphore.Weighted
	maxTotal int

	// inflight deduplicates fetches across overlapping traversals: if
	// package P is already being prefetched by one walk, a second walk
	// that reaches P must not issue a parallel fetch.
	inflight *xsync.MapOf[string, struct{}]
}

// New builds a Prefetcher. concurrency bounds simultaneous upstream fetches
// (N_CONCURRENT); maxTotal bounds packages fetched per root invocation
// (N_MAX).
func New(client *http.Client, store cache.Store, sink stats.Sink, logger *logrus.Logger, registryURL string, concurrency, maxTotal int) *Prefetcher {
	return &Prefetcher{
		client:      client,
		store:       store,
		sink:        sink,
		logger:      logger,
		registryURL: registryURL,
		sem:         semaphore.NewWeighted(int64(concurrency)),
		maxTotal:    maxTotal,
		inflight:    xsync.NewMapOf[string, struct{}](),
	}
}

// Walk extracts the dependency names from trimmedBody's dist-tags.latest
// version and prefetches the dependency closure breadth-first. Best-effort:
// never returns an error, never blocks past its own ctx cancellation.
func (p *Prefetcher) Walk(ctx context.Context, trimmedBody []byte) {
	frontier := upstream.ExtractLatestDependencies(trimmedBody)
	if len(frontier) == 0 {
		return
	}

	visited := map[string]bool{}
	remaining := p.maxTotal

	for len(frontier) > 0 && remaining > 0 {
		var mu sync.Mutex
		var next []string
		var wg sync.WaitGroup

		for _, name := range frontier {
			if remaining <= 0 {
				break
			}
			if visited[name] {
				continue
			}
			visited[name] = true

			if already := p.alreadyCached(ctx, name); already {
				continue
			}
			if _, loaded := p.inflight.LoadOrStore(name, struct{}{}); loaded {
				continue
			}
			if err := p.sem.Acquire(ctx, 1); err != nil {
				p.inflight.Delete(name)
				continue
			}
			remaining--

			wg.Add(1)
			go func(pkg string) {
				defer wg.Done()
				defer p.sem.Release(1)
				defer p.inflight.Delete(pkg)

				deps, err := p.fetchOne(ctx, pkg)
				if err != nil {
					p.logger.WithError(err).WithField("package", pkg).Warn("prefetch_failed")
					return
				}
				mu.Lock()
				next = append(next, deps...)
				mu.Unlock()
			}(name)
		}

		wg.Wait()
		frontier = next
	}
}

func (p *Prefetcher) alreadyCached(ctx context.Context, name string) bool {
	_, err := p.store.Size(ctx, name)
	if err == nil {
		return true
	}
	if errors.Is(err, cache.ErrNotFound) {
		return false
	}
	return false
}

// fetchOne downloads, trims, and stores one package, returning its own
// dependency names for the next BFS level.
func (p *Prefetcher) fetchOne(ctx context.Context, name string) ([]string, error) {
	body, encoding, err := upstream.FetchMetadata(ctx, p.client, p.registryURL, "/"+name)
	if err != nil {
		return nil, err
	}

	decompressed, err := upstream.Decompress(encoding, body)
	if err != nil {
		return nil, err
	}

	doc, err := trimmer.Parse(decompressed)
	if err != nil {
		return nil, err
	}

	var trimmedBytes []byte
	if !doc.IsMetadata() {
		trimmedBytes = decompressed
	} else {
		trimmed, err := trimmer.Trim(doc)
		if err != nil {
			return nil, err
		}
		trimmedBytes, err = trimmed.Marshal()
		if err != nil {
			return nil, err
		}
	}

	if err := p.store.Put(ctx, name, trimmedBytes); err != nil {
		return nil, err
	}

	p.sink.RecordPrefetch(name, int64(len(decompressed)), int64(len(trimmedBytes)))
	return upstream.ExtractLatestDependencies(trimmedBytes), nil
}
