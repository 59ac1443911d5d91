package changesync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/any-hub/npmcache/internal/cache"
	"github.com/any-hub/npmcache/internal/stats"
	"github.com/any-hub/npmcache/internal/trimmer"
	"github.com/any-hub/npmcache/internal/upstream"
)

// Change is one entry of a changes-feed page.
type Change struct {
	Seq     json.RawMessage `json:"seq"`
	ID      string          `json:"id"`
	Deleted bool            `json:"deleted"`
}

type feedPage struct {
	Results []Change        `json:"results"`
	LastSeq json.RawMessage `json:"last_seq"`
}

// Synchronizer keeps cached entries current with the upstream changes feed.
type Synchronizer struct {
	client      *http.Client
	store       cache.Store
	sink        stats.Sink
	logger      *logrus.Logger
	cursor      *Cursor
	feedURL     string
	registryURL string
	pageLimit   int
	poll        time.Duration
	maxBackoff  time.Duration
	sem         *semaphore.Weighted
}

// New builds a Synchronizer. concurrency bounds simultaneous batch fetches
// with a semaphore of the Synchronizer's own.
func New(client *http.Client, store cache.Store, sink stats.Sink, logger *logrus.Logger, cursorPath, feedURL, registryURL string, pageLimit, concurrency int, pollInterval, maxBackoff time.Duration) *Synchronizer {
	return &Synchronizer{
		client:      client,
		store:       store,
		sink:        sink,
		logger:      logger,
		cursor:      NewCursor(cursorPath),
		feedURL:     feedURL,
		registryURL: registryURL,
		pageLimit:   pageLimit,
		poll:        pollInterval,
		maxBackoff:  maxBackoff,
		sem:         semaphore.NewWeighted(int64(concurrency)),
	}
}

// Run loops until ctx is cancelled. It never returns on a handled error:
// every failure is logged and followed by a backoff sleep.
func (s *Synchronizer) Run(ctx context.Context) {
	backoff := s.poll

	for {
		if ctx.Err() != nil {
			return
		}

		result, err := s.fetchPage(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("sync_poll_failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = doubleBackoff(backoff, s.maxBackoff)
			continue
		}

		if result.status == http.StatusTooManyRequests {
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = doubleBackoff(backoff, s.maxBackoff)
			continue
		}
		if result.status < 200 || result.status >= 300 {
			s.logger.WithField("status", result.status).Warn("sync_non_2xx")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = doubleBackoff(backoff, s.maxBackoff)
			continue
		}

		backoff = s.poll

		if err := s.applyPage(ctx, result.page); err != nil {
			s.logger.WithError(err).Warn("sync_apply_failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			continue
		}

		if len(result.page.Results) >= s.pageLimit {
			continue
		}
		if !sleepCtx(ctx, s.poll) {
			return
		}
	}
}

type pollResult struct {
	status int
	page   feedPage
}

func (s *Synchronizer) fetchPage(ctx context.Context) (pollResult, error) {
	since := s.cursor.Read()
	target := s.feedURL + "?since=" + url.QueryEscape(since) + "&limit=" + strconv.Itoa(s.pageLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return pollResult{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return pollResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return pollResult{status: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pollResult{status: resp.StatusCode}, err
	}

	var page feedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return pollResult{status: resp.StatusCode}, err
	}

	return pollResult{status: resp.StatusCode, page: page}, nil
}

// applyPage applies one page's changes to the store in order, fetching
// to-update entries concurrently, then persists the cursor only after every
// effect is durable.
func (s *Synchronizer) applyPage(ctx context.Context, page feedPage) error {
	var toFetch []string
	for _, change := range page.Results {
		if change.ID != strings.ToLower(change.ID) {
			continue
		}
		if _, err := s.store.Size(ctx, change.ID); err != nil {
			continue
		}
		if change.Deleted {
			if err := s.store.Delete(ctx, change.ID); err != nil {
				s.logger.WithError(err).WithField("package", change.ID).Warn("sync_delete_failed")
			}
			continue
		}
		toFetch = append(toFetch, change.ID)
	}

	var wg sync.WaitGroup
	for _, name := range toFetch {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			continue
		}
		wg.Add(1)
		go func(pkg string) {
			defer wg.Done()
			defer s.sem.Release(1)
			s.fetchAndOverwrite(ctx, pkg)
		}(name)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	seq := strings.Trim(string(page.LastSeq), `"`)
	if seq == "" {
		seq = "0"
	}
	return s.cursor.Write(seq)
}

func (s *Synchronizer) fetchAndOverwrite(ctx context.Context, name string) {
	prevSize, _ := s.store.Size(ctx, name)

	body, encoding, err := upstream.FetchMetadata(ctx, s.client, s.registryURL, "/"+name)
	if err != nil {
		s.logger.WithError(err).WithField("package", name).Warn("sync_fetch_failed")
		return
	}

	decompressed, err := upstream.Decompress(encoding, body)
	if err != nil {
		s.logger.WithError(err).WithField("package", name).Warn("sync_decompress_failed")
		return
	}

	doc, err := trimmer.Parse(decompressed)
	if err != nil {
		s.logger.WithError(err).WithField("package", name).Warn("sync_parse_failed")
		return
	}

	var trimmedBytes []byte
	if !doc.IsMetadata() {
		trimmedBytes = decompressed
	} else {
		trimmed, err := trimmer.Trim(doc)
		if err != nil {
			s.logger.WithError(err).WithField("package", name).Warn("sync_trim_failed")
			return
		}
		trimmedBytes, err = trimmed.Marshal()
		if err != nil {
			s.logger.WithError(err).WithField("package", name).Warn("sync_marshal_failed")
			return
		}
	}

	if err := s.store.Put(ctx, name, trimmedBytes); err != nil {
		s.logger.WithError(err).WithField("package", name).Warn("sync_store_failed")
		return
	}

	s.sink.RecordSync(name, prevSize, int64(len(trimmedBytes)))
}

// sleepCtx sleeps for d or until ctx is cancelled, reporting which happened.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func doubleBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
