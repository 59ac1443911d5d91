package proxy

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/npmcache/internal/cache"
	"github.com/any-hub/npmcache/internal/stats"
	"github.com/any-hub/npmcache/internal/trimmer"
	"github.com/any-hub/npmcache/internal/upstream"
)

// StripJob is one unit of work for the async strip pipeline: the compressed
// body fetched on a metadata miss, awaiting decompression and trimming.
type StripJob struct {
	Package  string
	Encoding string
	Body     []byte
}

// PrefetchTrigger hands a freshly trimmed document to the dependency
// prefetcher. Best-effort: implementations must not block the caller.
type PrefetchTrigger interface {
	Walk(ctx context.Context, trimmedBody []byte)
}

// StripPipeline runs the decompress -> parse -> trim -> store -> delete-raw
// sequence on a bounded worker pool, off the client response path.
type StripPipeline struct {
	jobs       chan StripJob
	store      cache.Store
	sink       stats.Sink
	logger     *logrus.Logger
	prefetcher PrefetchTrigger
}

// NewStripPipeline starts workers goroutines consuming a queue of depth
// queueSize. prefetcher may be nil to disable the prefetch trigger.
func NewStripPipeline(store cache.Store, sink stats.Sink, logger *logrus.Logger, prefetcher PrefetchTrigger, workers, queueSize int) *StripPipeline {
	p := &StripPipeline{
		jobs:       make(chan StripJob, queueSize),
		store:      store,
		sink:       sink,
		logger:     logger,
		prefetcher: prefetcher,
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Enqueue schedules a job, dropping it with a log line if the queue is full
// rather than blocking the caller.
func (p *StripPipeline) Enqueue(job StripJob) {
	select {
	case p.jobs <- job:
	default:
		p.logger.WithField("package", job.Package).Warn("strip_queue_full")
	}
}

func (p *StripPipeline) worker() {
	for job := range p.jobs {
		p.process(job)
	}
}

func (p *StripPipeline) process(job StripJob) {
	ctx := context.Background()
	raw := job.Body

	if err := p.store.Raw().Put(ctx, job.Package, raw); err != nil {
		p.logger.WithError(err).WithField("package", job.Package).Warn("raw_stage_write_failed")
	}

	decompressed, err := upstream.Decompress(job.Encoding, raw)
	if err != nil {
		p.logger.WithError(err).WithField("package", job.Package).Warn("strip_decompress_failed")
		return
	}

	doc, err := trimmer.Parse(decompressed)
	if err != nil {
		p.logger.WithError(err).WithField("package", job.Package).Warn("strip_parse_failed")
		return
	}

	var trimmedBytes []byte
	if !doc.IsMetadata() {
		trimmedBytes = decompressed
	} else {
		trimmed, err := trimmer.Trim(doc)
		if err != nil {
			p.logger.WithError(err).WithField("package", job.Package).Warn("strip_trim_failed")
			return
		}
		trimmedBytes, err = trimmed.Marshal()
		if err != nil {
			p.logger.WithError(err).WithField("package", job.Package).Warn("strip_marshal_failed")
			return
		}
	}

	if err := p.store.Put(ctx, job.Package, trimmedBytes); err != nil {
		p.logger.WithError(err).WithField("package", job.Package).Warn("strip_store_failed")
		return
	}

	if err := p.store.Raw().Delete(ctx, job.Package); err != nil {
		p.logger.WithError(err).WithField("package", job.Package).Warn("raw_stage_delete_failed")
	}

	p.sink.RecordStrip(job.Package, int64(len(decompressed)), int64(len(trimmedBytes)))

	if p.prefetcher != nil {
		p.prefetcher.Walk(context.Background(), trimmedBytes)
	}
}
