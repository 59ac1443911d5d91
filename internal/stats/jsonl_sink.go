package stats

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/any-hub/npmcache/internal/logging"
)

// JSONLSink appends one JSON object per event to a rotating log file (or
// stdout when no path is configured) and keeps the aggregate counters and
// raw-size table in memory, rebuilt on start by replaying the existing log.
type JSONLSink struct {
	mu  sync.Mutex
	out io.Writer

	rawSize *xsync.MapOf[string, int64]

	hits, misses, strips, syncs, prefetches, passthroughs atomic.Int64
	totalServed, totalSaved                               atomic.Int64
}

// NewJSONLSink opens (creating if absent) the event log at path and replays
// it to rebuild the in-memory counters and raw-size table. An empty path
// logs to stdout and starts with empty state.
func NewJSONLSink(path string, maxSize, maxBackups int, compress bool) (*JSONLSink, error) {
	sink := &JSONLSink{rawSize: xsync.NewMapOf[string, int64]()}

	if path != "" {
		if existing, err := os.ReadFile(path); err == nil {
			sink.replay(existing)
		}
	}

	out, err := logging.NewRotatingWriter(path, maxSize, maxBackups, compress)
	if err != nil {
		return nil, err
	}
	sink.out = out
	return sink, nil
}

func (s *JSONLSink) replay(data []byte) {
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			return
		}
		s.applyCounters(ev)
	}
}

func (s *JSONLSink) RecordHit(pkg string, servedBytes int64) {
	raw, _ := s.rawSize.Load(pkg)
	saved := raw - servedBytes
	if saved < 0 {
		saved = 0
	}
	ev := Event{Kind: EventHit, Package: pkg, Bytes: servedBytes, PrevBytes: saved, Time: time.Now()}
	s.hits.Add(1)
	s.totalServed.Add(servedBytes)
	s.totalSaved.Add(saved)
	s.write(ev)
}

func (s *JSONLSink) RecordMiss(pkg string, compressedBytes int64, elapsed time.Duration) {
	ev := Event{Kind: EventMiss, Package: pkg, Bytes: compressedBytes, ElapsedMS: elapsed.Milliseconds(), Time: time.Now()}
	s.misses.Add(1)
	s.write(ev)
}

func (s *JSONLSink) RecordStrip(pkg string, rawBytes, strippedBytes int64) {
	s.rawSize.Store(pkg, rawBytes)
	ev := Event{Kind: EventStrip, Package: pkg, Bytes: strippedBytes, PrevBytes: rawBytes, Time: time.Now()}
	s.strips.Add(1)
	s.write(ev)
}

func (s *JSONLSink) RecordSync(pkg string, prevBytes, newBytes int64) {
	s.rawSize.Store(pkg, prevBytes)
	ev := Event{Kind: EventSync, Package: pkg, Bytes: newBytes, PrevBytes: prevBytes, Time: time.Now()}
	s.syncs.Add(1)
	s.write(ev)
}

func (s *JSONLSink) RecordPrefetch(pkg string, rawBytes, strippedBytes int64) {
	s.rawSize.Store(pkg, rawBytes)
	ev := Event{Kind: EventPrefetch, Package: pkg, Bytes: strippedBytes, PrevBytes: rawBytes, Time: time.Now()}
	s.prefetches.Add(1)
	s.write(ev)
}

func (s *JSONLSink) RecordPassthrough(path string, elapsed time.Duration) {
	ev := Event{Kind: EventPassthrough, Path: path, ElapsedMS: elapsed.Milliseconds(), Time: time.Now()}
	s.passthroughs.Add(1)
	s.write(ev)
}

func (s *JSONLSink) RawSize(pkg string) int64 {
	v, _ := s.rawSize.Load(pkg)
	return v
}

func (s *JSONLSink) Totals() Totals {
	return Totals{
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Strips:       s.strips.Load(),
		Syncs:        s.syncs.Load(),
		Prefetches:   s.prefetches.Load(),
		Passthroughs: s.passthroughs.Load(),
		TotalServed:  s.totalServed.Load(),
		TotalSaved:   s.totalSaved.Load(),
	}
}

// applyCounters replays an already-durable event into the in-memory state
// without re-appending it to the log.
func (s *JSONLSink) applyCounters(ev Event) {
	switch ev.Kind {
	case EventHit:
		s.hits.Add(1)
		s.totalServed.Add(ev.Bytes)
		s.totalSaved.Add(ev.PrevBytes)
	case EventMiss:
		s.misses.Add(1)
	case EventStrip:
		s.rawSize.Store(ev.Package, ev.PrevBytes)
		s.strips.Add(1)
	case EventSync:
		s.rawSize.Store(ev.Package, ev.PrevBytes)
		s.syncs.Add(1)
	case EventPrefetch:
		s.rawSize.Store(ev.Package, ev.PrevBytes)
		s.prefetches.Add(1)
	case EventPassthrough:
		s.passthroughs.Add(1)
	}
}

func (s *JSONLSink) write(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = json.NewEncoder(s.out).Encode(ev)
}
