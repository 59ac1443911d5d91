package changesync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/npmcache/internal/cache"
	"github.com/any-hub/npmcache/internal/stats"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestSynchronizer(t *testing.T, registry http.Handler) (*Synchronizer, cache.Store, string) {
	t.Helper()
	regSrv := httptest.NewServer(registry)
	t.Cleanup(regSrv.Close)

	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)

	sink, err := stats.NewJSONLSink("", 0, 0, false)
	require.NoError(t, err)

	cursorPath := filepath.Join(t.TempDir(), ".sync-seq")

	sync := New(regSrv.Client(), store, sink, discardLogger(), cursorPath, "unused", regSrv.URL, 1000, 5, 10*time.Second, 5*time.Minute)
	return sync, store, cursorPath
}

func TestApplyPageUpdatesExistingEntry(t *testing.T) {
	registry := http.NewServeMux()
	registry.HandleFunc("/express", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"name": "express",
			"dist-tags": {"latest": "4.18.1"},
			"versions": {"4.18.1": {"name": "express", "version": "4.18.1"}}
		}`))
	})

	sync, store, cursorPath := newTestSynchronizer(t, registry)
	require.NoError(t, store.Put(context.Background(), "express", []byte(`{"name":"express","versions":{}}`)))

	page := feedPage{
		Results: []Change{{Seq: json.RawMessage("42"), ID: "express"}},
		LastSeq: json.RawMessage("42"),
	}
	require.NoError(t, sync.applyPage(context.Background(), page))

	data, err := store.Get(context.Background(), "express")
	require.NoError(t, err)
	require.Contains(t, string(data), "4.18.1")

	cursor := NewCursor(cursorPath)
	require.Equal(t, "42", cursor.Read())
}

func TestApplyPageRemovesDeletedEntry(t *testing.T) {
	sync, store, cursorPath := newTestSynchronizer(t, http.NewServeMux())
	require.NoError(t, store.Put(context.Background(), "express", []byte(`{"name":"express"}`)))

	page := feedPage{
		Results: []Change{{Seq: json.RawMessage("43"), ID: "express", Deleted: true}},
		LastSeq: json.RawMessage("43"),
	}
	require.NoError(t, sync.applyPage(context.Background(), page))

	_, err := store.Get(context.Background(), "express")
	require.ErrorIs(t, err, cache.ErrNotFound)

	cursor := NewCursor(cursorPath)
	require.Equal(t, "43", cursor.Read())
}

func TestApplyPageSkipsUncachedPackage(t *testing.T) {
	var calls int
	registry := http.NewServeMux()
	registry.HandleFunc("/left-pad", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"name":"left-pad"}`))
	})

	sync, _, _ := newTestSynchronizer(t, registry)
	page := feedPage{
		Results: []Change{{Seq: json.RawMessage("1"), ID: "left-pad"}},
		LastSeq: json.RawMessage("1"),
	}
	require.NoError(t, sync.applyPage(context.Background(), page))
	require.Zero(t, calls)
}

func TestApplyPageSkipsNonLowercaseName(t *testing.T) {
	sync, store, _ := newTestSynchronizer(t, http.NewServeMux())
	require.NoError(t, store.Put(context.Background(), "Express", []byte(`{"name":"Express"}`)))

	page := feedPage{
		Results: []Change{{Seq: json.RawMessage("1"), ID: "Express"}},
		LastSeq: json.RawMessage("1"),
	}
	require.NoError(t, sync.applyPage(context.Background(), page))

	data, err := store.Get(context.Background(), "Express")
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"Express"}`, string(data))
}

func TestRunExitsOnContextCancellation(t *testing.T) {
	sync, _, _ := newTestSynchronizer(t, http.NewServeMux())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sync.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}
