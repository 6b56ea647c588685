// File: internal/fetch/batch_test.go
package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBatchPreservesInputOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("alpha")) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("gamma")) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := newTestEngine(t, testFetcherConfig(), nil)
	coordinator := NewBatchCoordinator(engine, 0, zap.NewNop())

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}
	results := coordinator.FetchAll(context.Background(), urls)

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, "alpha", results[0].Content)
	assert.False(t, results[1].Success)
	assert.Equal(t, "HTTPStatusFailure", results[1].ErrorKind)
	assert.True(t, results[2].Success)
	assert.Equal(t, "gamma", results[2].Content)
}

func TestBatchFailureDoesNotAbortSiblings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := testFetcherConfig()
	cfg.MaxRetries = 1
	engine := newTestEngine(t, cfg, nil)
	coordinator := NewBatchCoordinator(engine, 0, zap.NewNop())

	// The middle URL points at a closed port.
	dead := httptest.NewServer(http.HandlerFunc(nil))
	deadURL := dead.URL
	dead.Close()

	results := coordinator.FetchAll(context.Background(), []string{srv.URL, deadURL, srv.URL})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "ConnectionFailure", results[1].ErrorKind)
	assert.True(t, results[2].Success)
}

func TestBatchConcurrencyCap(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	engine := newTestEngine(t, testFetcherConfig(), nil)
	coordinator := NewBatchCoordinator(engine, 2, zap.NewNop())

	urls := make([]string, 8)
	for i := range urls {
		urls[i] = srv.URL
	}
	results := coordinator.FetchAll(context.Background(), urls)

	for i, r := range results {
		assert.True(t, r.Success, "url %d failed: %s", i, r.Error)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestBatchEmptyInput(t *testing.T) {
	engine := newTestEngine(t, testFetcherConfig(), nil)
	coordinator := NewBatchCoordinator(engine, 0, zap.NewNop())
	assert.Empty(t, coordinator.FetchAll(context.Background(), nil))
}
