// File: internal/fetch/batch.go
package fetch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// BatchCoordinator fetches groups of URLs concurrently through a shared
// engine. Each URL gets the engine's full retry policy independently; one
// URL's failure never aborts its siblings.
type BatchCoordinator struct {
	engine *Engine
	limit  int64
	log    *zap.Logger
}

// NewBatchCoordinator wraps an engine. limit caps in-flight fetches when
// positive; zero means unbounded.
func NewBatchCoordinator(engine *Engine, limit int, logger *zap.Logger) *BatchCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchCoordinator{
		engine: engine,
		limit:  int64(limit),
		log:    logger.Named("batch"),
	}
}

// FetchAll fetches every URL concurrently and returns results in input
// order: results[i] always corresponds to urls[i]. The call returns only
// after every fetch has settled.
func (b *BatchCoordinator) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	var sem *semaphore.Weighted
	if b.limit > 0 {
		sem = semaphore.NewWeighted(b.limit)
	}

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = failureResult(u, &FetchError{
						Kind:    KindClientProtocol,
						Message: fmt.Sprintf("unexpected fault in batch fetch: %v", r),
					}, 0)
				}
			}()

			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					results[i] = failureResult(u, Classify(err), 0)
					return
				}
				defer sem.Release(1)
			}

			results[i] = b.engine.Fetch(ctx, Request{URL: u})
		}(i, u)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	b.log.Info("Batch fetch complete",
		zap.Int("total", len(urls)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(urls)-succeeded))
	return results
}
