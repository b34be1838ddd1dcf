package download

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// backoffDelay returns the delay between retry attempt n and n+1:
// 1000 * (n+1)^2 ms, a pure function of the attempt index so tests can
// assert on it without a clock (§4.5, §9).
func backoffDelay(attempt int) time.Duration {
	n := int64(attempt + 1)
	return time.Duration(1000*n*n) * time.Millisecond
}

// schedulerDeps bundles what the scheduler needs to run one chunk's
// retry loop, independent of which chunk.
type schedulerDeps struct {
	transferParams chunkTransferParams
	retryCount     int
	aborted        func() bool
	onChunkStarted func(chunk *Chunk, attempt int)
	onChunkDone    func(chunk *Chunk, attempt int)
	onChunkError   func(chunk *Chunk, attempt int, err error)
	sleep          func(time.Duration)
}

// runChunk executes the retry loop described in §4.5: up to retryCount+1
// attempts, quadratic backoff between failures, short-circuited the
// moment the session's aborted latch is observed.
func runChunk(ctx context.Context, deps schedulerDeps, chunk *Chunk) error {
	var lastErr error

	for attempt := 0; attempt <= deps.retryCount; attempt++ {
		if deps.aborted() || ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return &CancelledError{Offset: chunk.Offset}
		}

		if deps.onChunkStarted != nil {
			deps.onChunkStarted(chunk, attempt)
		}

		err := transferChunk(ctx, deps.transferParams, chunk)
		if err == nil {
			if deps.onChunkDone != nil {
				deps.onChunkDone(chunk, attempt)
			}
			return nil
		}

		lastErr = err
		if deps.onChunkError != nil {
			deps.onChunkError(chunk, attempt, err)
		}

		// A cancelled parent context (caller's ctx, not just an
		// Abort()) means every further attempt would fail the same
		// way — stop retrying instead of burning through the
		// backoff schedule on a transfer that can never succeed.
		if deps.aborted() || ctx.Err() != nil {
			return lastErr
		}

		if attempt < deps.retryCount {
			deps.sleep(backoffDelay(attempt))
		}
	}

	return &FatalChunkError{Offset: chunk.Offset, Attempt: deps.retryCount + 1, Err: lastErr}
}

// runSchedule dispatches every chunk in plan.PendingChunks() across at
// most concurrency simultaneous workers (P6), using golang.org/x/sync's
// errgroup.SetLimit to bound the pool the way its rest of the corpus
// bounds worker fan-out. The first terminal chunk error stops further
// dispatch (already-started chunks finish or are cancelled per the
// abort policy) and is returned as the schedule's error.
func runSchedule(ctx context.Context, plan *Plan, concurrency int, deps schedulerDeps) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, idx := range plan.PendingChunks() {
		idx := idx
		g.Go(func() error {
			return runChunk(gctx, deps, &plan.Chunks[idx])
		})
	}

	return g.Wait()
}
