// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parallel runs a function over a batch of items concurrently and
// returns results in input order. One item's failure never affects its
// siblings: errors and panics become degraded results for that slot only.
package parallel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Func processes one item. index is 1-based.
type Func[T, R any] func(ctx context.Context, item T, index, total int) (R, error)

// Degrade converts a failed item into a result. err is the error returned
// by Func, a recovered panic, or the context error for items that never ran.
type Degrade[T, R any] func(item T, err error) R

// Options tunes a Map call. The zero value runs every item at once with
// no status reporting.
type Options struct {
	// Desc labels status lines (default "Processing").
	Desc string

	// MaxConcurrency bounds items in flight. Zero means unbounded.
	MaxConcurrency int

	// ItemTimeout bounds each item. Zero means no per-item deadline.
	ItemTimeout time.Duration

	// StatusInterval is the period of "N/total done" lines. Zero disables them.
	StatusInterval time.Duration

	// Report receives status lines. Nil discards them.
	Report func(line string)

	// OnProgress is called after each item completes with the number done.
	OnProgress func(done, total int)
}

// tracker is the only state shared between item goroutines.
type tracker struct {
	mu      sync.Mutex
	done    int
	pending map[int]struct{}
}

func (t *tracker) finish(idx int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, idx)
	t.done++
	return t.done
}

func (t *tracker) snapshot() (done, pending int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done, len(t.pending)
}

// Map calls fn for every item and returns the results in input order.
// It blocks until every item has a result.
func Map[T, R any](ctx context.Context, items []T, fn Func[T, R], degrade Degrade[T, R], opts Options) []R {
	total := len(items)
	if total == 0 {
		return []R{}
	}
	desc := opts.Desc
	if desc == "" {
		desc = "Processing"
	}
	report := opts.Report
	if report == nil {
		report = func(string) {}
	}

	results := make([]R, total)
	tr := &tracker{pending: make(map[int]struct{}, total)}
	for i := range items {
		tr.pending[i] = struct{}{}
	}

	var sem *semaphore.Weighted
	if opts.MaxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(opts.MaxConcurrency))
	}

	report(fmt.Sprintf("%s: %d items...", desc, total))

	stopStatus := make(chan struct{})
	statusDone := make(chan struct{})
	if opts.StatusInterval > 0 {
		go func() {
			defer close(statusDone)
			ticker := time.NewTicker(opts.StatusInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stopStatus:
					return
				case <-ticker.C:
					done, pending := tr.snapshot()
					if pending == 0 {
						return
					}
					report(fmt.Sprintf("%s: %d/%d done, %d pending", desc, done, total, pending))
				}
			}
		}()
	} else {
		close(statusDone)
	}

	// errgroup without WithContext: a failing item must not cancel siblings.
	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			results[i] = runOne(ctx, sem, item, i, total, fn, degrade, opts.ItemTimeout)
			done := tr.finish(i)
			if opts.OnProgress != nil {
				opts.OnProgress(done, total)
			}
			return nil
		})
	}
	_ = g.Wait()

	close(stopStatus)
	<-statusDone
	return results
}

func runOne[T, R any](ctx context.Context, sem *semaphore.Weighted, item T, i, total int, fn Func[T, R], degrade Degrade[T, R], timeout time.Duration) (result R) {
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return degrade(item, err)
		}
		defer sem.Release(1)
	}

	defer func() {
		if p := recover(); p != nil {
			result = degrade(item, fmt.Errorf("panic: %v", p))
		}
	}()

	itemCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r, err := fn(itemCtx, item, i+1, total)
	if err != nil {
		return degrade(item, err)
	}
	return r
}
