package indexer

import (
	"context"
	"sync"

	"ssbsql/internal/models"
	"ssbsql/internal/query"
)

// Deliver receives the rows of a live or deferred query run at progress.
type Deliver func(progress uint64, rows []models.IndexedMessage, err error)

// Live re-runs the query built from mods every time progress moves past the
// last value it ran at, starting from the progress at subscription time.
// It stops when cancel is called or ctx is done.
func (ix *Indexer) Live(ctx context.Context, mods []query.Modifier, deliver Deliver) (cancel func()) {
	var (
		mu        sync.Mutex
		watermark = ix.Latest()
	)
	unsubscribe := ix.Subscribe(func(progress uint64) {
		mu.Lock()
		defer mu.Unlock()
		if progress <= watermark || ctx.Err() != nil {
			return
		}
		watermark = progress
		rows, err := query.Messages(ctx, ix.db, mods...)
		deliver(progress, rows, err)
	})
	ix.metrics.LiveQueries.Inc()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			unsubscribe()
			ix.metrics.LiveQueries.Dec()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}
}

// WhenUpTo runs the query once progress reaches seq and delivers the result
// exactly once. If progress is already there it runs before returning.
// Cancelling, or ctx ending, before then drops the query.
func (ix *Indexer) WhenUpTo(ctx context.Context, seq uint64, mods []query.Modifier, deliver Deliver) (cancel func()) {
	var (
		once        sync.Once
		unsubscribe func()
		stop        func() bool
		ready       = make(chan struct{})
	)
	run := func(progress uint64) {
		once.Do(func() {
			<-ready
			unsubscribe()
			stop()
			if ctx.Err() != nil {
				return
			}
			rows, err := query.Messages(ctx, ix.db, mods...)
			deliver(progress, rows, err)
		})
	}
	unsubscribe = ix.Subscribe(func(progress uint64) {
		if progress >= seq {
			run(progress)
		}
	})
	cancel = func() {
		once.Do(func() {})
		unsubscribe()
	}
	stop = context.AfterFunc(ctx, cancel)
	close(ready)

	if progress := ix.Latest(); progress >= seq {
		run(progress)
	}
	return cancel
}

// WaitFor blocks until progress reaches seq or ctx is done.
func (ix *Indexer) WaitFor(ctx context.Context, seq uint64) error {
	reached := make(chan struct{})
	var once sync.Once
	cancel := ix.Subscribe(func(progress uint64) {
		if progress >= seq {
			once.Do(func() { close(reached) })
		}
	})
	defer cancel()

	if ix.Latest() >= seq {
		return nil
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
