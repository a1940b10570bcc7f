// Package notify fans a sequence number out to subscribers.
package notify

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

type subscription struct {
	fn        func(uint64)
	cancelled atomic.Bool
}

// Broadcaster delivers published values to every live subscriber, in the
// publisher's goroutine. The zero value is not usable; use New.
type Broadcaster struct {
	subs *xsync.MapOf[uuid.UUID, *subscription]
}

func New() *Broadcaster {
	return &Broadcaster{subs: xsync.NewMapOf[uuid.UUID, *subscription]()}
}

// Subscribe registers fn. The returned cancel func is idempotent and may be
// called from inside fn; once it returns fn is not invoked again.
func (b *Broadcaster) Subscribe(fn func(uint64)) (cancel func()) {
	id := uuid.New()
	sub := &subscription{fn: fn}
	b.subs.Store(id, sub)
	return func() {
		sub.cancelled.Store(true)
		b.subs.Delete(id)
	}
}

// Publish calls every subscriber with seq.
func (b *Broadcaster) Publish(seq uint64) {
	b.subs.Range(func(_ uuid.UUID, sub *subscription) bool {
		if !sub.cancelled.Load() {
			sub.fn(seq)
		}
		return true
	})
}

// Len returns the number of live subscriptions.
func (b *Broadcaster) Len() int {
	return b.subs.Size()
}
