package feedlog

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"ssbsql/internal/notify"
)

const framePrefix = 'F'

func frameKey(seq uint64) []byte {
	key := make([]byte, 9)
	key[0] = framePrefix
	binary.BigEndian.PutUint64(key[1:], seq)
	return key
}

func frameSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[1:])
}

// Pebble is a Log persisted in a pebble database, one key per frame.
type Pebble struct {
	db     *pebble.DB
	mu     sync.Mutex
	latest atomic.Uint64
	closed atomic.Bool
	notify *notify.Broadcaster
}

// OpenPebble opens or creates the log at path. opts may be nil.
func OpenPebble(path string, opts *pebble.Options) (*Pebble, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	database, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open feed log %s: %w", path, err)
	}
	p := &Pebble{db: database, notify: notify.New()}

	iter, err := database.NewIter(&pebble.IterOptions{
		LowerBound: frameKey(0),
		UpperBound: []byte{framePrefix + 1},
	})
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("scan feed log: %w", err)
	}
	if iter.Last() {
		p.latest.Store(frameSeq(iter.Key()))
	}
	if err := iter.Close(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("scan feed log: %w", err)
	}
	return p, nil
}

// Append writes frames in one synced batch and returns the new latest
// sequence.
func (p *Pebble) Append(ctx context.Context, frames ...[]byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p.closed.Load() {
		return 0, ErrClosed
	}
	if len(frames) == 0 {
		return p.latest.Load(), nil
	}

	p.mu.Lock()
	seq := p.latest.Load()
	batch := p.db.NewBatch()
	for _, f := range frames {
		seq++
		if err := batch.Set(frameKey(seq), f, nil); err != nil {
			_ = batch.Close()
			p.mu.Unlock()
			return 0, fmt.Errorf("append frame %d: %w", seq, err)
		}
	}
	if err := p.db.Apply(batch, pebble.Sync); err != nil {
		_ = batch.Close()
		p.mu.Unlock()
		return 0, fmt.Errorf("append frames: %w", err)
	}
	_ = batch.Close()
	p.latest.Store(seq)
	p.mu.Unlock()

	p.notify.Publish(seq)
	return seq, nil
}

func (p *Pebble) ReadFrames(ctx context.Context, after uint64, max int) ([]Frame, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	iter, err := p.db.NewIterWithContext(ctx, &pebble.IterOptions{
		LowerBound: frameKey(after + 1),
		UpperBound: []byte{framePrefix + 1},
	})
	if err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	defer iter.Close()

	var out []Frame
	for valid := iter.First(); valid; valid = iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, Frame{
			Seq:  frameSeq(iter.Key()),
			Data: append([]byte(nil), iter.Value()...),
		})
		if max > 0 && len(out) == max {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	return out, nil
}

func (p *Pebble) Latest() uint64 {
	return p.latest.Load()
}

func (p *Pebble) Subscribe(fn func(latest uint64)) (cancel func()) {
	return p.notify.Subscribe(fn)
}

func (p *Pebble) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.db.Close()
}
