package feedlog

import (
	"context"
	"sync"

	"ssbsql/internal/notify"
)

// Memory is an in-process Log.
type Memory struct {
	mu     sync.RWMutex
	frames [][]byte
	notify *notify.Broadcaster
}

func NewMemory() *Memory {
	return &Memory{notify: notify.New()}
}

func (m *Memory) Append(ctx context.Context, frames ...[]byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	for _, f := range frames {
		m.frames = append(m.frames, append([]byte(nil), f...))
	}
	latest := uint64(len(m.frames))
	m.mu.Unlock()

	if len(frames) > 0 {
		m.notify.Publish(latest)
	}
	return latest, nil
}

func (m *Memory) ReadFrames(ctx context.Context, after uint64, max int) ([]Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if after >= uint64(len(m.frames)) {
		return nil, nil
	}
	end := uint64(len(m.frames))
	if max > 0 && after+uint64(max) < end {
		end = after + uint64(max)
	}
	out := make([]Frame, 0, end-after)
	for seq := after + 1; seq <= end; seq++ {
		out = append(out, Frame{Seq: seq, Data: m.frames[seq-1]})
	}
	return out, nil
}

func (m *Memory) Latest() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.frames))
}

func (m *Memory) Subscribe(fn func(latest uint64)) (cancel func()) {
	return m.notify.Subscribe(fn)
}
