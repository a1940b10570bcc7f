// Package feedlog stores the raw append-only message log the indexer reads.
//
// Frames are numbered from 1 in append order. A reader asks for the frames
// after the last sequence it has seen.
package feedlog

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("feedlog: closed")

// Frame is one raw record.
type Frame struct {
	Seq  uint64
	Data []byte
}

// Log is what the indexer consumes.
type Log interface {
	// ReadFrames returns up to max frames with Seq > after, in order.
	// max <= 0 means every available frame.
	ReadFrames(ctx context.Context, after uint64, max int) ([]Frame, error)
	// Latest returns the sequence of the newest frame, 0 when empty.
	Latest() uint64
	// Subscribe calls fn with the new latest sequence after each append.
	Subscribe(fn func(latest uint64)) (cancel func())
}

// Appender is a Log that accepts new frames.
type Appender interface {
	Log
	Append(ctx context.Context, frames ...[]byte) (uint64, error)
}
