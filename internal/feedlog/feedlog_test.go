package feedlog

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemPebble(t *testing.T, fs vfs.FS) *Pebble {
	t.Helper()
	p, err := OpenPebble("feed", &pebble.Options{FS: fs})
	require.NoError(t, err)
	return p
}

func implementations(t *testing.T) map[string]Appender {
	p := openMemPebble(t, vfs.NewMem())
	t.Cleanup(func() { p.Close() })
	return map[string]Appender{
		"memory": NewMemory(),
		"pebble": p,
	}
}

func frames(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("frame-%d", i+1))
	}
	return out
}

func TestAppendAndRead(t *testing.T) {
	ctx := context.Background()
	for name, log := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, uint64(0), log.Latest())
			got, err := log.ReadFrames(ctx, 0, 0)
			require.NoError(t, err)
			assert.Empty(t, got)

			latest, err := log.Append(ctx, frames(7)...)
			require.NoError(t, err)
			assert.Equal(t, uint64(7), latest)
			assert.Equal(t, uint64(7), log.Latest())

			all, err := log.ReadFrames(ctx, 0, 0)
			require.NoError(t, err)
			require.Len(t, all, 7)
			for i, f := range all {
				assert.Equal(t, uint64(i+1), f.Seq)
				assert.Equal(t, fmt.Sprintf("frame-%d", i+1), string(f.Data))
			}

			chunk, err := log.ReadFrames(ctx, 2, 3)
			require.NoError(t, err)
			require.Len(t, chunk, 3)
			assert.Equal(t, uint64(3), chunk[0].Seq)
			assert.Equal(t, uint64(5), chunk[2].Seq)

			tail, err := log.ReadFrames(ctx, 5, 10)
			require.NoError(t, err)
			require.Len(t, tail, 2)

			none, err := log.ReadFrames(ctx, 7, 0)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestSubscribeSeesLatest(t *testing.T) {
	ctx := context.Background()
	for name, log := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			var seen []uint64
			cancel := log.Subscribe(func(latest uint64) { seen = append(seen, latest) })

			_, err := log.Append(ctx, frames(2)...)
			require.NoError(t, err)
			_, err = log.Append(ctx, []byte("x"))
			require.NoError(t, err)
			cancel()
			_, err = log.Append(ctx, []byte("y"))
			require.NoError(t, err)

			assert.Equal(t, []uint64{2, 3}, seen)
		})
	}
}

func TestPebbleReopenRestoresLatest(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()

	p := openMemPebble(t, fs)
	_, err := p.Append(ctx, frames(4)...)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Append(ctx, []byte("late"))
	assert.ErrorIs(t, err, ErrClosed)

	reopened := openMemPebble(t, fs)
	defer reopened.Close()
	assert.Equal(t, uint64(4), reopened.Latest())

	latest, err := reopened.Append(ctx, []byte("five"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), latest)

	got, err := reopened.ReadFrames(ctx, 4, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "five", string(got[0].Data))
}
