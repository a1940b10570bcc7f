// Package indexer turns the raw feed log into relational rows.
//
// Progress is the sequence of the last log frame whose chunk committed. It is
// stored in the same transaction as the chunk's rows, so after a crash the
// indexer resumes exactly after the last committed frame. Frames that fail to
// decode are skipped and still count towards progress.
package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ssbsql/internal/codec"
	"ssbsql/internal/db"
	"ssbsql/internal/feedlog"
	"ssbsql/internal/links"
	"ssbsql/internal/metrics"
	"ssbsql/internal/notify"
	"ssbsql/internal/privatebox"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrStorage         = errors.New("storage failure")
)

// Identity is the local feed. SecretKeys holds curve25519 secrets (32 bytes)
// or ed25519 private keys (64 bytes) to try on private messages.
type Identity struct {
	ID         string
	SecretKeys [][]byte
}

type Options struct {
	Log feedlog.Log
	DB  *sql.DB
	// Identity is optional. Without one nothing is decrypted and no author
	// is marked as the local feed.
	Identity *Identity
	Format   codec.Format
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

type Indexer struct {
	log     feedlog.Log
	db      *sql.DB
	format  codec.Format
	keys    []privatebox.SecretKey
	me      string
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	latest   atomic.Uint64
	progress *notify.Broadcaster
}

// New validates opts, brings the schema up to date and loads the persisted
// progress.
func New(ctx context.Context, opts Options) (*Indexer, error) {
	if opts.Log == nil {
		return nil, fmt.Errorf("%w: log is required", ErrInvalidArgument)
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("%w: database is required", ErrInvalidArgument)
	}
	ix := &Indexer{
		log:      opts.Log,
		db:       opts.DB,
		format:   opts.Format,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		progress: notify.New(),
	}
	if ix.metrics == nil {
		ix.metrics = metrics.New(nil)
	}
	if opts.Identity != nil {
		if links.Classify(opts.Identity.ID) != links.KindFeed {
			return nil, fmt.Errorf("%w: malformed feed id %q", ErrInvalidArgument, opts.Identity.ID)
		}
		keys, err := secretKeys(opts.Identity.SecretKeys)
		if err != nil {
			return nil, err
		}
		ix.me = opts.Identity.ID
		ix.keys = keys
	}

	if err := db.ApplyMigrations(opts.DB); err != nil {
		return nil, fmt.Errorf("%w: migrate: %w", ErrStorage, err)
	}
	if ix.me != "" {
		if err := db.SetAuthorIsMe(ctx, opts.DB, ix.me); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}
	progress, err := db.GetProgress(ctx, opts.DB)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	ix.latest.Store(progress)
	ix.metrics.Progress.Set(float64(progress))
	return ix, nil
}

func secretKeys(raw [][]byte) ([]privatebox.SecretKey, error) {
	keys := make([]privatebox.SecretKey, 0, len(raw))
	for i, k := range raw {
		switch len(k) {
		case 32:
			var sk privatebox.SecretKey
			copy(sk[:], k)
			keys = append(keys, sk)
		case 64:
			sk, err := privatebox.SecretKeyFromEd25519(k)
			if err != nil {
				return nil, fmt.Errorf("%w: secret key %d: %w", ErrInvalidArgument, i, err)
			}
			keys = append(keys, sk)
		default:
			return nil, fmt.Errorf("%w: secret key %d is %d bytes, want 32 or 64", ErrInvalidArgument, i, len(k))
		}
	}
	return keys, nil
}

// Latest returns the last committed log sequence.
func (ix *Indexer) Latest() uint64 {
	return ix.latest.Load()
}

// Behind reports how many log frames are not indexed yet.
func (ix *Indexer) Behind() uint64 {
	latest, indexed := ix.log.Latest(), ix.Latest()
	if latest <= indexed {
		return 0
	}
	return latest - indexed
}

// Subscribe calls fn with the new progress after every chunk that advanced
// it.
func (ix *Indexer) Subscribe(fn func(progress uint64)) (cancel func()) {
	return ix.progress.Subscribe(fn)
}

type chunkStats struct {
	indexed, malformed, duplicate, decrypted int
}

// Process indexes up to chunkSize frames after the current progress in one
// transaction and returns the new progress. chunkSize <= 0 means every
// available frame. On a storage error the chunk is rolled back and progress
// is unchanged, so the next call retries the same frames.
func (ix *Indexer) Process(ctx context.Context, chunkSize int) (uint64, error) {
	ix.mu.Lock()
	from := ix.latest.Load()
	advanced, err := ix.processLocked(ctx, from, chunkSize)
	ix.mu.Unlock()
	if err != nil {
		return from, err
	}
	if advanced {
		ix.progress.Publish(ix.latest.Load())
	}
	return ix.latest.Load(), nil
}

func (ix *Indexer) processLocked(ctx context.Context, from uint64, chunkSize int) (bool, error) {
	frames, err := ix.log.ReadFrames(ctx, from, chunkSize)
	if err != nil {
		return false, fmt.Errorf("read frames after %d: %w", from, err)
	}
	if len(frames) == 0 {
		return false, nil
	}

	start := time.Now()
	var stats chunkStats
	last := frames[len(frames)-1].Seq
	if err := ix.writeChunk(ctx, frames, &stats); err != nil {
		ix.metrics.ChunkFailures.Inc()
		ix.logger.Error().Err(err).
			Uint64("from", from).
			Uint64("to", last).
			Msg("chunk rolled back")
		return false, err
	}

	ix.latest.Store(last)
	ix.metrics.ChunkDuration.Observe(time.Since(start).Seconds())
	ix.metrics.FramesIndexed.Add(float64(stats.indexed))
	ix.metrics.FramesMalformed.Add(float64(stats.malformed))
	ix.metrics.FramesDuplicate.Add(float64(stats.duplicate))
	ix.metrics.Decrypted.Add(float64(stats.decrypted))
	ix.metrics.Progress.Set(float64(last))
	ix.logger.Debug().
		Uint64("from", from).
		Uint64("to", last).
		Int("indexed", stats.indexed).
		Int("malformed", stats.malformed).
		Int("duplicate", stats.duplicate).
		Int("decrypted", stats.decrypted).
		Dur("took", time.Since(start)).
		Msg("chunk committed")
	return true, nil
}

func (ix *Indexer) writeChunk(ctx context.Context, frames []feedlog.Frame, stats *chunkStats) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStorage, err)
	}
	defer tx.Rollback()

	for _, f := range frames {
		if err := ix.indexFrameTx(ctx, tx, f, stats); err != nil {
			return fmt.Errorf("%w: frame %d: %w", ErrStorage, f.Seq, err)
		}
	}
	if err := db.SetProgressTx(ctx, tx, frames[len(frames)-1].Seq); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}
	return nil
}

// Run indexes until ctx is done, waking on log appends and on every idle
// tick. Storage errors are logged and retried on the next wake-up.
func (ix *Indexer) Run(ctx context.Context, opts RunOptions) error {
	if opts.Idle <= 0 {
		return fmt.Errorf("%w: idle interval must be positive", ErrInvalidArgument)
	}
	wake := make(chan struct{}, 1)
	cancel := ix.log.Subscribe(func(uint64) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer cancel()

	ticker := time.NewTicker(opts.Idle)
	defer ticker.Stop()

	ix.logger.Info().Uint64("progress", ix.Latest()).Msg("indexer started")
	for {
		ix.drain(ctx, opts.ChunkSize)
		select {
		case <-ctx.Done():
			ix.logger.Info().Uint64("progress", ix.Latest()).Msg("indexer stopped")
			return nil
		case <-wake:
		case <-ticker.C:
		}
	}
}

type RunOptions struct {
	ChunkSize int
	Idle      time.Duration
}

func (ix *Indexer) drain(ctx context.Context, chunkSize int) {
	for ctx.Err() == nil {
		before := ix.Latest()
		after, err := ix.Process(ctx, chunkSize)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				ix.logger.Warn().Err(err).Msg("process failed, will retry")
			}
			return
		}
		if after == before || ix.Behind() == 0 {
			return
		}
	}
}
