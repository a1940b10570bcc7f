package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ssbsql/internal/api"
	"ssbsql/internal/codec"
	"ssbsql/internal/config"
	"ssbsql/internal/db"
	"ssbsql/internal/feedlog"
	"ssbsql/internal/identity"
	"ssbsql/internal/indexer"
	"ssbsql/internal/logging"
	"ssbsql/internal/metrics"
)

const serverVersion = "0.1.0-dev"

func main() {
	var (
		configPath = flag.String("config", "", "config file (default: nearest .ssbsql/config.yaml)")
		listen     = flag.String("listen", "", "HTTP listen address (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Listen).Msg("listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg, logger, ln); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

// serve indexes the configured log and answers API requests on ln until ctx
// is done.
func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger, ln net.Listener) error {
	log, err := feedlog.OpenPebble(cfg.LogPath, nil)
	if err != nil {
		return fmt.Errorf("open log %s: %w", cfg.LogPath, err)
	}
	defer log.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open index %s: %w", cfg.DBPath, err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := indexer.Options{
		Log:     log,
		DB:      database,
		Format:  codec.ParseFormat(cfg.Format),
		Logger:  logger.With().Str("component", "indexer").Logger(),
		Metrics: m,
	}
	id, err := identity.Load(cfg.SecretPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn().Str("path", cfg.SecretPath).Msg("no secret file, private messages stay boxed")
	case err != nil:
		return fmt.Errorf("load secret %s: %w", cfg.SecretPath, err)
	default:
		opts.Identity = &indexer.Identity{ID: id.ID, SecretKeys: [][]byte{id.Private}}
	}
	ix, err := indexer.New(ctx, opts)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler: api.NewRouter(database, ix, api.Options{
			Version:        serverVersion,
			Logger:         logger.With().Str("component", "api").Logger(),
			Metrics:        m,
			Gatherer:       reg,
			ReadsPerMinute: cfg.RateLimit,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ix.Run(ctx, indexer.RunOptions{ChunkSize: cfg.ChunkSize, Idle: cfg.IdleInterval})
	})
	g.Go(func() error {
		logger.Info().Str("addr", ln.Addr().String()).Str("version", serverVersion).Msg("ssbsql-server listening")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown failed")
		}
		return nil
	})
	return g.Wait()
}
