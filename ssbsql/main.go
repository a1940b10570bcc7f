package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ssbsql/internal/cli/client"
	"ssbsql/internal/cli/output"
	"ssbsql/internal/codec"
	"ssbsql/internal/config"
	"ssbsql/internal/db"
	"ssbsql/internal/feedlog"
	"ssbsql/internal/identity"
	"ssbsql/internal/indexer"
	"ssbsql/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries the global flags and the resources a command opened.
type app struct {
	configPath string
	format     string
	quiet      bool
	server     string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ssbsql",
		Short:         "Index a feed log into SQLite and query it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: nearest .ssbsql/config.yaml)")
	flags.StringVar(&a.format, "format", "", "output format: json, table, plain or quiet")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "print only keys or values")
	flags.StringVar(&a.server, "server", "", "query a running ssbsql-server at this URL instead of the local index")

	root.AddCommand(
		newAppendCmd(a),
		newIndexCmd(a),
		newLatestCmd(a),
		newStatusCmd(a),
		newQueryCmd(a),
		newBacklinksCmd(a),
		newGetCmd(a),
		newKeyCmd(a),
		newSealCmd(a),
		newDecryptCmd(a),
	)
	return root
}

func (a *app) outputFormat() (output.Format, error) {
	return output.ParseFormat(a.format, a.quiet)
}

func (a *app) client() *client.Client {
	return client.New(a.server)
}

func (a *app) remote() bool {
	return a.server != ""
}

func (a *app) openLog() (*feedlog.Pebble, error) {
	return feedlog.OpenPebble(a.cfg.LogPath, nil)
}

func (a *app) openDB() (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
		return nil, err
	}
	database, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", a.cfg.DBPath, err)
	}
	if err := db.ApplyMigrations(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return database, nil
}

// loadIdentity returns nil without error when no secret file exists.
func (a *app) loadIdentity() (*identity.Identity, error) {
	id, err := identity.Load(a.cfg.SecretPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load secret %s: %w", a.cfg.SecretPath, err)
	}
	return id, nil
}

func (a *app) newIndexer(ctx context.Context, log feedlog.Log, database *sql.DB) (*indexer.Indexer, error) {
	id, err := a.loadIdentity()
	if err != nil {
		return nil, err
	}
	opts := indexer.Options{
		Log:    log,
		DB:     database,
		Format: codec.ParseFormat(a.cfg.Format),
		Logger: a.logger,
	}
	if id != nil {
		opts.Identity = &indexer.Identity{ID: id.ID, SecretKeys: [][]byte{id.Private}}
	}
	return indexer.New(ctx, opts)
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
