package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ssbsql/internal/cli/output"
	"ssbsql/internal/codec"
	"ssbsql/internal/db"
	"ssbsql/internal/indexer"
)

func newAppendCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "append <file|->...",
		Short: "Append messages to the feed log, one message per file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			wire := codec.ParseFormat(a.cfg.Format)
			frames := make([][]byte, 0, len(args))
			for _, path := range args {
				data, err := readInput(cmd.InOrStdin(), path)
				if err != nil {
					return err
				}
				if !raw {
					if _, err := codec.Decode(data, wire); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
				}
				frames = append(frames, data)
			}

			log, err := a.openLog()
			if err != nil {
				return err
			}
			defer closeQuietly(log)
			latest, err := log.Append(cmd.Context(), frames...)
			if err != nil {
				return fmt.Errorf("append: %w", err)
			}
			return output.Fields(cmd.OutOrStdout(),
				map[string]any{"latest": latest, "appended": len(frames)},
				[]string{"latest", "appended"}, "latest", format)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "append without checking that each frame decodes")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func newIndexCmd(a *app) *cobra.Command {
	var (
		chunk  int
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Bring the index up to date with the feed log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("chunk") {
				chunk = a.cfg.ChunkSize
			}

			log, err := a.openLog()
			if err != nil {
				return err
			}
			defer closeQuietly(log)
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeQuietly(database)

			ctx := cmd.Context()
			ix, err := a.newIndexer(ctx, log, database)
			if err != nil {
				return err
			}
			start := ix.Latest()

			if follow {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				if err := ix.Run(ctx, indexer.RunOptions{ChunkSize: chunk, Idle: a.cfg.IdleInterval}); err != nil {
					return err
				}
			} else {
				for ix.Behind() > 0 {
					if _, err := ix.Process(ctx, chunk); err != nil {
						return err
					}
				}
			}

			return output.Fields(cmd.OutOrStdout(),
				map[string]any{"latest": ix.Latest(), "indexed": ix.Latest() - start},
				[]string{"latest", "indexed"}, "latest", format)
		},
	}
	cmd.Flags().IntVar(&chunk, "chunk", 0, "frames per transaction (default from config, 0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep indexing new frames until interrupted")
	return cmd
}

func newLatestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the last indexed log sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			var latest uint64
			if a.remote() {
				latest, err = a.client().Latest(cmd.Context())
			} else {
				database, openErr := a.openDB()
				if openErr != nil {
					return openErr
				}
				defer closeQuietly(database)
				latest, err = db.GetProgress(cmd.Context(), database)
			}
			if err != nil {
				return err
			}
			return output.Fields(cmd.OutOrStdout(), map[string]any{"latest": latest},
				[]string{"latest"}, "latest", format)
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index progress and row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			var (
				latest uint64
				schema int
				stats  db.IndexStats
			)
			if a.remote() {
				st, err := a.client().Status(cmd.Context())
				if err != nil {
					return err
				}
				latest, schema, stats = st.Latest, st.SchemaVersion, st.Stats
			} else {
				database, err := a.openDB()
				if err != nil {
					return err
				}
				defer closeQuietly(database)
				ctx := cmd.Context()
				if latest, err = db.GetProgress(ctx, database); err != nil {
					return err
				}
				if schema, err = db.CurrentSchemaVersion(ctx, database); err != nil {
					return err
				}
				if stats, err = db.GetIndexStats(ctx, database); err != nil {
					return err
				}
			}
			record := map[string]any{
				"latest":         latest,
				"schema_version": schema,
				"messages":       stats.Messages,
				"decrypted":      stats.Decrypted,
				"authors":        stats.Authors,
				"links":          stats.Links,
				"mentions":       stats.Mentions,
				"blob_links":     stats.BlobLinks,
				"contacts":       stats.Contacts,
				"abouts":         stats.Abouts,
			}
			order := []string{"latest", "schema_version", "messages", "decrypted", "authors",
				"links", "mentions", "blob_links", "contacts", "abouts"}
			return output.Fields(cmd.OutOrStdout(), record, order, "latest", format)
		},
	}
}
