package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "feed_index",
		sql:     feedIndexSchemaV1,
	},
	{
		version: 2,
		name:    "feed_index_views",
		sql:     feedIndexViewsV2,
	},
	{
		version: 3,
		name:    "index_state",
		sql:     indexStateSchemaV3,
	},
}

// SchemaVersion is the version ApplyMigrations brings a database to.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// ErrSchemaTooNew means the index was written by a newer build.
var ErrSchemaTooNew = errors.New("index schema is newer than this build")

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version     INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	applied_at  TEXT NOT NULL
);`

// ApplyMigrations brings the index up to SchemaVersion, one transaction per
// pending step.
func ApplyMigrations(database *sql.DB) error {
	ctx := context.Background()
	if _, err := database.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("ensure schema_version table: %w", err)
	}
	current, err := CurrentSchemaVersion(ctx, database)
	if err != nil {
		return err
	}
	if current > SchemaVersion() {
		return fmt.Errorf("%w: index at v%d, build knows v%d", ErrSchemaTooNew, current, SchemaVersion())
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, database, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// CurrentSchemaVersion reads the highest applied migration.
func CurrentSchemaVersion(ctx context.Context, database *sql.DB) (int, error) {
	var version int
	if err := database.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version",
	).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func applyMigration(ctx context.Context, database *sql.DB, m migration) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}
