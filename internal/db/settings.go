package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const progressName = "progress"

func getStateInt(ctx context.Context, q queryer, name string) (int64, bool, error) {
	var value int64
	err := q.QueryRowContext(ctx,
		"SELECT value FROM index_state WHERE name = ?", name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get index state %s: %w", name, err)
	}
	return value, true, nil
}

func setStateIntTx(ctx context.Context, tx *sql.Tx, name string, value int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO index_state (name, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, name, value)
	if err != nil {
		return fmt.Errorf("set index state %s: %w", name, err)
	}
	return nil
}

// GetProgress returns the last log sequence fully indexed, zero before the
// first chunk commits.
func GetProgress(ctx context.Context, database *sql.DB) (uint64, error) {
	value, _, err := getStateInt(ctx, database, progressName)
	if err != nil {
		return 0, err
	}
	return uint64(value), nil
}

// SetProgressTx records progress in the same transaction as the rows it
// covers. Progress never moves backwards.
func SetProgressTx(ctx context.Context, tx *sql.Tx, seq uint64) error {
	current, _, err := getStateInt(ctx, tx, progressName)
	if err != nil {
		return err
	}
	if int64(seq) < current {
		return fmt.Errorf("set progress %d: behind current %d", seq, current)
	}
	return setStateIntTx(ctx, tx, progressName, int64(seq))
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
