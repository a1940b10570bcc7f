package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// FindOrCreateKeyTx returns the id of key, inserting it when absent.
func FindOrCreateKeyTx(ctx context.Context, tx *sql.Tx, key string) (int64, error) {
	id, err := findOrCreateTx(ctx, tx, "keys", "key", key)
	if err != nil {
		return 0, fmt.Errorf("find or create key: %w", err)
	}
	return id, nil
}

// FindOrCreateAuthorTx returns the id of a feed id, inserting it when absent.
func FindOrCreateAuthorTx(ctx context.Context, tx *sql.Tx, author string) (int64, error) {
	id, err := findOrCreateTx(ctx, tx, "authors", "author", author)
	if err != nil {
		return 0, fmt.Errorf("find or create author: %w", err)
	}
	return id, nil
}

// FindOrCreateBlobTx returns the id of a blob ref, inserting it when absent.
func FindOrCreateBlobTx(ctx context.Context, tx *sql.Tx, blob string) (int64, error) {
	id, err := findOrCreateTx(ctx, tx, "blobs", "blob", blob)
	if err != nil {
		return 0, fmt.Errorf("find or create blob: %w", err)
	}
	return id, nil
}

// table and column are compile-time constants of this package.
func findOrCreateTx(ctx context.Context, tx *sql.Tx, table, column, value string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE "+column+" = ?", value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "INSERT INTO "+table+" ("+column+") VALUES (?)", value)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetAuthorIsMe marks the local identity's feed. Any previous mark is
// cleared.
func SetAuthorIsMe(ctx context.Context, database *sql.DB, author string) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id, err := FindOrCreateAuthorTx(ctx, tx, author)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE authors SET is_me = 0 WHERE is_me = 1 AND id != ?", id); err != nil {
		return fmt.Errorf("clear is_me: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE authors SET is_me = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("set is_me: %w", err)
	}
	return tx.Commit()
}

// GetMe returns the author marked as the local identity.
func GetMe(ctx context.Context, database *sql.DB) (string, bool, error) {
	var author string
	err := database.QueryRowContext(ctx, "SELECT author FROM authors WHERE is_me = 1 LIMIT 1").Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get me: %w", err)
	}
	return author, true, nil
}

func isUniqueConstraint(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
