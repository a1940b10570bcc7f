package db

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertLinksTx records message references from a message. Each target is
// interned in the keys table.
func InsertLinksTx(ctx context.Context, tx *sql.Tx, fromKeyID int64, targets []string) error {
	return insertEdgesTx(ctx, tx, "links_raw", "link_to_key_id", fromKeyID, targets, FindOrCreateKeyTx)
}

// InsertMentionsTx records feed references from a message.
func InsertMentionsTx(ctx context.Context, tx *sql.Tx, fromKeyID int64, feeds []string) error {
	return insertEdgesTx(ctx, tx, "mentions_raw", "link_to_author_id", fromKeyID, feeds, FindOrCreateAuthorTx)
}

// InsertBlobLinksTx records blob references from a message.
func InsertBlobLinksTx(ctx context.Context, tx *sql.Tx, fromKeyID int64, blobs []string) error {
	return insertEdgesTx(ctx, tx, "blob_links_raw", "link_to_blob_id", fromKeyID, blobs, FindOrCreateBlobTx)
}

// InsertBranchesTx records the thread heads a reply was written against.
func InsertBranchesTx(ctx context.Context, tx *sql.Tx, fromKeyID int64, branches []string) error {
	return insertEdgesTx(ctx, tx, "branches_raw", "link_to_key_id", fromKeyID, branches, FindOrCreateKeyTx)
}

type internFunc func(ctx context.Context, tx *sql.Tx, value string) (int64, error)

func insertEdgesTx(ctx context.Context, tx *sql.Tx, table, toColumn string, fromKeyID int64, targets []string, intern internFunc) error {
	if len(targets) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO "+table+" (link_from_key_id, "+toColumn+") VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for _, target := range targets {
		toID, err := intern(ctx, tx, target)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, fromKeyID, toID); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

// ListLinksFrom returns the message keys a message links to.
func ListLinksFrom(ctx context.Context, database *sql.DB, key string) ([]string, error) {
	rows, err := database.QueryContext(ctx,
		"SELECT link_to_key FROM links WHERE link_from_key = ? ORDER BY id", key)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var to string
		if err := rows.Scan(&to); err != nil {
			return nil, err
		}
		out = append(out, to)
	}
	return out, rows.Err()
}
