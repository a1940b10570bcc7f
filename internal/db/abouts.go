package db

import (
	"context"
	"database/sql"
	"fmt"

	"ssbsql/internal/models"
)

// InsertAboutTx records an about message. At most one of toAuthor and toKey
// is set; an about whose target is neither is still recorded.
func InsertAboutTx(ctx context.Context, tx *sql.Tx, fromKeyID int64, toAuthor, toKey *string) error {
	var authorID, keyID *int64
	if toAuthor != nil {
		id, err := FindOrCreateAuthorTx(ctx, tx, *toAuthor)
		if err != nil {
			return err
		}
		authorID = &id
	}
	if toKey != nil {
		id, err := FindOrCreateKeyTx(ctx, tx, *toKey)
		if err != nil {
			return err
		}
		keyID = &id
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO abouts_raw (link_from_key_id, link_to_author_id, link_to_key_id) VALUES (?, ?, ?)",
		fromKeyID, authorID, keyID,
	); err != nil {
		return fmt.Errorf("insert about: %w", err)
	}
	return nil
}

// ListAbouts returns about messages describing target, a feed id or a
// message key, oldest first.
func ListAbouts(ctx context.Context, database *sql.DB, target string) ([]models.About, error) {
	rows, err := database.QueryContext(ctx, `
SELECT link_from_key, link_to_author, link_to_key, content
FROM abouts
WHERE link_to_author = ? OR link_to_key = ?
ORDER BY flume_seq`, target, target)
	if err != nil {
		return nil, fmt.Errorf("list abouts: %w", err)
	}
	defer rows.Close()

	out := make([]models.About, 0)
	for rows.Next() {
		var a models.About
		if err := rows.Scan(&a.From, &a.ToAuthor, &a.ToKey, &a.Content); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
