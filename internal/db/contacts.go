package db

import (
	"context"
	"database/sql"
	"fmt"

	"ssbsql/internal/models"
)

// UpsertContactTx stores the latest relation from author to contact. Public
// and private contact messages are tracked separately.
func UpsertContactTx(ctx context.Context, tx *sql.Tx, author, contact string, state int, isDecrypted bool) error {
	authorID, err := FindOrCreateAuthorTx(ctx, tx, author)
	if err != nil {
		return err
	}
	contactID, err := FindOrCreateAuthorTx(ctx, tx, contact)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO contacts_raw (author_id, contact_author_id, is_decrypted, state)
VALUES (?, ?, ?, ?)
ON CONFLICT (author_id, contact_author_id, is_decrypted) DO UPDATE SET state = excluded.state`,
		authorID, contactID, isDecrypted, state)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

// ListContacts returns the relations declared by author. A state of zero
// means a previous follow or block was withdrawn.
func ListContacts(ctx context.Context, database *sql.DB, author string) ([]models.Contact, error) {
	rows, err := database.QueryContext(ctx, `
SELECT a.author, c.author, contacts_raw.state, contacts_raw.is_decrypted
FROM contacts_raw
JOIN authors AS a ON a.id = contacts_raw.author_id
JOIN authors AS c ON c.id = contacts_raw.contact_author_id
WHERE a.author = ?
ORDER BY contacts_raw.id`, author)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	out := make([]models.Contact, 0)
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.Author, &c.Contact, &c.State, &c.IsDecrypted); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
