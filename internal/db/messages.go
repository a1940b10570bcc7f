package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ssbsql/internal/models"
)

var ErrNotFound = errors.New("not found")

// MessageRow is one messages_raw row with its foreign keys resolved.
type MessageRow struct {
	FlumeSeq     int64
	KeyID        int64
	Sequence     int64
	ReceivedTime *float64
	AssertedTime float64
	RootID       *int64
	ForkID       *int64
	AuthorID     int64
	ContentType  *string
	Content      string
	IsDecrypted  bool
}

// InsertMessageTx inserts row. A row whose key is already indexed is left
// alone and reported with false.
func InsertMessageTx(ctx context.Context, tx *sql.Tx, row MessageRow) (bool, error) {
	_, err := tx.ExecContext(ctx, `
INSERT INTO messages_raw (flume_seq, key_id, seq, received_time, asserted_time, root_id, fork_id, author_id, content_type, content, is_decrypted)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.FlumeSeq, row.KeyID, row.Sequence, row.ReceivedTime, row.AssertedTime,
		row.RootID, row.ForkID, row.AuthorID, row.ContentType, row.Content, row.IsDecrypted)
	if err != nil {
		if isUniqueConstraint(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert message %d: %w", row.FlumeSeq, err)
	}
	return true, nil
}

// MessageColumns is the column list ScanMessage expects, in order, selected
// from the messages view.
const MessageColumns = `messages.flume_seq, messages.key, messages.author, messages.seq,
messages.received_time, messages.asserted_time, messages.content_type, messages.content,
messages.is_decrypted, messages.root, messages.fork`

type scanner interface {
	Scan(dest ...any) error
}

// ScanMessage reads one row selected with MessageColumns.
func ScanMessage(row scanner) (models.IndexedMessage, error) {
	var m models.IndexedMessage
	err := row.Scan(
		&m.FlumeSeq, &m.Key, &m.Author, &m.Sequence,
		&m.ReceivedTime, &m.AssertedTime, &m.ContentType, &m.Content,
		&m.IsDecrypted, &m.Root, &m.Fork,
	)
	return m, err
}

// GetMessageByKey returns the indexed row for a message key.
func GetMessageByKey(ctx context.Context, database *sql.DB, key string) (*models.IndexedMessage, error) {
	row := database.QueryRowContext(ctx,
		"SELECT "+MessageColumns+" FROM messages WHERE messages.key = ?", key)
	m, err := ScanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", key, err)
	}
	return &m, nil
}

// GetSeqByKey returns the log sequence a message key was indexed at.
func GetSeqByKey(ctx context.Context, database *sql.DB, key string) (int64, error) {
	var seq int64
	err := database.QueryRowContext(ctx, `
SELECT flume_seq FROM messages_raw
JOIN keys ON messages_raw.key_id = keys.id
WHERE keys.key = ?`, key).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get seq by key: %w", err)
	}
	return seq, nil
}

// GetSeqsByType returns the log sequences of every message of a content type.
func GetSeqsByType(ctx context.Context, database *sql.DB, contentType string) ([]int64, error) {
	seqs, err := listSeqs(ctx, database,
		"SELECT flume_seq FROM messages_raw WHERE content_type = ? ORDER BY flume_seq", contentType)
	if err != nil {
		return nil, fmt.Errorf("get seqs by type: %w", err)
	}
	return seqs, nil
}

// GetSeqsByAuthor returns the log sequences of every message by a feed.
func GetSeqsByAuthor(ctx context.Context, database *sql.DB, author string) ([]int64, error) {
	seqs, err := listSeqs(ctx, database, `
SELECT flume_seq FROM messages_raw
JOIN authors ON messages_raw.author_id = authors.id
WHERE authors.author = ?
ORDER BY flume_seq`, author)
	if err != nil {
		return nil, fmt.Errorf("get seqs by author: %w", err)
	}
	return seqs, nil
}

func listSeqs(ctx context.Context, database *sql.DB, query string, args ...any) ([]int64, error) {
	rows, err := database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seqs := make([]int64, 0)
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
}
