package indexer

import (
	"context"
	"database/sql"

	"ssbsql/internal/codec"
	"ssbsql/internal/db"
	"ssbsql/internal/feedlog"
	"ssbsql/internal/links"
	"ssbsql/internal/privatebox"
	"ssbsql/internal/value"
)

// indexFrameTx writes one frame. Only storage errors are returned; a frame
// that does not decode is counted and skipped.
func (ix *Indexer) indexFrameTx(ctx context.Context, tx *sql.Tx, f feedlog.Frame, stats *chunkStats) error {
	msg, err := codec.Decode(f.Data, ix.format)
	if err != nil {
		stats.malformed++
		ix.logger.Warn().Err(err).Uint64("seq", f.Seq).Msg("skipping malformed frame")
		return nil
	}

	content := msg.Value.Content
	decrypted := false
	if _, boxed := content.(string); boxed && len(ix.keys) > 0 {
		content, decrypted = privatebox.TryDecrypt(content, ix.keys)
	}
	contentJSON, err := codec.EncodeJSONValue(content)
	if err != nil {
		stats.malformed++
		ix.logger.Warn().Err(err).Uint64("seq", f.Seq).Msg("skipping frame with unencodable content")
		return nil
	}

	keyID, err := db.FindOrCreateKeyTx(ctx, tx, msg.Key)
	if err != nil {
		return err
	}
	authorID, err := db.FindOrCreateAuthorTx(ctx, tx, msg.Value.Author)
	if err != nil {
		return err
	}
	row := db.MessageRow{
		FlumeSeq:     int64(f.Seq),
		KeyID:        keyID,
		Sequence:     msg.Value.Sequence,
		ReceivedTime: msg.Timestamp,
		AssertedTime: msg.Value.Timestamp,
		AuthorID:     authorID,
		Content:      string(contentJSON),
		IsDecrypted:  decrypted,
	}
	if contentType, ok := value.Type(content); ok {
		row.ContentType = &contentType
	}
	if root, ok := links.Root(content); ok {
		id, err := db.FindOrCreateKeyTx(ctx, tx, root)
		if err != nil {
			return err
		}
		row.RootID = &id
	}
	if fork, ok := links.Fork(content); ok {
		id, err := db.FindOrCreateKeyTx(ctx, tx, fork)
		if err != nil {
			return err
		}
		row.ForkID = &id
	}

	inserted, err := db.InsertMessageTx(ctx, tx, row)
	if err != nil {
		return err
	}
	if !inserted {
		stats.duplicate++
		ix.logger.Debug().Uint64("seq", f.Seq).Str("key", msg.Key).Msg("skipping already indexed message")
		return nil
	}
	stats.indexed++
	if decrypted {
		stats.decrypted++
	}

	refs := links.Extract(content)
	if err := db.InsertLinksTx(ctx, tx, keyID, refs.Messages); err != nil {
		return err
	}
	if err := db.InsertMentionsTx(ctx, tx, keyID, refs.Feeds); err != nil {
		return err
	}
	if err := db.InsertBlobLinksTx(ctx, tx, keyID, refs.Blobs); err != nil {
		return err
	}
	if err := db.InsertBranchesTx(ctx, tx, keyID, links.Branches(content)); err != nil {
		return err
	}

	switch contentType, _ := value.Type(content); contentType {
	case "contact":
		if contact, state, ok := links.Contact(content); ok {
			return db.UpsertContactTx(ctx, tx, msg.Value.Author, contact, state, decrypted)
		}
	case "about":
		if target, ok := links.About(content); ok {
			var toAuthor, toKey *string
			switch target.Kind {
			case links.KindFeed:
				toAuthor = &target.Ref
			case links.KindMessage:
				toKey = &target.Ref
			}
			return db.InsertAboutTx(ctx, tx, keyID, toAuthor, toKey)
		}
	}
	return nil
}
