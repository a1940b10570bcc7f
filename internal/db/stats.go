package db

import (
	"context"
	"database/sql"
	"fmt"
)

type IndexStats struct {
	Messages  int `json:"messages"`
	Decrypted int `json:"decrypted"`
	Authors   int `json:"authors"`
	Keys      int `json:"keys"`
	Links     int `json:"links"`
	Mentions  int `json:"mentions"`
	BlobLinks int `json:"blob_links"`
	Contacts  int `json:"contacts"`
	Abouts    int `json:"abouts"`
}

func GetIndexStats(ctx context.Context, database *sql.DB) (IndexStats, error) {
	stats := IndexStats{}
	queries := []struct {
		sql string
		dst *int
	}{
		{`SELECT COUNT(1) FROM messages_raw`, &stats.Messages},
		{`SELECT COUNT(1) FROM messages_raw WHERE is_decrypted = 1`, &stats.Decrypted},
		{`SELECT COUNT(1) FROM authors`, &stats.Authors},
		{`SELECT COUNT(1) FROM keys`, &stats.Keys},
		{`SELECT COUNT(1) FROM links_raw`, &stats.Links},
		{`SELECT COUNT(1) FROM mentions_raw`, &stats.Mentions},
		{`SELECT COUNT(1) FROM blob_links_raw`, &stats.BlobLinks},
		{`SELECT COUNT(1) FROM contacts_raw`, &stats.Contacts},
		{`SELECT COUNT(1) FROM abouts_raw`, &stats.Abouts},
	}
	for _, q := range queries {
		if err := database.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return IndexStats{}, fmt.Errorf("index stats: %w", err)
		}
	}
	return stats, nil
}
