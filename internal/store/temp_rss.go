package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateTempRSSItems persists RSS sightings for later matching.
func (s *Store) CreateTempRSSItems(ctx context.Context, items []TempRSSItem) error {
	if len(items) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO temp_rss_items (source, key, title, type, thumb, guids, genres, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		timestamp := formatTime(time.Now())
		for _, item := range items {
			if _, err := stmt.ExecContext(ctx,
				string(item.Source),
				item.Key,
				item.Title,
				item.Type,
				nullableString(item.Thumb),
				EncodeList(item.GUIDs),
				EncodeList(item.Genres),
				timestamp,
			); err != nil {
				return fmt.Errorf("insert temp rss item %q: %w", item.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create temp rss items: %w", err)
	}
	return nil
}

// GetTempRSSItems lists pending sightings for a source. An empty source lists all of them.
func (s *Store) GetTempRSSItems(ctx context.Context, source Source) ([]TempRSSItem, error) {
	query := `SELECT ` + tempRSSColumns + ` FROM temp_rss_items`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, string(source))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list temp rss items: %w", err)
	}
	defer rows.Close()

	var out []TempRSSItem
	for rows.Next() {
		item, err := scanTempRSSItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan temp rss item: %w", err)
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// DeleteTempRSSItems removes matched sightings by id and returns the number deleted.
func (s *Store) DeleteTempRSSItems(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM temp_rss_items WHERE id IN (SELECT value FROM json_each(?))`, jsonArray(ids))
	if err != nil {
		return 0, fmt.Errorf("delete temp rss items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
