package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// GetBulkWatchlistItems returns rows owned by any of userIDs whose key is in
// keys or whose GUID list intersects guids. GUIDs compare case-insensitively.
func (s *Store) GetBulkWatchlistItems(ctx context.Context, userIDs []int64, keys, guids []string) ([]WatchlistItem, error) {
	if len(userIDs) == 0 || (len(keys) == 0 && len(guids) == 0) {
		return nil, nil
	}
	lowered := make([]string, 0, len(guids))
	for _, guid := range guids {
		if g := strings.ToLower(strings.TrimSpace(guid)); g != "" {
			lowered = append(lowered, g)
		}
	}
	// Parameters travel as JSON arrays so large passes never hit the bound variable limit.
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+watchlistColumns+` FROM watchlist_items w
         WHERE w.user_id IN (SELECT value FROM json_each(?))
           AND (
             w.key IN (SELECT value FROM json_each(?))
             OR CASE WHEN json_valid(w.guids) THEN EXISTS (
                  SELECT 1 FROM json_each(w.guids) g
                  WHERE lower(trim(g.value)) IN (SELECT value FROM json_each(?))
                ) ELSE 0 END
           )
         ORDER BY w.id`,
		jsonArray(userIDs),
		jsonArray(keys),
		jsonArray(lowered),
	)
	if err != nil {
		return nil, fmt.Errorf("bulk watchlist lookup: %w", err)
	}
	return collectWatchlistRows(rows)
}

// GetAllWatchlistItemsForUser returns every stored row for a user ordered by id.
func (s *Store) GetAllWatchlistItemsForUser(ctx context.Context, userID int64) ([]WatchlistItem, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+watchlistColumns+` FROM watchlist_items WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist items: %w", err)
	}
	return collectWatchlistRows(rows)
}

// CountWatchlistItems returns the number of stored watchlist rows across all users.
func (s *Store) CountWatchlistItems(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM watchlist_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count watchlist items: %w", err)
	}
	return count, nil
}

// CreateWatchlistItems inserts rows in a single transaction and returns the
// number of rows written. With ConflictIgnore an existing (user, key) row is
// kept as-is; with ConflictMerge its content fields are overwritten.
func (s *Store) CreateWatchlistItems(ctx context.Context, items []WatchlistItem, conflict ConflictMode) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)
	query := `INSERT INTO watchlist_items (user_id, key, title, type, thumb, guids, genres, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	switch conflict {
	case ConflictMerge:
		query += ` ON CONFLICT(user_id, key) DO UPDATE SET
                   title = excluded.title,
                   type = excluded.type,
                   thumb = COALESCE(excluded.thumb, watchlist_items.thumb),
                   guids = excluded.guids,
                   genres = excluded.genres,
                   updated_at = excluded.updated_at`
	default:
		query += ` ON CONFLICT(user_id, key) DO NOTHING`
	}

	var written int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		written = 0
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		timestamp := formatTime(time.Now())
		for _, item := range items {
			status := item.Status
			if status == "" {
				status = StatusPending
			}
			res, err := stmt.ExecContext(ctx,
				item.UserID,
				item.Key,
				item.Title,
				item.Type,
				nullableString(item.Thumb),
				EncodeList(item.GUIDs),
				EncodeList(item.Genres),
				string(status),
				timestamp,
				timestamp,
			)
			if err != nil {
				return fmt.Errorf("insert watchlist item %q: %w", item.Key, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				written += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("create watchlist items: %w", err)
	}
	return written, nil
}

// DeleteWatchlistItems removes the given keys for one user and returns the number of rows deleted.
func (s *Store) DeleteWatchlistItems(ctx context.Context, userID int64, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM watchlist_items WHERE user_id = ? AND key IN (SELECT value FROM json_each(?))`,
		userID, jsonArray(keys))
	if err != nil {
		return 0, fmt.Errorf("delete watchlist items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func collectWatchlistRows(rows *sql.Rows) ([]WatchlistItem, error) {
	defer rows.Close()
	var out []WatchlistItem
	for rows.Next() {
		item, err := scanWatchlistItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watchlist item: %w", err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlist items: %w", err)
	}
	return out, nil
}
