package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeGenre trims and title-cases a genre name ("science fiction" -> "Science Fiction").
func NormalizeGenre(name string) string {
	trimmed := strings.Join(strings.Fields(name), " ")
	if trimmed == "" {
		return ""
	}
	return cases.Title(language.English).String(trimmed)
}

// SyncGenresFromWatchlist records every genre referenced by stored watchlist
// items that is not yet known. Existing rows, custom or not, are kept.
// It returns the number of genres added.
func (s *Store) SyncGenresFromWatchlist(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT genres FROM watchlist_items`)
	if err != nil {
		return 0, fmt.Errorf("read watchlist genres: %w", err)
	}
	names := make(map[string]string)
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan watchlist genres: %w", err)
		}
		for _, genre := range DecodeList(raw.String) {
			normalized := NormalizeGenre(genre)
			if normalized == "" {
				continue
			}
			names[strings.ToLower(normalized)] = normalized
		}
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("close genre rows: %w", err)
	}
	if len(names) == 0 {
		return 0, nil
	}

	ordered := make([]string, 0, len(names))
	for _, name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	var added int
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		added = 0
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO genres (name, is_custom, created_at) VALUES (?, 0, ?) ON CONFLICT(name) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		timestamp := formatTime(time.Now())
		for _, name := range ordered {
			res, err := stmt.ExecContext(ctx, name, timestamp)
			if err != nil {
				return fmt.Errorf("insert genre %q: %w", name, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				added += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sync genres: %w", err)
	}
	return added, nil
}

// ListGenres returns all known genres ordered by name.
func (s *Store) ListGenres(ctx context.Context) ([]Genre, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, name, is_custom, created_at FROM genres ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	var out []Genre
	for rows.Next() {
		var (
			genre      Genre
			isCustom   int
			createdRaw sql.NullString
		)
		if err := rows.Scan(&genre.ID, &genre.Name, &isCustom, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genre.IsCustom = isCustom != 0
		genre.CreatedAt, _ = parseTimeString(createdRaw.String)
		out = append(out, genre)
	}
	return out, rows.Err()
}
