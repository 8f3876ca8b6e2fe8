package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetUserByName returns the user with the given name, or nil when absent.
func (s *Store) GetUserByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE name = ?`, name)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by name: %w", err)
	}
	return user, nil
}

// GetUser returns the user with the given id, or nil when absent.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// CreateUser inserts a user and returns the stored record. Creating a name
// that already exists returns the existing row.
func (s *Store) CreateUser(ctx context.Context, user User) (*User, error) {
	name := strings.TrimSpace(user.Name)
	if name == "" {
		return nil, errors.New("create user: name is required")
	}
	timestamp := formatTime(time.Now())
	_, err := s.execWithRetry(ctx,
		`INSERT INTO users (name, email, notify_email, notify_discord, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(name) DO NOTHING`,
		name,
		user.Email,
		boolToInt(user.NotifyEmail),
		boolToInt(user.NotifyDiscord),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByName(ctx, name)
}

// ListUsers returns every user with its stored watchlist item count, ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]UserSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT u.id, u.name, u.email, u.notify_email, u.notify_discord, u.created_at, u.updated_at,
                (SELECT COUNT(1) FROM watchlist_items w WHERE w.user_id = u.id)
         FROM users u ORDER BY u.name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []UserSummary
	for rows.Next() {
		var (
			summary       UserSummary
			notifyEmail   sql.NullInt64
			notifyDiscord sql.NullInt64
			createdRaw    sql.NullString
			updatedRaw    sql.NullString
		)
		if err := rows.Scan(
			&summary.ID,
			&summary.Name,
			&summary.Email,
			&notifyEmail,
			&notifyDiscord,
			&createdRaw,
			&updatedRaw,
			&summary.ItemCount,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		summary.NotifyEmail = notifyEmail.Int64 != 0
		summary.NotifyDiscord = notifyDiscord.Int64 != 0
		summary.CreatedAt, _ = parseTimeString(createdRaw.String)
		summary.UpdatedAt, _ = parseTimeString(updatedRaw.String)
		out = append(out, summary)
	}
	return out, rows.Err()
}
