package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const watchlistColumns = "id, user_id, key, title, type, thumb, guids, genres, status, created_at, updated_at"

const tempRSSColumns = "id, source, key, title, type, thumb, guids, genres, created_at"

const userColumns = "id, name, email, notify_email, notify_discord, created_at, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanWatchlistItem(scanner rowScanner) (*WatchlistItem, error) {
	var (
		item       WatchlistItem
		thumb      sql.NullString
		guids      sql.NullString
		genres     sql.NullString
		status     sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.UserID,
		&item.Key,
		&item.Title,
		&item.Type,
		&thumb,
		&guids,
		&genres,
		&status,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Thumb = thumb.String
	item.GUIDs = DecodeList(guids.String)
	item.Genres = DecodeList(genres.String)
	item.Status = Status(status.String)
	if item.Status == "" {
		item.Status = StatusPending
	}
	item.CreatedAt, _ = parseTimeString(createdRaw.String)
	item.UpdatedAt, _ = parseTimeString(updatedRaw.String)
	return &item, nil
}

func scanTempRSSItem(scanner rowScanner) (*TempRSSItem, error) {
	var (
		item       TempRSSItem
		source     string
		thumb      sql.NullString
		guids      sql.NullString
		genres     sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&source,
		&item.Key,
		&item.Title,
		&item.Type,
		&thumb,
		&guids,
		&genres,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	item.Source = Source(source)
	item.Thumb = thumb.String
	item.GUIDs = DecodeList(guids.String)
	item.Genres = DecodeList(genres.String)
	item.CreatedAt, _ = parseTimeString(createdRaw.String)
	return &item, nil
}

func scanUser(scanner rowScanner) (*User, error) {
	var (
		user          User
		notifyEmail   sql.NullInt64
		notifyDiscord sql.NullInt64
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&notifyEmail,
		&notifyDiscord,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	user.NotifyEmail = notifyEmail.Int64 != 0
	user.NotifyDiscord = notifyDiscord.Int64 != 0
	user.CreatedAt, _ = parseTimeString(createdRaw.String)
	user.UpdatedAt, _ = parseTimeString(updatedRaw.String)
	return &user, nil
}

// EncodeList serializes a list column as a JSON array. Nil encodes as "[]".
func EncodeList(values []string) string {
	return jsonArray(compactList(values))
}

// DecodeList parses a stored list column. It accepts a JSON array, a JSON
// string that itself holds an array, a comma-separated string, or a single
// bare value. Blank entries are dropped.
func DecodeList(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
		return compactList(list)
	}
	var nested string
	if err := json.Unmarshal([]byte(trimmed), &nested); err == nil {
		return DecodeList(nested)
	}
	if strings.HasPrefix(trimmed, "[") {
		// Arrays with non-string members.
		var generic []any
		if err := json.Unmarshal([]byte(trimmed), &generic); err == nil {
			out := make([]string, 0, len(generic))
			for _, value := range generic {
				if s, ok := value.(string); ok {
					out = append(out, s)
				}
			}
			return compactList(out)
		}
	}
	return compactList(strings.Split(trimmed, ","))
}

func compactList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func jsonArray[T any](values []T) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}
