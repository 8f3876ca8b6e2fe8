package store

import "time"

// Status is the lifecycle state of a stored watchlist item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRequested Status = "requested"
	StatusGrabbed   Status = "grabbed"
	StatusNotified  Status = "notified"
)

// Source distinguishes personal watchlists from friends' watchlists.
type Source string

const (
	SourceSelf    Source = "self"
	SourceFriends Source = "friends"
)

// ParseSource validates a source string.
func ParseSource(value string) (Source, bool) {
	switch Source(value) {
	case SourceSelf, SourceFriends:
		return Source(value), true
	}
	return "", false
}

// ConflictMode controls how CreateWatchlistItems treats an existing (user, key) row.
type ConflictMode int

const (
	// ConflictIgnore leaves the existing row untouched.
	ConflictIgnore ConflictMode = iota
	// ConflictMerge overwrites the existing row's content fields.
	ConflictMerge
)

// User is a local account owning watchlist items.
type User struct {
	ID            int64
	Name          string
	Email         string
	NotifyEmail   bool
	NotifyDiscord bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserSummary pairs a user with its stored item count.
type UserSummary struct {
	User
	ItemCount int
}

// WatchlistItem is a stored watchlist row.
type WatchlistItem struct {
	ID        int64
	UserID    int64
	Key       string
	Title     string
	Type      string
	Thumb     string
	GUIDs     []string
	Genres    []string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TempRSSItem is an RSS sighting awaiting confirmation by a full sync.
type TempRSSItem struct {
	ID        int64
	Source    Source
	Key       string
	Title     string
	Type      string
	Thumb     string
	GUIDs     []string
	Genres    []string
	CreatedAt time.Time
}

// Genre is a known genre name.
type Genre struct {
	ID        int64
	Name      string
	IsCustom  bool
	CreatedAt time.Time
}
