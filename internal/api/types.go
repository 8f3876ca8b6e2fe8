package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// WatchlistItem is one reconciled watchlist row.
type WatchlistItem struct {
	Key    string   `json:"key"`
	Title  string   `json:"title"`
	Type   string   `json:"type"`
	Thumb  string   `json:"thumb,omitempty"`
	GUIDs  []string `json:"guids"`
	Genres []string `json:"genres"`
	Status string   `json:"status"`
}

// UserWatchlist groups a user's reconciled items.
type UserWatchlist struct {
	WatchlistID string          `json:"watchlistId"`
	Username    string          `json:"username"`
	UserID      int64           `json:"userId"`
	Source      string          `json:"source"`
	Watchlist   []WatchlistItem `json:"watchlist"`
}

// SyncFailure names an identity whose fetch failed during a sync.
type SyncFailure struct {
	Username string `json:"username"`
	Error    string `json:"error"`
}

// SyncResponse is returned by a watchlist sync.
type SyncResponse struct {
	Source   string          `json:"source"`
	Total    int             `json:"total"`
	Inserted int             `json:"inserted"`
	Linked   int             `json:"linked"`
	Removed  int             `json:"removed"`
	Users    []UserWatchlist `json:"users"`
	Failures []SyncFailure   `json:"failures,omitempty"`
}

// User summarizes a local user.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ItemCount int    `json:"itemCount"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// UserListResponse wraps the user list.
type UserListResponse struct {
	Users []User `json:"users"`
}

// StoredItem is a watchlist row as persisted, including its real status.
type StoredItem struct {
	ID        int64    `json:"id"`
	Key       string   `json:"key"`
	Title     string   `json:"title"`
	Type      string   `json:"type"`
	Thumb     string   `json:"thumb,omitempty"`
	GUIDs     []string `json:"guids"`
	Genres    []string `json:"genres"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// UserDetailResponse is a user with every stored row.
type UserDetailResponse struct {
	User  User         `json:"user"`
	Items []StoredItem `json:"items"`
}

// PendingItem is an RSS sighting awaiting confirmation.
type PendingItem struct {
	ID        int64    `json:"id"`
	Source    string   `json:"source"`
	Key       string   `json:"key"`
	Title     string   `json:"title"`
	Type      string   `json:"type"`
	GUIDs     []string `json:"guids"`
	CreatedAt string   `json:"createdAt,omitempty"`
}

// PendingListResponse wraps pending items.
type PendingListResponse struct {
	Items []PendingItem `json:"items"`
}

// WorkflowStatus summarizes the RSS workflow.
type WorkflowStatus struct {
	Running           bool     `json:"running"`
	StartedAt         string   `json:"startedAt,omitempty"`
	Feeds             []string `json:"feeds"`
	QueueLength       int      `json:"queueLength"`
	LastQueuedAt      string   `json:"lastQueuedAt,omitempty"`
	RefreshInProgress bool     `json:"refreshInProgress"`
	LastRefreshAt     string   `json:"lastRefreshAt,omitempty"`
	LastError         string   `json:"lastError,omitempty"`
	Refreshes         int      `json:"refreshes"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running           bool           `json:"running"`
	PID               int            `json:"pid"`
	DatabasePath      string         `json:"databasePath"`
	LockFilePath      string         `json:"lockFilePath"`
	Users             int            `json:"users"`
	Items             int            `json:"items"`
	Pending           int            `json:"pending"`
	ProgressListeners int            `json:"progressListeners"`
	SyncSources       []string       `json:"syncSources"`
	Workflow          WorkflowStatus `json:"workflow"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
