package api

import (
	"time"

	"watchsync/internal/store"
	"watchsync/internal/watchlist"
	"watchsync/internal/workflow"
)

// FromResponse converts a reconciliation result to its API representation.
func FromResponse(resp *watchlist.Response) SyncResponse {
	if resp == nil {
		return SyncResponse{Users: []UserWatchlist{}}
	}
	out := SyncResponse{
		Source:   string(resp.Source),
		Total:    resp.Total,
		Inserted: resp.Inserted,
		Linked:   resp.Linked,
		Removed:  resp.Removed,
		Users:    make([]UserWatchlist, 0, len(resp.Users)),
	}
	for _, user := range resp.Users {
		dto := UserWatchlist{
			WatchlistID: user.Identity.WatchlistID,
			Username:    user.Identity.Username,
			UserID:      user.Identity.UserID,
			Source:      string(user.Identity.Source),
			Watchlist:   make([]WatchlistItem, 0, len(user.Watchlist)),
		}
		for _, item := range user.Watchlist {
			dto.Watchlist = append(dto.Watchlist, WatchlistItem{
				Key:    item.Key,
				Title:  item.Title,
				Type:   item.Type,
				Thumb:  item.Thumb,
				GUIDs:  nonNil(item.GUIDs),
				Genres: nonNil(item.Genres),
				Status: string(item.Status),
			})
		}
		out.Users = append(out.Users, dto)
	}
	for _, failure := range resp.Failures {
		msg := ""
		if failure.Err != nil {
			msg = failure.Err.Error()
		}
		out.Failures = append(out.Failures, SyncFailure{Username: failure.Identity.Username, Error: msg})
	}
	return out
}

// FromUserSummary converts a stored user summary.
func FromUserSummary(user store.UserSummary) User {
	return User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		ItemCount: user.ItemCount,
		CreatedAt: formatTime(user.CreatedAt),
	}
}

// FromStoredItems converts stored watchlist rows.
func FromStoredItems(items []store.WatchlistItem) []StoredItem {
	out := make([]StoredItem, 0, len(items))
	for _, item := range items {
		out = append(out, StoredItem{
			ID:        item.ID,
			Key:       item.Key,
			Title:     item.Title,
			Type:      item.Type,
			Thumb:     item.Thumb,
			GUIDs:     nonNil(item.GUIDs),
			Genres:    nonNil(item.Genres),
			Status:    string(item.Status),
			CreatedAt: formatTime(item.CreatedAt),
			UpdatedAt: formatTime(item.UpdatedAt),
		})
	}
	return out
}

// FromTempRSSItems converts pending RSS sightings.
func FromTempRSSItems(items []store.TempRSSItem) []PendingItem {
	out := make([]PendingItem, 0, len(items))
	for _, item := range items {
		out = append(out, PendingItem{
			ID:        item.ID,
			Source:    string(item.Source),
			Key:       item.Key,
			Title:     item.Title,
			Type:      item.Type,
			GUIDs:     nonNil(item.GUIDs),
			CreatedAt: formatTime(item.CreatedAt),
		})
	}
	return out
}

// FromWorkflowStatus converts workflow state.
func FromWorkflowStatus(status workflow.Status) WorkflowStatus {
	feeds := make([]string, 0, len(status.Feeds))
	for _, feed := range status.Feeds {
		feeds = append(feeds, string(feed))
	}
	return WorkflowStatus{
		Running:           status.Running,
		StartedAt:         formatTime(status.StartedAt),
		Feeds:             feeds,
		QueueLength:       status.QueueLength,
		LastQueuedAt:      formatTime(status.LastQueued),
		RefreshInProgress: status.RefreshInProgress,
		LastRefreshAt:     formatTime(status.LastRefresh),
		LastError:         status.LastError,
		Refreshes:         status.Refreshes,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
