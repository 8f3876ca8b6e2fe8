package watchlist

import (
	"context"
	"fmt"
	"log/slog"

	"watchsync/internal/logging"
	"watchsync/internal/services/plex"
	"watchsync/internal/store"
)

// PendingStore is the storage surface the Matcher needs.
type PendingStore interface {
	GetTempRSSItems(ctx context.Context, source store.Source) ([]store.TempRSSItem, error)
	DeleteTempRSSItems(ctx context.Context, ids []int64) (int, error)
}

// MatchResult summarizes one matching pass.
type MatchResult struct {
	Matched   int
	Unmatched int
}

// Matcher clears pending RSS sightings that a reconciled response confirms.
type Matcher struct {
	store  PendingStore
	logger *slog.Logger
}

// NewMatcher constructs a matcher.
func NewMatcher(st PendingStore, logger *slog.Logger) *Matcher {
	return &Matcher{store: st, logger: logging.NewComponentLogger(logger, "matcher")}
}

// Match deletes every pending item for source whose GUIDs intersect an item
// in resp. Unmatched items are retained for a later pass.
func (m *Matcher) Match(ctx context.Context, source store.Source, resp *Response) (MatchResult, error) {
	pending, err := m.store.GetTempRSSItems(ctx, source)
	if err != nil {
		return MatchResult{}, fmt.Errorf("load pending items: %w", err)
	}
	if len(pending) == 0 {
		return MatchResult{}, nil
	}

	known := make(map[string]string)
	if resp != nil {
		for _, user := range resp.Users {
			for _, item := range user.Watchlist {
				for _, guid := range item.GUIDs {
					if _, ok := known[guid]; !ok {
						known[guid] = item.Key
					}
				}
			}
		}
	}

	var matched []int64
	unmatched := 0
	for _, item := range pending {
		key, ok := firstMatch(known, item.GUIDs)
		if !ok {
			unmatched++
			m.logger.Debug("pending item not yet confirmed",
				logging.String(logging.FieldSource, string(source)),
				logging.String("title", item.Title),
				logging.Int64("pending_id", item.ID),
			)
			continue
		}
		m.logger.Debug("pending item confirmed",
			logging.String(logging.FieldSource, string(source)),
			logging.String("title", item.Title),
			logging.String("key", key),
		)
		matched = append(matched, item.ID)
	}

	if len(matched) > 0 {
		if _, err := m.store.DeleteTempRSSItems(ctx, matched); err != nil {
			return MatchResult{}, fmt.Errorf("delete matched pending items: %w", err)
		}
	}
	m.logger.Info("pending items matched",
		logging.String(logging.FieldSource, string(source)),
		logging.Int("matched", len(matched)),
		logging.Int("unmatched", unmatched),
	)
	return MatchResult{Matched: len(matched), Unmatched: unmatched}, nil
}

func firstMatch(known map[string]string, guids []string) (string, bool) {
	for _, guid := range plex.NormalizeGUIDs(guids) {
		if key, ok := known[guid]; ok {
			return key, true
		}
	}
	return "", false
}
