package watchlist

import (
	"context"
	"fmt"
	"log/slog"

	"watchsync/internal/logging"
)

// RemovalDetector deletes stored rows an identity no longer reports upstream.
type RemovalDetector struct {
	store  ItemStore
	logger *slog.Logger
}

// NewRemovalDetector constructs a removal detector.
func NewRemovalDetector(st ItemStore, logger *slog.Logger) *RemovalDetector {
	return &RemovalDetector{store: st, logger: logging.NewComponentLogger(logger, "removal")}
}

// Detect removes, per identity, every stored key absent from the fetched
// items and returns the number of rows deleted. Identities that are not in
// entries are never touched.
func (d *RemovalDetector) Detect(ctx context.Context, entries []*Entry) (int, error) {
	total := 0
	for _, entry := range entries {
		fetched := make(map[string]struct{}, len(entry.Items))
		for _, item := range entry.Items {
			if item.ID != "" {
				fetched[item.ID] = struct{}{}
			}
		}

		stored, err := d.store.GetAllWatchlistItemsForUser(ctx, entry.Identity.UserID)
		if err != nil {
			return total, fmt.Errorf("removal scan for %s: %w", entry.Identity.Username, err)
		}
		var stale []string
		for _, row := range stored {
			if _, ok := fetched[row.Key]; !ok {
				stale = append(stale, row.Key)
			}
		}
		if len(stale) == 0 {
			continue
		}

		deleted, err := d.store.DeleteWatchlistItems(ctx, entry.Identity.UserID, stale)
		if err != nil {
			return total, fmt.Errorf("remove items for %s: %w", entry.Identity.Username, err)
		}
		total += deleted
		d.logger.Info("removed watchlist items",
			logging.String("identity", entry.Identity.Username),
			logging.Int64(logging.FieldUserID, entry.Identity.UserID),
			logging.Int("removed", deleted),
		)
	}
	return total, nil
}
