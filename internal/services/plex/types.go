package plex

import "strings"

// Item is a raw watchlist entry as reported upstream.
type Item struct {
	// ID is the upstream content key (Plex ratingKey).
	ID     string
	Title  string
	Type   string
	Thumb  string
	GUIDs  []string
	Genres []string
}

// Friend is a Plex account sharing its watchlist with the token owner.
type Friend struct {
	UUID     string
	Username string
}

// NormalizeGUIDs lower-cases, trims, and de-duplicates GUIDs preserving order.
func NormalizeGUIDs(guids []string) []string {
	if len(guids) == 0 {
		return nil
	}
	out := make([]string, 0, len(guids))
	seen := make(map[string]struct{}, len(guids))
	for _, guid := range guids {
		normalized := strings.ToLower(strings.TrimSpace(guid))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SplitList splits a comma-separated value into trimmed, non-empty entries.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeType(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
