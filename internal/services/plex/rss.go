package plex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"watchsync/internal/services"
)

// RSSClient reads Plex watchlist RSS feeds.
//
// Plex RSS items carry the title in <title>, one or more comma-separated GUIDs
// in <guid>, the content type in <category>, a <media:thumbnail url> poster and
// comma-separated genres in <media:keywords>. The item key is <link> when
// present, otherwise the first GUID.
type RSSClient struct {
	http   HTTPDoer
	parser *gofeed.Parser
}

// NewRSSClient constructs an RSS client. A nil doer uses a default http.Client.
func NewRSSClient(doer HTTPDoer) *RSSClient {
	if doer == nil {
		doer = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &RSSClient{http: doer, parser: gofeed.NewParser()}
}

// Fetch downloads and parses a feed.
func (c *RSSClient) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "rss", "fetch", "invalid feed url", err)
	}
	req.Header.Set("User-Agent", productName+"/"+productVersion)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapFailure("rss fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, wrapFailure("rss fetch", &StatusError{
			Method:     http.MethodGet,
			URL:        feedURL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "rss", "parse", "", fmt.Errorf("failed to parse feed: %w", err))
	}
	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		items = append(items, convertFeedItem(entry))
	}
	return items, nil
}

func convertFeedItem(entry *gofeed.Item) Item {
	item := Item{
		Title: strings.TrimSpace(entry.Title),
		GUIDs: NormalizeGUIDs(SplitList(entry.GUID)),
	}
	if len(entry.Categories) > 0 {
		item.Type = normalizeType(entry.Categories[0])
	}
	item.ID = strings.TrimSpace(entry.Link)
	if item.ID == "" && len(item.GUIDs) > 0 {
		item.ID = item.GUIDs[0]
	}
	if thumb := mediaAttr(entry.Extensions, "thumbnail", "url"); thumb != "" {
		item.Thumb = thumb
	} else if entry.Image != nil {
		item.Thumb = strings.TrimSpace(entry.Image.URL)
	}
	if keywords := mediaValue(entry.Extensions, "keywords"); keywords != "" {
		item.Genres = SplitList(keywords)
	}
	return item
}

func mediaExtension(extensions ext.Extensions, name string) (ext.Extension, bool) {
	if extensions == nil {
		return ext.Extension{}, false
	}
	values := extensions["media"][name]
	if len(values) == 0 {
		return ext.Extension{}, false
	}
	return values[0], true
}

func mediaAttr(extensions ext.Extensions, name, attr string) string {
	if e, ok := mediaExtension(extensions, name); ok {
		return strings.TrimSpace(e.Attrs[attr])
	}
	return ""
}

func mediaValue(extensions ext.Extensions, name string) string {
	if e, ok := mediaExtension(extensions, name); ok {
		return strings.TrimSpace(e.Value)
	}
	return ""
}
