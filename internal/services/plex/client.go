package plex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"watchsync/internal/config"
	"watchsync/internal/logging"
)

const (
	defaultPageSize            = 100
	defaultMetadataConcurrency = 8
	defaultRequestTimeout      = 30 * time.Second
)

// Client calls the Plex discover, community, and plex.tv APIs.
type Client struct {
	discoverURL         string
	communityURL        string
	tvURL               string
	clientIdentifier    string
	http                HTTPDoer
	logger              *slog.Logger
	pageSize            int
	metadataConcurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP backend.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithBaseURLs overrides the discover, community, and plex.tv endpoints. Empty values keep defaults.
func WithBaseURLs(discover, community, tv string) Option {
	return func(c *Client) {
		if v := strings.TrimRight(strings.TrimSpace(discover), "/"); v != "" {
			c.discoverURL = v
		}
		if v := strings.TrimRight(strings.TrimSpace(community), "/"); v != "" {
			c.communityURL = v
		}
		if v := strings.TrimRight(strings.TrimSpace(tv), "/"); v != "" {
			c.tvURL = v
		}
	}
}

// WithClientIdentifier sets the X-Plex-Client-Identifier header value.
func WithClientIdentifier(id string) Option {
	return func(c *Client) {
		if id = strings.TrimSpace(id); id != "" {
			c.clientIdentifier = id
		}
	}
}

// WithLogger attaches a logger for per-item enrichment warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "plex")
		}
	}
}

// WithPageSize sets the container size requested per watchlist page.
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// NewClient constructs a Plex client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		discoverURL:         "https://discover.provider.plex.tv",
		communityURL:        "https://community.plex.tv",
		tvURL:               "https://plex.tv",
		clientIdentifier:    productName,
		http:                &http.Client{Timeout: defaultRequestTimeout},
		logger:              logging.NewNop(),
		pageSize:            defaultPageSize,
		metadataConcurrency: defaultMetadataConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the [plex] config section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return NewClient(
		WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		WithBaseURLs(cfg.Plex.DiscoverURL, cfg.Plex.CommunityURL, cfg.Plex.TVURL),
		WithClientIdentifier(cfg.Plex.ClientIdentifier),
		WithLogger(logger),
	)
}

type metadataGUID struct {
	ID string `json:"id"`
}

type metadataTag struct {
	Tag string `json:"tag"`
}

type metadataEntry struct {
	RatingKey string         `json:"ratingKey"`
	Key       string         `json:"key"`
	GUID      string         `json:"guid"`
	Title     string         `json:"title"`
	Type      string         `json:"type"`
	Thumb     string         `json:"thumb"`
	GUIDs     []metadataGUID `json:"Guid"`
	Genres    []metadataTag  `json:"Genre"`
}

type mediaContainer struct {
	MediaContainer struct {
		Offset    int             `json:"offset"`
		Size      int             `json:"size"`
		TotalSize int             `json:"totalSize"`
		Metadata  []metadataEntry `json:"Metadata"`
	} `json:"MediaContainer"`
}

// Watchlist returns the full watchlist for the token owner, enriched with
// external GUIDs and genres from the metadata endpoint.
func (c *Client) Watchlist(ctx context.Context, token string) ([]Item, error) {
	var items []Item
	start := 0
	for {
		var page mediaContainer
		err := c.doJSONRequest(ctx, request{
			method: http.MethodGet,
			url:    c.discoverURL + "/library/sections/watchlist/all?includeGuids=1",
			token:  token,
			headers: map[string]string{
				"X-Plex-Container-Start": strconv.Itoa(start),
				"X-Plex-Container-Size":  strconv.Itoa(c.pageSize),
			},
		}, &page)
		if err != nil {
			return nil, wrapFailure("watchlist", err)
		}
		for _, entry := range page.MediaContainer.Metadata {
			items = append(items, entry.toItem())
		}
		fetched := len(page.MediaContainer.Metadata)
		start += fetched
		if fetched == 0 || start >= page.MediaContainer.TotalSize {
			break
		}
	}

	if err := c.enrich(ctx, token, items); err != nil {
		return nil, err
	}
	return items, nil
}

// enrich fills GUIDs and genres per item. A failed lookup keeps the item with
// whatever identifiers the listing carried.
func (c *Client) enrich(ctx context.Context, token string, items []Item) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.metadataConcurrency)
	for i := range items {
		if items[i].ID == "" {
			continue
		}
		g.Go(func() error {
			meta, err := c.metadata(gctx, token, items[i].ID)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				logging.WarnWithContext(c.logger, "metadata lookup failed", "plex_metadata_failed",
					logging.String("rating_key", items[i].ID),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "item keeps the identifiers from the listing"),
				)
				return nil
			}
			if meta == nil {
				return nil
			}
			merged := append(items[i].GUIDs, meta.guids()...)
			items[i].GUIDs = NormalizeGUIDs(merged)
			if genres := meta.genres(); len(genres) > 0 {
				items[i].Genres = genres
			}
			if items[i].Thumb == "" {
				items[i].Thumb = meta.Thumb
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return wrapFailure("metadata", err)
	}
	return nil
}

func (c *Client) metadata(ctx context.Context, token, ratingKey string) (*metadataEntry, error) {
	var container mediaContainer
	err := c.doJSONRequest(ctx, request{
		method: http.MethodGet,
		url:    c.discoverURL + "/library/metadata/" + url.PathEscape(ratingKey),
		token:  token,
	}, &container)
	if err != nil {
		return nil, err
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return nil, nil
	}
	return &container.MediaContainer.Metadata[0], nil
}

func (m metadataEntry) toItem() Item {
	id := m.RatingKey
	if id == "" {
		id = strings.TrimPrefix(m.Key, "/library/metadata/")
	}
	return Item{
		ID:     id,
		Title:  strings.TrimSpace(m.Title),
		Type:   normalizeType(m.Type),
		Thumb:  m.Thumb,
		GUIDs:  m.guids(),
		Genres: m.genres(),
	}
}

func (m metadataEntry) guids() []string {
	all := make([]string, 0, len(m.GUIDs)+1)
	if m.GUID != "" {
		all = append(all, m.GUID)
	}
	for _, g := range m.GUIDs {
		all = append(all, g.ID)
	}
	return NormalizeGUIDs(all)
}

func (m metadataEntry) genres() []string {
	var out []string
	for _, g := range m.Genres {
		if tag := strings.TrimSpace(g.Tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *Client) graphQL(ctx context.Context, token string, body graphQLRequest, out any) error {
	envelope := struct {
		Data   any            `json:"data"`
		Errors []graphQLError `json:"errors"`
	}{Data: out}
	if err := c.doJSONRequest(ctx, request{
		method: http.MethodPost,
		url:    c.communityURL + "/api",
		token:  token,
		body:   body,
	}, &envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, e.Message)
		}
		return fmt.Errorf("graphql %s: %s", body.OperationName, strings.Join(messages, "; "))
	}
	return nil
}

const friendsQuery = `query GetAllFriends {
  allFriendsV2 {
    user {
      id
      username
    }
  }
}`

// Friends lists the accounts whose watchlists the token owner can read.
func (c *Client) Friends(ctx context.Context, token string) ([]Friend, error) {
	var data struct {
		AllFriendsV2 []struct {
			User struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"user"`
		} `json:"allFriendsV2"`
	}
	if err := c.graphQL(ctx, token, graphQLRequest{Query: friendsQuery, OperationName: "GetAllFriends"}, &data); err != nil {
		return nil, wrapFailure("friends", err)
	}
	friends := make([]Friend, 0, len(data.AllFriendsV2))
	for _, entry := range data.AllFriendsV2 {
		uuid := strings.TrimSpace(entry.User.ID)
		if uuid == "" {
			continue
		}
		friends = append(friends, Friend{UUID: uuid, Username: strings.TrimSpace(entry.User.Username)})
	}
	return friends, nil
}

const friendWatchlistQuery = `query GetWatchlistHub($uuid: ID = "", $first: PaginationInt!, $after: String) {
  user(id: $uuid) {
    watchlist(first: $first, after: $after) {
      nodes {
        id
        key
        title
        type
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

// FriendWatchlist returns a friend's watchlist, enriched like Watchlist.
func (c *Client) FriendWatchlist(ctx context.Context, token, friendUUID string) ([]Item, error) {
	var (
		items []Item
		after string
	)
	for {
		var data struct {
			User struct {
				Watchlist struct {
					Nodes []struct {
						ID    string `json:"id"`
						Key   string `json:"key"`
						Title string `json:"title"`
						Type  string `json:"type"`
					} `json:"nodes"`
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
				} `json:"watchlist"`
			} `json:"user"`
		}
		variables := map[string]any{"uuid": friendUUID, "first": c.pageSize}
		if after != "" {
			variables["after"] = after
		}
		err := c.graphQL(ctx, token, graphQLRequest{
			Query:         friendWatchlistQuery,
			Variables:     variables,
			OperationName: "GetWatchlistHub",
		}, &data)
		if err != nil {
			return nil, wrapFailure("friend watchlist", err)
		}
		for _, node := range data.User.Watchlist.Nodes {
			id := strings.TrimSpace(node.ID)
			if id == "" {
				id = strings.TrimPrefix(node.Key, "/library/metadata/")
			}
			items = append(items, Item{
				ID:    id,
				Title: strings.TrimSpace(node.Title),
				Type:  normalizeType(node.Type),
			})
		}
		info := data.User.Watchlist.PageInfo
		if !info.HasNextPage || info.EndCursor == "" || info.EndCursor == after {
			break
		}
		after = info.EndCursor
	}

	if err := c.enrich(ctx, token, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Ping reports whether plex.tv accepts the token. A rejected token returns
// false with a nil error.
func (c *Client) Ping(ctx context.Context, token string) (bool, error) {
	err := c.doJSONRequest(ctx, request{
		method: http.MethodGet,
		url:    c.tvURL + "/api/v2/ping",
		token:  token,
	}, nil)
	if errors.Is(err, ErrUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, wrapFailure("ping", err)
	}
	return true, nil
}
