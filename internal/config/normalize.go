package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlex()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("WATCHSYNC_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizePlex() {
	tokens := c.Plex.Tokens
	if value, ok := os.LookupEnv("PLEX_TOKENS"); ok && strings.TrimSpace(value) != "" {
		tokens = strings.Split(value, ",")
	}
	c.Plex.Tokens = dedupeTokens(tokens)

	c.Plex.SelfRSSURL = strings.TrimSpace(c.Plex.SelfRSSURL)
	c.Plex.FriendsRSSURL = strings.TrimSpace(c.Plex.FriendsRSSURL)
	c.Plex.DiscoverURL = strings.TrimRight(strings.TrimSpace(c.Plex.DiscoverURL), "/")
	if c.Plex.DiscoverURL == "" {
		c.Plex.DiscoverURL = defaultDiscoverURL
	}
	c.Plex.CommunityURL = strings.TrimRight(strings.TrimSpace(c.Plex.CommunityURL), "/")
	if c.Plex.CommunityURL == "" {
		c.Plex.CommunityURL = defaultCommunityURL
	}
	c.Plex.TVURL = strings.TrimRight(strings.TrimSpace(c.Plex.TVURL), "/")
	if c.Plex.TVURL == "" {
		c.Plex.TVURL = defaultTVURL
	}
	c.Plex.ClientIdentifier = strings.TrimSpace(c.Plex.ClientIdentifier)
	if c.Plex.ClientIdentifier == "" {
		c.Plex.ClientIdentifier = defaultClientIdentifier
	}
	if c.Plex.RequestTimeout <= 0 {
		c.Plex.RequestTimeout = defaultPlexRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func dedupeTokens(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
