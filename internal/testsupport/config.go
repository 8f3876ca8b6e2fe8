package testsupport

import (
	"path/filepath"
	"testing"

	"watchsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Plex.Tokens = []string{"test-token"}
	cfgVal.Workflow.SyncOnStart = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithTokens replaces the personal Plex tokens on the test config.
func WithTokens(tokens ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Plex.Tokens = append([]string(nil), tokens...)
	}
}

// WithPlexBaseURL points every Plex endpoint at a single test server.
func WithPlexBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Plex.DiscoverURL = url
		b.cfg.Plex.CommunityURL = url
		b.cfg.Plex.TVURL = url
	}
}

// WithRSSFeeds sets the self and friends RSS endpoints.
func WithRSSFeeds(selfURL, friendsURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Plex.SelfRSSURL = selfURL
		b.cfg.Plex.FriendsRSSURL = friendsURL
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
