package config

const (
	defaultConfigPath          = "~/.config/watchsync/config.toml"
	defaultDataDir             = "~/.local/share/watchsync"
	defaultLogDir              = "~/.local/share/watchsync/logs"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultDiscoverURL         = "https://discover.provider.plex.tv"
	defaultCommunityURL        = "https://community.plex.tv"
	defaultTVURL               = "https://plex.tv"
	defaultClientIdentifier    = "watchsync"
	defaultPlexRequestTimeout  = 30
	defaultWorkflowPoll        = 10
	defaultWorkflowQuietPeriod = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Plex: Plex{
			DiscoverURL:      defaultDiscoverURL,
			CommunityURL:     defaultCommunityURL,
			TVURL:            defaultTVURL,
			ClientIdentifier: defaultClientIdentifier,
			RequestTimeout:   defaultPlexRequestTimeout,
			SyncFriends:      true,
		},
		Workflow: Workflow{
			PollInterval: defaultWorkflowPoll,
			QuietPeriod:  defaultWorkflowQuietPeriod,
			SyncOnStart:  true,
			AutoStart:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
