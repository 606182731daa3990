package config

const (
	defaultConfigPath           = "~/.config/storyteller/config.toml"
	defaultAPIBaseURL           = "http://localhost:8000/api/v1"
	defaultAPITimeoutSeconds    = 30
	defaultPollIntervalSeconds  = 2
	defaultSkipSeconds          = 15
	defaultVolume               = 1.0
	defaultTickMillis           = 250
	defaultDownloadDir          = "~/Downloads/storyteller"
	defaultDataDir              = "~/.local/share/storyteller"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	envAPIToken                 = "STORYTELLER_API_TOKEN"
	envAPIBaseURL               = "STORYTELLER_API_URL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:        defaultAPIBaseURL,
			TimeoutSeconds: defaultAPITimeoutSeconds,
		},
		Polling: Polling{
			IntervalSeconds: defaultPollIntervalSeconds,
		},
		Playback: Playback{
			SkipSeconds:   defaultSkipSeconds,
			DefaultVolume: defaultVolume,
			TickMillis:    defaultTickMillis,
		},
		Download: Download{
			Dir: defaultDownloadDir,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			StoryReady:     true,
			StoryFailed:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
