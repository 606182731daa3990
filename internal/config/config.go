package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// API contains connection settings for the story generation service.
type API struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Polling controls how job status is tracked while a story is generated.
type Polling struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// Playback contains configuration for streaming audio playback.
type Playback struct {
	// MediaBaseURL prefixes relative audio URLs returned by the service.
	// Defaults to api.base_url when empty.
	MediaBaseURL  string  `toml:"media_base_url"`
	SkipSeconds   int     `toml:"skip_seconds"`
	DefaultVolume float64 `toml:"default_volume"`
	TickMillis    int     `toml:"tick_millis"`
}

// Download contains configuration for saving finished audio locally.
type Download struct {
	Dir string `toml:"dir"`
}

// Paths contains local state directories.
type Paths struct {
	DataDir string `toml:"data_dir"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	StoryReady     bool   `toml:"story_ready"`
	StoryFailed    bool   `toml:"story_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for storyteller.
//
// Configuration sections by subsystem:
//   - API: story service endpoint and bearer token
//   - Polling: job status polling cadence
//   - Playback: media base URL, skip interval, volume
//   - Download: destination directory for saved audio
//   - Paths: local data directory (history database, logs)
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	API           API           `toml:"api"`
	Polling       Polling       `toml:"polling"`
	Playback      Playback      `toml:"playback"`
	Download      Download      `toml:"download"`
	Paths         Paths         `toml:"paths"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// EnsureDirectories creates the local data directory. The download directory
// is created lazily by the downloader so a read-only config still loads.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.DataDir, err)
	}
	return nil
}

// HistoryDBPath returns the location of the local job history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LogFilePath returns the location of the persistent log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.DataDir, "storyteller.log")
}

// PollInterval returns the job status polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// APITimeout returns the per-request timeout for the story service, or zero
// when requests should only be bounded by their context.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// SkipInterval returns the skip forward/back distance used by the player.
func (c *Config) SkipInterval() time.Duration {
	return time.Duration(c.Playback.SkipSeconds) * time.Second
}

// TickInterval returns how often the streaming element reports playback time.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Playback.TickMillis) * time.Millisecond
}
