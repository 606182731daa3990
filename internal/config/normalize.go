package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizePlayback()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Download.Dir) == "" {
		c.Download.Dir = defaultDownloadDir
	}
	if c.Download.Dir, err = ExpandPath(c.Download.Dir); err != nil {
		return fmt.Errorf("download.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	if value, ok := os.LookupEnv(envAPIBaseURL); ok && strings.TrimSpace(value) != "" {
		c.API.BaseURL = value
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")

	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv(envAPIToken); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePlayback() {
	c.Playback.MediaBaseURL = strings.TrimRight(strings.TrimSpace(c.Playback.MediaBaseURL), "/")
	if c.Playback.MediaBaseURL == "" {
		c.Playback.MediaBaseURL = originOf(c.API.BaseURL)
	}
	if c.Playback.TickMillis <= 0 {
		c.Playback.TickMillis = defaultTickMillis
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// originOf reduces raw to scheme and host. Audio paths from the service are
// root-relative and already carry the API prefix.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
