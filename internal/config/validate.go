package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validatePolling(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("api.base_url is required. Set %s or edit %s (create with 'storyteller config init')", envAPIBaseURL, defaultPath)
	}
	if err := validateAbsoluteURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if c.API.TimeoutSeconds < 0 {
		return errors.New("api.timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validatePolling() error {
	if c.Polling.IntervalSeconds <= 0 {
		return errors.New("polling.interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePlayback() error {
	if err := validateAbsoluteURL(c.Playback.MediaBaseURL); err != nil {
		return fmt.Errorf("playback.media_base_url: %w", err)
	}
	if c.Playback.SkipSeconds <= 0 {
		return errors.New("playback.skip_seconds must be positive")
	}
	if c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > 1 {
		return errors.New("playback.default_volume must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("expected http or https URL, got %q", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
