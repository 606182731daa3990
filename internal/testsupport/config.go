package testsupport

import (
	"net/url"
	"path/filepath"
	"testing"

	"storyteller/internal/config"
)

// ConfigOption adjusts a test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns defaults rooted in a fresh temp directory with a test
// token and notifications disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.API.Token = "test-token"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Download.Dir = filepath.Join(base, "downloads")
	cfg.Notifications.NtfyTopic = ""
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAPIBaseURL points the config at a test server. Relative media URLs
// resolve against the server's origin.
func WithAPIBaseURL(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.API.BaseURL = baseURL
		cfg.Playback.MediaBaseURL = baseURL
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			cfg.Playback.MediaBaseURL = u.Scheme + "://" + u.Host
		}
	}
}

func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) { cfg.Notifications.NtfyTopic = topic }
}

// BaseDir is the temp directory NewConfig created.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
