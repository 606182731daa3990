package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"storyteller/internal/config"
	"storyteller/internal/library"
	"storyteller/internal/logging"
	"storyteller/internal/notifications"
	"storyteller/internal/storyapi"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	libraryOnce sync.Once
	library     *library.Store
	libraryErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// loggerValue returns the command logger. Logs go to the log file under the
// data directory; --verbose mirrors them to stderr. A logger that cannot be
// opened degrades to a no-op so commands still run.
func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg := c.configValue()
		if cfg == nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg, c.verboseFlag != nil && *c.verboseFlag)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) apiClient() (*storyapi.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := storyapi.NewFromConfig(cfg, c.loggerValue())
	if err != nil {
		return nil, fmt.Errorf("story api: %w", err)
	}
	return client, nil
}

func (c *commandContext) historyStore() (*library.Store, error) {
	c.libraryOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.libraryErr = err
			return
		}
		c.library, c.libraryErr = library.Open(cfg)
	})
	return c.library, c.libraryErr
}

// historyOrWarn opens the history store and reports failures on stderr.
// History is best effort; commands carry on without it.
func (c *commandContext) historyOrWarn(cmd *cobra.Command) *library.Store {
	store, err := c.historyStore()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: local history unavailable: %v\n", err)
		c.loggerValue().Warn("history store unavailable",
			logging.String(logging.FieldEventType, "history_open_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the history database if the schema changed"),
		)
		return nil
	}
	return store
}

func (c *commandContext) notifier() notifications.Service {
	cfg := c.configValue()
	if cfg == nil {
		return notifications.NewService(&config.Config{})
	}
	return notifications.NewService(cfg)
}

func (c *commandContext) close() {
	if c.library != nil {
		_ = c.library.Close()
		c.library = nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
