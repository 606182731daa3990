package preflight

import (
	"context"
	"log/slog"

	"storyteller/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every readiness check for the given config.
func RunAll(ctx context.Context, cfg *config.Config, logger *slog.Logger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDownloadDirectory(cfg.Download.Dir),
		CheckStoryService(ctx, cfg, logger),
		CheckNotifications(cfg),
	}
	return results
}
