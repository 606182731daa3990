package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"storyteller/internal/config"
	"storyteller/internal/storyapi"
)

const serviceCheckTimeout = 10 * time.Second

// CheckStoryService verifies that the story service is reachable and
// accepts the configured token. It lists a single job, with one attempt.
func CheckStoryService(ctx context.Context, cfg *config.Config, logger *slog.Logger) Result {
	const name = "Story service"

	client, err := storyapi.NewFromConfig(cfg, logger)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
	defer cancel()

	if _, err := client.ListJobs(checkCtx, 0, 1); err != nil {
		return Result{Name: name, Detail: summarizeServiceError(client.BaseURL(), err)}
	}
	return Result{Name: name, Passed: true, Detail: client.BaseURL() + " (reachable)"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDownloadDirectory accepts a missing download directory when the
// nearest existing parent is writable, since downloads create it.
func CheckDownloadDirectory(path string) Result {
	const name = "Download directory"

	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path)
	}
	parent := filepath.Dir(path)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (created on first download)", path)}
}

// CheckNotifications reports whether ntfy delivery is configured.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg.Notifications.NtfyTopic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if !cfg.Notifications.StoryReady && !cfg.Notifications.StoryFailed {
		return Result{Name: name, Passed: true, Detail: "Topic set but all story events disabled"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Notifications.NtfyTopic}
}

// summarizeServiceError produces a human-readable summary for service check failures.
func summarizeServiceError(base string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (story service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (story service unreachable)"
	}
	var apiErr *storyapi.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "auth failed (check api.token)"
		case http.StatusNotFound:
			return fmt.Sprintf("%s has no jobs endpoint (check api.base_url)", base)
		}
	}
	if storyapi.IsUnavailable(err) {
		return fmt.Sprintf("%s unreachable (%v)", base, err)
	}
	return err.Error()
}
