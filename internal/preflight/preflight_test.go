package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storyteller/internal/config"
	"storyteller/internal/logging"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDownloadDirectory_Missing(t *testing.T) {
	result := CheckDownloadDirectory(filepath.Join(t.TempDir(), "a", "b"))
	if !result.Passed {
		t.Fatalf("expected pass for creatable dir, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "created on first download") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func newServiceConfig(t *testing.T, handler http.HandlerFunc) *config.Config {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.API.BaseURL = srv.URL + "/api/v1"
	cfg.API.Token = "good-token"
	return &cfg
}

func TestCheckStoryService_OK(t *testing.T) {
	cfg := newServiceConfig(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/api/v1/jobs" || r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"jobs":[],"total":0,"page":1,"page_size":1}`))
	})

	result := CheckStoryService(context.Background(), cfg, logging.NewNop())
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckStoryService_BadToken(t *testing.T) {
	cfg := newServiceConfig(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	result := CheckStoryService(context.Background(), cfg, logging.NewNop())
	if result.Passed {
		t.Fatal("expected failure for bad token")
	}
	if !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckStoryService_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cfg := config.Default()
	cfg.API.BaseURL = base
	result := CheckStoryService(context.Background(), &cfg, logging.NewNop())
	if result.Passed {
		t.Fatal("expected failure for closed server")
	}
	if !strings.Contains(result.Detail, "unreachable") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckNotifications(t *testing.T) {
	cfg := config.Default()
	if r := CheckNotifications(&cfg); !r.Passed || r.Detail != "Disabled" {
		t.Fatalf("unexpected result: %+v", r)
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/stories"
	if r := CheckNotifications(&cfg); !r.Passed || r.Detail != "https://ntfy.sh/stories" {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_AllChecks(t *testing.T) {
	cfg := newServiceConfig(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jobs":[],"total":0,"page":1,"page_size":1}`))
	})
	cfg.Paths.DataDir = t.TempDir()
	cfg.Download.Dir = t.TempDir()

	results := RunAll(context.Background(), cfg, logging.NewNop())
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}
