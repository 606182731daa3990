package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"storyteller/internal/config"
	"storyteller/internal/testsupport"
)

var testAudio = []byte("ID3-fake-story-audio")

type fakeStatus struct {
	Stage    string         `json:"stage"`
	Progress float64        `json:"progress_percentage"`
	Result   map[string]any `json:"result,omitempty"`
	Error    *string        `json:"error,omitempty"`
}

// fakeStoryService mimics the generation service under /api/v1 and serves
// audio under /media.
type fakeStoryService struct {
	t      *testing.T
	server *httptest.Server

	mu             sync.Mutex
	statuses       map[string][]fakeStatus
	createStatus   int
	downloadStatus int
	nextID         int
	created        []map[string]any
	deleted        []string
	downloads      int
	mediaHits      int
}

func newFakeStoryService(t *testing.T) *fakeStoryService {
	t.Helper()
	f := &fakeStoryService{
		t:              t,
		statuses:       make(map[string][]fakeStatus),
		createStatus:   http.StatusCreated,
		downloadStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/jobs", f.handleCreate)
	mux.HandleFunc("GET /api/v1/jobs", f.handleList)
	mux.HandleFunc("GET /api/v1/jobs/{id}/status", f.handleStatus)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", f.handleDelete)
	mux.HandleFunc("GET /api/v1/jobs/{id}/download", f.handleDownload)
	mux.HandleFunc("GET /media/{name}", f.handleMedia)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeStoryService) baseURL() string {
	return f.server.URL + "/api/v1"
}

func (f *fakeStoryService) setStatuses(jobID string, statuses ...fakeStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[jobID] = statuses
}

func completedStatus(title string) fakeStatus {
	return fakeStatus{
		Stage:    "completed",
		Progress: 100,
		Result: map[string]any{
			"audio_url":        "/media/story.mp3",
			"title":            title,
			"duration_seconds": 312,
			"word_count":       540,
		},
	}
}

func failedStatus(message string) fakeStatus {
	return fakeStatus{Stage: "failed", Progress: 40, Error: &message}
}

func (f *fakeStoryService) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	status := f.createStatus
	f.created = append(f.created, body)
	f.nextID++
	id := fmt.Sprintf("job-%d", f.nextID)
	f.mu.Unlock()

	if status >= 300 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"detail":"theme must not be empty"}`))
		return
	}
	writeTestJSON(w, status, map[string]string{"job_id": id, "stage": "pending"})
}

func (f *fakeStoryService) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	seq, ok := f.statuses[id]
	var status fakeStatus
	if ok && len(seq) > 0 {
		status = seq[0]
		if len(seq) > 1 {
			f.statuses[id] = seq[1:]
		}
	}
	f.mu.Unlock()
	if !ok {
		writeTestJSON(w, http.StatusNotFound, map[string]string{"detail": "Job not found"})
		return
	}
	writeTestJSON(w, http.StatusOK, status)
}

func (f *fakeStoryService) handleList(w http.ResponseWriter, r *http.Request) {
	writeTestJSON(w, http.StatusOK, map[string]any{
		"jobs": []map[string]any{
			{"job_id": "remote-1", "theme": "pirates", "age_group": "5-7", "stage": "completed", "title": "Pirate Cove", "duration_seconds": 200, "created_at": "2026-01-02T03:04:05Z"},
			{"job_id": "remote-2", "theme": "owls", "age_group": "3-5", "stage": "generating_speech", "created_at": "2026-01-03T03:04:05Z"},
		},
		"total":     2,
		"page":      1,
		"page_size": 20,
	})
}

func (f *fakeStoryService) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	_, known := f.statuses[id]
	if known {
		f.deleted = append(f.deleted, id)
		delete(f.statuses, id)
	}
	f.mu.Unlock()
	if !known {
		writeTestJSON(w, http.StatusNotFound, map[string]string{"detail": "Job not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeStoryService) handleDownload(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.downloads++
	status := f.downloadStatus
	f.mu.Unlock()
	if status != http.StatusOK {
		http.Error(w, "no download", status)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(testAudio)
}

func (f *fakeStoryService) handleMedia(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.mediaHits++
	f.mu.Unlock()
	if r.PathValue("name") != "story.mp3" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(testAudio)
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type cliTestEnv struct {
	cfg        *config.Config
	service    *fakeStoryService
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	service := newFakeStoryService(t)
	cfg := testsupport.NewConfig(t, testsupport.WithAPIBaseURL(service.baseURL()))
	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("STORYTELLER_API_URL", "")
	t.Setenv("STORYTELLER_API_TOKEN", "")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "storyteller.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, service: service, configPath: configPath}
}

func runCLI(t *testing.T, env *cliTestEnv, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[api]
base_url = %q
token = %q

[polling]
interval_seconds = 1

[playback]
media_base_url = %q
tick_millis = 50

[download]
dir = %q

[paths]
data_dir = %q

[notifications]
ntfy_topic = %q
`,
		cfg.API.BaseURL,
		cfg.API.Token,
		strings.TrimSuffix(cfg.API.BaseURL, "/api/v1"),
		cfg.Download.Dir,
		cfg.Paths.DataDir,
		cfg.Notifications.NtfyTopic,
	)
	testsupport.WriteFile(t, path, []byte(content))
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
