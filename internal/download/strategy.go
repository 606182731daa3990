package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"storyteller/internal/logging"
)

// maxAudioBytes bounds the fallback's in-memory copy.
const maxAudioBytes = 512 << 20

// EndpointFunc derives the dedicated download endpoint for a source URL.
type EndpointFunc func(sourceURL string) (string, error)

// Options configures a Strategy.
type Options struct {
	Trigger Trigger
	// Objects defaults to the trigger's store when it exposes one, so
	// references created by the fallback resolve in the trigger.
	Objects    ObjectStore
	HTTPClient HTTPDoer
	// Endpoint defaults to DeriveEndpoint.
	Endpoint EndpointFunc
	Logger   *slog.Logger
}

// Strategy downloads audio with a primary and a fallback path.
type Strategy struct {
	trigger  Trigger
	objects  ObjectStore
	http     HTTPDoer
	endpoint EndpointFunc
	logger   *slog.Logger
}

// objectSource is implemented by triggers that resolve blob references.
type objectSource interface {
	Objects() ObjectStore
}

// New constructs a Strategy.
func New(opts Options) *Strategy {
	objects := opts.Objects
	if objects == nil {
		if src, ok := opts.Trigger.(objectSource); ok {
			objects = src.Objects()
		}
	}
	if objects == nil {
		objects = NewMemoryStore()
	}
	doer := opts.HTTPClient
	if doer == nil {
		doer = http.DefaultClient
	}
	endpoint := opts.Endpoint
	if endpoint == nil {
		endpoint = DeriveEndpoint
	}
	return &Strategy{
		trigger:  opts.Trigger,
		objects:  objects,
		http:     doer,
		endpoint: endpoint,
		logger:   logging.NewComponentLogger(opts.Logger, "download"),
	}
}

// Download saves sourceURL as filename. It returns nil when either path
// succeeds and *DownloadError when both fail. There is no further retry.
//
// Any error from the trigger on the primary path sends the download to the
// fallback. FileTrigger reports a non-2xx response from the endpoint as an
// error, so an endpoint that answers 404 or 500 is fetched directly instead.
func (s *Strategy) Download(ctx context.Context, sourceURL, filename string) error {
	if strings.TrimSpace(sourceURL) == "" {
		return ErrNoSource
	}
	if s.trigger == nil {
		return fmt.Errorf("download: no trigger configured")
	}

	primaryErr := s.primary(ctx, sourceURL, filename)
	if primaryErr == nil {
		return nil
	}
	s.logger.Info("primary download failed; fetching audio directly",
		logging.String("source", sourceURL),
		logging.Error(primaryErr),
	)

	fallbackErr := s.fallback(ctx, sourceURL, filename)
	if fallbackErr == nil {
		return nil
	}
	err := &DownloadError{Primary: primaryErr, Fallback: fallbackErr}
	logging.WarnWithContext(s.logger, "audio download failed", "download_failed",
		logging.String("source", sourceURL),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check download.dir permissions and the audio url"),
		logging.String(logging.FieldImpact, "the story can still be played"),
	)
	return err
}

func (s *Strategy) primary(ctx context.Context, sourceURL, filename string) error {
	endpoint, err := s.endpoint(sourceURL)
	if err != nil {
		return err
	}
	return s.trigger.Trigger(ctx, endpoint, filename)
}

func (s *Strategy) fallback(ctx context.Context, sourceURL, filename string) error {
	data, contentType, err := s.fetch(ctx, sourceURL)
	if err != nil {
		return err
	}
	ref, err := s.objects.Create(data, contentType)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	defer s.objects.Revoke(ref)
	return s.trigger.Trigger(ctx, ref, filename)
}

func (s *Strategy) fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build audio request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	if len(data) > maxAudioBytes {
		return nil, "", fmt.Errorf("read audio: larger than %d bytes", maxAudioBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// DeriveEndpoint maps a source URL containing a /jobs/{id} path segment to
// that job's /jobs/{id}/download endpoint on the same host.
func DeriveEndpoint(sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoEndpoint, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: %q is not absolute", ErrNoEndpoint, sourceURL)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "jobs" && segments[i+1] != "" {
			prefix := strings.Join(segments[:i+2], "/")
			out := *u
			out.Path = "/" + prefix + "/download"
			out.RawPath = ""
			out.RawQuery = ""
			out.Fragment = ""
			return out.String(), nil
		}
	}
	return "", fmt.Errorf("%w: no job id in %q", ErrNoEndpoint, sourceURL)
}
