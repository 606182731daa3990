package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/flock"

	"storyteller/internal/logging"
)

const lockFileName = ".storyteller-download.lock"

// HTTPDoer is the subset of *http.Client used for downloads.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Trigger saves the target of ref under filename without any playback
// side effects.
type Trigger interface {
	Trigger(ctx context.Context, ref, filename string) error
}

// FileTrigger writes targets into a directory. HTTP(S) references are
// fetched; blob: references are read from an ObjectStore.
type FileTrigger struct {
	dir     string
	http    HTTPDoer
	objects ObjectStore
	logger  *slog.Logger
}

// NewFileTrigger constructs a FileTrigger writing into dir.
func NewFileTrigger(dir string, doer HTTPDoer, objects ObjectStore, logger *slog.Logger) *FileTrigger {
	if doer == nil {
		doer = http.DefaultClient
	}
	if objects == nil {
		objects = NewMemoryStore()
	}
	return &FileTrigger{
		dir:     dir,
		http:    doer,
		objects: objects,
		logger:  logging.NewComponentLogger(logger, "download"),
	}
}

// Objects returns the store blob references are resolved against.
func (t *FileTrigger) Objects() ObjectStore {
	return t.objects
}

// Destination returns the path a filename is saved to.
func (t *FileTrigger) Destination(filename string) string {
	return filepath.Join(t.dir, SanitizeFilename(filename))
}

// Trigger writes the target to a temporary file and renames it into place
// while holding the download directory lock, so concurrent downloads of the
// same name never interleave.
func (t *FileTrigger) Trigger(ctx context.Context, ref, filename string) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	dest := t.Destination(filename)

	lock := flock.New(filepath.Join(t.dir, lockFileName))
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock download directory: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock download directory: not acquired")
	}
	defer func() { _ = lock.Unlock() }()

	body, err := t.open(ctx, ref)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(t.dir, "."+filepath.Base(dest)+"-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	written, err := io.Copy(tmp, body)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize %s: %w", filepath.Base(dest), err)
	}

	t.logger.Info("audio saved",
		logging.String("path", dest),
		logging.Int64("bytes", written),
		logging.Bool("from_object", IsObjectRef(ref)),
	)
	return nil
}

func (t *FileTrigger) open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if IsObjectRef(ref) {
		if t.objects == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownObject, ref)
		}
		data, _, ok := t.objects.Get(ref)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownObject, ref)
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", ref, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("request %s: status %d", ref, resp.StatusCode)
	}
	return resp.Body, nil
}

// SanitizeFilename strips directory components and characters that are
// unsafe in file names. An empty result becomes "story.mp3".
func SanitizeFilename(name string) string {
	name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if name == "/" || name == "." {
		name = ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ". ")
	if cleaned == "" {
		return "story.mp3"
	}
	return cleaned
}
