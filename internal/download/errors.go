package download

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSource is returned when Download is called without a source URL.
	ErrNoSource = errors.New("no audio source to download")
	// ErrNoEndpoint is returned when no download endpoint can be derived
	// from a source URL.
	ErrNoEndpoint = errors.New("cannot derive download endpoint")
	// ErrUnknownObject is returned when triggering a revoked or unknown blob.
	ErrUnknownObject = errors.New("unknown object reference")
)

// DownloadError reports that both download paths failed.
type DownloadError struct {
	Primary  error
	Fallback error
}

func (e *DownloadError) Error() string {
	if e == nil {
		return "download failed"
	}
	return fmt.Sprintf("download failed: primary: %v; fallback: %v", describe(e.Primary), describe(e.Fallback))
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *DownloadError) Unwrap() []error {
	if e == nil {
		return nil
	}
	var errs []error
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}

func describe(err error) string {
	if err == nil {
		return "not attempted"
	}
	return err.Error()
}
