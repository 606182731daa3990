package storyapi

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ErrUnavailable is returned when no client has been configured.
var ErrUnavailable = errors.New("story service unavailable")

// APIError is a non-2xx response from the story service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e == nil {
		return "story service error"
	}
	status := http.StatusText(e.StatusCode)
	if status == "" {
		status = "unexpected status"
	}
	if e.Detail == "" {
		return fmt.Sprintf("story service returned %d %s", e.StatusCode, status)
	}
	return fmt.Sprintf("story service returned %d %s: %s", e.StatusCode, status, e.Detail)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnavailable reports whether err is a transport failure reaching the
// service rather than a response from it.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
