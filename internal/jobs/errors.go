package jobs

import (
	"errors"

	"storyteller/internal/poller"
)

// ErrCancelled is returned by Submit and Resume after Cancel. A cancelled
// session is abandoned; it has neither succeeded nor failed.
var ErrCancelled = errors.New("job session cancelled")

// ErrSessionStarted is returned when a Session is reused.
var ErrSessionStarted = errors.New("job session already started")

// PollError reports a status fetch failure that ended the session.
type PollError = poller.PollError

// SubmissionError reports that the create-job call failed. Generation never
// started.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	if e == nil || e.Err == nil {
		return "submit story job failed"
	}
	return "submit story job: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const fallbackFailureMessage = "the service reported a failure without details"

// GenerationError carries the failure message reported by the service.
type GenerationError struct {
	JobID   string
	Message string
}

func (e *GenerationError) Error() string {
	if e == nil {
		return "story generation failed"
	}
	msg := e.Message
	if msg == "" {
		msg = fallbackFailureMessage
	}
	return "story generation failed: " + msg
}

// IsCancelled reports whether err means the session was abandoned.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
