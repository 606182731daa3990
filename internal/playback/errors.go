package playback

import "fmt"

// PlaybackError records a load or play failure in State.LastError.
type PlaybackError struct {
	Op  string
	URL string
	Err error
}

func (e *PlaybackError) Error() string {
	if e == nil {
		return "playback failed"
	}
	op := e.Op
	if op == "" {
		op = "playback"
	}
	msg := fmt.Sprintf("audio %s failed", op)
	if e.URL != "" {
		msg += " for " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PlaybackError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
