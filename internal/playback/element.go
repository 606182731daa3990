package playback

import "context"

// EventKind identifies a native element event.
type EventKind int

const (
	EventMetadata EventKind = iota + 1
	EventTimeUpdate
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMetadata:
		return "metadata"
	case EventTimeUpdate:
		return "time_update"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by an Element.
type Event struct {
	Kind EventKind
	// Duration in seconds, set for EventMetadata.
	Duration float64
	// Time in seconds, set for EventTimeUpdate.
	Time float64
	// Err is set for EventError.
	Err error
}

// Element is a native streaming audio resource. Methods must return
// promptly and must not wait for Events to be drained. The Events channel
// is closed when the element is closed.
type Element interface {
	Events() <-chan Event
	// Play starts or resumes playback. An error means the element refused.
	Play() error
	Pause()
	Seek(seconds float64)
	SetVolume(volume float64)
	Close() error
}

// ElementFactory opens elements. Open returns once the element exists;
// loading continues in the background and is reported through events.
type ElementFactory interface {
	Open(ctx context.Context, url string) (Element, error)
}

// ElementFactoryFunc adapts a function to ElementFactory.
type ElementFactoryFunc func(ctx context.Context, url string) (Element, error)

func (f ElementFactoryFunc) Open(ctx context.Context, url string) (Element, error) {
	return f(ctx, url)
}
