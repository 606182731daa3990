// Package notifications delivers story events via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Events disabled in config are dropped
// before any HTTP work.
package notifications
