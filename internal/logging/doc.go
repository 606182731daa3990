// Package logging builds the slog loggers used by storyteller.
//
// Records go to the log file under the data directory, either as console
// lines ("INFO job-session · Job 7f3a (generating_story): ...") or as
// JSON objects. Job, stage and request identifiers stored on a context by the
// services package are copied onto loggers with WithContext.
package logging
