// Package logs reads the storyteller log file for `storyteller logs`.
//
// Last returns the final N lines (optionally only those mentioning a job),
// and Follow keeps polling the file for appended lines until its context is
// cancelled. Memory use is bounded by the requested line count.
package logs
