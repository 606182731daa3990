// Package library keeps a local SQLite history of submitted story jobs.
//
// Entries are written when a job is submitted and updated as its status
// changes, so `storyteller history` works without the service and
// `storyteller wait` can list jobs that were still generating when the CLI
// exited. Writes retry on SQLITE_BUSY with a short exponential backoff.
package library
