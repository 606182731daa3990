// Package jobs models story generation jobs and tracks them to completion.
//
// A Session submits one generation request through an API, then polls the
// job's status with the poller package until the service reports completed
// or failed. Every received status is forwarded to a progress callback in
// receipt order. Cancelling a Session abandons it: Submit returns
// ErrCancelled, which callers must treat as neither success nor failure.
package jobs
