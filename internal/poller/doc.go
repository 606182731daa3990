// Package poller repeatedly fetches a status until it reaches a terminal
// value, the fetch fails, or the caller cancels.
//
// Start fetches immediately and re-arms its timer only after the previous
// fetch resolved, so updates are delivered strictly in poll order and two
// fetches never overlap. A failed fetch ends the poll with a *PollError;
// there is no retry.
package poller
