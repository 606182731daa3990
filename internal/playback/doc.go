// Package playback drives a streaming audio element and keeps a state
// snapshot consistent with it.
//
// An Element is the native audio resource: it loads a URL, plays PCM in
// real time and reports metadata, time updates, natural end and errors on a
// channel. A Resource owns one Element and consumes its events on a single
// goroutine. A Controller owns at most one Resource, rebuilding it whenever
// the source changes, and exposes transport operations that update the
// snapshot immediately. Playback errors are recorded in the snapshot; no
// operation returns an error.
package playback
