// Package main hosts the storyteller CLI entrypoint and command graph.
//
// Commands submit story jobs to the generation service and track them to
// completion, keep a local history, download finished audio, and play it
// through the streaming player. Configuration, logging, the API client and
// the history store are resolved lazily through commandContext so commands
// that do not need them stay fast.
package main
