// Package preflight provides readiness checks for the story service and the
// local directories storyteller writes to.
//
// The CLI "storyteller doctor" command runs RunAll and renders each Result.
// Notification checks only inspect configuration; they never publish.
package preflight
