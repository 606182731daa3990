// Package download saves finished story audio as a local file.
//
// Strategy first hands the job's dedicated download endpoint to a Trigger.
// If that fails it fetches the audio bytes itself, registers them in an
// ObjectStore as a temporary blob: reference, triggers that reference and
// revokes it straight away. Download failures never touch playback or job
// state.
package download
