package library

import (
	"time"

	"storyteller/internal/jobs"
)

// Entry is one story in the local history.
type Entry struct {
	JobID           string
	Theme           string
	CharacterName   string
	AgeGroup        string
	Stage           jobs.Stage
	Progress        float64
	Title           string
	AudioURL        string
	DurationSeconds float64
	WordCount       int
	ErrorMessage    string
	DownloadPath    string
	SubmittedAt     time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// IsActive reports whether the job had not reached a terminal stage when
// last recorded.
func (e *Entry) IsActive() bool {
	return e != nil && !e.Stage.IsTerminal()
}

// DisplayTitle returns the story title, falling back to the theme.
func (e *Entry) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Theme
}
