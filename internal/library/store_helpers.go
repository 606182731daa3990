package library

import (
	"database/sql"
	"errors"
	"time"

	"storyteller/internal/jobs"
)

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		jobID         string
		theme         string
		characterName sql.NullString
		ageGroup      sql.NullString
		stage         string
		progress      float64
		title         sql.NullString
		audioURL      sql.NullString
		duration      sql.NullFloat64
		wordCount     sql.NullInt64
		errorMessage  sql.NullString
		downloadPath  sql.NullString
		submittedRaw  string
		updatedRaw    string
		completedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&jobID,
		&theme,
		&characterName,
		&ageGroup,
		&stage,
		&progress,
		&title,
		&audioURL,
		&duration,
		&wordCount,
		&errorMessage,
		&downloadPath,
		&submittedRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		JobID:           jobID,
		Theme:           theme,
		CharacterName:   characterName.String,
		AgeGroup:        ageGroup.String,
		Stage:           jobs.Stage(stage),
		Progress:        progress,
		Title:           title.String,
		AudioURL:        audioURL.String,
		DurationSeconds: duration.Float64,
		WordCount:       int(wordCount.Int64),
		ErrorMessage:    errorMessage.String,
		DownloadPath:    downloadPath.String,
	}
	if submitted, err := parseTimeString(submittedRaw); err == nil {
		entry.SubmittedAt = submitted
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			entry.CompletedAt = &completed
		}
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
