package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"storyteller/internal/jobs"
	"storyteller/internal/library"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type jobJSON struct {
	JobID           string  `json:"job_id"`
	Stage           string  `json:"stage"`
	Progress        float64 `json:"progress"`
	Message         string  `json:"message"`
	Title           string  `json:"title,omitempty"`
	AudioURL        string  `json:"audio_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	WordCount       int     `json:"word_count,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func jobToJSON(job *jobs.Job) jobJSON {
	out := jobJSON{
		JobID:    job.ID,
		Stage:    job.Stage.String(),
		Progress: job.Progress,
		Message:  job.Stage.Message(),
		Error:    job.ErrorMessage,
	}
	if job.Result != nil {
		out.Title = job.Result.Title
		out.AudioURL = job.Result.AudioURL
		out.DurationSeconds = job.Result.DurationSeconds
		out.WordCount = job.Result.WordCount
	}
	return out
}

type entryJSON struct {
	JobID           string     `json:"job_id"`
	Theme           string     `json:"theme"`
	CharacterName   string     `json:"character_name,omitempty"`
	AgeGroup        string     `json:"age_group,omitempty"`
	Stage           string     `json:"stage"`
	Progress        float64    `json:"progress"`
	Title           string     `json:"title,omitempty"`
	AudioURL        string     `json:"audio_url,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Error           string     `json:"error,omitempty"`
	DownloadPath    string     `json:"download_path,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func entryToJSON(e *library.Entry) entryJSON {
	return entryJSON{
		JobID:           e.JobID,
		Theme:           e.Theme,
		CharacterName:   e.CharacterName,
		AgeGroup:        e.AgeGroup,
		Stage:           e.Stage.String(),
		Progress:        e.Progress,
		Title:           e.Title,
		AudioURL:        e.AudioURL,
		DurationSeconds: e.DurationSeconds,
		Error:           e.ErrorMessage,
		DownloadPath:    e.DownloadPath,
		SubmittedAt:     e.SubmittedAt,
		CompletedAt:     e.CompletedAt,
	}
}
