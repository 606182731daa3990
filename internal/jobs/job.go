package jobs

import (
	"math"
	"time"
)

// Request describes a story to generate.
type Request struct {
	Theme         string `json:"theme"`
	CharacterName string `json:"character_name,omitempty"`
	AgeGroup      string `json:"age_group,omitempty"`
}

// Created is the service's answer to a submission.
type Created struct {
	ID    string
	Stage Stage
}

// Result is the payload of a completed job.
type Result struct {
	AudioURL        string
	Title           string
	DurationSeconds float64
	WordCount       int
}

// Status is one poll response.
type Status struct {
	Stage    Stage
	Progress float64
	Result   *Result
	Error    string
}

// Job is the client-side view of a generation job. It is mutated only by
// Apply and is read-only outside a Session.
type Job struct {
	ID           string
	Stage        Stage
	Progress     float64
	Result       *Result
	ErrorMessage string
	SubmittedAt  time.Time
	UpdatedAt    time.Time
}

// NewJob creates a job from a submission response.
func NewJob(created Created) *Job {
	stage := created.Stage
	if !stage.Valid() {
		stage = StagePending
	}
	now := time.Now().UTC()
	return &Job{ID: created.ID, Stage: stage, SubmittedAt: now, UpdatedAt: now}
}

// Apply folds a poll response into the job. Progress is clamped to 0..100
// and never decreases; a non-terminal stage never moves backwards. Result is
// kept only for completed jobs and ErrorMessage only for failed ones.
func (j *Job) Apply(status Status) {
	stage := status.Stage
	if !stage.Valid() {
		stage = j.Stage
	}
	if !stage.IsTerminal() && stage.Rank() < j.Stage.Rank() {
		stage = j.Stage
	}
	j.Stage = stage

	progress := clampProgress(status.Progress)
	if stage == StageCompleted {
		progress = 100
	}
	if progress > j.Progress {
		j.Progress = progress
	}

	j.Result = nil
	j.ErrorMessage = ""
	switch stage {
	case StageCompleted:
		if status.Result != nil {
			result := *status.Result
			j.Result = &result
		}
	case StageFailed:
		j.ErrorMessage = status.Error
	}
	j.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Result != nil {
		result := *j.Result
		cp.Result = &result
	}
	return &cp
}

func clampProgress(value float64) float64 {
	switch {
	case math.IsNaN(value), value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
