package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storyteller/internal/jobs"
)

// ErrNotFound is returned when no entry exists for a job id.
var ErrNotFound = errors.New("story not found in history")

const entryColumns = "job_id, theme, character_name, age_group, stage, progress, title, audio_url, duration_seconds, word_count, error_message, download_path, submitted_at, updated_at, completed_at"

// RecordSubmission inserts a freshly submitted job. Resubmitting the same
// job id replaces the request fields and resets progress.
func (s *Store) RecordSubmission(ctx context.Context, req jobs.Request, job *jobs.Job) error {
	if job == nil || job.ID == "" {
		return errors.New("record submission: job id is required")
	}
	submitted := job.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	_, err := s.execWithRetry(ctx, `
INSERT INTO stories (job_id, theme, character_name, age_group, stage, progress, submitted_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
    theme = excluded.theme,
    character_name = excluded.character_name,
    age_group = excluded.age_group,
    stage = excluded.stage,
    progress = excluded.progress,
    updated_at = excluded.updated_at`,
		job.ID,
		req.Theme,
		nullableString(req.CharacterName),
		nullableString(req.AgeGroup),
		string(job.Stage),
		job.Progress,
		formatTime(submitted),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// UpdateFromJob stores the latest stage, progress and terminal payload. Jobs
// that were never recorded locally, e.g. ones resumed by id, are inserted
// with an empty theme.
func (s *Store) UpdateFromJob(ctx context.Context, job *jobs.Job) error {
	if job == nil || job.ID == "" {
		return errors.New("update history: job id is required")
	}
	var (
		title, audioURL any
		duration        any
		wordCount       any
		completedAt     any
	)
	if job.Result != nil {
		title = nullableString(job.Result.Title)
		audioURL = nullableString(job.Result.AudioURL)
		duration = job.Result.DurationSeconds
		wordCount = job.Result.WordCount
	}
	now := time.Now().UTC()
	if job.Stage.IsTerminal() {
		completedAt = formatTime(now)
	}
	_, err := s.execWithRetry(ctx, `
INSERT INTO stories (job_id, theme, stage, progress, title, audio_url, duration_seconds, word_count, error_message, submitted_at, updated_at, completed_at)
VALUES (?, '', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
    stage = excluded.stage,
    progress = excluded.progress,
    title = COALESCE(excluded.title, stories.title),
    audio_url = COALESCE(excluded.audio_url, stories.audio_url),
    duration_seconds = COALESCE(excluded.duration_seconds, stories.duration_seconds),
    word_count = COALESCE(excluded.word_count, stories.word_count),
    error_message = excluded.error_message,
    updated_at = excluded.updated_at,
    completed_at = COALESCE(stories.completed_at, excluded.completed_at)`,
		job.ID,
		string(job.Stage),
		job.Progress,
		title,
		audioURL,
		duration,
		wordCount,
		nullableString(job.ErrorMessage),
		formatTime(now),
		formatTime(now),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	return nil
}

// MarkDownloaded records where the audio for a job was saved.
func (s *Store) MarkDownloaded(ctx context.Context, jobID, path string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE stories SET download_path = ?, updated_at = ? WHERE job_id = ?",
		path, formatTime(time.Now().UTC()), jobID,
	)
	if err != nil {
		return fmt.Errorf("mark downloaded: %w", err)
	}
	return requireAffected(res, jobID)
}

// Get returns the entry for jobID or ErrNotFound.
func (s *Store) Get(ctx context.Context, jobID string) (*Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM stories WHERE job_id = ?", jobID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return entry, nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := "SELECT " + entryColumns + " FROM stories ORDER BY submitted_at DESC, job_id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// Active returns entries whose last recorded stage was not terminal, oldest
// first.
func (s *Store) Active(ctx context.Context) ([]*Entry, error) {
	return s.query(ctx,
		"SELECT "+entryColumns+" FROM stories WHERE stage NOT IN (?, ?) ORDER BY submitted_at, job_id",
		string(jobs.StageCompleted), string(jobs.StageFailed),
	)
}

// Delete removes the entry for jobID. Missing entries return ErrNotFound.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM stories WHERE job_id = ?", jobID)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	return requireAffected(res, jobID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

func requireAffected(res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return nil
}
