package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"storyteller/internal/logging"
	"storyteller/internal/poller"
	"storyteller/internal/services"
)

// API is the subset of the story service a Session needs.
type API interface {
	CreateJob(ctx context.Context, req Request) (Created, error)
	JobStatus(ctx context.Context, jobID string) (Status, error)
}

// ProgressFunc receives the job's stage and progress after every status.
type ProgressFunc func(stage Stage, progress float64)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Interval between status polls. Defaults to poller.DefaultInterval.
	Interval time.Duration
	Logger   *slog.Logger
}

// Session submits and tracks a single job. A Session is single use.
type Session struct {
	api      API
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	snapshot atomic.Pointer[Job]

	// deliverMu guards cancelled. It is never held while onProgress runs.
	deliverMu sync.Mutex
	cancelled bool
	// received is set once the first status has been applied.
	received atomic.Bool
}

// NewSession constructs a Session bound to api.
func NewSession(api API, opts SessionOptions) *Session {
	interval := opts.Interval
	if interval <= 0 {
		interval = poller.DefaultInterval
	}
	return &Session{
		api:      api,
		interval: interval,
		logger:   logging.NewComponentLogger(opts.Logger, "job-session"),
	}
}

// Submit creates a job and blocks until it completes, fails, or the session
// is cancelled. On completion it returns the final job. A failed job yields
// *GenerationError, a failed create call *SubmissionError, a failed status
// fetch *PollError, and cancellation ErrCancelled. onProgress may be nil and
// may call Cancel.
func (s *Session) Submit(ctx context.Context, req Request, onProgress ProgressFunc) (*Job, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.release()

	created, err := s.api.CreateJob(ctx, req)
	if err != nil {
		if s.isCancelled() || ctx.Err() != nil {
			return nil, ErrCancelled
		}
		logging.ErrorWithContext(s.logger, "job submission failed", "job_submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.base_url and api.token"),
		)
		return nil, &SubmissionError{Err: err}
	}
	if created.ID == "" {
		return nil, &SubmissionError{Err: errors.New("service returned an empty job id")}
	}

	job := NewJob(created)
	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStage, job.Stage.String()),
	)
	return s.track(ctx, job, onProgress)
}

// Resume tracks an existing job without submitting a new one.
func (s *Session) Resume(ctx context.Context, jobID string, onProgress ProgressFunc) (*Job, error) {
	if jobID == "" {
		return nil, errors.New("resume: job id is required")
	}
	ctx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.release()

	return s.track(ctx, NewJob(Created{ID: jobID, Stage: StagePending}), onProgress)
}

// Cancel abandons the session. After Cancel returns no progress callback
// starts and Submit returns ErrCancelled. Cancel is idempotent and may be
// called before, during, or after Submit.
func (s *Session) Cancel() {
	s.deliverMu.Lock()
	already := s.cancelled
	s.cancelled = true
	s.deliverMu.Unlock()

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if !already {
		s.logger.Debug("job session cancelled")
	}
}

// Job returns a snapshot of the tracked job, or nil before submission.
func (s *Session) Job() *Job {
	return s.snapshot.Load().Clone()
}

// Observed reports whether at least one status from the service has been
// applied to the tracked job. Before that, Job only reflects the create
// response or the placeholder used by Resume.
func (s *Session) Observed() bool {
	return s.received.Load()
}

func (s *Session) begin(parent context.Context) (context.Context, error) {
	if parent == nil {
		parent = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, ErrSessionStarted
	}
	s.started = true
	if s.isCancelled() {
		return nil, ErrCancelled
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	return ctx, nil
}

func (s *Session) release() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) isCancelled() bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	return s.cancelled
}

func (s *Session) track(ctx context.Context, job *Job, onProgress ProgressFunc) (*Job, error) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, s.logger)
	sampler := logging.NewProgressSampler(5)

	s.snapshot.Store(job.Clone())

	handle := poller.Start(ctx, poller.Options[Status]{
		Fetch: func(ctx context.Context) (Status, error) {
			return s.api.JobStatus(ctx, job.ID)
		},
		IsTerminal: func(status Status) bool {
			return status.Stage.IsTerminal()
		},
		Interval: s.interval,
		OnUpdate: func(status Status) {
			s.deliverMu.Lock()
			if s.cancelled {
				s.deliverMu.Unlock()
				return
			}
			job.Apply(status)
			s.snapshot.Store(job.Clone())
			s.received.Store(true)
			s.deliverMu.Unlock()

			if sampler.ShouldLog(job.Progress, job.Stage.String()) {
				logger.Info("job progress",
					logging.String(logging.FieldStage, job.Stage.String()),
					logging.Float64(logging.FieldProgress, job.Progress),
				)
			}
			if onProgress != nil {
				onProgress(job.Stage, job.Progress)
			}
		},
	})

	err := handle.Wait(context.Background())
	if s.isCancelled() || errors.Is(err, poller.ErrCancelled) {
		return nil, ErrCancelled
	}
	if err != nil {
		logging.ErrorWithContext(logger, "job status polling failed", "job_poll_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `storyteller wait "+job.ID+"` to resume tracking"),
		)
		return nil, err
	}

	if job.Stage == StageFailed {
		message := job.ErrorMessage
		if message == "" {
			message = fallbackFailureMessage
		}
		logger.Warn("job failed",
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, message),
			logging.String(logging.FieldImpact, "no audio was produced"),
		)
		return nil, &GenerationError{JobID: job.ID, Message: message}
	}

	logger.Info("job completed", logging.String(logging.FieldStage, job.Stage.String()))
	return job.Clone(), nil
}
