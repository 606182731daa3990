package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"storyteller/internal/jobs"
	"storyteller/internal/library"
	"storyteller/internal/logging"
	"storyteller/internal/notifications"
	"storyteller/internal/playback"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		req    jobs.Request
		noWait bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a new story and wait for it to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Theme = strings.TrimSpace(req.Theme)
			req.CharacterName = strings.TrimSpace(req.CharacterName)
			req.AgeGroup = strings.TrimSpace(req.AgeGroup)

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			store := ctx.historyOrWarn(cmd)
			api := &recordingAPI{API: client, store: store, logger: ctx.loggerValue()}

			if noWait {
				created, err := api.CreateJob(cmd.Context(), req)
				if err != nil {
					return &jobs.SubmissionError{Err: err}
				}
				if asJSON {
					return writeJSON(cmd, jobToJSON(jobs.NewJob(created)))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s\n", created.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Track it with: storyteller wait %s\n", created.ID)
				return nil
			}

			session := jobs.NewSession(api, jobs.SessionOptions{
				Interval: ctx.configValue().PollInterval(),
				Logger:   ctx.loggerValue(),
			})
			tracker := newProgressPrinter(cmd.OutOrStdout(), asJSON)
			job, err := session.Submit(cmd.Context(), req, tracker.onProgress)
			return finishTracking(cmd, ctx, trackedJob{
				id:      api.jobID(),
				theme:   req.Theme,
				session: session,
				store:   store,
				asJSON:  asJSON,
			}, job, err)
		},
	}

	cmd.Flags().StringVarP(&req.Theme, "theme", "t", "", "What the story should be about")
	cmd.Flags().StringVar(&req.CharacterName, "character", "", "Name of the main character")
	cmd.Flags().StringVar(&req.AgeGroup, "age-group", "", "Listener age group, e.g. 5-7")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Submit and return without tracking progress")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the final job as JSON")
	return cmd
}

func newWaitCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "wait [job-id]",
		Short: "Resume tracking a job until it finishes",
		Long:  "Resume tracking a job until it finishes. Without a job id, every job left unfinished in the local history is tracked in turn.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			store := ctx.historyOrWarn(cmd)

			var ids []string
			if len(args) == 1 {
				ids = append(ids, strings.TrimSpace(args[0]))
			} else {
				if store == nil {
					return errors.New("no job id given and local history is unavailable")
				}
				active, err := store.Active(cmd.Context())
				if err != nil {
					return err
				}
				for _, entry := range active {
					ids = append(ids, entry.JobID)
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No unfinished jobs in history")
					return nil
				}
			}

			var errs []error
			for _, id := range ids {
				theme := ""
				if store != nil {
					if entry, err := store.Get(cmd.Context(), id); err == nil {
						theme = entry.Theme
					}
				}
				session := jobs.NewSession(client, jobs.SessionOptions{
					Interval: ctx.configValue().PollInterval(),
					Logger:   ctx.loggerValue(),
				})
				if !asJSON && len(ids) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s\n", id)
				}
				tracker := newProgressPrinter(cmd.OutOrStdout(), asJSON)
				job, err := session.Resume(cmd.Context(), id, tracker.onProgress)
				err = finishTracking(cmd, ctx, trackedJob{
					id:      id,
					theme:   theme,
					session: session,
					store:   store,
					asJSON:  asJSON,
				}, job, err)
				if jobs.IsCancelled(err) {
					return err
				}
				if err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the final job as JSON")
	return cmd
}

// recordingAPI writes a history entry as soon as the service accepts a job,
// so the job can be resumed even when tracking is interrupted.
type recordingAPI struct {
	jobs.API
	store  *library.Store
	logger *slog.Logger

	mu      sync.Mutex
	created string
}

func (r *recordingAPI) CreateJob(ctx context.Context, req jobs.Request) (jobs.Created, error) {
	created, err := r.API.CreateJob(ctx, req)
	if err != nil {
		return created, err
	}
	r.mu.Lock()
	r.created = created.ID
	r.mu.Unlock()
	if r.store != nil && created.ID != "" {
		if err := r.store.RecordSubmission(ctx, req, jobs.NewJob(created)); err != nil {
			r.logger.Warn("record submission failed",
				logging.String(logging.FieldJobID, created.ID),
				logging.Error(err),
			)
		}
	}
	return created, nil
}

func (r *recordingAPI) jobID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

type trackedJob struct {
	id      string
	theme   string
	session *jobs.Session
	store   *library.Store
	asJSON  bool
}

// finishTracking records the outcome, notifies, and renders the final
// result. It returns err unchanged apart from hints.
func finishTracking(cmd *cobra.Command, ctx *commandContext, tracked trackedJob, job *jobs.Job, err error) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	runCtx := context.WithoutCancel(cmd.Context())

	latest := job
	if latest == nil && tracked.session != nil {
		latest = tracked.session.Job()
	}
	// Without a status from the service the session only holds the
	// placeholder, which must not overwrite the recorded progress.
	recordable := job != nil || (tracked.session != nil && tracked.session.Observed())
	if recordable && latest != nil && tracked.store != nil {
		if storeErr := tracked.store.UpdateFromJob(runCtx, latest); storeErr != nil {
			ctx.loggerValue().Warn("history update failed",
				logging.String(logging.FieldJobID, latest.ID),
				logging.Error(storeErr),
			)
		}
	}
	jobID := tracked.id
	if jobID == "" && latest != nil {
		jobID = latest.ID
	}

	var (
		genErr  *jobs.GenerationError
		pollErr *jobs.PollError
		subErr  *jobs.SubmissionError
	)
	switch {
	case err == nil:
	case jobs.IsCancelled(err):
		if jobID != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Stopped tracking. Resume with: storyteller wait %s\n", jobID)
		}
		return err
	case errors.As(err, &genErr):
		notify(runCtx, ctx, notifications.EventStoryFailed, notifications.Payload{
			"theme": tracked.theme,
			"error": genErr.Message,
		})
		if tracked.asJSON && latest != nil {
			_ = writeJSON(cmd, jobToJSON(latest))
		} else {
			fmt.Fprintln(out, renderStatusLine(jobs.StageFailed.Label(), toneError, genErr.Message, colorize))
		}
		return err
	case errors.As(err, &pollErr):
		if jobID != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Lost contact with the service. Resume with: storyteller wait %s\n", jobID)
		}
		return err
	case errors.As(err, &subErr):
		fmt.Fprintln(cmd.ErrOrStderr(), "The service did not accept the story. Check api.base_url and api.token, or run: storyteller doctor")
		return err
	default:
		return err
	}

	notify(runCtx, ctx, notifications.EventStoryReady, notifications.Payload{
		"title":    resultTitle(job),
		"theme":    tracked.theme,
		"duration": resultDuration(job),
	})
	if tracked.asJSON {
		return writeJSON(cmd, jobToJSON(job))
	}
	renderResult(out, job, colorize)
	return nil
}

func notify(ctx context.Context, cmdCtx *commandContext, event notifications.Event, payload notifications.Payload) {
	if err := cmdCtx.notifier().Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(cmdCtx.loggerValue(), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func renderResult(out io.Writer, job *jobs.Job, colorize bool) {
	for _, line := range renderSectionHeader(fallbackText(resultTitle(job), "Your story"), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	if job.Result == nil {
		return
	}
	if d := resultDuration(job); d != "" {
		fmt.Fprintf(out, "Duration: %s\n", d)
	}
	if job.Result.WordCount > 0 {
		fmt.Fprintf(out, "Words:    %d\n", job.Result.WordCount)
	}
	if job.Result.AudioURL != "" {
		fmt.Fprintf(out, "Audio:    %s\n", job.Result.AudioURL)
		fmt.Fprintf(out, "Listen with: storyteller play %s\n", job.ID)
	}
}

func resultTitle(job *jobs.Job) string {
	if job == nil || job.Result == nil {
		return ""
	}
	return job.Result.Title
}

func resultDuration(job *jobs.Job) string {
	if job == nil || job.Result == nil || job.Result.DurationSeconds <= 0 {
		return ""
	}
	return playback.FormatTime(job.Result.DurationSeconds)
}

func fallbackText(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

// progressPrinter prints one line whenever the stage or the whole
// percentage changes.
type progressPrinter struct {
	out      io.Writer
	quiet    bool
	colorize bool

	lastStage   jobs.Stage
	lastPercent int
}

func newProgressPrinter(out io.Writer, quiet bool) *progressPrinter {
	return &progressPrinter{
		out:         out,
		quiet:       quiet,
		colorize:    shouldColorize(out),
		lastPercent: -1,
	}
}

func (p *progressPrinter) onProgress(stage jobs.Stage, progress float64) {
	if p.quiet {
		return
	}
	percent := int(math.Floor(progress))
	if stage == p.lastStage && percent == p.lastPercent {
		return
	}
	p.lastStage = stage
	p.lastPercent = percent
	fmt.Fprintln(p.out, renderProgressLine(stage, progress, p.colorize))
}
