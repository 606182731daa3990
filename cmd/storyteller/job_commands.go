package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storyteller/internal/jobs"
	"storyteller/internal/library"
	"storyteller/internal/logging"
	"storyteller/internal/storyapi"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Fetch the current status of a job once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.JobStatus(cmd.Context(), jobID)
			if err != nil {
				if storyapi.IsNotFound(err) {
					return fmt.Errorf("job %s not found on the service", jobID)
				}
				return err
			}

			job := jobs.NewJob(jobs.Created{ID: jobID, Stage: jobs.StagePending})
			job.Apply(status)
			if store := ctx.historyOrWarn(cmd); store != nil {
				if err := store.UpdateFromJob(cmd.Context(), job); err != nil {
					ctx.loggerValue().Warn("history update failed",
						logging.String(logging.FieldJobID, jobID),
						logging.Error(err),
					)
				}
			}

			if asJSON {
				return writeJSON(cmd, jobToJSON(job))
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderProgressLine(job.Stage, job.Progress, colorize))
			switch job.Stage {
			case jobs.StageCompleted:
				renderResult(out, job, colorize)
			case jobs.StageFailed:
				fmt.Fprintf(out, "Error: %s\n", fallbackText(job.ErrorMessage, "no details reported"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the job as JSON")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a story from the service and the local history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			out := cmd.OutOrStdout()

			if !localOnly {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				err = client.DeleteJob(cmd.Context(), jobID)
				switch {
				case err == nil:
					fmt.Fprintf(out, "Deleted job %s from the service\n", jobID)
				case storyapi.IsNotFound(err):
					fmt.Fprintf(out, "Job %s was not found on the service\n", jobID)
				default:
					return err
				}
			}

			store := ctx.historyOrWarn(cmd)
			if store == nil {
				return nil
			}
			err := store.Delete(cmd.Context(), jobID)
			switch {
			case err == nil:
				fmt.Fprintf(out, "Removed job %s from local history\n", jobID)
			case errors.Is(err, library.ErrNotFound):
				if localOnly {
					return err
				}
			default:
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&localOnly, "local", false, "Only remove the local history entry")
	return cmd
}
