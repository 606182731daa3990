package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"storyteller/internal/download"
	"storyteller/internal/logging"
	"storyteller/internal/notifications"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		output string
		dir    string
	)

	cmd := &cobra.Command{
		Use:   "download <job-id|audio-url>",
		Short: "Save a finished story's audio locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := ctx.historyOrWarn(cmd)
			src, err := resolveAudioSource(cmd.Context(), ctx, store, args[0])
			if err != nil {
				return err
			}

			targetDir := cfg.Download.Dir
			if dir != "" {
				targetDir = dir
			}
			logger := ctx.loggerValue()
			httpClient := &http.Client{Timeout: cfg.APITimeout()}
			trigger := download.NewFileTrigger(targetDir, httpClient, nil, logger)

			opts := download.Options{
				Trigger:    trigger,
				HTTPClient: httpClient,
				Logger:     logger,
			}
			if src.jobID != "" {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				jobID := src.jobID
				opts.Endpoint = func(string) (string, error) {
					return client.DownloadURL(jobID), nil
				}
			}

			filename := src.filename(output)
			if err := download.New(opts).Download(cmd.Context(), src.url, filename); err != nil {
				return err
			}

			dest := trigger.Destination(filename)
			if store != nil && src.jobID != "" {
				if err := store.MarkDownloaded(cmd.Context(), src.jobID, dest); err != nil {
					logger.Warn("history update failed",
						logging.String(logging.FieldJobID, src.jobID),
						logging.Error(err),
					)
				}
			}
			notify(cmd.Context(), ctx, notifications.EventDownloadCompleted, notifications.Payload{"path": dest})
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File name for the saved audio")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to save into (defaults to download.dir)")
	return cmd
}
