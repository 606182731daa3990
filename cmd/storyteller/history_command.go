package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"storyteller/internal/jobs"
	"storyteller/internal/library"
	"storyteller/internal/playback"
	"storyteller/internal/storyapi"
)

const historyTimeLayout = "2006-01-02 15:04"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		remote bool
		limit  int
		skip   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previously generated stories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				return runRemoteHistory(cmd, ctx, skip, limit, asJSON)
			}
			store, err := ctx.historyStore()
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				out := make([]entryJSON, 0, len(entries))
				for _, e := range entries {
					out = append(out, entryToJSON(e))
				}
				return writeJSON(cmd, out)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stories yet. Create one with: storyteller create --theme \"...\"")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderLocalHistory(entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "List jobs stored by the service instead of local history")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of stories to show (0 for all)")
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of remote jobs to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stories as JSON")
	return cmd
}

func runRemoteHistory(cmd *cobra.Command, ctx *commandContext, skip, limit int, asJSON bool) error {
	client, err := ctx.apiClient()
	if err != nil {
		return err
	}
	page, err := client.ListJobs(cmd.Context(), skip, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, page)
	}
	if len(page.Jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "The service has no stories")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderRemoteHistory(page))
	return nil
}

func renderLocalHistory(entries []*library.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.JobID,
			fallbackText(e.DisplayTitle(), "-"),
			e.Stage.Label(),
			strconv.Itoa(int(e.Progress)) + "%",
			formatDuration(e.DurationSeconds),
			formatWhen(e.SubmittedAt),
			yesNo(e.DownloadPath != ""),
		})
	}
	return renderTable([]column{
		{title: "Job"},
		{title: "Title"},
		{title: "Stage"},
		{title: "Progress", right: true},
		{title: "Length", right: true},
		{title: "Submitted"},
		{title: "Saved"},
	}, rows)
}

func renderRemoteHistory(page storyapi.ListResponse) string {
	rows := make([][]string, 0, len(page.Jobs))
	for _, j := range page.Jobs {
		stage, err := jobs.ParseStage(j.Stage)
		label := j.Stage
		if err == nil {
			label = stage.Label()
		}
		title := j.Title
		if title == "" {
			title = j.Theme
		}
		rows = append(rows, []string{
			j.ID,
			fallbackText(title, "-"),
			fallbackText(j.AgeGroup, "-"),
			label,
			formatDuration(j.DurationSeconds),
			formatWhen(j.CreatedAt),
		})
	}
	table := renderTable([]column{
		{title: "Job"},
		{title: "Title"},
		{title: "Ages"},
		{title: "Stage"},
		{title: "Length", right: true},
		{title: "Created"},
	}, rows)
	return fmt.Sprintf("%s\nShowing %d of %d (page %d)", table, len(page.Jobs), page.Total, page.Page)
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return playback.FormatTime(seconds)
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(historyTimeLayout)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
