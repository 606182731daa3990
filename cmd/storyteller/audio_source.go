package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"storyteller/internal/jobs"
	"storyteller/internal/library"
	"storyteller/internal/logging"
	"storyteller/internal/playback"
	"storyteller/internal/storyapi"
)

// audioSource is a resolved story audio location.
type audioSource struct {
	jobID string
	title string
	url   string
}

func isAudioURL(arg string) bool {
	if strings.HasPrefix(arg, "/") {
		return true
	}
	u, err := url.Parse(arg)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// resolveAudioSource turns a job id or URL into an absolute audio URL. Job
// ids are looked up in local history first, then on the service.
func resolveAudioSource(ctx context.Context, cmdCtx *commandContext, store *library.Store, arg string) (audioSource, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return audioSource{}, errors.New("job id or audio url is required")
	}
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return audioSource{}, err
	}

	if isAudioURL(arg) {
		resolved, err := playback.ResolveURL(arg, cfg.Playback.MediaBaseURL)
		if err != nil {
			return audioSource{}, err
		}
		return audioSource{url: resolved}, nil
	}

	src := audioSource{jobID: arg}
	if store != nil {
		if entry, err := store.Get(ctx, arg); err == nil && entry.AudioURL != "" {
			src.title = entry.DisplayTitle()
			src.url = entry.AudioURL
		}
	}
	if src.url == "" {
		client, err := cmdCtx.apiClient()
		if err != nil {
			return audioSource{}, err
		}
		status, err := client.JobStatus(ctx, arg)
		if err != nil {
			if storyapi.IsNotFound(err) {
				return audioSource{}, fmt.Errorf("job %s not found on the service", arg)
			}
			return audioSource{}, err
		}
		job := jobs.NewJob(jobs.Created{ID: arg, Stage: jobs.StagePending})
		job.Apply(status)
		if store != nil {
			if err := store.UpdateFromJob(ctx, job); err != nil {
				cmdCtx.loggerValue().Warn("history update failed",
					logging.String(logging.FieldJobID, arg),
					logging.Error(err),
				)
			}
		}
		if job.Stage != jobs.StageCompleted || job.Result == nil || job.Result.AudioURL == "" {
			return audioSource{}, fmt.Errorf("job %s has no audio yet (stage: %s)", arg, job.Stage.Label())
		}
		src.title = job.Result.Title
		src.url = job.Result.AudioURL
	}

	resolved, err := playback.ResolveURL(src.url, cfg.Playback.MediaBaseURL)
	if err != nil {
		return audioSource{}, err
	}
	src.url = resolved
	return src, nil
}

// filename picks the saved file name for the source.
func (s audioSource) filename(override string) string {
	if name := strings.TrimSpace(override); name != "" {
		return ensureMP3(name)
	}
	if s.title != "" {
		return ensureMP3(s.title)
	}
	if s.jobID != "" {
		return "story-" + s.jobID + ".mp3"
	}
	if u, err := url.Parse(s.url); err == nil {
		if base := strings.TrimSpace(u.Path[strings.LastIndex(u.Path, "/")+1:]); base != "" {
			return ensureMP3(base)
		}
	}
	return "story.mp3"
}

func ensureMP3(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".mp3") {
		return name
	}
	return name + ".mp3"
}
