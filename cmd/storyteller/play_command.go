package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storyteller/internal/playback"
	"storyteller/internal/playback/mp3stream"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var pcmOut string

	cmd := &cobra.Command{
		Use:   "play <job-id|audio-url>",
		Short: "Stream a finished story",
		Long: `Stream a finished story. Commands are read from stdin, one per line:
  p          toggle play/pause
  f, b       skip forward/back
  s <sec>    seek to a position in seconds
  v <0..1>   set the volume
  m          toggle mute
  q          quit`,
		Args: cobra.ExactArgs(1),
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

			var sink io.Writer
			if pcmOut != "" {
				file, err := os.Create(pcmOut)
				if err != nil {
					return fmt.Errorf("open pcm output: %w", err)
				}
				defer file.Close()
				sink = file
			}

			logger := ctx.loggerValue()
			controller := playback.NewController(playback.Options{
				Factory: mp3stream.NewFactory(mp3stream.Options{
					HTTPClient: &http.Client{},
					Sink:       sink,
					Tick:       cfg.TickInterval(),
					Logger:     logger,
				}),
				BaseURL:      cfg.Playback.MediaBaseURL,
				SkipInterval: cfg.SkipInterval(),
				Logger:       logger,
			})
			defer controller.Close()
			controller.SetVolume(cfg.Playback.DefaultVolume)

			if src.title != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Playing %s\n", src.title)
			}
			return runPlayer(cmd.Context(), controller, src.url, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&pcmOut, "pcm-out", "", "Write decoded 16-bit stereo PCM to this file instead of discarding it")
	return cmd
}

type playerAction int

const (
	actionNone playerAction = iota
	actionToggle
	actionForward
	actionBack
	actionSeek
	actionVolume
	actionMute
	actionQuit
)

type playerCommand struct {
	action playerAction
	value  float64
}

func parsePlayerCommand(line string) (playerCommand, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return playerCommand{action: actionNone}, nil
	}
	needValue := func() (float64, error) {
		if len(fields) < 2 {
			return 0, fmt.Errorf("%s needs a value", fields[0])
		}
		return strconv.ParseFloat(fields[1], 64)
	}
	switch fields[0] {
	case "p", "play", "pause":
		return playerCommand{action: actionToggle}, nil
	case "f", "forward":
		return playerCommand{action: actionForward}, nil
	case "b", "back":
		return playerCommand{action: actionBack}, nil
	case "m", "mute":
		return playerCommand{action: actionMute}, nil
	case "q", "quit", "exit":
		return playerCommand{action: actionQuit}, nil
	case "s", "seek":
		v, err := needValue()
		if err != nil {
			return playerCommand{}, err
		}
		return playerCommand{action: actionSeek, value: v}, nil
	case "v", "volume":
		v, err := needValue()
		if err != nil {
			return playerCommand{}, err
		}
		return playerCommand{action: actionVolume, value: v}, nil
	default:
		return playerCommand{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

// runPlayer loads source, starts playback once metadata arrives and applies
// stdin commands until the story ends, the user quits, or ctx is done. When
// stdin closes playback continues to the end.
func runPlayer(ctx context.Context, controller *playback.Controller, source string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	states, unsubscribe := controller.Subscribe()
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	controller.SetSource(source)

	var (
		started     bool
		userPaused  bool
		wasPlaying  bool
		lastRender  string
		inputClosed bool
	)
	for {
		var input <-chan string
		if !inputClosed {
			input = lines
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, ok := <-states:
			if !ok {
				return nil
			}
			if state.LastError != nil {
				fmt.Fprintln(out, renderPlayerLine(state))
				return state.LastError
			}
			if !started && state.SourceURL != "" && !state.IsLoading {
				started = true
				controller.Play()
				continue
			}
			if wasPlaying && !state.IsPlaying && !userPaused {
				fmt.Fprintln(out, "Finished")
				return nil
			}
			wasPlaying = state.IsPlaying
			// Sub-second time updates render identically and are skipped.
			if line := renderPlayerLine(state); line != lastRender {
				fmt.Fprintln(out, line)
				lastRender = line
			}
		case line, ok := <-input:
			if !ok {
				inputClosed = true
				continue
			}
			command, err := parsePlayerCommand(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			switch command.action {
			case actionToggle:
				userPaused = controller.State().IsPlaying
				controller.TogglePlay()
			case actionForward:
				controller.SkipForward()
			case actionBack:
				controller.SkipBack()
			case actionSeek:
				controller.Seek(command.value)
			case actionVolume:
				controller.SetVolume(command.value)
			case actionMute:
				controller.ToggleMute()
			case actionQuit:
				return nil
			}
		}
	}
}
