package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-isatty"

	"storyteller/internal/jobs"
	"storyteller/internal/playback"
)

// tone classifies a status line for its label and color.
type tone int

const (
	toneInfo tone = iota
	toneOK
	toneWarn
	toneError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	labelWidth       = 20
	progressBarWidth = 20
)

var toneStyles = map[tone]struct{ label, color string }{
	toneInfo:  {"INFO", ansiBlue},
	toneOK:    {"OK", ansiGreen},
	toneWarn:  {"WARN", ansiYellow},
	toneError: {"ERROR", ansiRed},
}

// renderStatusLine prints "  Label:   [TONE] message", colored as a whole.
func renderStatusLine(label string, t tone, message string, colorize bool) string {
	style := toneStyles[t]
	var b strings.Builder
	fmt.Fprintf(&b, "  %-*s [%s]", labelWidth, label+":", style.label)
	if message != "" {
		b.WriteByte(' ')
		b.WriteString(message)
	}
	if !colorize {
		return b.String()
	}
	return style.color + b.String() + ansiReset
}

func stageTone(stage jobs.Stage) tone {
	switch {
	case stage == jobs.StageCompleted:
		return toneOK
	case stage == jobs.StageFailed:
		return toneError
	default:
		return toneInfo
	}
}

// renderProgressLine shows the stage label, a bar, the percentage and the
// friendly stage message.
func renderProgressLine(stage jobs.Stage, progress float64, colorize bool) string {
	message := fmt.Sprintf("%s %3.0f%%  %s", progressBar(progress), progress, stage.Message())
	return renderStatusLine(stage.Label(), stageTone(stage), message, colorize)
}

func progressBar(progress float64) string {
	if math.IsNaN(progress) || progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := int(progress / 100 * progressBarWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled) + "]"
}

// renderPlayerLine summarizes a playback state on one line.
func renderPlayerLine(state playback.State) string {
	icon := "⏸"
	switch {
	case state.LastError != nil:
		icon = "✖"
	case state.IsLoading:
		icon = "…"
	case state.IsPlaying:
		icon = "▶"
	}
	volume := fmt.Sprintf("vol %d%%", int(math.Round(state.Volume*100)))
	if state.IsMuted {
		volume = "muted"
	}
	return fmt.Sprintf("%s %s / %s  %s",
		icon,
		playback.FormatTime(state.CurrentTime),
		playback.FormatTime(state.TotalDuration),
		volume,
	)
}

// renderSectionHeader returns a title line and an underline of equal width.
func renderSectionHeader(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	lines := []string{title, strings.Repeat("=", utf8.RuneCountInString(title))}
	if colorize {
		for i := range lines {
			lines[i] = ansiBlue + lines[i] + ansiReset
		}
	}
	return lines
}

// shouldColorize reports whether w is an interactive terminal.
func shouldColorize(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
