package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

func newJSONHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
			case slog.LevelKey:
				return slog.String("level", strings.ToLower(a.Value.String()))
			}
			return a
		},
	})
}

// consoleHandler writes one line per record. Component, job and stage are
// lifted out of the attributes into a subject prefix.
type consoleHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler

	subject subject
	// preformatted holds " key=value" pairs added via WithAttrs.
	preformatted string
	group        string
}

type subject struct {
	component string
	jobID     string
	stage     string
}

func newConsoleHandler(w io.Writer, level slog.Leveler) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	subj := h.subject
	var b strings.Builder
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, &subj, h.group, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var line strings.Builder
	line.WriteString(ts.Local().Format("2006-01-02 15:04:05"))
	line.WriteByte(' ')
	line.WriteString(levelName(r.Level))
	line.WriteByte(' ')
	if prefix := subj.String(); prefix != "" {
		line.WriteString(prefix)
		line.WriteString(": ")
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(msg)
	line.WriteString(h.preformatted)
	line.WriteString(b.String())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	var b strings.Builder
	b.WriteString(h.preformatted)
	for _, a := range attrs {
		h.appendAttr(&b, &next.subject, h.group, a)
	}
	next.preformatted = b.String()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = joinKey(h.group, name)
	return &next
}

func (h *consoleHandler) appendAttr(b *strings.Builder, subj *subject, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := group
		if a.Key != "" {
			inner = joinKey(group, a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, subj, inner, ga)
		}
		return
	}
	if group == "" {
		switch a.Key {
		case FieldComponent:
			if subj.component == "" {
				subj.component = plainValue(a.Value)
			}
			return
		case FieldJobID:
			subj.jobID = plainValue(a.Value)
			return
		case FieldStage:
			subj.stage = plainValue(a.Value)
			return
		}
	}
	b.WriteByte(' ')
	b.WriteString(joinKey(group, a.Key))
	b.WriteByte('=')
	b.WriteString(quoteValue(a.Value))
}

func (s subject) String() string {
	var job string
	switch {
	case s.jobID != "" && s.stage != "":
		job = "Job " + s.jobID + " (" + s.stage + ")"
	case s.jobID != "":
		job = "Job " + s.jobID
	default:
		job = s.stage
	}
	switch {
	case s.component != "" && job != "":
		return s.component + " · " + job
	case s.component != "":
		return s.component
	default:
		return job
	}
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	if key == "" {
		return group
	}
	return group + "." + key
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func plainValue(v slog.Value) string {
	if v.Kind() == slog.KindString {
		return strings.TrimSpace(v.String())
	}
	return strings.TrimSpace(fmt.Sprint(v.Any()))
}

func quoteValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		s = v.Time().Local().Format(time.DateTime)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}
