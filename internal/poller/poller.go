package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is used when Options.Interval is not positive.
const DefaultInterval = 2 * time.Second

// ErrCancelled is reported by Handle.Err when the poll was cancelled, either
// through Handle.Cancel or by the parent context.
var ErrCancelled = errors.New("poll cancelled")

// PollError reports a status fetch that failed before a terminal status was seen.
type PollError struct {
	Attempt int
	Err     error
}

func (e *PollError) Error() string {
	if e == nil {
		return "status poll failed"
	}
	if e.Err == nil {
		return fmt.Sprintf("status poll failed on attempt %d", e.Attempt)
	}
	return fmt.Sprintf("status poll failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *PollError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Options configures a poll.
type Options[S any] struct {
	// Fetch retrieves the current status. The context is cancelled when the
	// poll is cancelled.
	Fetch func(ctx context.Context) (S, error)
	// IsTerminal reports whether polling should stop after s. A nil
	// IsTerminal polls until cancelled or a fetch fails.
	IsTerminal func(s S) bool
	Interval   time.Duration
	// OnUpdate is invoked synchronously for every fetched status, including
	// the terminal one, before the next attempt is scheduled. It may call
	// Handle.Cancel.
	OnUpdate func(s S)
}

// Handle controls a running poll.
type Handle[S any] struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
	err       error
	last      S
	hasLast   bool
	attempts  int
}

// Start begins polling in a background goroutine and returns immediately.
func Start[S any](ctx context.Context, opts Options[S]) *Handle[S] {
	if ctx == nil {
		ctx = context.Background()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	h := &Handle[S]{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if opts.Fetch == nil {
		h.finish(errors.New("poller: fetch function is required"))
		return h
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	go h.run(pollCtx, opts)
	return h
}

func (h *Handle[S]) run(ctx context.Context, opts Options[S]) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		h.mu.Lock()
		h.attempts = attempt
		h.mu.Unlock()

		status, err := opts.Fetch(ctx)
		if ctx.Err() != nil {
			h.finish(ErrCancelled)
			return
		}
		if err != nil {
			h.finish(&PollError{Attempt: attempt, Err: err})
			return
		}
		if !h.deliver(ctx, opts.OnUpdate, status) {
			h.finish(ErrCancelled)
			return
		}
		if opts.IsTerminal != nil && opts.IsTerminal(status) {
			h.finish(nil)
			return
		}

		if timer == nil {
			timer = time.NewTimer(opts.Interval)
		} else {
			timer.Reset(opts.Interval)
		}
		select {
		case <-ctx.Done():
			h.finish(ErrCancelled)
			return
		case <-timer.C:
		}
	}
}

// deliver records status and runs onUpdate unless the poll was cancelled.
// The cancel check happens under mu, but onUpdate runs without it so the
// callback may call Cancel itself. It reports false when the poll was
// cancelled before or during the callback.
func (h *Handle[S]) deliver(ctx context.Context, onUpdate func(S), status S) bool {
	h.mu.Lock()
	if h.cancelled || ctx.Err() != nil {
		h.mu.Unlock()
		return false
	}
	h.last = status
	h.hasLast = true
	h.mu.Unlock()

	if onUpdate != nil {
		onUpdate(status)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.cancelled && ctx.Err() == nil
}

func (h *Handle[S]) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	h.cancel()
	close(h.done)
}

// Cancel stops the poll. It is idempotent, safe to call after the poll has
// ended, and safe to call from OnUpdate. Once Cancel returns no further
// OnUpdate call will start; one already running is allowed to finish.
func (h *Handle[S]) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	h.cancel()
}

// Done is closed when the poll goroutine exits.
func (h *Handle[S]) Done() <-chan struct{} {
	return h.done
}

// Err returns the reason the poll ended: nil after a terminal status,
// ErrCancelled after cancellation, or a *PollError. It returns nil while the
// poll is still running.
func (h *Handle[S]) Err() error {
	select {
	case <-h.done:
	default:
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the poll ends or ctx is done.
func (h *Handle[S]) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Last returns the most recently delivered status.
func (h *Handle[S]) Last() (S, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.hasLast
}

// Attempts returns the number of fetches started so far.
func (h *Handle[S]) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}
