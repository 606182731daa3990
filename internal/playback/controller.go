package playback

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"storyteller/internal/logging"
)

// DefaultSkip is the skip distance when Options.SkipInterval is unset.
const DefaultSkip = 15 * time.Second

var errNotLoaded = errors.New("resource is not loaded")

type requirement int

const (
	needNothing requirement = iota
	needResource
	needLoaded
)

// Options configures a Controller.
type Options struct {
	Factory      ElementFactory
	BaseURL      string // resolves relative sources
	SkipInterval time.Duration
	Logger       *slog.Logger
}

// Controller exposes transport operations over at most one Resource.
// Operations never return errors; failures are recorded in State.LastError.
type Controller struct {
	factory ElementFactory
	baseURL string
	skip    time.Duration
	logger  *slog.Logger
	ctx     context.Context
	stop    context.CancelFunc

	mu       sync.Mutex
	state    State
	resource *Resource
	gen      uint64
	closed   bool
	subs     map[int]chan State
	nextSub  int
}

// NewController constructs a Controller with no source at full volume.
func NewController(opts Options) *Controller {
	skip := opts.SkipInterval
	if skip <= 0 {
		skip = DefaultSkip
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Controller{
		factory: opts.Factory,
		baseURL: opts.BaseURL,
		skip:    skip,
		logger:  logging.NewComponentLogger(opts.Logger, "playback"),
		ctx:     ctx,
		stop:    stop,
		state:   State{Volume: 1},
		subs:    make(map[int]chan State),
	}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. Slow readers only see the most recent state. The channel is
// closed by the returned cancel function or by Close.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan State, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// SetSource tears down the current resource and opens url. Volume and mute
// carry over. An empty url leaves the controller without a source.
func (c *Controller) SetSource(url string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	old := c.resource
	c.resource = nil
	c.state = State{
		SourceURL: url,
		IsLoading: url != "",
		Volume:    c.state.Volume,
		IsMuted:   c.state.IsMuted,
	}
	c.publishLocked()
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.logger.Debug("previous audio resource close failed", logging.Error(err))
		}
	}
	if url == "" {
		return
	}

	resolved, err := ResolveURL(url, c.baseURL)
	if err != nil {
		c.fail(gen, &PlaybackError{Op: "load", URL: url, Err: err})
		return
	}
	if c.factory == nil {
		c.fail(gen, &PlaybackError{Op: "load", URL: resolved, Err: errors.New("no audio element factory configured")})
		return
	}
	element, err := c.factory.Open(c.ctx, resolved)
	if err != nil {
		c.fail(gen, &PlaybackError{Op: "load", URL: resolved, Err: err})
		return
	}

	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		_ = element.Close()
		return
	}
	c.resource = newResource(resolved, element, func(ev Event) { c.react(gen, ev) })
	volume := c.state.EffectiveVolume()
	c.mu.Unlock()

	element.SetVolume(volume)
	c.logger.Debug("audio resource opened", logging.String("url", resolved))
}

// Play starts or resumes playback once the resource is loaded. A refusal
// is recorded as a *PlaybackError and leaves IsPlaying false.
func (c *Controller) Play() {
	res, gen, ok := c.usable(needLoaded)
	if !ok {
		return
	}
	err := res.element.Play()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.closed {
		return
	}
	if err != nil {
		c.state.IsPlaying = false
		c.state.LastError = &PlaybackError{Op: "play", URL: res.URL(), Err: err}
		c.logger.Warn("audio playback refused",
			logging.String(logging.FieldEventType, "playback_refused"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "load a new source to retry"),
		)
	} else {
		c.state.IsPlaying = true
	}
	c.publishLocked()
}

// Pause pauses playback.
func (c *Controller) Pause() {
	res, gen, ok := c.usable(needResource)
	if !ok {
		return
	}
	res.element.Pause()
	c.update(gen, func(s *State) { s.IsPlaying = false })
}

// TogglePlay pauses when playing and plays otherwise.
func (c *Controller) TogglePlay() {
	if c.State().IsPlaying {
		c.Pause()
		return
	}
	c.Play()
}

// Seek moves playback to t seconds, clamped to the known duration.
// CurrentTime is updated immediately.
func (c *Controller) Seek(t float64) {
	c.mu.Lock()
	target := c.state.clampTime(t)
	c.mu.Unlock()
	c.seekTo(target)
}

// Skip moves playback by delta, clamped to 0..TotalDuration.
func (c *Controller) Skip(delta time.Duration) {
	c.mu.Lock()
	target := c.state.clampTime(c.state.CurrentTime + delta.Seconds())
	c.mu.Unlock()
	c.seekTo(target)
}

// SkipForward skips ahead by the configured interval.
func (c *Controller) SkipForward() {
	c.Skip(c.skip)
}

// SkipBack skips back by the configured interval.
func (c *Controller) SkipBack() {
	c.Skip(-c.skip)
}

func (c *Controller) seekTo(target float64) {
	res, gen, ok := c.usable(needResource)
	if !ok {
		return
	}
	res.element.Seek(target)
	c.update(gen, func(s *State) { s.CurrentTime = s.clampTime(target) })
}

// SetVolume sets the stored volume, clamped to 0..1. A positive volume
// unmutes.
func (c *Controller) SetVolume(v float64) {
	res, gen, ok := c.usable(needNothing)
	if !ok {
		return
	}
	var effective float64
	if !c.update(gen, func(s *State) {
		s.Volume = clampUnit(v)
		if s.Volume > 0 && s.IsMuted {
			s.IsMuted = false
		}
		effective = s.EffectiveVolume()
	}) {
		return
	}
	if res != nil {
		res.element.SetVolume(effective)
	}
}

// ToggleMute flips IsMuted. The stored volume is unchanged.
func (c *Controller) ToggleMute() {
	res, gen, ok := c.usable(needNothing)
	if !ok {
		return
	}
	var effective float64
	if !c.update(gen, func(s *State) {
		s.IsMuted = !s.IsMuted
		effective = s.EffectiveVolume()
	}) {
		return
	}
	if res != nil {
		res.element.SetVolume(effective)
	}
}

// Close tears down the resource and closes all subscriptions. It is
// idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	res := c.resource
	c.resource = nil
	c.state.IsPlaying = false
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.stop()
	return res.Close()
}

// usable returns the current resource for an operation. Every operation is
// a no-op once the source has failed.
func (c *Controller) usable(need requirement) (*Resource, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.Failed() {
		return nil, 0, false
	}
	switch need {
	case needResource:
		if c.resource == nil {
			return nil, 0, false
		}
	case needLoaded:
		if c.resource == nil || c.state.IsLoading {
			c.logger.Debug("play ignored", logging.Error(errNotLoaded))
			return nil, 0, false
		}
	}
	return c.resource, c.gen, true
}

// update applies fn when gen is still current and publishes the result.
func (c *Controller) update(gen uint64, fn func(*State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != gen {
		return false
	}
	fn(&c.state)
	c.publishLocked()
	return true
}

func (c *Controller) fail(gen uint64, err *PlaybackError) {
	c.logger.Warn("audio source failed",
		logging.String(logging.FieldEventType, "playback_load_failed"),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check playback.media_base_url and that the audio exists"),
		logging.String(logging.FieldImpact, "audio cannot be played until a new source is set"),
	)
	c.update(gen, func(s *State) {
		s.IsLoading = false
		s.IsPlaying = false
		s.LastError = err
	})
}

// react applies one element event for the resource created at gen.
func (c *Controller) react(gen uint64, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != gen {
		return
	}
	switch ev.Kind {
	case EventMetadata:
		c.state.TotalDuration = ev.Duration
		c.state.DurationKnown = true
		c.state.IsLoading = false
		c.state.CurrentTime = c.state.clampTime(c.state.CurrentTime)
	case EventTimeUpdate:
		c.state.CurrentTime = c.state.clampTime(ev.Time)
	case EventEnded:
		c.state.IsPlaying = false
		c.state.CurrentTime = 0
	case EventError:
		c.state.IsLoading = false
		c.state.IsPlaying = false
		url := c.state.SourceURL
		if c.resource != nil {
			url = c.resource.URL()
		}
		c.state.LastError = &PlaybackError{Op: "load", URL: url, Err: ev.Err}
		c.logger.Warn("audio element error",
			logging.String(logging.FieldEventType, "playback_element_error"),
			logging.Error(ev.Err),
			logging.String(logging.FieldErrorHint, "set a new source to retry"),
		)
	default:
		return
	}
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.state
	}
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
