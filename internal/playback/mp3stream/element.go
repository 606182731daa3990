package mp3stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"storyteller/internal/logging"
	"storyteller/internal/playback"
)

// go-mp3 always produces 16-bit little endian stereo.
const bytesPerFrame = 4

// DefaultTick is the pacing interval when Options.Tick is unset.
const DefaultTick = 250 * time.Millisecond

var (
	// ErrNotLoaded is returned by Play before metadata is known.
	ErrNotLoaded = errors.New("audio not loaded")
	// ErrClosed is returned by Play after Close.
	ErrClosed = errors.New("audio element closed")
)

// HTTPDoer is the subset of *http.Client used to fetch audio.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type pcmSource interface {
	io.ReadSeeker
	SampleRate() int
	Length() int64
}

type decodeFunc func(io.ReadSeeker) (pcmSource, error)

func decodeMP3(r io.ReadSeeker) (pcmSource, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return dec, nil
}

// Options configures a Factory.
type Options struct {
	HTTPClient HTTPDoer
	// Sink receives played PCM. Nil discards it.
	Sink   io.Writer
	Tick   time.Duration
	Logger *slog.Logger
}

// Factory opens MP3 stream elements.
type Factory struct {
	http   HTTPDoer
	sink   io.Writer
	tick   time.Duration
	logger *slog.Logger
	decode decodeFunc
}

// NewFactory constructs a Factory.
func NewFactory(opts Options) *Factory {
	doer := opts.HTTPClient
	if doer == nil {
		doer = http.DefaultClient
	}
	sink := opts.Sink
	if sink == nil {
		sink = io.Discard
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Factory{
		http:   doer,
		sink:   sink,
		tick:   tick,
		logger: logging.NewComponentLogger(opts.Logger, "mp3stream"),
		decode: decodeMP3,
	}
}

// Open starts loading url and returns immediately.
func (f *Factory) Open(ctx context.Context, url string) (playback.Element, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	e := &Element{
		factory:    f,
		url:        url,
		events:     make(chan playback.Event, 32),
		cancel:     cancel,
		done:       make(chan struct{}),
		volume:     1,
		pendingSec: -1,
	}
	go e.run(ctx)
	return e, nil
}

// Element plays one MP3 resource.
type Element struct {
	factory *Factory
	url     string
	events  chan playback.Event
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once

	mu         sync.Mutex
	src        pcmSource
	sampleRate int
	closed     bool
	playing    bool
	volume     float64
	pos        int64
	pendingSec float64
}

// Events returns the element's event stream. It is closed when the
// element stops, either through Close or after a fatal error.
func (e *Element) Events() <-chan playback.Event {
	return e.events
}

func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.closed:
		return ErrClosed
	case e.src == nil:
		return ErrNotLoaded
	}
	e.playing = true
	return nil
}

func (e *Element) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
}

// Seek repositions playback. Before metadata is known the position is
// applied once loading completes.
func (e *Element) Seek(seconds float64) {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingSec = seconds
}

func (e *Element) SetVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = volume
}

// Close stops playback and releases the decoded audio. It is idempotent.
func (e *Element) Close() error {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.playing = false
		e.mu.Unlock()
		e.cancel()
		<-e.done
	})
	return nil
}

func (e *Element) run(ctx context.Context) {
	defer close(e.done)
	defer close(e.events)
	defer e.release()

	logger := e.factory.logger.With(logging.String("url", e.url))

	data, err := e.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Debug("audio fetch failed", logging.Error(err))
			e.emit(ctx, playback.Event{Kind: playback.EventError, Err: err})
		}
		return
	}
	src, err := e.factory.decode(bytes.NewReader(data))
	if err != nil {
		e.emit(ctx, playback.Event{Kind: playback.EventError, Err: fmt.Errorf("decode mp3: %w", err)})
		return
	}
	rate := src.SampleRate()
	if rate <= 0 {
		e.emit(ctx, playback.Event{Kind: playback.EventError, Err: fmt.Errorf("decode mp3: invalid sample rate %d", rate)})
		return
	}

	duration := math.Inf(1)
	if length := src.Length(); length >= 0 {
		duration = float64(length) / bytesPerFrame / float64(rate)
	}

	e.mu.Lock()
	e.src = src
	e.sampleRate = rate
	e.mu.Unlock()

	logger.Debug("audio loaded",
		logging.Int("sample_rate", rate),
		logging.Float64("duration_seconds", duration),
		logging.Int("bytes", len(data)),
	)
	if !e.emit(ctx, playback.Event{Kind: playback.EventMetadata, Duration: duration}) {
		return
	}
	e.loop(ctx, logger)
}

func (e *Element) loop(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(e.factory.tick)
	defer ticker.Stop()
	chunk := make([]byte, chunkSize(e.sampleRate, e.factory.tick))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if err := e.applySeekLocked(); err != nil {
			e.mu.Unlock()
			e.emit(ctx, playback.Event{Kind: playback.EventError, Err: err})
			return
		}
		if !e.playing {
			e.mu.Unlock()
			continue
		}
		n, readErr := io.ReadFull(e.src, chunk)
		e.pos += int64(n)
		volume := e.volume
		position := e.seconds(e.pos)
		e.mu.Unlock()

		if n > 0 {
			scaleVolume(chunk[:n], volume)
			if _, err := e.factory.sink.Write(chunk[:n]); err != nil {
				e.emit(ctx, playback.Event{Kind: playback.EventError, Err: fmt.Errorf("write pcm: %w", err)})
				return
			}
		}
		e.emitTime(playback.Event{Kind: playback.EventTimeUpdate, Time: position})

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			e.mu.Lock()
			e.playing = false
			e.pendingSec = 0
			e.mu.Unlock()
			logger.Debug("audio reached end", logging.Float64("position_seconds", position))
			if !e.emit(ctx, playback.Event{Kind: playback.EventEnded}) {
				return
			}
		default:
			e.emit(ctx, playback.Event{Kind: playback.EventError, Err: fmt.Errorf("read pcm: %w", readErr)})
			return
		}
	}
}

func (e *Element) applySeekLocked() error {
	if e.pendingSec < 0 {
		return nil
	}
	offset := int64(e.pendingSec*float64(e.sampleRate)) * bytesPerFrame
	if length := e.src.Length(); length >= 0 && offset > length {
		offset = length
	}
	e.pendingSec = -1
	if _, err := e.src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	e.pos = offset
	return nil
}

func (e *Element) seconds(pos int64) float64 {
	return float64(pos) / bytesPerFrame / float64(e.sampleRate)
}

func (e *Element) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = nil
	e.playing = false
}

func (e *Element) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build audio request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	resp, err := e.factory.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return data, nil
}

// emit delivers a state-changing event, giving up only when the element is
// closing.
func (e *Element) emit(ctx context.Context, ev playback.Event) bool {
	select {
	case e.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitTime drops time updates when the consumer is behind; the next tick
// supersedes them.
func (e *Element) emitTime(ev playback.Event) {
	select {
	case e.events <- ev:
	default:
	}
}

func chunkSize(sampleRate int, tick time.Duration) int {
	frames := int(float64(sampleRate) * tick.Seconds())
	if frames < 1 {
		frames = 1
	}
	return frames * bytesPerFrame
}

// scaleVolume scales 16-bit little endian samples in place.
func scaleVolume(pcm []byte, volume float64) {
	if volume >= 1 {
		return
	}
	if volume <= 0 || math.IsNaN(volume) {
		clear(pcm)
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(float64(sample)*volume)))
	}
}

var _ playback.ElementFactory = (*Factory)(nil)
