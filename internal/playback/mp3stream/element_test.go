package mp3stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storyteller/internal/playback"
)

const testRate = 8000

type pcmReader struct {
	*bytes.Reader
	rate int
}

func (p *pcmReader) SampleRate() int { return p.rate }

func (p *pcmReader) Length() int64 { return p.Size() }

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// pcmFixture returns frames stereo frames where every sample equals value.
func pcmFixture(frames int, value int16) []byte {
	out := make([]byte, frames*bytesPerFrame)
	for i := 0; i < len(out); i += 2 {
		binary.LittleEndian.PutUint16(out[i:], uint16(value))
	}
	return out
}

func newTestFactory(t *testing.T, payload []byte, status int, sink io.Writer) (*Factory, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	f := NewFactory(Options{Sink: sink, Tick: 5 * time.Millisecond})
	f.decode = func(r io.ReadSeeker) (pcmSource, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return &pcmReader{Reader: bytes.NewReader(data), rate: testRate}, nil
	}
	return f, srv.URL + "/story.mp3"
}

func nextEvent(t *testing.T, events <-chan playback.Event, kind playback.EventKind) playback.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("events closed while waiting for %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestElementReportsMetadataAndPlaysToEnd(t *testing.T) {
	sink := &lockedBuffer{}
	payload := pcmFixture(testRate/10, 1000) // 100ms
	f, url := newTestFactory(t, payload, http.StatusOK, sink)

	el, err := f.Open(context.Background(), url)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer el.Close()

	meta := nextEvent(t, el.Events(), playback.EventMetadata)
	if meta.Duration < 0.099 || meta.Duration > 0.101 {
		t.Fatalf("duration = %v, want 0.1", meta.Duration)
	}
	if err := el.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	update := nextEvent(t, el.Events(), playback.EventTimeUpdate)
	if update.Time <= 0 {
		t.Fatalf("time update = %v", update.Time)
	}
	nextEvent(t, el.Events(), playback.EventEnded)

	if got := sink.Bytes(); !bytes.Equal(got, payload) {
		t.Fatalf("sink received %d bytes, want %d identical bytes", len(got), len(payload))
	}
}

func TestElementAppliesVolume(t *testing.T) {
	sink := &lockedBuffer{}
	f, url := newTestFactory(t, pcmFixture(testRate/50, 1000), http.StatusOK, sink)
	el, _ := f.Open(context.Background(), url)
	defer el.Close()

	nextEvent(t, el.Events(), playback.EventMetadata)
	el.SetVolume(0.5)
	_ = el.Play()
	nextEvent(t, el.Events(), playback.EventEnded)

	got := sink.Bytes()
	if len(got) == 0 {
		t.Fatal("no pcm written")
	}
	if sample := int16(binary.LittleEndian.Uint16(got)); sample != 500 {
		t.Fatalf("scaled sample = %d, want 500", sample)
	}
}

func TestElementSeekBeforePlay(t *testing.T) {
	sink := &lockedBuffer{}
	payload := pcmFixture(testRate/10, 7)
	f, url := newTestFactory(t, payload, http.StatusOK, sink)
	el, _ := f.Open(context.Background(), url)
	defer el.Close()

	nextEvent(t, el.Events(), playback.EventMetadata)
	el.Seek(0.05)
	_ = el.Play()
	nextEvent(t, el.Events(), playback.EventEnded)
	if got, want := len(sink.Bytes()), len(payload)/2; got != want {
		t.Fatalf("played %d bytes after seeking halfway, want %d", got, want)
	}
}

func TestElementPlayBeforeLoad(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	el, _ := NewFactory(Options{}).Open(context.Background(), srv.URL)
	if err := el.Play(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Play before load = %v, want ErrNotLoaded", err)
	}
	if err := el.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := el.Play(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Play after close = %v, want ErrClosed", err)
	}
	if _, ok := <-el.Events(); ok {
		t.Fatal("events should be closed after Close")
	}
	if err := el.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestElementReportsFetchError(t *testing.T) {
	f, url := newTestFactory(t, []byte("missing"), http.StatusNotFound, nil)
	el, _ := f.Open(context.Background(), url)
	defer el.Close()
	ev := nextEvent(t, el.Events(), playback.EventError)
	if ev.Err == nil {
		t.Fatal("expected error")
	}
}

func TestElementReportsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not an mp3 stream"))
	}))
	defer srv.Close()

	el, _ := NewFactory(Options{}).Open(context.Background(), srv.URL)
	defer el.Close()
	ev := nextEvent(t, el.Events(), playback.EventError)
	if ev.Err == nil {
		t.Fatal("expected decode error")
	}
}

func TestScaleVolume(t *testing.T) {
	tests := []struct {
		name   string
		volume float64
		in     int16
		want   int16
	}{
		{"unity", 1, 1200, 1200},
		{"half", 0.5, 1200, 600},
		{"negative sample", 0.25, -800, -200},
		{"silent", 0, 1200, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := pcmFixture(1, tt.in)
			scaleVolume(pcm, tt.volume)
			for i := 0; i < len(pcm); i += 2 {
				if got := int16(binary.LittleEndian.Uint16(pcm[i:])); got != tt.want {
					t.Fatalf("sample = %d, want %d", got, tt.want)
				}
			}
		})
	}
}

func TestChunkSize(t *testing.T) {
	if got := chunkSize(44100, 250*time.Millisecond); got != 11025*bytesPerFrame {
		t.Fatalf("chunkSize = %d", got)
	}
	if got := chunkSize(10, time.Millisecond); got != bytesPerFrame {
		t.Fatalf("minimum chunk = %d", got)
	}
}
