package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeElement struct {
	events  chan Event
	playErr error

	mu      sync.Mutex
	plays   int
	pauses  int
	seeks   []float64
	volumes []float64
	closed  int
}

func newFakeElement() *fakeElement {
	return &fakeElement{events: make(chan Event, 16)}
}

func (f *fakeElement) Events() <-chan Event { return f.events }

func (f *fakeElement) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return f.playErr
}

func (f *fakeElement) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeElement) Seek(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
}

func (f *fakeElement) SetVolume(volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, volume)
}

func (f *fakeElement) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	if f.closed == 1 {
		close(f.events)
	}
	return nil
}

func (f *fakeElement) lastVolume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.volumes) == 0 {
		return -1
	}
	return f.volumes[len(f.volumes)-1]
}

func (f *fakeElement) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeFactory hands out elements in order and records requested urls.
type fakeFactory struct {
	mu       sync.Mutex
	elements []*fakeElement
	urls     []string
	err      error
}

func (f *fakeFactory) Open(_ context.Context, url string) (Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	el := newFakeElement()
	f.elements = append(f.elements, el)
	return el, nil
}

func (f *fakeFactory) element(i int) *fakeElement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elements[i]
}

func waitForState(t *testing.T, c *Controller, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := c.State()
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("state condition not met; last state %+v", st)
		}
		time.Sleep(time.Millisecond)
	}
}

var errRefused = errors.New("autoplay refused")
