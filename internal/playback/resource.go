package playback

import (
	"sync"
	"sync/atomic"
)

// Resource owns one Element and forwards its events to a handler on a
// single goroutine until closed.
type Resource struct {
	url      string
	element  Element
	handler  func(Event)
	detached atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	closeErr error
}

func newResource(url string, element Element, handler func(Event)) *Resource {
	r := &Resource{
		url:     url,
		element: element,
		handler: handler,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Resource) run() {
	defer close(r.done)
	events := r.element.Events()
	for {
		select {
		case <-r.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if r.detached.Load() {
				return
			}
			r.handler(ev)
		}
	}
}

// URL returns the resolved source URL.
func (r *Resource) URL() string {
	return r.url
}

// Close detaches the handler, stops playback and releases the element. It
// is idempotent and must not be called while holding a lock the handler
// takes.
func (r *Resource) Close() error {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		r.detached.Store(true)
		close(r.stop)
		r.element.Pause()
		r.closeErr = r.element.Close()
		<-r.done
	})
	return r.closeErr
}
