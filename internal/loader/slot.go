package loader

import (
	"context"
	"image"
	"sync"
)

// Slot shows at most one URL at a time, like a reusable list cell.
// Rebinding abandons the previous load, and a result is applied only while
// the slot still shows the URL it was requested for.
type Slot struct {
	loader *Loader

	mu     sync.Mutex
	url    string
	gen    uint64
	cancel context.CancelFunc
}

func NewSlot(l *Loader) *Slot {
	return &Slot{loader: l, cancel: func() {}}
}

// Bind requests url and calls apply with the result (nil when absent) on the consumer dispatcher.
func (s *Slot) Bind(ctx context.Context, url string, apply func(img image.Image)) {
	s.mu.Lock()
	s.cancel()
	ctx, cancel := context.WithCancel(ctx)
	s.url, s.cancel = url, cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	ch := s.loader.LoadImage(ctx, url)
	go func() {
		img := <-ch
		s.loader.consumer.Dispatch(func() {
			if s.current(gen) {
				apply(img)
			}
		})
	}()
}

// Reset unbinds the slot and abandons its pending load.
func (s *Slot) Reset() {
	s.mu.Lock()
	s.cancel()
	s.cancel = func() {}
	s.url = ""
	s.gen++
	s.mu.Unlock()
}

// URL is the currently bound URL, empty when unbound.
func (s *Slot) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Slot) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}
