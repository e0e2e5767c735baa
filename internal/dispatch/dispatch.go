// Package dispatch provides execution contexts: a serial background queue used for disk I/O
// and result delivery, and an inline dispatcher for tests and synchronous consumers.
package dispatch

import (
	"context"
	"github.com/cockroachdb/errors"
	"log/slog"
	"sync"
)

var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher runs fn on the context it represents. It reports false when fn was rejected.
type Dispatcher interface {
	Dispatch(fn func()) bool
}

// Inline runs every task on the calling goroutine.
type Inline struct{}

func (Inline) Dispatch(fn func()) bool {
	fn()
	return true
}

// Serial runs tasks one at a time, in submission order, on a dedicated goroutine.
// The queue is unbounded so that Dispatch never blocks the caller.
type Serial struct {
	ctx    context.Context
	cancel context.CancelFunc
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func NewSerial(ctx context.Context, name string, logger *slog.Logger) *Serial {
	ctx, cancel := context.WithCancel(ctx)
	return (&Serial{
		ctx:    ctx,
		cancel: cancel,
		name:   name,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}).run()
}

func (s *Serial) Dispatch(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Barrier waits until every task dispatched before the call has finished.
func (s *Serial) Barrier(ctx context.Context) error {
	reached := make(chan struct{})
	if !s.Dispatch(func() { close(reached) }) {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-reached:
		return nil
	}
}

// Len is the number of queued tasks not yet started.
func (s *Serial) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close rejects new tasks, drains already queued ones and waits for the worker to exit.
func (s *Serial) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *Serial) run() *Serial {
	go func() {
		defer close(s.done)
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				if s.closed {
					s.mu.Unlock()
					return
				}
				s.mu.Unlock()

				select {
				case <-s.wake:
				case <-s.ctx.Done():
					s.mu.Lock()
					s.closed = true
					s.mu.Unlock()
				}
				continue
			}
			fn := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.exec(fn)
		}
	}()
	return s
}

func (s *Serial) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatched task panicked", "queue", s.name, "panic", r)
		}
	}()
	fn()
}
