package imgcache

import (
	"github.com/Borislavv/go-ash-imgcache/internal/dispatch"
	"github.com/Borislavv/go-ash-imgcache/internal/loader"
	"github.com/Borislavv/go-ash-imgcache/internal/pressure"
	"github.com/benbjohnson/clock"
)

type Option func(o *options)

type options struct {
	consumer   dispatch.Dispatcher
	fetcher    loader.Fetcher
	clock      clock.Clock
	notifier   *pressure.Notifier
	sampler    pressure.Sampler
	memoryOnly bool
}

// WithDispatcher sets the context results and callbacks are delivered on.
// By default a dedicated serial goroutine owned by the cache is used.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(o *options) { o.consumer = d }
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f loader.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithClock replaces the wall clock used by disk expiry and the sweeper.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithNotifier shares a memory-pressure notifier, e.g. with other caches of the process.
func WithNotifier(n *pressure.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithSampler replaces the system memory sampler of the pressure watcher.
func WithSampler(s pressure.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithMemoryOnly disables the disk tier.
func WithMemoryOnly() Option {
	return func(o *options) { o.memoryOnly = true }
}
