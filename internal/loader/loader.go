// Package loader resolves image URLs through the cache and the network.
// Every load yields exactly one result: an image or nil for "absent".
// Failures of any kind are logged and reported as absent.
package loader

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/cache"
	"github.com/Borislavv/go-ash-imgcache/internal/dispatch"
	"github.com/Borislavv/go-ash-imgcache/internal/imaging"
	"golang.org/x/sync/singleflight"
	"image"
	"log/slog"
	"strconv"
	"sync"
)

// task is an in-flight download. Waiters joining the same task share its result.
type task struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (t *task) flightKey(url string) string {
	return url + "\x00" + strconv.FormatUint(t.id, 10)
}

type Loader struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      config.TransformCfg
	logger   *slog.Logger
	cache    cache.Cacher
	fetcher  Fetcher
	consumer dispatch.Dispatcher
	counters *counters

	mu     sync.Mutex
	tasks  map[string]*task // active downloads by URL
	nextID uint64
	closed bool
	group  singleflight.Group
	wg     sync.WaitGroup
}

// New creates a loader. Results are delivered through consumer, a nil consumer delivers inline.
func New(ctx context.Context, cfg config.TransformCfg, logger *slog.Logger, c cache.Cacher, fetcher Fetcher, consumer dispatch.Dispatcher) *Loader {
	if consumer == nil {
		consumer = dispatch.Inline{}
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Loader{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		cache:    c,
		fetcher:  fetcher,
		consumer: consumer,
		counters: newCounters(),
		tasks:    make(map[string]*task),
	}
}

// LoadImage resolves url from memory, then disk, then the network.
// The returned channel receives exactly one value (nil when absent) and is closed.
// Cancelling ctx abandons the load, the download itself is cancelled once nobody waits for it.
func (l *Loader) LoadImage(ctx context.Context, url string) <-chan image.Image {
	out := make(chan image.Image, 1)
	deliver := func(img image.Image) {
		send := func() {
			out <- img
			close(out)
		}
		if !l.consumer.Dispatch(send) {
			send()
		}
	}

	if l.ctx.Err() != nil || ctx.Err() != nil {
		deliver(nil)
		return out
	}

	if img, ok := l.cache.Get(url); ok {
		l.counters.memoryHits.Add(1)
		deliver(img)
		return out
	}

	l.cache.GetAsync(url, func(img image.Image, ok bool) {
		if ok {
			l.counters.diskHits.Add(1)
			deliver(img)
			return
		}
		if l.ctx.Err() != nil || ctx.Err() != nil {
			deliver(nil)
			return
		}
		l.fetch(ctx, url, deliver)
	})
	return out
}

// CancelLoad cancels the in-flight download of url. Every waiter receives absent.
// It is a no-op when nothing is downloading url.
func (l *Loader) CancelLoad(url string) {
	l.mu.Lock()
	t, ok := l.tasks[url]
	if ok {
		delete(l.tasks, url)
	}
	l.mu.Unlock()

	if ok {
		l.counters.cancelled.Add(1)
		t.cancel()
	}
}

// CancelAll cancels every in-flight download.
func (l *Loader) CancelAll() {
	l.mu.Lock()
	tasks := l.tasks
	l.tasks = make(map[string]*task)
	l.mu.Unlock()

	for _, t := range tasks {
		l.counters.cancelled.Add(1)
		t.cancel()
	}
}

// InFlight is the number of registered downloads.
func (l *Loader) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

func (l *Loader) Metrics() Metrics {
	return l.counters.snapshot()
}

// Close cancels all downloads and waits for pending deliveries.
func (l *Loader) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.CancelAll()
	l.wg.Wait()
	return nil
}

func (l *Loader) fetch(ctx context.Context, url string, deliver func(image.Image)) {
	t, ok := l.join(url)
	if !ok {
		deliver(nil)
		return
	}
	resCh := l.group.DoChan(t.flightKey(url), func() (any, error) {
		return l.download(t, url)
	})

	go func() {
		defer l.wg.Done()
		select {
		case <-ctx.Done():
			l.leave(url, t)
			deliver(nil)
		case <-t.ctx.Done():
			l.leave(url, t)
			deliver(nil)
		case res := <-resCh:
			img, _ := res.Val.(image.Image)
			if res.Err != nil || t.ctx.Err() != nil {
				img = nil // failed, or cancelled after the download finished
			}
			l.leave(url, t)
			deliver(img)
		}
	}()
}

// join registers a waiter on the active task of url, starting a new one if needed.
// The waiter is counted in wg. It reports false once the loader is closed.
func (l *Loader) join(url string) (*task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, false
	}

	t, ok := l.tasks[url]
	if ok {
		l.counters.coalesced.Add(1)
	} else {
		ctx, cancel := context.WithCancel(l.ctx)
		l.nextID++
		t = &task{id: l.nextID, ctx: ctx, cancel: cancel}
		l.tasks[url] = t
	}
	t.waiters++
	l.wg.Add(1)
	return t, true
}

// leave drops a waiter. The last waiter cancels the task.
func (l *Loader) leave(url string, t *task) {
	l.mu.Lock()
	t.waiters--
	last := t.waiters == 0
	if last && l.tasks[url] == t {
		delete(l.tasks, url)
	}
	l.mu.Unlock()

	if last {
		t.cancel()
	}
}

// deregister removes a finished task, keeping a newer task for the same URL.
func (l *Loader) deregister(url string, t *task) {
	l.mu.Lock()
	if l.tasks[url] == t {
		delete(l.tasks, url)
	}
	l.mu.Unlock()
}

func (l *Loader) download(t *task, url string) (image.Image, error) {
	defer l.deregister(url, t)

	l.counters.fetches.Add(1)
	data, err := l.fetcher.Fetch(t.ctx, url)
	if err != nil {
		if t.ctx.Err() == nil {
			l.counters.fetchFailures.Add(1)
			l.logger.Warn("image fetch failed", "url", url, "err", err)
		}
		return nil, err
	}

	img, err := imaging.Decode(data, l.cfg.MaxPixels)
	if err != nil {
		l.counters.decodeFailures.Add(1)
		l.logger.Warn("image decoding failed", "url", url, "bytes", len(data), "err", err)
		return nil, err
	}
	if err = t.ctx.Err(); err != nil {
		return nil, err
	}

	l.cache.Set(url, img)
	return img, nil
}
