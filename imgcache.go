// Package imgcache is a two-tier (memory and disk) image cache with an asynchronous,
// de-duplicating image loader.
package imgcache

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/cache"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/disk"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/memory"
	"github.com/Borislavv/go-ash-imgcache/internal/dispatch"
	"github.com/Borislavv/go-ash-imgcache/internal/loader"
	"github.com/Borislavv/go-ash-imgcache/internal/pressure"
	"github.com/Borislavv/go-ash-imgcache/internal/sweeper"
	"github.com/Borislavv/go-ash-imgcache/internal/telemetry"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"image"
	"io"
	"log/slog"
	"sync"
)

type ImageCache interface {
	cache.Cacher
	LoadImage(ctx context.Context, url string) <-chan image.Image
	CancelLoad(url string)
	CancelAll()
	Sweep(ctx context.Context) (expired, evicted int, err error)
	Stats() telemetry.Stats
	Collector() prometheus.Collector
	io.Closer
}

var _ ImageCache = (*Cache)(nil)

type Cache struct {
	cache.Cacher
	loader    *loader.Loader
	memory    *memory.Tier
	disk      *disk.Store
	io        *dispatch.Serial
	main      *dispatch.Serial
	notifier  *pressure.Notifier
	watcher   pressure.Watcher
	sweeper   sweeper.Sweeper
	telemetry telemetry.Logger
	collector *telemetry.Collector
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New wires every component. cfg is adjusted in place and unusable values are reset to defaults,
// a nil cfg means defaults.
func New(ctx context.Context, cfg *config.Cache, logger *slog.Logger, opts ...Option) *Cache {
	if cfg == nil {
		cfg = config.Default()
	} else {
		cfg.AdjustConfig()
	}
	if err := cfg.Sanitize(); err != nil {
		logger.Warn("invalid config values replaced with defaults", "err", err)
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.notifier == nil {
		o.notifier = pressure.NewNotifier()
	}
	if o.fetcher == nil {
		o.fetcher = loader.NewHTTPFetcher(cfg.Loader)
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Cache{cancel: cancel, notifier: o.notifier}

	consumer := o.consumer
	if consumer == nil {
		c.main = dispatch.NewSerial(ctx, "main", logger)
		consumer = c.main
	}

	c.memory = memory.New(ctx, cfg.Memory, logger, o.notifier)
	if o.memoryOnly {
		c.Cacher = cache.NewMemoryOnly(cfg.Transform, c.memory, consumer)
		c.sweeper = &sweeper.NoOpSweeper{}
	} else {
		c.io = dispatch.NewSerial(ctx, "io", logger)
		c.disk = disk.New(ctx, cfg.Disk, logger, o.clock)
		c.sweeper = sweeper.New(ctx, cfg.Disk, logger, c.disk, c.io, o.clock)
		c.Cacher = cache.NewTiered(cfg.Transform, logger, c.memory, c.disk, c.io, consumer)
	}

	c.loader = loader.New(ctx, cfg.Transform, logger, c.Cacher, o.fetcher, consumer)
	c.watcher = pressure.New(ctx, cfg.Pressure, logger, o.notifier, o.sampler, o.clock)
	c.collector = telemetry.NewCollector(c.Stats)
	c.telemetry = telemetry.New(ctx, cfg.Telemetry, logger, c.Stats)

	logger.Info("image cache is ready",
		"memory_limit", cfg.Memory.CostLimitBytes, "disk_dir", cfg.Disk.Dir, "memory_only", o.memoryOnly)
	return c
}

func (c *Cache) LoadImage(ctx context.Context, url string) <-chan image.Image {
	return c.loader.LoadImage(ctx, url)
}

func (c *Cache) CancelLoad(url string) { c.loader.CancelLoad(url) }
func (c *Cache) CancelAll()            { c.loader.CancelAll() }

// NewSlot returns a binder showing one URL at a time.
func (c *Cache) NewSlot() *loader.Slot { return loader.NewSlot(c.loader) }

// Sweep runs one disk sweep and waits for it.
func (c *Cache) Sweep(ctx context.Context) (expired, evicted int, err error) {
	return c.sweeper.SweepNow(ctx)
}

// Notifier is the memory-pressure signal the memory tier listens to.
func (c *Cache) Notifier() *pressure.Notifier { return c.notifier }

func (c *Cache) Collector() prometheus.Collector { return c.collector }

func (c *Cache) Stats() telemetry.Stats {
	s := telemetry.Stats{
		MemoryEntries:   c.memory.Len(),
		MemoryBytes:     c.memory.Mem(),
		MemoryLimit:     c.memory.Limit(),
		Memory:          c.memory.Metrics(),
		Cache:           c.Cacher.Metrics(),
		Loader:          c.loader.Metrics(),
		PressureSignals: c.notifier.Signals(),
	}
	s.PressureScans, s.PressureFailures, s.PressureCrossings = c.watcher.WatcherMetrics()
	s.SweeperRuns, s.SweeperExpired, s.SweeperEvicted = c.sweeper.SweeperMetrics()
	if c.disk != nil {
		s.DiskFiles, s.DiskBytes = c.disk.Stats()
		s.DiskDegraded = c.disk.Degraded()
		s.Disk = c.disk.Metrics()
	}
	return s
}

// Close stops background workers, cancels downloads and flushes queued disk writes.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		_ = c.telemetry.Close()
		_ = c.watcher.Close()
		_ = c.sweeper.Close()
		_ = c.loader.Close()
		if c.io != nil {
			_ = c.io.Close()
		}
		_ = c.memory.Close()
		if c.main != nil {
			_ = c.main.Close()
		}
		c.cancel()
	})
	return nil
}
