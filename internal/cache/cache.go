package cache

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/disk"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/memory"
	"github.com/Borislavv/go-ash-imgcache/internal/dispatch"
	"github.com/Borislavv/go-ash-imgcache/internal/imaging"
	"github.com/Borislavv/go-ash-imgcache/internal/model"
	"image"
	"log/slog"
)

// Cacher is the image cache consulted by the loader and by consumers.
type Cacher interface {
	// Get checks the memory tier only and never blocks on I/O.
	Get(url string) (image.Image, bool)
	// GetAsync checks memory, then disk on the io context. A disk hit is promoted to memory.
	// cb runs on the consumer dispatcher.
	GetAsync(url string, cb func(img image.Image, ok bool))
	// Set downscales img, stores it in memory synchronously and on disk asynchronously.
	Set(url string, img image.Image)
	Remove(url string)
	Clear()
	// Sync waits until every disk operation queued before the call has finished.
	Sync(ctx context.Context) error
	Metrics() Metrics
}

var (
	_ Cacher = (*Tiered)(nil)
	_ Cacher = (*MemoryOnly)(nil)
)

// Tiered is the production two-tier cache.
type Tiered struct {
	cfg      config.TransformCfg
	logger   *slog.Logger
	memory   *memory.Tier
	disk     *disk.Store
	io       *dispatch.Serial
	consumer dispatch.Dispatcher
	counters *counters
}

// NewTiered composes the tiers. Disk work is queued on io, callbacks are delivered through consumer.
func NewTiered(
	cfg config.TransformCfg,
	logger *slog.Logger,
	mem *memory.Tier,
	store *disk.Store,
	io *dispatch.Serial,
	consumer dispatch.Dispatcher,
) *Tiered {
	return &Tiered{
		cfg:      cfg,
		logger:   logger,
		memory:   mem,
		disk:     store,
		io:       io,
		consumer: consumer,
		counters: newCounters(),
	}
}

func (c *Tiered) Get(url string) (image.Image, bool) {
	if img, ok := c.memory.Get(model.NewKey(url)); ok {
		return img.Img, true
	}
	return nil, false
}

func (c *Tiered) GetAsync(url string, cb func(img image.Image, ok bool)) {
	key := model.NewKey(url)
	if img, ok := c.memory.Get(key); ok {
		c.deliver(cb, img.Img, true)
		return
	}

	queued := c.io.Dispatch(func() {
		img, ok := c.disk.Load(key)
		if ok {
			c.memory.Set(key, model.Image{Img: img, Cost: imaging.Cost(img, c.cfg.CostQuality)})
			c.counters.promotions.Add(1)
		}
		c.deliver(cb, img, ok)
	})
	if !queued {
		c.deliver(cb, nil, false)
	}
}

func (c *Tiered) Set(url string, img image.Image) {
	if img == nil {
		return
	}
	key := model.NewKey(url)
	scaled := imaging.Downscale(img, c.cfg.MaxDimension)

	c.memory.Set(key, model.Image{Img: scaled, Cost: imaging.Cost(scaled, c.cfg.CostQuality)})
	c.counters.sets.Add(1)

	if !c.io.Dispatch(func() { c.disk.Save(key, scaled) }) {
		c.logger.Warn("io queue is closed, disk write skipped", "key", key.String())
	}
}

func (c *Tiered) Remove(url string) {
	key := model.NewKey(url)
	c.memory.Remove(key)
	c.io.Dispatch(func() { c.disk.Remove(key) })
}

func (c *Tiered) Clear() {
	c.memory.RemoveAll()
	c.io.Dispatch(c.disk.Clear)
}

func (c *Tiered) Sync(ctx context.Context) error {
	return c.io.Barrier(ctx)
}

// Metrics returns façade counters since construction.
func (c *Tiered) Metrics() Metrics {
	return c.counters.snapshot()
}

func (c *Tiered) deliver(cb func(image.Image, bool), img image.Image, ok bool) {
	if !c.consumer.Dispatch(func() { cb(img, ok) }) {
		c.logger.Warn("consumer dispatcher rejected a callback, running inline")
		cb(img, ok)
	}
}
