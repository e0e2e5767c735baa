package cache

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/memory"
	"github.com/Borislavv/go-ash-imgcache/internal/dispatch"
	"github.com/Borislavv/go-ash-imgcache/internal/imaging"
	"github.com/Borislavv/go-ash-imgcache/internal/model"
	"image"
)

// MemoryOnly is a Cacher without a disk tier, for tests and disk-less deployments.
type MemoryOnly struct {
	cfg      config.TransformCfg
	memory   *memory.Tier
	consumer dispatch.Dispatcher
	counters *counters
}

func NewMemoryOnly(cfg config.TransformCfg, mem *memory.Tier, consumer dispatch.Dispatcher) *MemoryOnly {
	if consumer == nil {
		consumer = dispatch.Inline{}
	}
	return &MemoryOnly{cfg: cfg, memory: mem, consumer: consumer, counters: newCounters()}
}

func (c *MemoryOnly) Get(url string) (image.Image, bool) {
	if img, ok := c.memory.Get(model.NewKey(url)); ok {
		return img.Img, true
	}
	return nil, false
}

func (c *MemoryOnly) GetAsync(url string, cb func(img image.Image, ok bool)) {
	img, ok := c.Get(url)
	if !c.consumer.Dispatch(func() { cb(img, ok) }) {
		cb(img, ok)
	}
}

func (c *MemoryOnly) Set(url string, img image.Image) {
	if img == nil {
		return
	}
	scaled := imaging.Downscale(img, c.cfg.MaxDimension)
	c.memory.Set(model.NewKey(url), model.Image{Img: scaled, Cost: imaging.Cost(scaled, c.cfg.CostQuality)})
	c.counters.sets.Add(1)
}

func (c *MemoryOnly) Remove(url string) { c.memory.Remove(model.NewKey(url)) }
func (c *MemoryOnly) Clear()            { c.memory.RemoveAll() }

func (c *MemoryOnly) Sync(context.Context) error { return nil }

func (c *MemoryOnly) Metrics() Metrics {
	return c.counters.snapshot()
}
