// Package memory implements the in-process image tier: a sharded map bounded by a total
// cost, evicting the least recently used entries first. Counters are atomics so they
// can be read without locks.
package memory

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/model"
	"github.com/Borislavv/go-ash-imgcache/internal/pressure"
	"log/slog"
	"sync/atomic"
)

// Tier is a sharded cost-bounded LRU of decoded images.
type Tier struct {
	ctx    context.Context
	logger *slog.Logger
	limit  int64

	len  int64  // aggregated number of items (atomic)
	mem  int64  // aggregated cost in bytes (atomic)
	tick uint64 // logical clock for recency (atomic)

	mask   uint64
	shards []*Shard

	counters    *counters
	unsubscribe func()
}

// New builds the tier. When notifier is not nil the tier empties itself on every pressure signal.
func New(ctx context.Context, cfg config.MemoryCfg, logger *slog.Logger, notifier *pressure.Notifier) *Tier {
	n := cfg.Shards
	if n <= 0 || n&(n-1) != 0 {
		n = config.DefaultMemoryShards
	}

	t := &Tier{
		ctx:         ctx,
		logger:      logger,
		limit:       cfg.CostLimitBytes,
		mask:        uint64(n - 1),
		shards:      make([]*Shard, n),
		counters:    newCounters(),
		unsubscribe: func() {},
	}
	for id := range t.shards {
		t.shards[id] = NewShard()
	}

	if notifier != nil {
		t.unsubscribe = notifier.Subscribe(t.onPressure)
	}
	return t
}

// Get returns the image stored under key and marks it most recently used.
func (t *Tier) Get(key model.Key) (model.Image, bool) {
	if e, hit := t.Shard(key.Value()).Get(key.Value(), t.nextTick); hit && e.Key().IsTheSame(key) {
		t.counters.hits.Add(1)
		return e.Image(), true
	}
	t.counters.misses.Add(1)
	return model.Image{}, false
}

// Set stores img under key and evicts least recently used entries until the total cost fits.
// An image costing more than the whole limit is not kept, any previous value for key is dropped.
func (t *Tier) Set(key model.Key, img model.Image) bool {
	if img.Cost > t.limit {
		t.counters.rejected.Add(1)
		t.Remove(key)
		return false
	}

	bytesDelta, lenDelta := t.Shard(key.Value()).Set(key.Value(), newEntry(key, img), t.nextTick)
	if bytesDelta != 0 {
		atomic.AddInt64(&t.mem, bytesDelta)
	}
	if lenDelta != 0 {
		atomic.AddInt64(&t.len, lenDelta)
	}

	if atomic.LoadInt64(&t.mem) > t.limit {
		freed, evicted := t.evictUntilWithinLimit()
		if evicted > 0 {
			t.counters.evictedItems.Add(evicted)
			t.counters.evictedBytes.Add(freed)
		}
	}
	return true
}

// Remove deletes key, reporting whether it was present.
func (t *Tier) Remove(key model.Key) bool {
	freedBytes, hit := t.Shard(key.Value()).Remove(key.Value())
	if hit {
		atomic.AddInt64(&t.len, -1)
		atomic.AddInt64(&t.mem, -freedBytes)
	}
	return hit
}

// RemoveAll wipes all shards and fixes global counters.
func (t *Tier) RemoveAll() {
	for _, shard := range t.shards {
		freedBytes, items := shard.Clear()
		if freedBytes != 0 {
			atomic.AddInt64(&t.mem, -freedBytes)
		}
		if items != 0 {
			atomic.AddInt64(&t.len, -items)
		}
	}
}

// Close detaches the tier from pressure signals.
func (t *Tier) Close() error {
	t.unsubscribe()
	return nil
}

func (t *Tier) Shard(key uint64) *Shard { return t.shards[key&t.mask] }
func (t *Tier) Len() int64              { return atomic.LoadInt64(&t.len) }
func (t *Tier) Mem() int64              { return atomic.LoadInt64(&t.mem) }
func (t *Tier) Limit() int64            { return t.limit }

// Metrics returns hit/miss/eviction counters since construction.
func (t *Tier) Metrics() Metrics {
	return t.counters.snapshot()
}

func (t *Tier) nextTick() uint64 { return atomic.AddUint64(&t.tick, 1) }

func (t *Tier) onPressure() {
	items, mem := t.Len(), t.Mem()
	t.RemoveAll()
	t.counters.pressureClears.Add(1)
	t.logger.Info("memory tier cleared on pressure", "items", items, "cost", mem)
}
