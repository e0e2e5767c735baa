package memory

import "sync/atomic"

// Metrics is a point-in-time copy of the tier counters.
type Metrics struct {
	Hits           int64
	Misses         int64
	Rejected       int64
	EvictedItems   int64
	EvictedBytes   int64
	PressureClears int64
}

type counters struct {
	hits           atomic.Int64
	misses         atomic.Int64
	rejected       atomic.Int64
	evictedItems   atomic.Int64
	evictedBytes   atomic.Int64
	pressureClears atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Rejected:       c.rejected.Load(),
		EvictedItems:   c.evictedItems.Load(),
		EvictedBytes:   c.evictedBytes.Load(),
		PressureClears: c.pressureClears.Load(),
	}
}
