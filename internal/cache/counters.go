package cache

import "sync/atomic"

type Metrics struct {
	Sets       int64
	Promotions int64
}

type counters struct {
	sets       atomic.Int64
	promotions atomic.Int64
}

func newCounters() *counters {
	return &counters{
		sets:       atomic.Int64{},
		promotions: atomic.Int64{},
	}
}

func (c *counters) snapshot() Metrics {
	return Metrics{Sets: c.sets.Load(), Promotions: c.promotions.Load()}
}
