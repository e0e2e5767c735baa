package disk

import "sync/atomic"

// Metrics is a point-in-time copy of the store counters.
type Metrics struct {
	Hits          int64
	Misses        int64
	Writes        int64
	WriteFailures int64
	Expired       int64
	Evicted       int64
}

type counters struct {
	hits          atomic.Int64
	misses        atomic.Int64
	writes        atomic.Int64
	writeFailures atomic.Int64
	expired       atomic.Int64
	evicted       atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Writes:        c.writes.Load(),
		WriteFailures: c.writeFailures.Load(),
		Expired:       c.expired.Load(),
		Evicted:       c.evicted.Load(),
	}
}
