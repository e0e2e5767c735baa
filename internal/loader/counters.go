package loader

import "sync/atomic"

// Metrics is a point-in-time copy of the loader counters.
type Metrics struct {
	MemoryHits     int64
	DiskHits       int64
	Fetches        int64
	FetchFailures  int64
	DecodeFailures int64
	Coalesced      int64
	Cancelled      int64
}

type counters struct {
	memoryHits     atomic.Int64
	diskHits       atomic.Int64
	fetches        atomic.Int64
	fetchFailures  atomic.Int64
	decodeFailures atomic.Int64
	coalesced      atomic.Int64
	cancelled      atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		MemoryHits:     c.memoryHits.Load(),
		DiskHits:       c.diskHits.Load(),
		Fetches:        c.fetches.Load(),
		FetchFailures:  c.fetchFailures.Load(),
		DecodeFailures: c.decodeFailures.Load(),
		Coalesced:      c.coalesced.Load(),
		Cancelled:      c.cancelled.Load(),
	}
}
