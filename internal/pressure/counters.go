package pressure

import "sync/atomic"

type watcherCounters struct {
	scans     atomic.Int64 // memory samples taken
	failures  atomic.Int64 // samples that returned an error
	crossings atomic.Int64 // threshold crossings turned into signals
}

func newWatcherCounters() *watcherCounters {
	return &watcherCounters{
		scans:     atomic.Int64{},
		failures:  atomic.Int64{},
		crossings: atomic.Int64{},
	}
}

func (c *watcherCounters) snapshot() (scans, failures, crossings int64) {
	return c.scans.Load(), c.failures.Load(), c.crossings.Load()
}
