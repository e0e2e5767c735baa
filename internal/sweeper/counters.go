package sweeper

import "sync/atomic"

type sweeperCounters struct {
	runs    atomic.Int64
	expired atomic.Int64
	evicted atomic.Int64
}

func newSweeperCounters() *sweeperCounters {
	return &sweeperCounters{
		runs:    atomic.Int64{},
		expired: atomic.Int64{},
		evicted: atomic.Int64{},
	}
}

func (c *sweeperCounters) snapshot() (runs, expired, evicted int64) {
	return c.runs.Load(), c.expired.Load(), c.evicted.Load()
}
