package sweeper

import "context"

// NoOpSweeper is used when there is no usable disk tier.
type NoOpSweeper struct{}

func (n *NoOpSweeper) SweeperMetrics() (runs, expired, evicted int64) {
	return 0, 0, 0
}

func (n *NoOpSweeper) SweepNow(context.Context) (expired, evicted int, err error) {
	return 0, 0, nil
}

func (n *NoOpSweeper) Close() error {
	return nil
}
