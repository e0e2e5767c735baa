package telemetry

import "time"

type NoOpLogs struct{}

func (n *NoOpLogs) Interval() time.Duration { return 0 }
func (n *NoOpLogs) Close() error            { return nil }
