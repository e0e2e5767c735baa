package telemetry

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/dustin/go-humanize"
	"log/slog"
	"time"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	source   Source
	interval time.Duration
	done     chan struct{}
}

// New starts periodic stat logs. It returns a no-op logger when cfg is nil.
func New(ctx context.Context, cfg *config.TelemetryCfg, logger *slog.Logger, source Source) Logger {
	if !cfg.Enabled() {
		return &NoOpLogs{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = config.DefaultTelemetryInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		source:   source,
		interval: interval,
		done:     make(chan struct{}),
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	<-l.done
	return nil
}

func (l *Logs) run() *Logs {
	go l.loop()
	return l
}

func (l *Logs) loop() {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	prev := snapshotOf(l.source())
	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			stats := l.source()
			cur := snapshotOf(stats)
			d := deltaSnapshot(prev, cur)
			prev = cur

			l.write(stats, d)
		}
	}
}

func (l *Logs) write(stats Stats, d snapshot) {
	common := []any{"interval", l.interval.String()}

	l.logger.Info("memory",
		append(common,
			"size", humanize.IBytes(u(stats.MemoryBytes)),
			"limit", humanize.IBytes(u(stats.MemoryLimit)),
			"entries", stats.MemoryEntries,
			"sets", d.sets,
			"hits", d.memHits,
			"misses", d.memMisses,
			"rejected", d.memRejected,
		)...,
	)

	if d.memEvictedItems > 0 || d.memPressureClears > 0 {
		l.logger.Info("memory_eviction",
			append(common,
				"freed_items", d.memEvictedItems,
				"freed_bytes", humanize.IBytes(d.memEvictedBytes),
				"pressure_clears", d.memPressureClears,
			)...,
		)
	}

	l.logger.Info("disk",
		append(common,
			"size", humanize.IBytes(u(stats.DiskBytes)),
			"files", stats.DiskFiles,
			"degraded", stats.DiskDegraded,
			"hits", d.diskHits,
			"misses", d.diskMisses,
			"writes", d.diskWrites,
			"write_failures", d.diskWriteFailures,
			"promotions", d.promotions,
			"expired", d.sweepExpired,
			"evicted", d.sweepEvicted,
		)...,
	)

	l.logger.Info("loader",
		append(common,
			"memory_hits", d.memoryLoads,
			"disk_hits", d.diskLoads,
			"fetches", d.fetches,
			"fetch_failures", d.fetchFailures,
			"decode_failures", d.decodeFailures,
			"coalesced", d.coalesced,
			"cancelled", d.cancelled,
		)...,
	)

	if d.pressureCrossings > 0 {
		l.logger.Warn("memory_pressure", append(common, "signals", d.pressureCrossings)...)
	}
}
