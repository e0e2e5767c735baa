// Package sweeper schedules disk tier maintenance: removal of expired entries
// and trimming of the directory to its size bound.
package sweeper

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/disk"
	"github.com/Borislavv/go-ash-imgcache/internal/dispatch"
	"github.com/benbjohnson/clock"
	"log/slog"
	"sync"
)

type Sweeper interface {
	SweeperMetrics() (runs, expired, evicted int64)
	// SweepNow runs one sweep on the io context and waits for its result.
	SweepNow(ctx context.Context) (expired, evicted int, err error)
	Close() error
}

type SweepWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      config.DiskCfg
	logger   *slog.Logger
	store    *disk.Store
	io       *dispatch.Serial
	ticker   *clock.Ticker
	counters *sweeperCounters
	wg       sync.WaitGroup
}

// New queues a sweep immediately and, when cfg.SweepInterval is positive, repeats it on that period.
// Sweeps run on io so they never interleave with reads and writes of the disk tier.
func New(
	ctx context.Context,
	cfg config.DiskCfg,
	logger *slog.Logger,
	store *disk.Store,
	io *dispatch.Serial,
	clk clock.Clock,
) Sweeper {
	if store == nil || store.Degraded() {
		return &NoOpSweeper{}
	}
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &SweepWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		store:    store,
		io:       io,
		counters: newSweeperCounters(),
	}
	if cfg.SweepInterval > 0 {
		w.ticker = clk.Ticker(cfg.SweepInterval)
	}
	return w.run()
}

func (w *SweepWorker) SweeperMetrics() (runs, expired, evicted int64) {
	return w.counters.snapshot()
}

func (w *SweepWorker) SweepNow(ctx context.Context) (expired, evicted int, err error) {
	done := make(chan struct{})
	if !w.io.Dispatch(func() {
		defer close(done)
		expired, evicted = w.sweep()
	}) {
		return 0, 0, dispatch.ErrClosed
	}

	select {
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	case <-done:
		return expired, evicted, nil
	}
}

func (w *SweepWorker) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

func (w *SweepWorker) run() *SweepWorker {
	w.logger.Info("disk sweeper is running",
		"dir", w.store.Dir(), "max_age", w.cfg.MaxAge, "max_size", w.cfg.MaxSizeBytes, "interval", w.cfg.SweepInterval)

	w.io.Dispatch(func() { w.sweep() })

	if w.ticker == nil {
		return w
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.logger.Info("disk sweeper is stopped")
		w.provider()
	}()
	return w
}

// provider - queues a sweep on every tick.
func (w *SweepWorker) provider() {
	defer w.ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.ticker.C:
			w.io.Dispatch(func() { w.sweep() })
		}
	}
}

func (w *SweepWorker) sweep() (expired, evicted int) {
	if w.ctx.Err() != nil {
		return 0, 0
	}
	expired = w.store.SweepExpired(w.cfg.MaxAge)
	evicted = w.store.EnforceSize(w.cfg.MaxSizeBytes)

	w.counters.runs.Add(1)
	w.counters.expired.Add(int64(expired))
	w.counters.evicted.Add(int64(evicted))

	if expired > 0 || evicted > 0 {
		w.logger.Info("disk sweep finished", "expired", expired, "evicted", evicted)
	}
	return
}
