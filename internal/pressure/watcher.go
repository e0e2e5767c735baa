package pressure

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v4/mem"
	"log/slog"
	"sync"
)

type Watcher interface {
	WatcherMetrics() (scans, failures, crossings int64)
	Close() error
}

// Sampler reports system memory usage in percent.
type Sampler func(ctx context.Context) (usedPercent float64, err error)

// SystemMemory samples virtual memory usage of the host.
func SystemMemory(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

type WatchWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.PressureCfg
	logger   *slog.Logger
	notifier *Notifier
	sample   Sampler
	ticker   *clock.Ticker
	counters *watcherCounters
	invokeCh chan float64
	wg       sync.WaitGroup
}

// New starts a watcher raising notifier signals when usage crosses cfg.UsedPercent.
// A nil sampler means SystemMemory, a nil clk means the wall clock.
func New(
	ctx context.Context,
	cfg *config.PressureCfg,
	logger *slog.Logger,
	notifier *Notifier,
	sampler Sampler,
	clk clock.Clock,
) Watcher {
	if !cfg.Enabled() {
		return &NoOpWatcher{}
	}
	if sampler == nil {
		sampler = SystemMemory
	}
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&WatchWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		notifier: notifier,
		sample:   sampler,
		ticker:   clk.Ticker(cfg.Interval),
		counters: newWatcherCounters(),
		invokeCh: make(chan float64),
	}).run()
}

func (w *WatchWorker) WatcherMetrics() (scans, failures, crossings int64) {
	return w.counters.snapshot()
}

func (w *WatchWorker) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

func (w *WatchWorker) run() *WatchWorker {
	w.logger.Info("pressure watcher is running", "interval", w.cfg.Interval, "used_percent", w.cfg.UsedPercent)
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.consumer()
	}()
	go func() {
		defer w.wg.Done()
		defer w.logger.Info("pressure watcher is stopped")
		w.provider()
	}()
	return w
}

// provider - samples memory usage and hands every upward threshold crossing to the consumer.
func (w *WatchWorker) provider() {
	defer w.ticker.Stop()

	armed := true
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.ticker.C:
			w.counters.scans.Add(1)
			used, err := w.sample(w.ctx)
			if err != nil {
				w.counters.failures.Add(1)
				w.logger.Warn("memory sample failed", "err", err)
				continue
			}

			if used < w.cfg.UsedPercent {
				armed = true
				continue
			}
			if !armed {
				continue
			}
			armed = false

			select {
			case <-w.ctx.Done():
				return
			case w.invokeCh <- used:
				w.counters.crossings.Add(1)
			}
		}
	}
}

// consumer - broadcasts the pressure signal.
func (w *WatchWorker) consumer() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case used := <-w.invokeCh:
			w.logger.Warn("memory pressure", "used_percent", used, "threshold", w.cfg.UsedPercent)
			w.notifier.Notify()
		}
	}
}
