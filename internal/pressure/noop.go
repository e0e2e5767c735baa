package pressure

// NoOpWatcher is used when the watcher is disabled. It never raises signals.
type NoOpWatcher struct{}

func (NoOpWatcher) WatcherMetrics() (scans, failures, crossings int64) {
	return 0, 0, 0
}

func (NoOpWatcher) Close() error {
	return nil
}
