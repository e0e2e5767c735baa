package telemetry

import (
	"bytes"
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/cache"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/memory"
	"github.com/Borislavv/go-ash-imgcache/internal/loader"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fixedSource(s Stats) Source {
	return func() Stats { return s }
}

// TestDeltaSnapshot_HandlesReset treats a decreased counter as a fresh delta.
func TestDeltaSnapshot_HandlesReset(t *testing.T) {
	prev := snapshot{memHits: 10, fetches: 7}
	cur := snapshot{memHits: 15, fetches: 3}

	d := deltaSnapshot(prev, cur)
	require.Equal(t, uint64(5), d.memHits)
	require.Equal(t, uint64(3), d.fetches)
}

// TestCollector_ExposesStats renders counters and gauges from the source.
func TestCollector_ExposesStats(t *testing.T) {
	c := NewCollector(fixedSource(Stats{
		MemoryEntries: 3,
		MemoryBytes:   4096,
		Memory:        memory.Metrics{Hits: 12, Misses: 2},
		Loader:        loader.Metrics{Fetches: 5, Coalesced: 1},
		Cache:         cache.Metrics{Sets: 4, Promotions: 2},
		DiskDegraded:  true,
	}))

	expected := `
# HELP imgcache_memory_entries Number of resident images.
# TYPE imgcache_memory_entries gauge
imgcache_memory_entries 3
# HELP imgcache_memory_hits_total Memory tier lookups that found an image.
# TYPE imgcache_memory_hits_total counter
imgcache_memory_hits_total 12
# HELP imgcache_loader_fetches_total Network downloads started.
# TYPE imgcache_loader_fetches_total counter
imgcache_loader_fetches_total 5
# HELP imgcache_disk_degraded 1 when the disk tier is unavailable.
# TYPE imgcache_disk_degraded gauge
imgcache_disk_degraded 1
# HELP imgcache_cache_promotions_total Disk hits copied into the memory tier.
# TYPE imgcache_cache_promotions_total counter
imgcache_cache_promotions_total 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"imgcache_memory_entries", "imgcache_memory_hits_total", "imgcache_loader_fetches_total", "imgcache_disk_degraded",
		"imgcache_cache_promotions_total"))
	require.Equal(t, len(c.descs), testutil.CollectAndCount(c))
}

// TestLogs_WritesPeriodically logs component groups on every tick until closed.
func TestLogs_WritesPeriodically(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var calls atomic.Int64
	source := func() Stats {
		calls.Add(1)
		return Stats{MemoryBytes: 2048, Loader: loader.Metrics{Fetches: calls.Load()}}
	}

	l := New(context.Background(), &config.TelemetryCfg{Interval: 10 * time.Millisecond}, logger, source)
	require.Equal(t, 10*time.Millisecond, l.Interval())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close())

	out := buf.String()
	require.Contains(t, out, "msg=memory")
	require.Contains(t, out, "msg=loader")
	require.Contains(t, out, "size=\"2.0 KiB\"")
}

// TestNew_Disabled returns a no-op logger.
func TestNew_Disabled(t *testing.T) {
	l := New(context.Background(), nil, slog.Default(), fixedSource(Stats{}))
	require.IsType(t, &NoOpLogs{}, l)
	require.NoError(t, l.Close())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
