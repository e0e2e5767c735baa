package sweeper

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/disk"
	"github.com/Borislavv/go-ash-imgcache/internal/dispatch"
	"github.com/Borislavv/go-ash-imgcache/internal/model"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type env struct {
	cfg   config.DiskCfg
	clock *clock.Mock
	store *disk.Store
	io    *dispatch.Serial
}

func newEnv(t *testing.T, interval time.Duration) *env {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Now())

	cfg := config.DiskCfg{
		Dir:           filepath.Join(t.TempDir(), config.DiskDirName),
		MaxAge:        7 * 24 * time.Hour,
		Quality:       80,
		SweepInterval: interval,
	}
	io := dispatch.NewSerial(context.Background(), "io", slog.Default())
	t.Cleanup(func() { _ = io.Close() })

	return &env{cfg: cfg, clock: clk, store: disk.New(context.Background(), cfg, slog.Default(), clk), io: io}
}

func (e *env) put(t *testing.T, url string, size int, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(e.store.Dir(), model.DeriveKey(url))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return path
}

// TestSweeper_New_SweepsAtStartup removes expired entries once at construction.
func TestSweeper_New_SweepsAtStartup(t *testing.T) {
	e := newEnv(t, 0)
	stale := e.put(t, "https://img.example/stale", 10, e.clock.Now().Add(-8*24*time.Hour))
	fresh := e.put(t, "https://img.example/fresh", 10, e.clock.Now().Add(-time.Hour))

	s := New(context.Background(), e.cfg, slog.Default(), e.store, e.io, e.clock)
	defer func() { require.NoError(t, s.Close()) }()
	require.NoError(t, e.io.Barrier(context.Background()))

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)

	runs, expired, evicted := s.SweeperMetrics()
	require.Equal(t, int64(1), runs)
	require.Equal(t, int64(1), expired)
	require.Zero(t, evicted)
}

// TestSweeper_Interval_RepeatsOnTick sweeps again when the period elapses.
func TestSweeper_Interval_RepeatsOnTick(t *testing.T) {
	e := newEnv(t, time.Hour)
	s := New(context.Background(), e.cfg, slog.Default(), e.store, e.io, e.clock)
	defer func() { require.NoError(t, s.Close()) }()
	require.NoError(t, e.io.Barrier(context.Background()))

	stale := e.put(t, "https://img.example/stale", 10, e.clock.Now().Add(-8*24*time.Hour))
	e.clock.Add(time.Hour)

	require.Eventually(t, func() bool {
		runs, _, _ := s.SweeperMetrics()
		return runs >= 2
	}, 5*time.Second, 10*time.Millisecond)

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))
}

// TestSweeper_SweepNow_EnforcesSize trims the directory to the size bound.
func TestSweeper_SweepNow_EnforcesSize(t *testing.T) {
	e := newEnv(t, 0)
	e.cfg.MaxSizeBytes = 250
	s := New(context.Background(), e.cfg, slog.Default(), e.store, e.io, e.clock)
	defer func() { require.NoError(t, s.Close()) }()
	require.NoError(t, e.io.Barrier(context.Background()))

	now := e.clock.Now()
	oldest := e.put(t, "https://img.example/1", 100, now.Add(-3*time.Hour))
	e.put(t, "https://img.example/2", 100, now.Add(-2*time.Hour))
	e.put(t, "https://img.example/3", 100, now.Add(-time.Hour))

	expired, evicted, err := s.SweepNow(context.Background())
	require.NoError(t, err)
	require.Zero(t, expired)
	require.Equal(t, 1, evicted)

	_, statErr := os.Stat(oldest)
	require.True(t, os.IsNotExist(statErr))
}

// TestSweeper_New_NoStore returns a no-op sweeper.
func TestSweeper_New_NoStore(t *testing.T) {
	s := New(context.Background(), config.DiskCfg{}, slog.Default(), nil, nil, nil)
	require.IsType(t, &NoOpSweeper{}, s)

	expired, evicted, err := s.SweepNow(context.Background())
	require.NoError(t, err)
	require.Zero(t, expired)
	require.Zero(t, evicted)
	require.NoError(t, s.Close())
}
