// Package disk implements the persistent image tier: a flat directory with one
// JPEG file per key, named by the key digest.
package disk

import (
	"context"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/imaging"
	"github.com/Borislavv/go-ash-imgcache/internal/model"
	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"go.uber.org/ratelimit"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

const tempPattern = ".img-*"

// Store persists encoded images. Methods never return errors to callers:
// failures are logged and behave as a miss. It is not safe for concurrent
// writers of the same key, callers serialize disk work on one io context.
type Store struct {
	ctx     context.Context
	logger  *slog.Logger
	clock   clock.Clock
	limiter ratelimit.Limiter

	dir      string
	quality  int
	degraded atomic.Bool

	counters *counters
}

// New creates the directory if missing. When that fails the store is degraded:
// every load is a miss and every write is a no-op.
func New(ctx context.Context, cfg config.DiskCfg, logger *slog.Logger, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}

	s := &Store{
		ctx:      ctx,
		logger:   logger,
		clock:    clk,
		limiter:  ratelimit.NewUnlimited(),
		dir:      cfg.Dir,
		quality:  cfg.Quality,
		counters: newCounters(),
	}
	if cfg.RemovalsPerSec > 0 {
		s.limiter = ratelimit.New(cfg.RemovalsPerSec, ratelimit.WithoutSlack)
	}
	if s.quality <= 0 {
		s.quality = config.DefaultDiskQuality
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.degraded.Store(true)
		logger.Error("cache directory is unavailable, disk tier disabled", "dir", s.dir, "err", err)
	}
	return s
}

// Load decodes the image stored under key.
func (s *Store) Load(key model.Key) (image.Image, bool) {
	if s.degraded.Load() {
		return nil, false
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("disk read failed", "key", key.String(), "err", err)
		}
		s.counters.misses.Add(1)
		return nil, false
	}

	img, err := imaging.Decode(data, config.DefaultMaxPixels)
	if err != nil {
		s.logger.Warn("disk entry is not decodable", "key", key.String(), "err", err)
		s.counters.misses.Add(1)
		return nil, false
	}
	s.counters.hits.Add(1)
	return img, true
}

// Save encodes img as JPEG and atomically replaces the file of key.
func (s *Store) Save(key model.Key, img image.Image) {
	if s.degraded.Load() {
		return
	}
	if err := s.save(key, img); err != nil {
		s.counters.writeFailures.Add(1)
		s.logger.Warn("disk write failed", "key", key.String(), "err", err)
		return
	}
	s.counters.writes.Add(1)
}

func (s *Store) save(key model.Key, img image.Image) error {
	data, err := imaging.EncodeJPEG(img, s.quality)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "write temp file")
	}

	if err = os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}

// Remove deletes the file of key. Removing an absent key is a no-op.
func (s *Store) Remove(key model.Key) {
	if s.degraded.Load() {
		return
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("disk remove failed", "key", key.String(), "err", err)
	}
}

// Clear removes the whole directory and recreates it empty.
func (s *Store) Clear() {
	if s.degraded.Load() {
		return
	}
	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Warn("disk clear failed", "dir", s.dir, "err", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Error("disk directory recreate failed", "dir", s.dir, "err", err)
	}
}

// Stats walks the directory and returns the number of entries and their summary size.
func (s *Store) Stats() (files int, bytes int64) {
	entries, err := s.list()
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		files++
		bytes += e.size
	}
	return
}

func (s *Store) Dir() string      { return s.dir }
func (s *Store) Degraded() bool   { return s.degraded.Load() }
func (s *Store) Metrics() Metrics { return s.counters.snapshot() }

func (s *Store) path(key model.Key) string {
	return filepath.Join(s.dir, key.Digest())
}

func isHidden(name string) bool { return strings.HasPrefix(name, ".") }
