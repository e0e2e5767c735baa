package disk

import (
	"github.com/cockroachdb/errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type fileInfo struct {
	path    string
	size    int64
	modTime time.Time
}

// SweepExpired removes every file whose modification time is older than now - maxAge.
// Unreadable entries are skipped. Removals are paced by the configured rate.
func (s *Store) SweepExpired(maxAge time.Duration) (removed int) {
	if s.degraded.Load() || maxAge <= 0 {
		return 0
	}

	entries, err := s.list()
	if err != nil {
		s.logger.Warn("disk sweep listing failed", "dir", s.dir, "err", err)
		return 0
	}

	cutoff := s.clock.Now().Add(-maxAge)
	for _, e := range entries {
		if s.ctx.Err() != nil {
			break
		}
		if !e.modTime.Before(cutoff) {
			continue
		}
		if s.removeFile(e) {
			removed++
		}
	}
	s.counters.expired.Add(int64(removed))
	return removed
}

// EnforceSize deletes the oldest files first until the directory holds at most maxBytes.
func (s *Store) EnforceSize(maxBytes int64) (removed int) {
	if s.degraded.Load() || maxBytes <= 0 {
		return 0
	}

	entries, err := s.list()
	if err != nil {
		s.logger.Warn("disk size listing failed", "dir", s.dir, "err", err)
		return 0
	}

	var total int64
	for _, e := range entries {
		total += e.size
	}
	if total <= maxBytes {
		return 0
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.Before(entries[j].modTime) })
	for _, e := range entries {
		if total <= maxBytes || s.ctx.Err() != nil {
			break
		}
		if s.removeFile(e) {
			total -= e.size
			removed++
		}
	}
	s.counters.evicted.Add(int64(removed))
	return removed
}

func (s *Store) removeFile(e fileInfo) bool {
	s.limiter.Take()
	if err := os.Remove(e.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("disk remove failed", "path", e.path, "err", err)
		}
		return false
	}
	return true
}

// list returns regular, non-hidden files of the directory.
func (s *Store) list() ([]fileInfo, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", s.dir)
	}

	out := make([]fileInfo, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || isHidden(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue // vanished or unreadable
		}
		if !info.Mode().IsRegular() {
			continue
		}
		out = append(out, fileInfo{
			path:    filepath.Join(s.dir, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return out, nil
}
