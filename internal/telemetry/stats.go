package telemetry

import (
	"github.com/Borislavv/go-ash-imgcache/internal/cache"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/disk"
	"github.com/Borislavv/go-ash-imgcache/internal/cache/memory"
	"github.com/Borislavv/go-ash-imgcache/internal/loader"
)

// Stats is a point-in-time view of every component. Counters are cumulative.
type Stats struct {
	MemoryEntries int64
	MemoryBytes   int64
	MemoryLimit   int64
	Memory        memory.Metrics

	DiskFiles    int
	DiskBytes    int64
	DiskDegraded bool
	Disk         disk.Metrics

	Cache cache.Metrics

	Loader loader.Metrics

	PressureScans     int64
	PressureFailures  int64
	PressureCrossings int64
	PressureSignals   int64

	SweeperRuns    int64
	SweeperExpired int64
	SweeperEvicted int64
}

// Source produces a fresh Stats on every call.
type Source func() Stats

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	memHits, memMisses, memEvictedItems, memEvictedBytes, memRejected, memPressureClears uint64

	diskHits, diskMisses, diskWrites, diskWriteFailures uint64

	sets, promotions uint64

	fetches, fetchFailures, decodeFailures, coalesced, cancelled, memoryLoads, diskLoads uint64

	pressureCrossings, sweepExpired, sweepEvicted uint64
}

func snapshotOf(s Stats) snapshot {
	return snapshot{
		memHits:           u(s.Memory.Hits),
		memMisses:         u(s.Memory.Misses),
		memEvictedItems:   u(s.Memory.EvictedItems),
		memEvictedBytes:   u(s.Memory.EvictedBytes),
		memRejected:       u(s.Memory.Rejected),
		memPressureClears: u(s.Memory.PressureClears),

		diskHits:          u(s.Disk.Hits),
		diskMisses:        u(s.Disk.Misses),
		diskWrites:        u(s.Disk.Writes),
		diskWriteFailures: u(s.Disk.WriteFailures),

		sets:       u(s.Cache.Sets),
		promotions: u(s.Cache.Promotions),

		fetches:        u(s.Loader.Fetches),
		fetchFailures:  u(s.Loader.FetchFailures),
		decodeFailures: u(s.Loader.DecodeFailures),
		coalesced:      u(s.Loader.Coalesced),
		cancelled:      u(s.Loader.Cancelled),
		memoryLoads:    u(s.Loader.MemoryHits),
		diskLoads:      u(s.Loader.DiskHits),

		pressureCrossings: u(s.PressureCrossings),
		sweepExpired:      u(s.SweeperExpired),
		sweepEvicted:      u(s.SweeperEvicted),
	}
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		memHits:           delta(prev.memHits, cur.memHits),
		memMisses:         delta(prev.memMisses, cur.memMisses),
		memEvictedItems:   delta(prev.memEvictedItems, cur.memEvictedItems),
		memEvictedBytes:   delta(prev.memEvictedBytes, cur.memEvictedBytes),
		memRejected:       delta(prev.memRejected, cur.memRejected),
		memPressureClears: delta(prev.memPressureClears, cur.memPressureClears),

		diskHits:          delta(prev.diskHits, cur.diskHits),
		diskMisses:        delta(prev.diskMisses, cur.diskMisses),
		diskWrites:        delta(prev.diskWrites, cur.diskWrites),
		diskWriteFailures: delta(prev.diskWriteFailures, cur.diskWriteFailures),

		sets:       delta(prev.sets, cur.sets),
		promotions: delta(prev.promotions, cur.promotions),

		fetches:        delta(prev.fetches, cur.fetches),
		fetchFailures:  delta(prev.fetchFailures, cur.fetchFailures),
		decodeFailures: delta(prev.decodeFailures, cur.decodeFailures),
		coalesced:      delta(prev.coalesced, cur.coalesced),
		cancelled:      delta(prev.cancelled, cur.cancelled),
		memoryLoads:    delta(prev.memoryLoads, cur.memoryLoads),
		diskLoads:      delta(prev.diskLoads, cur.diskLoads),

		pressureCrossings: delta(prev.pressureCrossings, cur.pressureCrossings),
		sweepExpired:      delta(prev.sweepExpired, cur.sweepExpired),
		sweepEvicted:      delta(prev.sweepEvicted, cur.sweepEvicted),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}

func u(v int64) uint64 { return uint64(max(v, 0)) }
