package memory

import "sync/atomic"

// evictUntilWithinLimit removes the globally least recently used entry until the total
// cost fits the limit. Each shard list is ordered by tick, so the global LRU is the tail
// with the smallest tick among all shards.
func (t *Tier) evictUntilWithinLimit() (freed, evicted int64) {
	for atomic.LoadInt64(&t.mem) > t.limit && t.Len() > 0 {
		sh, key, victim, found := t.pickVictim()
		if !found {
			return
		}
		bytesFreed, hit := sh.RemoveIfSame(key, victim)
		if !hit {
			continue // touched or replaced concurrently, pick again
		}
		atomic.AddInt64(&t.mem, -bytesFreed)
		atomic.AddInt64(&t.len, -1)
		freed += bytesFreed
		evicted++
	}
	return
}

func (t *Tier) pickVictim() (bestShard *Shard, bestKey uint64, victim *Entry, ok bool) {
	var bestAt uint64
	for _, sh := range t.shards {
		if sh.Len() == 0 {
			continue
		}
		if k, v, found := sh.lruPeekTail(); found {
			if at := v.TouchedAt(); !ok || at < bestAt {
				ok, bestAt, bestKey, victim, bestShard = true, at, k, v, sh
			}
		}
	}
	return
}
