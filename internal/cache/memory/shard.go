package memory

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Shard is an independent segment of the tier with its own LRU list.
// Per-shard counters are atomics so the tier can aggregate them without locks.
type Shard struct {
	sync.Mutex
	items map[uint64]*Entry

	mem int64 // total cost of resident entries (atomic)
	len int64 // number of entries (atomic)

	lru  *list.List // front is the most recently used key
	lidx map[uint64]*list.Element
}

func NewShard() *Shard {
	return &Shard{
		items: make(map[uint64]*Entry),
		lru:   list.New(),
		lidx:  make(map[uint64]*list.Element),
	}
}

func (sh *Shard) Weight() int64 { return atomic.LoadInt64(&sh.mem) }
func (sh *Shard) Len() int64    { return atomic.LoadInt64(&sh.len) }

// Get returns the entry and marks it most recently used with the given tick.
func (sh *Shard) Get(key uint64, tick func() uint64) (value *Entry, hit bool) {
	sh.Lock()
	if value, hit = sh.items[key]; hit {
		value.touchedAt.Store(tick())
		sh.lruOnAccessUnlocked(key)
	}
	sh.Unlock()
	return
}

// Set inserts or replaces a key. Returns deltas for global aggregations.
func (sh *Shard) Set(key uint64, new *Entry, tick func() uint64) (bytesDelta int64, lenDelta int64) {
	sh.Lock()
	new.touchedAt.Store(tick())
	if old, hit := sh.items[key]; hit {
		sh.items[key] = new
		sh.lruOnAccessUnlocked(key)

		bytesDelta = new.Weight() - old.Weight()
		atomic.AddInt64(&sh.mem, bytesDelta)
	} else {
		sh.items[key] = new
		sh.lruOnInsertUnlocked(key)

		lenDelta = 1
		bytesDelta = new.Weight()
		atomic.AddInt64(&sh.len, lenDelta)
		atomic.AddInt64(&sh.mem, bytesDelta)
	}
	sh.Unlock()
	return
}

// Remove deletes a key under the lock.
func (sh *Shard) Remove(key uint64) (freedBytes int64, hit bool) {
	sh.Lock()
	freedBytes, hit = sh.removeUnlocked(key)
	sh.Unlock()
	return
}

// RemoveIfSame deletes key only while it still maps to entry.
// Used by eviction to avoid dropping an entry replaced after the victim was picked.
func (sh *Shard) RemoveIfSame(key uint64, entry *Entry) (freedBytes int64, hit bool) {
	sh.Lock()
	if cur, ok := sh.items[key]; ok && cur == entry {
		freedBytes, hit = sh.removeUnlocked(key)
	}
	sh.Unlock()
	return
}

func (sh *Shard) removeUnlocked(key uint64) (freedBytes int64, hit bool) {
	var old *Entry
	if old, hit = sh.items[key]; hit {
		delete(sh.items, key)
		sh.lruOnDeleteUnlocked(key)

		freedBytes = old.Weight()
		atomic.AddInt64(&sh.mem, -freedBytes)
		atomic.AddInt64(&sh.len, -1)
	}
	return
}

// Clear removes all entries and returns (freedBytes, itemsRemoved).
func (sh *Shard) Clear() (freedBytes int64, items int64) {
	sh.Lock()
	items = atomic.LoadInt64(&sh.len)
	freedBytes = atomic.LoadInt64(&sh.mem)

	sh.items = make(map[uint64]*Entry)
	sh.lru.Init()
	clear(sh.lidx)

	atomic.StoreInt64(&sh.len, 0)
	atomic.StoreInt64(&sh.mem, 0)
	sh.Unlock()
	return
}
