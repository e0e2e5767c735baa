package memory

// lruOnInsertUnlocked - is unsafe without shard.Lock due to it mutates the list.
func (sh *Shard) lruOnInsertUnlocked(key uint64) {
	if el := sh.lidx[key]; el != nil {
		sh.lru.MoveToFront(el)
		return
	}
	sh.lidx[key] = sh.lru.PushFront(key)
}

// lruOnAccessUnlocked - is unsafe without shard.Lock due to it mutates the list.
func (sh *Shard) lruOnAccessUnlocked(key uint64) {
	if el := sh.lidx[key]; el != nil {
		sh.lru.MoveToFront(el)
	}
}

// lruOnDeleteUnlocked - is unsafe without shard.Lock due to it mutates the list.
func (sh *Shard) lruOnDeleteUnlocked(key uint64) {
	if el := sh.lidx[key]; el != nil {
		sh.lru.Remove(el)
		delete(sh.lidx, key)
	}
}

// lruPeekTail returns the least recently used entry of the shard.
func (sh *Shard) lruPeekTail() (key uint64, val *Entry, ok bool) {
	sh.Lock()
	defer sh.Unlock()
	el := sh.lru.Back()
	if el == nil {
		return 0, nil, false
	}
	k := el.Value.(uint64)
	v, ok := sh.items[k]
	if !ok {
		return 0, nil, false
	}
	return k, v, true
}

// lruKeys lists keys from the most to the least recently used. Test and debug helper.
func (sh *Shard) lruKeys() []uint64 {
	sh.Lock()
	defer sh.Unlock()
	keys := make([]uint64, 0, sh.lru.Len())
	for e := sh.lru.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(uint64))
	}
	return keys
}
