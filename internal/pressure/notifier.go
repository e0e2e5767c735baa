package pressure

import (
	"sync"
	"sync/atomic"
)

// Notifier is a process-wide memory-pressure signal. Tiers holding reclaimable memory
// subscribe at construction and unsubscribe at teardown.
type Notifier struct {
	mu      sync.RWMutex
	subs    map[uint64]func()
	nextID  uint64
	signals atomic.Int64
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[uint64]func())}
}

// Subscribe registers fn and returns a func removing it. The returned func is idempotent.
func (n *Notifier) Subscribe(fn func()) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Notify synchronously calls every subscriber.
func (n *Notifier) Notify() {
	n.signals.Add(1)

	n.mu.RLock()
	subs := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.RUnlock()

	for _, fn := range subs {
		fn()
	}
}

func (n *Notifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

func (n *Notifier) Signals() int64 { return n.signals.Load() }
