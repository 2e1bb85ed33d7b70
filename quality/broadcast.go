package quality

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Broadcaster fans metrics snapshots out to independent subscribers.
//
// Listeners are invoked in registration order. The listener list is captured
// before each fan-out pass, so a subscription made during a pass does not
// join that pass, and an unsubscribed listener is never invoked again even
// when unsubscribed mid-pass.
type Broadcaster struct {
	mu      sync.Mutex
	nextID  uint64
	order   []uint64
	entries map[uint64]func(Metrics)
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		entries: make(map[uint64]func(Metrics)),
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing more than once is harmless.
func (b *Broadcaster) Subscribe(fn func(Metrics)) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.order = append(b.order, id)
	b.entries[id] = fn
	count := len(b.entries)
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Broadcaster.Subscribe",
		"listener_id": id,
		"listeners":   count,
	}).Debug("Metrics listener registered")

	return func() {
		b.mu.Lock()
		if _, ok := b.entries[id]; ok {
			delete(b.entries, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		}
		b.mu.Unlock()
	}
}

// Publish delivers the snapshot to every listener registered at the start
// of the pass. Listeners are invoked without holding the broadcaster lock;
// membership is re-checked per listener so mid-pass unsubscribes are
// honored.
func (b *Broadcaster) Publish(m Metrics) {
	b.mu.Lock()
	ids := make([]uint64, len(b.order))
	copy(ids, b.order)
	b.mu.Unlock()

	for _, id := range ids {
		b.mu.Lock()
		fn, ok := b.entries[id]
		b.mu.Unlock()
		if !ok {
			continue
		}
		fn(m)
	}
}

// Len reports the number of registered listeners.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
