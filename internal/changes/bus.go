package changes

import (
	"sync"
	"sync/atomic"
)

// Bus delivers Flushed events to buffered subscriber channels.
//
// Offer never blocks: subscribers whose buffer is full miss the event. Close
// closes every subscription channel.
type Bus struct {
	mu        sync.RWMutex
	subs      map[uint64]chan Flushed
	nextID    atomic.Uint64
	isClosed  atomic.Bool
	closeOnce sync.Once
}

// NewBus returns an open bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Flushed)}
}

// Subscribe returns a channel buffered to buffer events and its unsubscribe
// function. Unsubscribing closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Flushed, func()) {
	ch := make(chan Flushed, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID.Add(1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// SubscriberCount returns the number of open subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Offer hands evt to every subscriber with buffer room and returns how many
// subscribers missed it.
func (b *Bus) Offer(evt Flushed) (dropped int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.isClosed.Load() {
		return len(b.subs)
	}
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			dropped++
		}
	}
	return dropped
}

// Close closes the bus and every subscription channel.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.isClosed.Store(true)
		b.mu.Lock()
		defer b.mu.Unlock()
		for id, ch := range b.subs {
			close(ch)
			delete(b.subs, id)
		}
	})
}
