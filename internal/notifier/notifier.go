// Package notifier wakes subscribers when a shared snapshot changes.
//
// Pings carry no payload: a subscriber that wakes re-reads the snapshot it
// cares about. Pings coalesce, so a slow reader sees at most one pending ping.
package notifier

import "sync"

// Notifier broadcasts change pings to all subscribers.
type Notifier struct {
	mu        sync.Mutex
	listeners map[chan struct{}]struct{}
	closed    bool
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan struct{}]struct{}),
	}
}

// Subscribe returns a ping channel and a cancel func that removes it.
// Subscribing to a closed Notifier returns an already closed channel.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		close(ch)
		return ch, func() {}
	}
	n.listeners[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { n.remove(ch) })
	}
}

// Broadcast pings every subscriber without blocking.
func (n *Notifier) Broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
			// a ping is already pending
		}
	}
}

// Close closes every subscriber channel. Later Broadcasts are no-ops.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for ch := range n.listeners {
		delete(n.listeners, ch)
		close(ch)
	}
}

// Len returns the number of active subscribers.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

func (n *Notifier) remove(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[ch]; ok {
		delete(n.listeners, ch)
		close(ch)
	}
}
