package archive

import "sync"

// EventKind identifies what happened to the entries in an Event.
type EventKind string

const (
	EventLoaded   EventKind = "loaded"
	EventCreated  EventKind = "created"
	EventSaved    EventKind = "saved"
	EventReloaded EventKind = "reloaded"
	EventDeleted  EventKind = "deleted"
)

// Event is published after an archive operation changed what is stored or
// what callers hold in memory.
type Event struct {
	Kind EventKind
	Keys []string
}

// Notifier keeps the subscriber list of an archive. The zero value is ready
// to use.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// Subscribe registers fn and returns its cancel function.
func (n *Notifier) Subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(Event))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// Publish delivers ev to every subscriber synchronously. Subscribers may
// unsubscribe from inside the callback.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	subs := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
