// README: Connection registry: the single source of truth for channel membership.
package realtime

import "sync"

// Conn is a live client connection. Send must never block; implementations
// drop the payload when the client cannot keep up.
type Conn interface {
	Send(payload []byte)
}

// Registry tracks which live connections are subscribed to which channels.
// Connections subscribe explicitly after authenticating; membership lives
// here and nowhere else.
type Registry struct {
	mu       sync.RWMutex
	channels map[Channel]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[Channel]map[Conn]struct{})}
}

func (r *Registry) Subscribe(ch Channel, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.channels[ch]
	if !ok {
		set = make(map[Conn]struct{})
		r.channels[ch] = set
	}
	set[c] = struct{}{}
}

func (r *Registry) Unsubscribe(ch Channel, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.channels[ch]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.channels, ch)
		}
	}
}

// Drop removes the connection from every channel (client disconnect).
func (r *Registry) Drop(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch, set := range r.channels {
		delete(set, c)
		if len(set) == 0 {
			delete(r.channels, ch)
		}
	}
}

// Connections snapshots the current members of a channel.
func (r *Registry) Connections(ch Channel) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.channels[ch]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
