package sender

import "sync"

// Registry is the roster of connected senders, in connection order. Ids are
// unique. Reads are safe from any goroutine.
type Registry struct {
	mu      sync.RWMutex
	senders []Sender
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers s. It returns false, leaving the roster untouched, when a
// sender with the same id is already present.
func (r *Registry) Add(s Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(s.ID) >= 0 {
		return false
	}
	r.senders = append(r.senders, s)
	return true
}

// Remove unregisters the sender with the given id.
func (r *Registry) Remove(id string) (Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return Sender{}, false
	}
	s := r.senders[i]
	r.senders = append(r.senders[:i], r.senders[i+1:]...)
	return s, true
}

// Has reports whether id is connected.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(id) >= 0
}

// Len returns the number of connected senders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.senders)
}

// All returns a copy of the roster.
func (r *Registry) All() []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Sender(nil), r.senders...)
}

// Clear drops every sender and returns what was connected.
func (r *Registry) Clear() []Sender {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.senders
	r.senders = nil
	return out
}

// AllSupport reports whether every connected sender supports c. It is false
// for an empty roster.
func (r *Registry) AllSupport(c Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.senders) == 0 {
		return false
	}
	for _, s := range r.senders {
		if !s.Supports(c) {
			return false
		}
	}
	return true
}

// AnyLacks reports whether at least one connected sender does not support c.
func (r *Registry) AnyLacks(c Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.senders {
		if !s.Supports(c) {
			return true
		}
	}
	return false
}

func (r *Registry) indexLocked(id string) int {
	for i, s := range r.senders {
		if s.ID == id {
			return i
		}
	}
	return -1
}
