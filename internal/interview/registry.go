package interview

import (
	"sync"
)

// Registry indexes live interviews by ID
type Registry struct {
	mu         sync.RWMutex
	interviews map[string]*Interview
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{interviews: make(map[string]*Interview)}
}

// Add registers i; it returns false when the ID is taken
func (r *Registry) Add(i *Interview) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.interviews[i.ID()]; exists {
		return false
	}
	r.interviews[i.ID()] = i
	return true
}

// Get looks up an interview
func (r *Registry) Get(id string) (*Interview, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.interviews[id]
	return i, ok
}

// Remove forgets i if it is still the one registered under its ID
func (r *Registry) Remove(i *Interview) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interviews[i.ID()] == i {
		delete(r.interviews, i.ID())
	}
}

// Count returns the number of live interviews
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.interviews)
}
