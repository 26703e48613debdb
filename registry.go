package switchboard

import (
	"sort"
	"sync"
)

// Registry is a deterministic map of agent id to Agent with an optional
// designated default. Agents are added at construction time and live for the
// process lifetime.
type Registry struct {
	mu        sync.RWMutex
	agents    map[string]Agent
	defaultID string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Add registers an agent. A duplicate id is a configuration error.
func (r *Registry) Add(a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := a.ID()
	if _, ok := r.agents[id]; ok {
		return &ErrDuplicateAgent{ID: id}
	}
	r.agents[id] = a
	return nil
}

// Get returns the agent registered under id.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// SetDefault designates the agent used when selection reconciliation falls
// through to the default. The id must already be registered.
func (r *Registry) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return &ErrUnknownAgent{ID: id}
	}
	r.defaultID = id
	return nil
}

// Default returns the designated default agent, if any.
func (r *Registry) Default() (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultID == "" {
		return nil, false
	}
	a, ok := r.agents[r.defaultID]
	return a, ok
}

// List returns a copy of the id-to-agent map.
func (r *Registry) List() map[string]Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Agent, len(r.agents))
	for id, a := range r.agents {
		out[id] = a
	}
	return out
}

// Ordered returns the registered agents sorted by id. The classifier prompt
// is built from this so selection is deterministic across runs.
func (r *Registry) Ordered() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Agent, len(ids))
	for i, id := range ids {
		out[i] = r.agents[id]
	}
	return out
}
