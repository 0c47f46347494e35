package server

import (
	"sync"

	"github.com/wolfgangbures/HA-SPonlinePhotos/pkg/slideshow"
)

// Registry maps entry IDs to their slideshow services. An entry is
// added on setup and removed on unload; services are never shared
// across entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*slideshow.Service
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*slideshow.Service)}
}

// Add registers a service under its entry ID, replacing any previous
// registration.
func (r *Registry) Add(svc *slideshow.Service) {
	r.mu.Lock()
	r.entries[svc.EntryID()] = svc
	r.mu.Unlock()
}

// Remove drops the entry.
func (r *Registry) Remove(entryID string) {
	r.mu.Lock()
	delete(r.entries, entryID)
	r.mu.Unlock()
}

// Lookup resolves an entry ID.
func (r *Registry) Lookup(entryID string) (*slideshow.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.entries[entryID]
	return svc, ok
}

// EntryIDs returns the registered entry identifiers.
func (r *Registry) EntryIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}
