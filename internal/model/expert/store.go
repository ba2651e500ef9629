package expert

import "sync"

// Store exposes expert lookup for the chat pipeline and HTTP handlers.
type Store interface {
	List() []Expert
	FindByID(id string) (Expert, bool)
}

// MemoryStore implements Store in memory. Experts created at runtime are added with Put.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	items map[string]Expert
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied experts.
func NewMemoryStore(items []Expert) *MemoryStore {
	s := &MemoryStore{items: make(map[string]Expert, len(items))}
	for _, item := range items {
		s.Put(item)
	}
	return s
}

// List returns experts in insertion order.
func (s *MemoryStore) List() []Expert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Expert, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// FindByID looks up an expert by identifier.
func (s *MemoryStore) FindByID(id string) (Expert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Put inserts or replaces an expert.
func (s *MemoryStore) Put(item Expert) {
	if item.ID == "" {
		return
	}
	if item.Namespace == "" {
		item.Namespace = item.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; !exists {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
}

// Remove drops an expert. It reports whether the expert existed.
func (s *MemoryStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}
