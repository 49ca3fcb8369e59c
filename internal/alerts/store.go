package alerts

import (
	"sync"

	"farm-alert-service/internal/models"
)

// Store is the in-memory alert store. It is owned by an Engine and injected
// at construction so independent instances never share state. All access
// goes through the Engine's documented operations.
type Store struct {
	mu     sync.Mutex
	alerts []models.Alert // insertion order, preserved for stable queries
	index  map[string]int // alert id -> position in alerts
}

// NewStore returns an empty alert store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

func (s *Store) append(a models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[a.ID] = len(s.alerts)
	s.alerts = append(s.alerts, a)
}

// get returns a copy of the alert and whether it exists.
func (s *Store) get(id string) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return models.Alert{}, false
	}
	return s.alerts[i], true
}

// update applies fn to the stored alert under the lock. It returns the
// updated copy, or false if the id is unknown.
func (s *Store) update(id string, fn func(*models.Alert) bool) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return models.Alert{}, false
	}
	if !fn(&s.alerts[i]) {
		return models.Alert{}, false
	}
	return s.alerts[i], true
}

// each calls fn for every stored alert, allowing in-place mutation. fn runs
// under the store lock and must not block.
func (s *Store) each(fn func(*models.Alert)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		fn(&s.alerts[i])
	}
}

// snapshot returns copies of all alerts matching keep, in insertion order.
func (s *Store) snapshot(keep func(models.Alert) bool) []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}
