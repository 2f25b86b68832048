package scenario

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/dewater/dewater"
)

// ErrNotFound is returned when a scenario ID is unknown
var ErrNotFound = errors.New("scenario not found")

// ErrExists is returned when adding a scenario whose ID is taken
var ErrExists = errors.New("scenario already exists")

// Store manages scenario persistence and retrieval
type Store interface {
	// Add a new scenario
	Add(s *Scenario) error

	// Get a scenario by ID
	Get(id string) (*Scenario, error)

	// List all scenarios, newest first
	List() ([]*Scenario, error)

	// Update an existing scenario
	Update(s *Scenario) error

	// Delete a scenario
	Delete(id string) error

	// Ping reports whether the backing storage is reachable
	Ping() error
}

// InMemoryStore implements Store using an in-memory map.
// Thread-safe with RWMutex.
type InMemoryStore struct {
	scenarios map[string]*Scenario
	mu        sync.RWMutex
}

// NewInMemoryStore creates a new in-memory scenario store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		scenarios: make(map[string]*Scenario),
	}
}

// Add adds a new scenario and stamps CreatedAt and UpdatedAt
func (s *InMemoryStore) Add(sc *Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scenarios[sc.ID]; exists {
		return fmt.Errorf("scenario %s: %w", sc.ID, ErrExists)
	}

	now := time.Now()
	sc.CreatedAt = now
	sc.UpdatedAt = now
	s.scenarios[sc.ID] = clone(sc)
	return nil
}

// Get retrieves a scenario by ID
func (s *InMemoryStore) Get(id string) (*Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, exists := s.scenarios[id]
	if !exists {
		return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}
	return clone(sc), nil
}

// List returns all scenarios, newest first
func (s *InMemoryStore) List() ([]*Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Scenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		list = append(list, clone(sc))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// Update replaces an existing scenario, preserving CreatedAt
func (s *InMemoryStore) Update(sc *Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.scenarios[sc.ID]
	if !exists {
		return fmt.Errorf("scenario %s: %w", sc.ID, ErrNotFound)
	}

	sc.CreatedAt = existing.CreatedAt
	sc.UpdatedAt = time.Now()
	s.scenarios[sc.ID] = clone(sc)
	return nil
}

// Delete removes a scenario from the store
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scenarios[id]; !exists {
		return fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}

	delete(s.scenarios, id)
	return nil
}

// Ping always succeeds for the in-memory store
func (s *InMemoryStore) Ping() error {
	return nil
}

// clone copies a scenario so callers cannot mutate stored state
func clone(sc *Scenario) *Scenario {
	c := *sc
	c.Wells = append([]dewater.Well(nil), sc.Wells...)
	if sc.TargetElevation != nil {
		t := *sc.TargetElevation
		c.TargetElevation = &t
	}
	return &c
}
