package server

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// ErrUnknownTarget is returned for a widget id the store does not know.
var ErrUnknownTarget = errors.New("unknown target")

// Model is the server-side state of one widget.
type Model struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Properties map[string]any `json:"properties"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (m *Model) clone() *Model {
	c := *m
	c.Properties = maps.Clone(m.Properties)
	return &c
}

type Store struct {
	mu     sync.RWMutex
	models map[string]*Model
}

func NewStore() *Store {
	return &Store{
		models: make(map[string]*Model),
	}
}

func (s *Store) Get(id string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	if !ok {
		return nil, false
	}
	return m.clone(), true
}

// GetAll returns copies of all models ordered by id.
func (s *Store) GetAll() []*Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Model, 0, len(s.models))
	for _, m := range s.models {
		result = append(result, m.clone())
	}
	slices.SortFunc(result, func(a, b *Model) int { return strings.Compare(a.ID, b.ID) })
	return result
}

// Put adds or replaces a model.
func (s *Store) Put(m *Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := m.clone()
	if c.Properties == nil {
		c.Properties = make(map[string]any)
	}
	c.UpdatedAt = time.Now()
	s.models[m.ID] = c
}

// SetProperty changes one property of an existing model.
func (s *Store) SetProperty(id, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[id]
	if !ok {
		return ErrUnknownTarget
	}
	m.Properties[name] = value
	m.UpdatedAt = time.Now()
	return nil
}

// Update runs fn on the model with the given id under the store lock.
func (s *Store) Update(id string, fn func(m *Model)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[id]
	if !ok {
		return ErrUnknownTarget
	}
	fn(m)
	m.UpdatedAt = time.Now()
	return nil
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.models, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}
