// Package memory implements ports.ProjectStore in process memory, for tests
// and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/ports"
)

// Store is an in-memory ProjectStore. Safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	docs        map[string]map[string]any
	subscribers map[string]map[int64]ports.OnChange
	nextSub     int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		docs:        make(map[string]map[string]any),
		subscribers: make(map[string]map[int64]ports.OnChange),
	}
}

// Get retrieves a project.
func (s *Store) Get(ctx context.Context, projectID string) (*domain.ProjectState, error) {
	s.mu.Lock()
	doc, ok := s.docs[projectID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return domain.FromDocument(doc)
}

// UpdatePartial applies path-scoped writes, creating the project if needed.
func (s *Store) UpdatePartial(ctx context.Context, projectID string, fields map[string]any) (*domain.ProjectState, error) {
	s.mu.Lock()
	doc, ok := s.docs[projectID]
	if !ok {
		fresh, err := domain.ToDocument(domain.NewProjectState(projectID))
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		doc = fresh
		s.docs[projectID] = doc
	}

	if err := domain.ApplyFields(doc, fields); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	bumpRevision(doc)

	state, err := domain.FromDocument(doc)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	listeners := make([]ports.OnChange, 0, len(s.subscribers[projectID]))
	for _, fn := range s.subscribers[projectID] {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
	return state, nil
}

// Subscribe registers a change listener for one project.
func (s *Store) Subscribe(ctx context.Context, projectID string, fn ports.OnChange) (ports.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribers[projectID] == nil {
		s.subscribers[projectID] = make(map[int64]ports.OnChange)
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[projectID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers[projectID], id)
			s.mu.Unlock()
		})
	}, nil
}

// List returns all known project IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

func bumpRevision(doc map[string]any) {
	rev, _ := doc["revision"].(float64)
	doc["revision"] = rev + 1
	doc["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
}
