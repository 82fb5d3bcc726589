// Package file implements ports.ProjectStore on the local filesystem,
// storing each project as a JSON document.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/ports"
)

// Store persists projects as JSON files under BasePath. Change fan-out is
// in-process only; a multi-replica deployment needs the redis store.
type Store struct {
	BasePath string

	mu          sync.Mutex
	subscribers map[string]map[int64]ports.OnChange
	nextSub     int64
}

// New creates a Store rooted at basePath, defaulting to ".winnow/projects".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".winnow", "projects")
	}
	return &Store{
		BasePath:    basePath,
		subscribers: make(map[string]map[int64]ports.OnChange),
	}
}

func (s *Store) path(projectID string) string {
	return filepath.Join(s.BasePath, projectID+".json")
}

// Get retrieves a project.
func (s *Store) Get(ctx context.Context, projectID string) (*domain.ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read(projectID)
	if err != nil {
		return nil, err
	}
	return domain.FromDocument(doc)
}

func (s *Store) read(projectID string) (map[string]any, error) {
	data, err := os.ReadFile(s.path(projectID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("read project: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	return doc, nil
}

// UpdatePartial applies path-scoped writes, creating the project if needed.
// The write is atomic: a temp file is written, synced, and renamed over the
// destination.
func (s *Store) UpdatePartial(ctx context.Context, projectID string, fields map[string]any) (*domain.ProjectState, error) {
	s.mu.Lock()

	doc, err := s.read(projectID)
	if errors.Is(err, domain.ErrProjectNotFound) {
		doc, err = domain.ToDocument(domain.NewProjectState(projectID))
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if err := domain.ApplyFields(doc, fields); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	rev, _ := doc["revision"].(float64)
	doc["revision"] = rev + 1
	doc["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.write(projectID, doc); err != nil {
		s.mu.Unlock()
		return nil, err
	}

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

func (s *Store) write(projectID string, doc map[string]any) error {
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("ensure project directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}

	// Temp file in the same directory so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(s.BasePath, "tmp-"+projectID+"-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(projectID)); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Subscribe registers an in-process change listener for one project.
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

// List returns the IDs of all stored projects.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
