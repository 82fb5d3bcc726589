// Package redis implements ports.ProjectStore on Redis, with pub/sub
// backing the change subscription so every replica sees every write.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.ProjectStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration

	// mu serializes read-modify-write per process. Cross-process writers
	// resolve last-write-wins, as the persistence contract allows.
	mu sync.Mutex
}

type Option func(*Store)

// WithTTL sets the expiration for project documents.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for project documents.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "winnow:project:",
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(projectID string) string {
	return s.prefix + projectID
}

func (s *Store) channel(projectID string) string {
	return s.prefix + "changes:" + projectID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Get retrieves a project document.
func (s *Store) Get(ctx context.Context, projectID string) (*domain.ProjectState, error) {
	doc, err := s.read(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return domain.FromDocument(doc)
}

func (s *Store) read(ctx context.Context, projectID string) (map[string]any, error) {
	val, err := s.client.Get(ctx, s.key(projectID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return doc, nil
}

// UpdatePartial applies path-scoped writes, upserting the document, and
// publishes the result to the project's change channel.
func (s *Store) UpdatePartial(ctx context.Context, projectID string, fields map[string]any) (*domain.ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx, projectID)
	if err == domain.ErrProjectNotFound {
		doc, err = domain.ToDocument(domain.NewProjectState(projectID))
	}
	if err != nil {
		return nil, err
	}

	if err := domain.ApplyFields(doc, fields); err != nil {
		return nil, err
	}
	rev, _ := doc["revision"].(float64)
	doc["revision"] = rev + 1
	doc["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project: %w", err)
	}

	pipe := s.client.Pipeline()

	// 1. Save JSON with TTL (0 = no expiration).
	pipe.Set(ctx, s.key(projectID), data, s.ttl)

	// 2. Add to Index (ZSET). Score = Now + TTL, or far-future without TTL.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: projectID})

	// 3. Fan out the full document to subscribers.
	pipe.Publish(ctx, s.channel(projectID), data)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save to redis: %w", err)
	}

	return domain.FromDocument(doc)
}

// Subscribe listens on the project's pub/sub channel and invokes fn with
// each published document. The returned Unsubscribe closes the channel and
// stops the delivery goroutine.
func (s *Store) Subscribe(ctx context.Context, projectID string, fn ports.OnChange) (ports.Unsubscribe, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(projectID))

	// Wait for the subscription to be confirmed so writes after Subscribe
	// returns are guaranteed to be seen.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var doc map[string]any
			if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
				continue
			}
			state, err := domain.FromDocument(doc)
			if err != nil {
				continue
			}
			fn(state)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = pubsub.Close()
		})
	}, nil
}

// List returns active projects from the index, pruning expired entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired projects: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
