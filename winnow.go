// Package winnow is the high-level entry point for the Winnow library.
// It wires the persistence backend, the reasoning gateway, the collaboration
// orchestrator, and the convergence machine from one configuration.
package winnow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/winnow/internal/adapters/file"
	"github.com/aretw0/winnow/internal/adapters/memory"
	"github.com/aretw0/winnow/internal/adapters/redis"
	"github.com/aretw0/winnow/internal/autosave"
	"github.com/aretw0/winnow/internal/config"
	"github.com/aretw0/winnow/internal/convergence"
	"github.com/aretw0/winnow/internal/interpreter"
	"github.com/aretw0/winnow/internal/logging"
	"github.com/aretw0/winnow/internal/orchestrator"
	"github.com/aretw0/winnow/internal/reasoning"
	"github.com/aretw0/winnow/pkg/observability"
	"github.com/aretw0/winnow/pkg/ports"
	"github.com/aretw0/winnow/pkg/strategy"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the library version reported by the CLI and the MCP server.
var Version = "0.3.0"

// Service bundles the wired core: store, orchestrator, convergence machine,
// and autosave buffer, sharing one logger and one metrics registry.
type Service struct {
	cfg      *config.Config
	store    ports.ProjectStore
	reasoner ports.Reasoner
	orch     *orchestrator.Service
	machine  *convergence.Machine
	saves    *autosave.Buffer
	logger   *slog.Logger
	registry *prometheus.Registry

	closers []func() error
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithStore injects a custom ProjectStore, bypassing the configured backend.
func WithStore(store ports.ProjectStore) Option {
	return func(s *Service) { s.store = store }
}

// WithReasoner injects a custom Reasoner, bypassing the HTTP gateway client.
func WithReasoner(r ports.Reasoner) Option {
	return func(s *Service) { s.reasoner = r }
}

// New wires a Service from configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		level := parseLevel(cfg.Logging.Level)
		if cfg.Logging.Format == "json" {
			s.logger = logging.NewJSON(level)
		} else {
			s.logger = logging.New(level)
		}
	}

	if s.store == nil {
		store, err := s.openStore()
		if err != nil {
			return nil, err
		}
		s.store = store
	}

	if s.reasoner == nil {
		client, err := reasoning.NewClient(
			cfg.Reasoning.BaseURL, cfg.Reasoning.APIKey, cfg.Reasoning.Model,
			reasoning.WithHTTPClient(&http.Client{Timeout: cfg.Reasoning.Timeout}),
			reasoning.WithLogger(s.logger),
		)
		if err != nil {
			return nil, err
		}
		s.reasoner = client
	}

	metrics := observability.NewMetrics(s.registry)

	interpOpts := []interpreter.Option{interpreter.WithLogger(s.logger)}
	if cfg.Filter.LexiconPath != "" {
		filter, err := interpreter.NewFilterFromFile(cfg.Filter.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load filter lexicon: %w", err)
		}
		interpOpts = append(interpOpts, interpreter.WithFilter(filter))
	}

	s.orch = orchestrator.New(s.store, strategy.DefaultRegistry(), s.reasoner,
		orchestrator.WithLogger(s.logger),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithInterpreter(interpreter.New(interpOpts...)),
	)
	s.machine = convergence.New(s.orch,
		convergence.WithLogger(s.logger),
		convergence.WithMetrics(metrics),
	)
	s.saves = autosave.New(s.store,
		autosave.WithDelay(cfg.Autosave.Delay),
		autosave.WithLogger(s.logger),
		autosave.WithMetrics(metrics),
	)
	return s, nil
}

func (s *Service) openStore() (ports.ProjectStore, error) {
	store, closer, err := NewStore(s.cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	return store, nil
}

// NewStore opens just the configured persistence backend. The returned
// closer is nil for backends without resources to release.
func NewStore(cfg *config.Config) (ports.ProjectStore, func() error, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memory.New(), nil, nil
	case "file":
		return file.New(cfg.Store.File.Dir), nil, nil
	case "redis":
		store := redis.New(
			cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB,
			redis.WithTTL(cfg.Store.Redis.TTL),
		)
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Orchestrator returns the collaboration pipeline.
func (s *Service) Orchestrator() *orchestrator.Service { return s.orch }

// Machine returns the convergence state machine.
func (s *Service) Machine() *convergence.Machine { return s.machine }

// Autosave returns the debounced write buffer.
func (s *Service) Autosave() *autosave.Buffer { return s.saves }

// Store returns the project store.
func (s *Service) Store() ports.ProjectStore { return s.store }

// Logger returns the service logger.
func (s *Service) Logger() *slog.Logger { return s.logger }

// Gatherer returns the metrics registry for the /metrics endpoint.
func (s *Service) Gatherer() prometheus.Gatherer { return s.registry }

// Close flushes pending autosaves and releases backend resources.
func (s *Service) Close(ctx context.Context) error {
	err := s.saves.Close(ctx)
	for _, closer := range s.closers {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
