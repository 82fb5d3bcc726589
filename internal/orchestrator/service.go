/*
Package orchestrator composes the per-request pipeline: accumulate context,
resolve the strategy, call the reasoning service, interpret the response,
and record the exchange in the project's conversation.

Only configuration, rate-limit, authorization, and strategy-lookup failures
propagate to callers; every content-quality problem is recovered inside the
interpreter so the learner always receives usable output.
*/
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/winnow/internal/focus"
	"github.com/aretw0/winnow/internal/interpreter"
	"github.com/aretw0/winnow/internal/logging"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/observability"
	"github.com/aretw0/winnow/pkg/ports"
	"github.com/aretw0/winnow/pkg/session"
	"github.com/aretw0/winnow/pkg/strategy"
	"github.com/google/uuid"
)

// Request is one collaboration intent from the client.
type Request struct {
	ProjectID string
	Focus     domain.Focus
	Action    domain.Action
	Payload   map[string]any
}

// Result is the structured outcome handed back to the client.
type Result struct {
	Feedback         []string
	FollowUpQuestion string
	GeneratedItems   []string
}

// Service wires the collaboration pipeline.
type Service struct {
	store       ports.ProjectStore
	accumulator *focus.Accumulator
	registry    *strategy.Registry
	reasoner    ports.Reasoner
	interpreter *interpreter.Interpreter
	locks       *session.Manager
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithInterpreter substitutes the response interpreter.
func WithInterpreter(i *interpreter.Interpreter) Option {
	return func(s *Service) { s.interpreter = i }
}

// WithLocks shares a session lock manager with other components.
func WithLocks(locks *session.Manager) Option {
	return func(s *Service) { s.locks = locks }
}

// New creates the orchestrator over its collaborators.
func New(store ports.ProjectStore, registry *strategy.Registry, reasoner ports.Reasoner, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		reasoner: reasoner,
		locks:    session.NewManager(),
		metrics:  observability.NewNopMetrics(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.accumulator = focus.NewAccumulator(store, s.logger)
	if s.interpreter == nil {
		s.interpreter = interpreter.New(interpreter.WithLogger(s.logger))
	}
	return s
}

// Locks exposes the per-project lock manager so the convergence machine can
// share it.
func (s *Service) Locks() *session.Manager {
	return s.locks
}

// Store exposes the underlying project store.
func (s *Service) Store() ports.ProjectStore {
	return s.store
}

// Collaborate runs the full pipeline for one client request and appends the
// exchange to the project conversation. The per-project lock keeps one
// reasoning call in flight per learner action.
func (s *Service) Collaborate(ctx context.Context, req Request) (*Result, error) {
	var result *Result
	err := s.locks.WithLock(ctx, req.ProjectID, func(ctx context.Context) error {
		out, err := s.Invoke(ctx, req.ProjectID, req.Focus, req.Action, req.Payload)
		if err != nil {
			return err
		}

		s.appendExchange(ctx, req, out)

		result = &Result{
			Feedback:         out.Feedback,
			FollowUpQuestion: out.FollowUpQuestion,
			GeneratedItems:   out.Items,
		}
		return nil
	})
	return result, err
}

// Invoke runs accumulate → lookup → prompt → complete → interpret without
// touching persistence. The convergence machine builds on it so transition
// writes stay atomic with its own stage changes.
func (s *Service) Invoke(ctx context.Context, projectID string, f domain.Focus, action domain.Action, payload any) (interpreter.Interpretation, error) {
	var zero interpreter.Interpretation

	desc, err := s.registry.Lookup(f)
	if err != nil {
		return zero, err
	}

	decoded := payload
	if raw, ok := payload.(map[string]any); ok || payload == nil {
		decoded, err = desc.DecodePayload(raw)
		if err != nil {
			// A malformed payload is a content problem, not a failure:
			// proceed with the zero variant.
			s.logger.Warn("payload decode failed, proceeding without it",
				"focus", f.Key(), "err", err)
			decoded, _ = desc.DecodePayload(nil)
		}
	}

	fc, err := s.accumulator.Build(ctx, projectID, f, action, decoded)
	if err != nil {
		return zero, err
	}
	if fc.Degraded {
		s.logger.Debug("collaborating on degraded context", "project_id", projectID)
	}

	prompt := desc.BuildPrompt(fc)

	started := time.Now()
	raw, err := s.reasoner.Complete(ctx, desc.SystemInstruction, prompt, desc.Sampling)
	s.metrics.ReasoningDuration.WithLabelValues(f.Key()).Observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.ReasoningRequests.WithLabelValues(f.Key(), outcomeLabel(err)).Inc()
		s.logger.Warn("reasoning call failed", "focus", f.Key(), "err", err)
		return zero, err
	}
	s.metrics.ReasoningRequests.WithLabelValues(f.Key(), "ok").Inc()

	out := s.interpreter.Interpret(raw, desc.OutputMode, fc.Topic)
	if out.Substituted {
		s.metrics.FilterSubstituted.WithLabelValues(string(desc.OutputMode)).Inc()
	}
	return out, nil
}

// appendExchange records the collaborator's side of the exchange. A write
// failure is logged and swallowed: the learner already has the output, and
// the next successful write self-corrects the document.
func (s *Service) appendExchange(ctx context.Context, req Request, out interpreter.Interpretation) {
	entry := NewCollaboratorEntry(out, req.Focus.Key())
	if entry == nil {
		return
	}
	if _, err := s.store.UpdatePartial(ctx, req.ProjectID, map[string]any{
		"conversation.+": entry,
	}); err != nil {
		s.metrics.WriteFailures.Inc()
		s.logger.Warn("conversation append failed", "project_id", req.ProjectID, "err", err)
	}
}

// NewCollaboratorEntry renders an interpretation as one conversation entry
// document, or nil when there is nothing worth recording.
func NewCollaboratorEntry(out interpreter.Interpretation, stageTag string) map[string]any {
	var parts []string
	if len(out.Feedback) > 0 {
		parts = append(parts, strings.Join(out.Feedback, "\n"))
	}
	if len(out.Items) > 0 {
		parts = append(parts, strings.Join(out.Items, "\n"))
	}
	if out.FollowUpQuestion != "" {
		parts = append(parts, out.FollowUpQuestion)
	}
	if len(parts) == 0 {
		return nil
	}
	return map[string]any{
		"id":        uuid.NewString(),
		"role":      string(domain.RoleCollaborator),
		"content":   strings.Join(parts, "\n\n"),
		"stage_tag": stageTag,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

// Describe reports the focus keys the service can route, for diagnostics.
func (s *Service) Describe() string {
	return fmt.Sprintf("winnow orchestrator: %v", s.registry.Keys())
}
