/*
Package convergence drives the multi-stage narrowing of a learner's rough
candidate ideas into one locked artifact.

Stages move strictly forward (Reflect → Choose → CoDesign → Variants →
Selection → Locked) except through an explicit reset. Transitions backed by
the reasoning gateway advance only after a successful call; purely
learner-driven transitions never touch the gateway and cannot fail because
of it. One-shot guards live on the session itself so a reset can
deterministically re-arm them.
*/
package convergence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/winnow/internal/logging"
	"github.com/aretw0/winnow/internal/orchestrator"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/observability"
	"github.com/aretw0/winnow/pkg/ports"
	"github.com/aretw0/winnow/pkg/session"
	"github.com/aretw0/winnow/pkg/strategy"
)

// DownstreamFeature is the sibling feature namespace seeded when an
// artifact locks, so the next stage of the learner's workflow starts from a
// known empty state.
const DownstreamFeature = "blueprint"

// DefaultVariantCount is the size of a regenerated variant list.
const DefaultVariantCount = 3

// Machine owns convergence sessions. All mutating operations serialize on
// the shared per-project lock manager.
type Machine struct {
	orch      *orchestrator.Service
	store     ports.ProjectStore
	locks     *session.Manager
	normalize domain.Normalizer
	metrics   *observability.Metrics
	logger    *slog.Logger

	// lastSeen tracks the highest revision this process wrote or observed
	// per project, and writing marks writes in flight. Together they let
	// subscription callbacks skip self-updates whether the store delivers
	// them synchronously or over a broker.
	mu       sync.Mutex
	lastSeen map[string]int64
	writing  map[string]int
}

// Option configures the Machine.
type Option func(*Machine)

// WithLogger sets the machine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Machine) { m.metrics = metrics }
}

// WithNormalizer overrides the idea deduplication policy.
func WithNormalizer(n domain.Normalizer) Option {
	return func(m *Machine) { m.normalize = n }
}

// New creates a Machine sharing the orchestrator's store and locks.
func New(orch *orchestrator.Service, opts ...Option) *Machine {
	m := &Machine{
		orch:      orch,
		store:     orch.Store(),
		locks:     orch.Locks(),
		normalize: domain.NormalizeIdea,
		metrics:   observability.NewNopMetrics(),
		logger:    logging.NewNop(),
		lastSeen:  make(map[string]int64),
		writing:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns the project's convergence session, or a fresh one for a
// project that does not exist yet.
func (m *Machine) Session(ctx context.Context, projectID string) (*domain.ConvergenceSession, error) {
	state, err := m.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return state.Session(), nil
}

// EnsureReflection fires the automatic Reflect → Choose transition: one
// reasoning call covering the full candidate set, one reflection entry, one
// stage advance. The one-shot guard makes repeated evaluation a no-op, so
// the trigger can be re-checked freely without duplicating the reflection.
func (m *Machine) EnsureReflection(ctx context.Context, projectID string) (*domain.ConvergenceSession, error) {
	var result *domain.ConvergenceSession
	err := m.locks.WithLock(ctx, projectID, func(ctx context.Context) error {
		state, err := m.load(ctx, projectID)
		if err != nil {
			return err
		}
		sess := state.Session()

		if sess.GuardFired(domain.GuardReflectToChoose) || sess.Stage != domain.StageReflect {
			result = sess
			return nil
		}

		out, err := m.orch.Invoke(ctx, projectID,
			domain.ParseFocus(strategy.FocusReflect), domain.ActionReview, &strategy.ReflectPayload{})
		if err != nil {
			// Stage unchanged; the caller may resubmit.
			return err
		}

		fields := map[string]any{
			"convergence.stage": string(domain.StageChoose),
			"convergence.guards." + domain.GuardReflectToChoose: true,
		}
		if entry := orchestrator.NewCollaboratorEntry(out, strategy.FocusReflect); entry != nil {
			fields["conversation.+"] = entry
		}

		updated, err := m.apply(ctx, projectID, fields)
		if err != nil {
			return err
		}
		m.recordTransition(domain.StageReflect, domain.StageChoose)
		result = updated.Session()
		return nil
	})
	return result, err
}

// Choose records the learner's selected candidates and enters CoDesign.
// Purely learner-driven: no reasoning call is made.
func (m *Machine) Choose(ctx context.Context, projectID string, candidates []string) (*domain.ConvergenceSession, error) {
	cleaned := dedupe(candidates, m.normalize)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: choose requires at least one candidate", domain.ErrInvalidTransition)
	}
	if len(cleaned) > domain.MaxSelectedCandidates {
		return nil, fmt.Errorf("%w: choose accepts at most %d candidates",
			domain.ErrInvalidTransition, domain.MaxSelectedCandidates)
	}

	return m.transition(ctx, projectID, func(sess *domain.ConvergenceSession) (map[string]any, error) {
		if sess.Stage != domain.StageChoose {
			return nil, m.wrongStage(sess.Stage, domain.StageChoose)
		}
		m.recordTransition(domain.StageChoose, domain.StageCoDesign)
		return map[string]any{
			"convergence.stage":               string(domain.StageCoDesign),
			"convergence.sub_phase":           string(domain.PhaseRank),
			"convergence.selected_candidates": toAny(cleaned),
		}, nil
	})
}

// ConfirmPhase advances the CoDesign sub-phase; confirming the final
// sub-phase moves on to Variants.
func (m *Machine) ConfirmPhase(ctx context.Context, projectID string) (*domain.ConvergenceSession, error) {
	return m.transition(ctx, projectID, func(sess *domain.ConvergenceSession) (map[string]any, error) {
		if sess.Stage != domain.StageCoDesign {
			return nil, m.wrongStage(sess.Stage, domain.StageCoDesign)
		}
		next, ok := domain.NextPhase(sess.SubPhase)
		if !ok {
			m.recordTransition(domain.StageCoDesign, domain.StageVariants)
			return map[string]any{
				"convergence.stage":     string(domain.StageVariants),
				"convergence.sub_phase": nil,
			}, nil
		}
		return map[string]any{"convergence.sub_phase": string(next)}, nil
	})
}

// ConfirmDirection forces CoDesign → Variants from any sub-phase.
func (m *Machine) ConfirmDirection(ctx context.Context, projectID string) (*domain.ConvergenceSession, error) {
	return m.transition(ctx, projectID, func(sess *domain.ConvergenceSession) (map[string]any, error) {
		if sess.Stage != domain.StageCoDesign {
			return nil, m.wrongStage(sess.Stage, domain.StageCoDesign)
		}
		m.recordTransition(domain.StageCoDesign, domain.StageVariants)
		return map[string]any{
			"convergence.stage":     string(domain.StageVariants),
			"convergence.sub_phase": nil,
		}, nil
	})
}

// RegenerateVariants refreshes the transient candidate list without
// touching the IdeaBank. Not a stage transition: a failed or empty
// generation leaves the previous list in place.
func (m *Machine) RegenerateVariants(ctx context.Context, projectID string) (*domain.ConvergenceSession, error) {
	var result *domain.ConvergenceSession
	err := m.locks.WithLock(ctx, projectID, func(ctx context.Context) error {
		state, err := m.load(ctx, projectID)
		if err != nil {
			return err
		}
		sess := state.Session()
		if sess.Stage != domain.StageVariants {
			return m.wrongStage(sess.Stage, domain.StageVariants)
		}

		out, err := m.orch.Invoke(ctx, projectID,
			domain.ParseFocus(strategy.FocusVariants), domain.ActionGenerate, &strategy.VariantsPayload{
				Direction: strings.Join(sess.SelectedCandidates, "; "),
				Liked:     sess.IdeaBank.Ideas,
				Count:     DefaultVariantCount,
			})
		if err != nil {
			return err
		}
		if len(out.Items) == 0 {
			// Empty parse is a no-op, not an error.
			result = sess
			return nil
		}

		updated, err := m.apply(ctx, projectID, map[string]any{
			"convergence.variants": toAny(out.Items),
		})
		if err != nil {
			return err
		}
		result = updated.Session()
		return nil
	})
	return result, err
}

// AddIdea banks a liked variant or a manually entered string. Adds beyond
// the bound or normalize-equal duplicates are no-ops.
func (m *Machine) AddIdea(ctx context.Context, projectID, idea string) (*domain.ConvergenceSession, error) {
	return m.transition(ctx, projectID, func(sess *domain.ConvergenceSession) (map[string]any, error) {
		if sess.Stage != domain.StageVariants {
			return nil, m.wrongStage(sess.Stage, domain.StageVariants)
		}
		if !sess.IdeaBank.Add(idea, m.normalize) {
			return nil, nil // No-op, not an error.
		}
		return map[string]any{
			"convergence.idea_bank.ideas": toAny(sess.IdeaBank.Ideas),
		}, nil
	})
}

// RemoveIdea un-banks an idea, freeing a slot before the bound is reached
// again.
func (m *Machine) RemoveIdea(ctx context.Context, projectID, idea string) (*domain.ConvergenceSession, error) {
	return m.transition(ctx, projectID, func(sess *domain.ConvergenceSession) (map[string]any, error) {
		if sess.Stage != domain.StageVariants {
			return nil, m.wrongStage(sess.Stage, domain.StageVariants)
		}
		if !sess.IdeaBank.Remove(idea, m.normalize) {
			return nil, nil
		}
		return map[string]any{
			"convergence.idea_bank.ideas": toAny(sess.IdeaBank.Ideas),
		}, nil
	})
}

// BeginSelection moves Variants → Selection once the bank holds exactly its
// bound, issuing one reasoning call that presents all banked ideas for
// comparison. On failure the stage is unchanged and the learner may retry.
func (m *Machine) BeginSelection(ctx context.Context, projectID string) (*domain.ConvergenceSession, error) {
	var result *domain.ConvergenceSession
	err := m.locks.WithLock(ctx, projectID, func(ctx context.Context) error {
		state, err := m.load(ctx, projectID)
		if err != nil {
			return err
		}
		sess := state.Session()
		if sess.Stage != domain.StageVariants {
			return m.wrongStage(sess.Stage, domain.StageVariants)
		}
		if !sess.IdeaBank.Full() {
			return fmt.Errorf("%w: selection needs %d banked ideas, have %d",
				domain.ErrInvalidTransition, domain.IdeaBankCap, len(sess.IdeaBank.Ideas))
		}

		out, err := m.orch.Invoke(ctx, projectID,
			domain.ParseFocus(strategy.FocusSelection), domain.ActionReview,
			&strategy.SelectionPayload{Ideas: sess.IdeaBank.Ideas})
		if err != nil {
			return err
		}

		fields := map[string]any{
			"convergence.stage": string(domain.StageSelection),
		}
		if entry := orchestrator.NewCollaboratorEntry(out, strategy.FocusSelection); entry != nil {
			fields["conversation.+"] = entry
		}

		updated, err := m.apply(ctx, projectID, fields)
		if err != nil {
			return err
		}
		m.recordTransition(domain.StageVariants, domain.StageSelection)
		result = updated.Session()
		return nil
	})
	return result, err
}

// Lock records the learner's final pick and, atomically in the same write,
// seeds the downstream feature's initial empty state. A session locks at
// most once until an explicit reset.
func (m *Machine) Lock(ctx context.Context, projectID, idea string) (*domain.ConvergenceSession, error) {
	var result *domain.ConvergenceSession
	err := m.locks.WithLock(ctx, projectID, func(ctx context.Context) error {
		state, err := m.load(ctx, projectID)
		if err != nil {
			return err
		}
		sess := state.Session()
		if sess.LockedArtifact != "" {
			return domain.ErrAlreadyLocked
		}
		if sess.Stage != domain.StageSelection {
			return m.wrongStage(sess.Stage, domain.StageSelection)
		}
		if !sess.IdeaBank.Contains(idea, m.normalize) {
			return fmt.Errorf("%w: pick must be one of the banked ideas", domain.ErrInvalidTransition)
		}

		fields := map[string]any{
			"convergence.stage":           string(domain.StageLocked),
			"convergence.locked_artifact": strings.TrimSpace(idea),
		}
		// Seed the sibling namespace only on first lock so a learner's
		// later work there survives unrelated writes.
		if _, exists := state.Features[DownstreamFeature]; !exists {
			fields["features."+DownstreamFeature] = map[string]any{
				"fields":    map[string]any{},
				"completed": false,
			}
		}

		updated, err := m.apply(ctx, projectID, fields)
		if err != nil {
			return err
		}
		m.recordTransition(domain.StageSelection, domain.StageLocked)
		result = updated.Session()
		return nil
	})
	return result, err
}

// Reset clears the conversation, the bank, the selection, and the locked
// artifact, returns the stage to Reflect, and re-arms every one-shot guard.
// Allowed from any stage; never calls the gateway.
func (m *Machine) Reset(ctx context.Context, projectID string) (*domain.ConvergenceSession, error) {
	return m.transition(ctx, projectID, func(sess *domain.ConvergenceSession) (map[string]any, error) {
		m.recordTransition(sess.Stage, domain.StageReflect)
		return map[string]any{
			"conversation":                    []any{},
			"convergence.stage":               string(domain.StageReflect),
			"convergence.sub_phase":           nil,
			"convergence.selected_candidates": nil,
			"convergence.idea_bank.ideas":     nil,
			"convergence.variants":            nil,
			"convergence.locked_artifact":     nil,
			"convergence.guards":              map[string]any{},
		}, nil
	})
}

// Follow subscribes to the project's change feed, skipping revisions this
// process already wrote or observed so a self-update never re-triggers side
// effects. External changes are surfaced to fn.
func (m *Machine) Follow(ctx context.Context, projectID string, fn ports.OnChange) (ports.Unsubscribe, error) {
	return m.store.Subscribe(ctx, projectID, func(state *domain.ProjectState) {
		if m.isWriting(projectID) {
			m.advanceRevision(projectID, state.Revision)
			return
		}
		if !m.advanceRevision(projectID, state.Revision) {
			return
		}
		m.logger.Debug("external project change", "project_id", projectID, "revision", state.Revision)
		if fn != nil {
			fn(state)
		}
	})
}

// transition loads the session under lock, computes fields, and applies
// them. A nil field map means no-op: the current session is returned as-is.
func (m *Machine) transition(ctx context.Context, projectID string, compute func(*domain.ConvergenceSession) (map[string]any, error)) (*domain.ConvergenceSession, error) {
	var result *domain.ConvergenceSession
	err := m.locks.WithLock(ctx, projectID, func(ctx context.Context) error {
		state, err := m.load(ctx, projectID)
		if err != nil {
			return err
		}
		sess := state.Session()

		fields, err := compute(sess)
		if err != nil {
			return err
		}
		if fields == nil {
			result = sess
			return nil
		}

		updated, err := m.apply(ctx, projectID, fields)
		if err != nil {
			return err
		}
		result = updated.Session()
		return nil
	})
	return result, err
}

// load fetches the project, substituting a fresh unsaved state for a
// project that does not exist yet.
func (m *Machine) load(ctx context.Context, projectID string) (*domain.ProjectState, error) {
	state, err := m.store.Get(ctx, projectID)
	if errors.Is(err, domain.ErrProjectNotFound) {
		return domain.NewProjectState(projectID), nil
	}
	return state, err
}

func (m *Machine) apply(ctx context.Context, projectID string, fields map[string]any) (*domain.ProjectState, error) {
	m.mu.Lock()
	m.writing[projectID]++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.writing[projectID]--
		m.mu.Unlock()
	}()

	state, err := m.store.UpdatePartial(ctx, projectID, fields)
	if err != nil {
		return nil, err
	}
	m.advanceRevision(projectID, state.Revision)
	return state, nil
}

func (m *Machine) isWriting(projectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writing[projectID] > 0
}

// advanceRevision records the revision and reports whether it was new.
func (m *Machine) advanceRevision(projectID string, revision int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if revision <= m.lastSeen[projectID] {
		return false
	}
	m.lastSeen[projectID] = revision
	return true
}

func (m *Machine) recordTransition(from, to domain.Stage) {
	m.metrics.StageTransitions.WithLabelValues(string(from), string(to)).Inc()
	m.logger.Info("convergence transition", "from", string(from), "to", string(to))
}

func (m *Machine) wrongStage(got, want domain.Stage) error {
	return fmt.Errorf("%w: requires stage %q, session is at %q", domain.ErrInvalidTransition, want, got)
}

func dedupe(values []string, normalize domain.Normalizer) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := normalize(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
