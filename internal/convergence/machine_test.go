package convergence

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/winnow/internal/adapters/memory"
	"github.com/aretw0/winnow/internal/orchestrator"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/ports"
	"github.com/aretw0/winnow/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReasoner routes on the system instruction: item strategies get a
// JSON array, feedback strategies get a numbered list with a trailing
// question.
type scriptedReasoner struct {
	mu         sync.Mutex
	calls      int
	err        error
	itemsReply string
}

func (r *scriptedReasoner) Complete(_ context.Context, system, _ string, _ ports.SamplingParams) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	if strings.Contains(system, "JSON array") {
		if r.itemsReply != "" {
			return r.itemsReply, nil
		}
		return `["A garden the whole street plants together", "A seed library run out of the school", "A compost route for the neighborhood"]`, nil
	}
	return "1. Several directions circle the same community theme.\n" +
		"2. The outlier is the one about tracking weather data.\n\n" +
		"Which of these pulls at you most?", nil
}

func (r *scriptedReasoner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newHarness(t *testing.T) (*Machine, *memory.Store, *scriptedReasoner) {
	t.Helper()
	store := memory.New()
	reasoner := &scriptedReasoner{}
	orch := orchestrator.New(store, strategy.DefaultRegistry(), reasoner)
	return New(orch), store, reasoner
}

func seed(t *testing.T, store *memory.Store, projectID string, fields map[string]any) {
	t.Helper()
	base := map[string]any{"topic": "Neighborhood food project"}
	for k, v := range fields {
		base[k] = v
	}
	_, err := store.UpdatePartial(t.Context(), projectID, base)
	require.NoError(t, err)
}

func TestEnsureReflection_FiresExactlyOnce(t *testing.T) {
	m, store, reasoner := newHarness(t)
	seed(t, store, "p1", nil)

	first, err := m.EnsureReflection(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageChoose, first.Stage)
	assert.True(t, first.GuardFired(domain.GuardReflectToChoose))
	assert.Equal(t, 1, reasoner.callCount())

	// Re-evaluating the trigger is a no-op: no second call, no second entry.
	second, err := m.EnsureReflection(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageChoose, second.Stage)
	assert.Equal(t, 1, reasoner.callCount())

	state, err := store.Get(t.Context(), "p1")
	require.NoError(t, err)
	assert.Len(t, state.Conversation, 1)
	assert.Equal(t, domain.RoleCollaborator, state.Conversation[0].Role)
}

func TestEnsureReflection_FailureLeavesStageUnchanged(t *testing.T) {
	m, store, reasoner := newHarness(t)
	seed(t, store, "p1", nil)
	reasoner.err = errors.New("upstream down")

	_, err := m.EnsureReflection(t.Context(), "p1")
	require.Error(t, err)

	state, err := store.Get(t.Context(), "p1")
	require.NoError(t, err)
	sess := state.Session()
	assert.Equal(t, domain.StageReflect, sess.Stage)
	assert.False(t, sess.GuardFired(domain.GuardReflectToChoose))

	// The learner can resubmit once the gateway recovers.
	reasoner.err = nil
	recovered, err := m.EnsureReflection(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageChoose, recovered.Stage)
}

func TestChoose(t *testing.T) {
	m, store, _ := newHarness(t)
	seed(t, store, "p1", map[string]any{"convergence.stage": "choose"})

	t.Run("rejects empty selection", func(t *testing.T) {
		_, err := m.Choose(t.Context(), "p1", []string{"  ", ""})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("rejects more than the bound", func(t *testing.T) {
		_, err := m.Choose(t.Context(), "p1", []string{"a1", "a2", "a3", "a4"})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("dedupes and enters codesign at the first sub-phase", func(t *testing.T) {
		sess, err := m.Choose(t.Context(), "p1", []string{
			"A community garden",
			"a community garden.", // normalize-equal duplicate
			"A seed library",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageCoDesign, sess.Stage)
		assert.Equal(t, domain.PhaseRank, sess.SubPhase)
		assert.Equal(t, []string{"A community garden", "A seed library"}, sess.SelectedCandidates)
	})

	t.Run("rejects outside the choose stage", func(t *testing.T) {
		_, err := m.Choose(t.Context(), "p1", []string{"again"})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestConfirmPhase_WalksSubPhasesThenAdvances(t *testing.T) {
	m, store, reasoner := newHarness(t)
	seed(t, store, "p1", map[string]any{
		"convergence.stage":     "codesign",
		"convergence.sub_phase": "rank",
	})

	want := []domain.SubPhase{
		domain.PhaseVary, domain.PhaseConsolidate, domain.PhaseDetail,
		domain.PhaseRemix, domain.PhaseCommit,
	}
	for _, phase := range want {
		sess, err := m.ConfirmPhase(t.Context(), "p1")
		require.NoError(t, err)
		assert.Equal(t, domain.StageCoDesign, sess.Stage)
		assert.Equal(t, phase, sess.SubPhase)
	}

	// Confirming the final sub-phase leaves codesign.
	sess, err := m.ConfirmPhase(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageVariants, sess.Stage)
	assert.Empty(t, sess.SubPhase)

	// Sub-phase confirmation is learner-driven only.
	assert.Equal(t, 0, reasoner.callCount())
}

func TestConfirmDirection_SkipsRemainingSubPhases(t *testing.T) {
	m, store, _ := newHarness(t)
	seed(t, store, "p1", map[string]any{
		"convergence.stage":     "codesign",
		"convergence.sub_phase": "vary",
	})

	sess, err := m.ConfirmDirection(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageVariants, sess.Stage)
	assert.Empty(t, sess.SubPhase)
}

func TestRegenerateVariants(t *testing.T) {
	m, store, reasoner := newHarness(t)
	seed(t, store, "p1", map[string]any{
		"convergence.stage":               "variants",
		"convergence.selected_candidates": []any{"A community garden"},
		"convergence.idea_bank.ideas":     []any{"A garden the street shares"},
	})

	sess, err := m.RegenerateVariants(t.Context(), "p1")
	require.NoError(t, err)
	assert.Len(t, sess.Variants, 3)
	assert.Equal(t, 1, reasoner.callCount())

	// Regeneration never touches the bank.
	assert.Equal(t, []string{"A garden the street shares"}, sess.IdeaBank.Ideas)

	t.Run("empty generation keeps the previous list", func(t *testing.T) {
		reasoner.itemsReply = `[]`
		again, err := m.RegenerateVariants(t.Context(), "p1")
		require.NoError(t, err)
		assert.Equal(t, sess.Variants, again.Variants)
	})

	t.Run("failure keeps the previous list", func(t *testing.T) {
		reasoner.err = errors.New("upstream down")
		_, err := m.RegenerateVariants(t.Context(), "p1")
		require.Error(t, err)

		state, err := store.Get(t.Context(), "p1")
		require.NoError(t, err)
		assert.Equal(t, sess.Variants, state.Session().Variants)
	})
}

func TestIdeaBank_BoundDuplicatesAndRemoval(t *testing.T) {
	m, store, _ := newHarness(t)
	seed(t, store, "p1", map[string]any{"convergence.stage": "variants"})

	for _, idea := range []string{"First phrasing", "Second phrasing", "Third phrasing"} {
		_, err := m.AddIdea(t.Context(), "p1", idea)
		require.NoError(t, err)
	}

	// Over the bound and normalize-equal duplicates are silent no-ops.
	sess, err := m.AddIdea(t.Context(), "p1", "Fourth phrasing")
	require.NoError(t, err)
	assert.Len(t, sess.IdeaBank.Ideas, 3)

	sess, err = m.AddIdea(t.Context(), "p1", "  first PHRASING. ")
	require.NoError(t, err)
	assert.Len(t, sess.IdeaBank.Ideas, 3)

	// Removal frees a slot.
	sess, err = m.RemoveIdea(t.Context(), "p1", "second phrasing")
	require.NoError(t, err)
	assert.Equal(t, []string{"First phrasing", "Third phrasing"}, sess.IdeaBank.Ideas)

	sess, err = m.AddIdea(t.Context(), "p1", "Fourth phrasing")
	require.NoError(t, err)
	assert.True(t, sess.IdeaBank.Full())
}

func TestBeginSelection_RequiresFullBank(t *testing.T) {
	m, store, reasoner := newHarness(t)
	seed(t, store, "p1", map[string]any{
		"convergence.stage":           "variants",
		"convergence.idea_bank.ideas": []any{"First phrasing", "Second phrasing"},
	})

	_, err := m.BeginSelection(t.Context(), "p1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 0, reasoner.callCount())

	_, err = m.AddIdea(t.Context(), "p1", "Third phrasing")
	require.NoError(t, err)

	sess, err := m.BeginSelection(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageSelection, sess.Stage)

	// Exactly one comparison call, and it is recorded in the conversation.
	assert.Equal(t, 1, reasoner.callCount())
	state, err := store.Get(t.Context(), "p1")
	require.NoError(t, err)
	assert.Len(t, state.Conversation, 1)
}

func TestLock(t *testing.T) {
	m, store, _ := newHarness(t)
	seed(t, store, "p1", map[string]any{
		"convergence.stage":           "selection",
		"convergence.idea_bank.ideas": []any{"First phrasing", "Second phrasing", "Third phrasing"},
	})

	t.Run("pick must be banked", func(t *testing.T) {
		_, err := m.Lock(t.Context(), "p1", "Something never banked")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("locks and seeds the downstream feature atomically", func(t *testing.T) {
		sess, err := m.Lock(t.Context(), "p1", "second phrasing")
		require.NoError(t, err)
		assert.Equal(t, domain.StageLocked, sess.Stage)
		assert.Equal(t, "second phrasing", sess.LockedArtifact)

		state, err := store.Get(t.Context(), "p1")
		require.NoError(t, err)
		blueprint, ok := state.Features[DownstreamFeature]
		require.True(t, ok)
		assert.False(t, blueprint.Completed)
		assert.Empty(t, blueprint.Fields)
	})

	t.Run("locks at most once", func(t *testing.T) {
		_, err := m.Lock(t.Context(), "p1", "First phrasing")
		assert.ErrorIs(t, err, domain.ErrAlreadyLocked)
	})
}

func TestLock_DoesNotClobberDownstreamWork(t *testing.T) {
	m, store, _ := newHarness(t)
	seed(t, store, "p1", map[string]any{
		"convergence.stage":           "selection",
		"convergence.idea_bank.ideas": []any{"First phrasing", "Second phrasing", "Third phrasing"},
		"features." + DownstreamFeature: map[string]any{
			"fields":    map[string]any{"sketch": "already drafted"},
			"completed": false,
		},
	})

	_, err := m.Lock(t.Context(), "p1", "First phrasing")
	require.NoError(t, err)

	state, err := store.Get(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "already drafted", state.Features[DownstreamFeature].Fields["sketch"])
}

func TestReset_RearmsGuardsAndClearsSession(t *testing.T) {
	m, store, reasoner := newHarness(t)
	seed(t, store, "p1", nil)

	// Walk a full session to Locked.
	_, err := m.EnsureReflection(t.Context(), "p1")
	require.NoError(t, err)
	_, err = m.Choose(t.Context(), "p1", []string{"A community garden"})
	require.NoError(t, err)
	_, err = m.ConfirmDirection(t.Context(), "p1")
	require.NoError(t, err)
	for _, idea := range []string{"First phrasing", "Second phrasing", "Third phrasing"} {
		_, err = m.AddIdea(t.Context(), "p1", idea)
		require.NoError(t, err)
	}
	_, err = m.BeginSelection(t.Context(), "p1")
	require.NoError(t, err)
	_, err = m.Lock(t.Context(), "p1", "Third phrasing")
	require.NoError(t, err)
	callsBefore := reasoner.callCount()

	sess, err := m.Reset(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageReflect, sess.Stage)
	assert.Empty(t, sess.SubPhase)
	assert.Empty(t, sess.SelectedCandidates)
	assert.Empty(t, sess.IdeaBank.Ideas)
	assert.Empty(t, sess.Variants)
	assert.Empty(t, sess.LockedArtifact)
	assert.False(t, sess.GuardFired(domain.GuardReflectToChoose))

	state, err := store.Get(t.Context(), "p1")
	require.NoError(t, err)
	assert.Empty(t, state.Conversation)
	assert.Equal(t, callsBefore, reasoner.callCount())

	// The opening reflection can fire again after a reset.
	again, err := m.EnsureReflection(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageChoose, again.Stage)
	assert.Equal(t, callsBefore+1, reasoner.callCount())
}

func TestFollow_SkipsOwnWrites(t *testing.T) {
	m, store, _ := newHarness(t)
	seed(t, store, "p1", map[string]any{"convergence.stage": "variants"})

	var external int
	unsub, err := m.Follow(t.Context(), "p1", func(*domain.ProjectState) { external++ })
	require.NoError(t, err)
	defer unsub()

	// A write through the machine is observed but not surfaced back.
	_, err = m.AddIdea(t.Context(), "p1", "First phrasing")
	require.NoError(t, err)
	assert.Zero(t, external)

	// A write from elsewhere is.
	_, err = store.UpdatePartial(t.Context(), "p1", map[string]any{"topic": "changed"})
	require.NoError(t, err)
	assert.Equal(t, 1, external)
}
