package focus

import (
	"testing"

	"github.com/aretw0/winnow/internal/adapters/memory"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_DegradesWhenProjectMissing(t *testing.T) {
	acc := NewAccumulator(memory.New(), nil)

	fc, err := acc.Build(t.Context(), "ghost", domain.ParseFocus("problem"), domain.ActionReview, nil)
	require.NoError(t, err)
	assert.True(t, fc.Degraded)
	assert.Empty(t, fc.Topic)
	assert.Empty(t, fc.FeatureData)
}

func TestBuild_MergesCompletedFeaturesOnly(t *testing.T) {
	store := memory.New()
	_, err := store.UpdatePartial(t.Context(), "p1", map[string]any{
		"topic": "School garden",
		"features.problem": map[string]any{
			"fields":    map[string]any{"summary": "Canteen opens late"},
			"completed": true,
		},
		"features.audience": map[string]any{
			"fields":    map[string]any{"personas": []any{"commuting students"}},
			"completed": false,
		},
	})
	require.NoError(t, err)

	acc := NewAccumulator(store, nil)
	fc, err := acc.Build(t.Context(), "p1", domain.ParseFocus("problem"), domain.ActionReview, nil)
	require.NoError(t, err)

	assert.False(t, fc.Degraded)
	assert.Equal(t, "School garden", fc.Topic)
	assert.Equal(t, "Canteen opens late", fc.FeatureField("problem", "summary"))

	// Incomplete features stay out of the context.
	_, present := fc.FeatureData["audience"]
	assert.False(t, present)
}

func TestBuild_IdeasFeatureMergedEvenWhenIncomplete(t *testing.T) {
	store := memory.New()
	_, err := store.UpdatePartial(t.Context(), "p1", map[string]any{
		"features.ideas": map[string]any{
			"fields":    map[string]any{"entries": []any{"a fridge", "a garden"}},
			"completed": false,
		},
	})
	require.NoError(t, err)

	acc := NewAccumulator(store, nil)
	fc, err := acc.Build(t.Context(), "p1", domain.ParseFocus("convergence:reflect"), domain.ActionReview, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a fridge", "a garden"}, fc.FeatureList("ideas", "entries"))
}
