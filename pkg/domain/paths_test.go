package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFields_NestedWrite(t *testing.T) {
	doc := map[string]any{
		"topic": "clean water access",
		"convergence": map[string]any{
			"stage":    "choose",
			"idea_bank": map[string]any{"ideas": []any{"a"}},
		},
	}

	err := ApplyFields(doc, map[string]any{
		"convergence.stage":     "codesign",
		"convergence.sub_phase": "rank",
	})
	require.NoError(t, err)

	conv := doc["convergence"].(map[string]any)
	assert.Equal(t, "codesign", conv["stage"])
	assert.Equal(t, "rank", conv["sub_phase"])
	// Sibling fields survive the partial write.
	assert.Equal(t, "clean water access", doc["topic"])
	assert.NotNil(t, conv["idea_bank"])
}

func TestApplyFields_CreatesIntermediateObjects(t *testing.T) {
	doc := map[string]any{}
	err := ApplyFields(doc, map[string]any{"features.blueprint.completed": false})
	require.NoError(t, err)

	features := doc["features"].(map[string]any)
	blueprint := features["blueprint"].(map[string]any)
	assert.Equal(t, false, blueprint["completed"])
}

func TestApplyFields_Append(t *testing.T) {
	doc := map[string]any{"conversation": []any{"first"}}
	err := ApplyFields(doc, map[string]any{"conversation.+": "second"})
	require.NoError(t, err)
	assert.Equal(t, []any{"first", "second"}, doc["conversation"])

	// Appending to a missing array creates it.
	err = ApplyFields(doc, map[string]any{"notes.+": "n1"})
	require.NoError(t, err)
	assert.Equal(t, []any{"n1"}, doc["notes"])
}

func TestApplyFields_NilDeletes(t *testing.T) {
	doc := map[string]any{"convergence": map[string]any{"locked_artifact": "x", "stage": "locked"}}
	err := ApplyFields(doc, map[string]any{"convergence.locked_artifact": nil})
	require.NoError(t, err)

	conv := doc["convergence"].(map[string]any)
	_, exists := conv["locked_artifact"]
	assert.False(t, exists)
	assert.Equal(t, "locked", conv["stage"])
}

func TestApplyFields_RejectsScalarTraversal(t *testing.T) {
	doc := map[string]any{"topic": "water"}
	err := ApplyFields(doc, map[string]any{"topic.nested": "boom"})
	assert.Error(t, err)
}

func TestDocumentRoundTrip(t *testing.T) {
	state := NewProjectState("p1")
	state.Topic = "food deserts"
	state.Session().Stage = StageVariants
	state.Session().IdeaBank.Add("mobile market", nil)

	doc, err := ToDocument(state)
	require.NoError(t, err)

	err = ApplyFields(doc, map[string]any{"convergence.stage": string(StageSelection)})
	require.NoError(t, err)

	back, err := FromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, StageSelection, back.Convergence.Stage)
	assert.Equal(t, []string{"mobile market"}, back.Convergence.IdeaBank.Ideas)
	assert.Equal(t, "food deserts", back.Topic)
}
