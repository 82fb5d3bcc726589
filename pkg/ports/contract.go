package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/winnow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProjectStoreContract runs a suite of tests to verify that a
// ProjectStore implementation adheres to the defined interface contract.
func RunProjectStoreContract(t *testing.T, store ProjectStore) {
	ctx := context.Background()
	projectID := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+projectID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("UpdatePartial Upserts", func(t *testing.T) {
		state, err := store.UpdatePartial(ctx, projectID, map[string]any{
			"topic": "urban heat islands",
		})
		require.NoError(t, err)
		assert.Equal(t, "urban heat islands", state.Topic)
		assert.Equal(t, projectID, state.ID)
		assert.Greater(t, state.Revision, int64(0))

		loaded, err := store.Get(ctx, projectID)
		require.NoError(t, err)
		assert.Equal(t, "urban heat islands", loaded.Topic)
	})

	t.Run("Partial Writes Preserve Siblings", func(t *testing.T) {
		_, err := store.UpdatePartial(ctx, projectID, map[string]any{
			"convergence.stage": string(domain.StageChoose),
		})
		require.NoError(t, err)

		state, err := store.UpdatePartial(ctx, projectID, map[string]any{
			"convergence.sub_phase": string(domain.PhaseRank),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StageChoose, state.Convergence.Stage)
		assert.Equal(t, domain.PhaseRank, state.Convergence.SubPhase)
		assert.Equal(t, "urban heat islands", state.Topic)
	})

	t.Run("Append Marker", func(t *testing.T) {
		entry := map[string]any{"role": "learner", "content": "first thought"}
		state, err := store.UpdatePartial(ctx, projectID, map[string]any{
			"conversation.+": entry,
		})
		require.NoError(t, err)
		require.Len(t, state.Conversation, 1)
		assert.Equal(t, "first thought", state.Conversation[0].Content)

		state, err = store.UpdatePartial(ctx, projectID, map[string]any{
			"conversation.+": map[string]any{"role": "collaborator", "content": "a reflection"},
		})
		require.NoError(t, err)
		require.Len(t, state.Conversation, 2)
	})

	t.Run("Revision Increases Monotonically", func(t *testing.T) {
		before, err := store.Get(ctx, projectID)
		require.NoError(t, err)

		after, err := store.UpdatePartial(ctx, projectID, map[string]any{"topic": "heat islands"})
		require.NoError(t, err)
		assert.Greater(t, after.Revision, before.Revision)
	})

	t.Run("Subscribe Receives Writes", func(t *testing.T) {
		var mu sync.Mutex
		var seen []int64

		unsubscribe, err := store.Subscribe(ctx, projectID, func(state *domain.ProjectState) {
			mu.Lock()
			seen = append(seen, state.Revision)
			mu.Unlock()
		})
		require.NoError(t, err)
		defer unsubscribe()

		written, err := store.UpdatePartial(ctx, projectID, map[string]any{"topic": "after subscribe"})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			for _, rev := range seen {
				if rev == written.Revision {
					return true
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond, "subscriber should observe the write")
	})

	t.Run("Unsubscribe Stops Delivery", func(t *testing.T) {
		var mu sync.Mutex
		count := 0

		unsubscribe, err := store.Subscribe(ctx, projectID, func(*domain.ProjectState) {
			mu.Lock()
			count++
			mu.Unlock()
		})
		require.NoError(t, err)
		unsubscribe()
		unsubscribe() // Safe to call twice.

		_, err = store.UpdatePartial(ctx, projectID, map[string]any{"topic": "after unsubscribe"})
		require.NoError(t, err)

		time.Sleep(100 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.Zero(t, count, "detached subscriber should see nothing")
	})

	t.Run("List", func(t *testing.T) {
		id2 := projectID + "-second"
		_, err := store.UpdatePartial(ctx, id2, map[string]any{"topic": "x"})
		require.NoError(t, err)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, projectID)
		assert.Contains(t, ids, id2)
	})
}
