package autosave

import (
	"testing"
	"time"

	"github.com/aretw0/winnow/internal/adapters/memory"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_DebouncesIntoOneWrite(t *testing.T) {
	store := memory.New()
	buf := New(store, WithDelay(30*time.Millisecond))

	// Rapid edits inside the window collapse; later overwrites win.
	buf.Queue("p1", map[string]any{"features.problem.fields.summary": "dra"})
	buf.Queue("p1", map[string]any{"features.problem.fields.summary": "draf"})
	buf.Queue("p1", map[string]any{"features.problem.fields.summary": "draft done"})

	require.Eventually(t, func() bool {
		state, err := store.Get(t.Context(), "p1")
		return err == nil && state.Features["problem"].Fields["summary"] == "draft done"
	}, time.Second, 5*time.Millisecond)

	// One debounced write means one revision bump.
	state, err := store.Get(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.Revision)
	assert.False(t, buf.Pending("p1"))
}

func TestBuffer_TimerRestartsOnEachEdit(t *testing.T) {
	store := memory.New()
	buf := New(store, WithDelay(50*time.Millisecond))

	buf.Queue("p1", map[string]any{"topic": "first"})
	time.Sleep(30 * time.Millisecond)
	buf.Queue("p1", map[string]any{"topic": "second"})
	time.Sleep(30 * time.Millisecond)

	// 60ms in, but never 50ms of quiet: nothing written yet.
	_, err := store.Get(t.Context(), "p1")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	require.Eventually(t, func() bool {
		state, err := store.Get(t.Context(), "p1")
		return err == nil && state.Topic == "second"
	}, time.Second, 5*time.Millisecond)
}

func TestBuffer_FlushWritesImmediately(t *testing.T) {
	store := memory.New()
	buf := New(store, WithDelay(time.Hour))

	buf.Queue("p1", map[string]any{"topic": "now"})
	require.NoError(t, buf.Flush(t.Context(), "p1"))

	state, err := store.Get(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "now", state.Topic)
	assert.False(t, buf.Pending("p1"))

	// Flushing with nothing pending is a no-op.
	require.NoError(t, buf.Flush(t.Context(), "p1"))
}

func TestBuffer_RepeatedAppendsAllSurvive(t *testing.T) {
	store := memory.New()
	buf := New(store, WithDelay(time.Hour))

	buf.Queue("p1", map[string]any{"conversation.+": map[string]any{"id": "a", "role": "learner", "content": "one"}})
	buf.Queue("p1", map[string]any{"conversation.+": map[string]any{"id": "b", "role": "learner", "content": "two"}})
	require.NoError(t, buf.Flush(t.Context(), "p1"))

	state, err := store.Get(t.Context(), "p1")
	require.NoError(t, err)
	require.Len(t, state.Conversation, 2)
	assert.Equal(t, "one", state.Conversation[0].Content)
	assert.Equal(t, "two", state.Conversation[1].Content)
}

func TestBuffer_CloseFlushesAndRejectsNewEdits(t *testing.T) {
	store := memory.New()
	buf := New(store, WithDelay(time.Hour))

	buf.Queue("p1", map[string]any{"topic": "kept"})
	buf.Queue("p2", map[string]any{"topic": "also kept"})
	require.NoError(t, buf.Close(t.Context()))

	for _, id := range []string{"p1", "p2"} {
		_, err := store.Get(t.Context(), id)
		require.NoError(t, err)
	}

	buf.Queue("p3", map[string]any{"topic": "dropped"})
	_, err := store.Get(t.Context(), "p3")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}
