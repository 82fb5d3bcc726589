package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/winnow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStore_Contract(t *testing.T) {
	ports.RunProjectStoreContract(t, newTestStore(t))
}

func TestRedisStore_PrefixOption(t *testing.T) {
	store := newTestStore(t, WithPrefix("custom:"))
	assert.Equal(t, "custom:p1", store.key("p1"))
	assert.Equal(t, "custom:changes:p1", store.channel("p1"))
}

func TestRedisStore_TTLOption(t *testing.T) {
	store := newTestStore(t, WithTTL(time.Hour))

	_, err := store.UpdatePartial(t.Context(), "ttl-project", map[string]any{"topic": "x"})
	require.NoError(t, err)

	// Document readable until the TTL lapses.
	_, err = store.Get(t.Context(), "ttl-project")
	require.NoError(t, err)
}
