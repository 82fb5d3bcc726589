package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManager_SerializesPerProject(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	active := 0
	maxActive := 0
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithLock(ctx, "project-1", func(context.Context) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "critical sections must not overlap")
}

func TestManager_IndependentProjectsDoNotBlock(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = m.WithLock(ctx, "project-a", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held
	done := make(chan struct{})
	go func() {
		_ = m.WithLock(ctx, "project-b", func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on project-a blocked project-b")
	}
	close(release)
}

func TestManager_EntriesAreCollected(t *testing.T) {
	m := NewManager()
	_ = m.WithLock(context.Background(), "p", func(context.Context) error { return nil })

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks, "released entries should be garbage collected")
}
