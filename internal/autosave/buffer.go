/*
Package autosave coalesces rapid field edits into debounced partial writes.

Each queued edit restarts the project's timer; only after the learner pauses
does one write carry the accumulated fields. Overwrites of the same path
collapse to the latest value, appends are kept in order. Background flush
failures are logged and counted, never surfaced: the learner keeps typing
and the next successful write carries the fields again.
*/
package autosave

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/winnow/internal/logging"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/observability"
	"github.com/aretw0/winnow/pkg/ports"
)

// DefaultDelay is how long a project must stay quiet before its pending
// fields are written.
const DefaultDelay = 800 * time.Millisecond

// DefaultFlushTimeout bounds a background flush triggered by the timer.
const DefaultFlushTimeout = 5 * time.Second

// Buffer debounces partial writes per project.
type Buffer struct {
	store        ports.ProjectStore
	delay        time.Duration
	flushTimeout time.Duration
	metrics      *observability.Metrics
	logger       *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingWrite
	closed  bool
}

type pendingWrite struct {
	overwrites map[string]any
	appends    []queuedAppend
	timer      *time.Timer
}

type queuedAppend struct {
	path  string
	value any
}

// Option configures the Buffer.
type Option func(*Buffer)

// WithDelay overrides the debounce window.
func WithDelay(d time.Duration) Option {
	return func(b *Buffer) { b.delay = d }
}

// WithLogger sets the buffer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Buffer) { b.logger = logger }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Buffer) { b.metrics = m }
}

// New creates a Buffer over the store.
func New(store ports.ProjectStore, opts ...Option) *Buffer {
	b := &Buffer{
		store:        store,
		delay:        DefaultDelay,
		flushTimeout: DefaultFlushTimeout,
		metrics:      observability.NewNopMetrics(),
		logger:       logging.NewNop(),
		pending:      make(map[string]*pendingWrite),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Queue records fields for the project and restarts its debounce timer.
// Queueing after Close writes nothing.
func (b *Buffer) Queue(projectID string, fields map[string]any) {
	if len(fields) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	pw := b.pending[projectID]
	if pw == nil {
		pw = &pendingWrite{overwrites: make(map[string]any)}
		b.pending[projectID] = pw
	}
	for path, value := range fields {
		if strings.HasSuffix(path, "."+domain.AppendMarker) {
			pw.appends = append(pw.appends, queuedAppend{path: path, value: value})
			continue
		}
		pw.overwrites[path] = value
	}

	if pw.timer != nil {
		pw.timer.Stop()
	}
	pw.timer = time.AfterFunc(b.delay, func() { b.flushAsync(projectID) })
}

// Flush writes the project's pending fields immediately, cancelling its
// timer. A project with nothing pending is a no-op.
func (b *Buffer) Flush(ctx context.Context, projectID string) error {
	pw := b.take(projectID)
	if pw == nil {
		return nil
	}
	return b.write(ctx, projectID, pw)
}

// Close flushes every pending project and stops accepting new edits.
func (b *Buffer) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := b.Flush(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Pending reports whether the project has unwritten fields.
func (b *Buffer) Pending(projectID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[projectID] != nil
}

func (b *Buffer) take(projectID string) *pendingWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	pw := b.pending[projectID]
	if pw == nil {
		return nil
	}
	delete(b.pending, projectID)
	if pw.timer != nil {
		pw.timer.Stop()
	}
	return pw
}

func (b *Buffer) flushAsync(projectID string) {
	pw := b.take(projectID)
	if pw == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.flushTimeout)
	defer cancel()
	if err := b.write(ctx, projectID, pw); err != nil {
		b.metrics.WriteFailures.Inc()
		b.logger.Warn("autosave flush failed", "project_id", projectID, "err", err)
	}
}

// write issues the accumulated fields. A partial write applies each append
// exactly once per call, so repeated appends to the same path spill into
// follow-up batches in queue order.
func (b *Buffer) write(ctx context.Context, projectID string, pw *pendingWrite) error {
	batches := []map[string]any{}
	if len(pw.overwrites) > 0 {
		batches = append(batches, pw.overwrites)
	}
	for _, ap := range pw.appends {
		placed := false
		for _, batch := range batches {
			if _, taken := batch[ap.path]; !taken {
				batch[ap.path] = ap.value
				placed = true
				break
			}
		}
		if !placed {
			batches = append(batches, map[string]any{ap.path: ap.value})
		}
	}

	for _, batch := range batches {
		if _, err := b.store.UpdatePartial(ctx, projectID, batch); err != nil {
			return err
		}
	}
	return nil
}
