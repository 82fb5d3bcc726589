package ports

import (
	"context"

	"github.com/aretw0/winnow/pkg/domain"
)

// OnChange receives the full project document after every write, including
// the caller's own. Subscribers compare Revision to skip self-updates.
type OnChange func(state *domain.ProjectState)

// Unsubscribe detaches a subscription. Safe to call more than once.
type Unsubscribe func()

// ProjectStore persists project documents.
//
// UpdatePartial applies dotted-path field writes that never clobber sibling
// fields (see domain.ApplyFields); a path ending in ".+" appends to an
// array. Writing to a missing project creates it, since a project comes into
// existence on the first learner action. Every successful write bumps the
// document's Revision and pushes the full document to all subscribers.
// Concurrent writers resolve last-write-wins.
type ProjectStore interface {
	// Get retrieves a project. Returns domain.ErrProjectNotFound if absent.
	Get(ctx context.Context, projectID string) (*domain.ProjectState, error)

	// UpdatePartial applies path-scoped writes atomically, upserting the
	// project, and returns the resulting document.
	UpdatePartial(ctx context.Context, projectID string, fields map[string]any) (*domain.ProjectState, error)

	// Subscribe registers a change listener for one project.
	Subscribe(ctx context.Context, projectID string, fn OnChange) (Unsubscribe, error)

	// List returns the IDs of all known projects.
	List(ctx context.Context) ([]string, error)
}
