/*
Package focus builds the per-request FocusContext: a read-only merge of the
project's chosen topic, completed feature data, and the request's inline
payload. The context is rebuilt on every request and never persisted.
*/
package focus

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/winnow/internal/logging"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/ports"
)

// Accumulator assembles FocusContexts from persisted project state.
type Accumulator struct {
	store  ports.ProjectStore
	logger *slog.Logger
}

// NewAccumulator creates an Accumulator over the given store.
func NewAccumulator(store ports.ProjectStore, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Accumulator{store: store, logger: logger}
}

// Build merges project state with the request. A missing project degrades to
// a minimal context rather than failing; callers proceed with best effort.
// The payload is attached as-is; the orchestrator decodes it per strategy
// before prompt building.
func (a *Accumulator) Build(ctx context.Context, projectID string, f domain.Focus, action domain.Action, payload any) (*domain.FocusContext, error) {
	fc := &domain.FocusContext{
		ProjectID:   projectID,
		Focus:       f,
		Action:      action,
		Payload:     payload,
		FeatureData: map[string]map[string]any{},
	}

	state, err := a.store.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			a.logger.Debug("project missing, degrading context", "project_id", projectID)
			fc.Degraded = true
			return fc, nil
		}
		return nil, err
	}

	fc.Topic = state.Topic
	for name, feature := range state.Features {
		if !feature.Completed {
			continue
		}
		fc.FeatureData[name] = feature.Fields
	}

	// The ideas feature feeds the convergence reflection even before the
	// learner marks it complete; rough candidates are its whole point.
	if feature, ok := state.Features["ideas"]; ok {
		if _, merged := fc.FeatureData["ideas"]; !merged {
			fc.FeatureData["ideas"] = feature.Fields
		}
	}

	return fc, nil
}
