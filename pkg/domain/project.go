package domain

import (
	"time"
)

// Role identifies the author of a conversation entry.
type Role string

const (
	RoleCollaborator Role = "collaborator"
	RoleLearner      Role = "learner"
)

// ConversationEntry is one utterance in a project's collaboration history.
// Entries are append-only; only an explicit convergence reset removes them.
type ConversationEntry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	StageTag  string    `json:"stage_tag,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FeatureState holds one feature's free-form data within a project.
// Fields are schemaless on purpose: each feature owns its own shape, and the
// store only ever touches them through path-scoped partial writes.
type FeatureState struct {
	Fields    map[string]any `json:"fields,omitempty"`
	Completed bool           `json:"completed,omitempty"`
}

// ProjectState is the aggregate root for one learner project.
//
// It is created on first learner action and never deleted by the core.
// Revision increases on every store write; subscribers use it to recognize
// (and skip) their own just-written updates.
type ProjectState struct {
	ID       string `json:"id"`
	Revision int64  `json:"revision"`

	// Topic is the learner's chosen top-level artifact (e.g. the problem
	// statement the whole project orbits around).
	Topic string `json:"topic,omitempty"`

	Features     map[string]FeatureState `json:"features,omitempty"`
	Conversation []ConversationEntry     `json:"conversation,omitempty"`
	Convergence  *ConvergenceSession     `json:"convergence,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProjectState creates a fresh project with an armed convergence session.
func NewProjectState(id string) *ProjectState {
	now := time.Now().UTC()
	return &ProjectState{
		ID:          id,
		Features:    make(map[string]FeatureState),
		Convergence: NewConvergenceSession(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Feature returns the named feature state, or an empty one if absent.
func (p *ProjectState) Feature(name string) FeatureState {
	if p.Features == nil {
		return FeatureState{}
	}
	return p.Features[name]
}

// Session returns the convergence session, initializing it if absent.
func (p *ProjectState) Session() *ConvergenceSession {
	if p.Convergence == nil {
		p.Convergence = NewConvergenceSession()
	}
	return p.Convergence
}
