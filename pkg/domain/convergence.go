package domain

import "strings"

// Stage identifies where a convergence session sits in the narrowing flow.
type Stage string

const (
	StageReflect   Stage = "reflect"
	StageChoose    Stage = "choose"
	StageCoDesign  Stage = "codesign"
	StageVariants  Stage = "variants"
	StageSelection Stage = "selection"
	StageLocked    Stage = "locked"
)

// SubPhase identifies the step within the CoDesign stage. It is meaningless
// outside CoDesign and cleared on leaving it.
type SubPhase string

const (
	PhaseRank        SubPhase = "rank"
	PhaseVary        SubPhase = "vary"
	PhaseConsolidate SubPhase = "consolidate"
	PhaseDetail      SubPhase = "detail"
	PhaseRemix       SubPhase = "remix"
	PhaseCommit      SubPhase = "commit"
)

// CoDesignPhases lists the sub-phases in confirmation order.
var CoDesignPhases = []SubPhase{
	PhaseRank, PhaseVary, PhaseConsolidate, PhaseDetail, PhaseRemix, PhaseCommit,
}

// NextPhase returns the sub-phase following p, and false once p is the last.
func NextPhase(p SubPhase) (SubPhase, bool) {
	for i, phase := range CoDesignPhases {
		if phase == p && i+1 < len(CoDesignPhases) {
			return CoDesignPhases[i+1], true
		}
	}
	return "", false
}

// One-shot guard keys. A fired guard stays set until an explicit reset
// re-arms it, so re-evaluating a trigger condition never duplicates its
// side effects.
const (
	GuardReflectToChoose = "reflect_to_choose"
)

// IdeaBankCap bounds how many candidate phrasings a learner can favorite.
const IdeaBankCap = 3

// MaxSelectedCandidates bounds the Choose-stage selection.
const MaxSelectedCandidates = 3

// Normalizer maps an idea to its deduplication key. The default policy is
// trim + lowercase with trailing sentence punctuation stripped; callers can
// substitute a stricter one without touching the bank.
type Normalizer func(string) string

// NormalizeIdea is the default Normalizer.
func NormalizeIdea(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".,!;:")
}

// IdeaBank is the ordered, bounded, deduplicated set of favorited ideas.
type IdeaBank struct {
	Ideas []string `json:"ideas,omitempty"`
}

// Add inserts an idea unless the bank is full or a normalize-equal entry
// already exists. It reports whether the bank changed; rejected adds are
// no-ops, never errors.
func (b *IdeaBank) Add(idea string, normalize Normalizer) bool {
	if normalize == nil {
		normalize = NormalizeIdea
	}
	idea = strings.TrimSpace(idea)
	if idea == "" || len(b.Ideas) >= IdeaBankCap {
		return false
	}
	key := normalize(idea)
	for _, existing := range b.Ideas {
		if normalize(existing) == key {
			return false
		}
	}
	b.Ideas = append(b.Ideas, idea)
	return true
}

// Contains reports whether a normalize-equal idea is banked.
func (b *IdeaBank) Contains(idea string, normalize Normalizer) bool {
	if normalize == nil {
		normalize = NormalizeIdea
	}
	key := normalize(idea)
	for _, existing := range b.Ideas {
		if normalize(existing) == key {
			return true
		}
	}
	return false
}

// Remove drops the normalize-equal entry if present.
func (b *IdeaBank) Remove(idea string, normalize Normalizer) bool {
	if normalize == nil {
		normalize = NormalizeIdea
	}
	key := normalize(idea)
	for i, existing := range b.Ideas {
		if normalize(existing) == key {
			b.Ideas = append(b.Ideas[:i], b.Ideas[i+1:]...)
			return true
		}
	}
	return false
}

// Full reports whether the bank has reached its bound.
func (b *IdeaBank) Full() bool {
	return len(b.Ideas) >= IdeaBankCap
}

// ConvergenceSession tracks the multi-stage narrowing of many rough ideas
// into one locked artifact.
type ConvergenceSession struct {
	Stage    Stage    `json:"stage"`
	SubPhase SubPhase `json:"sub_phase,omitempty"`

	// SelectedCandidates are the directions picked at the Choose stage (≤3).
	SelectedCandidates []string `json:"selected_candidates,omitempty"`

	IdeaBank IdeaBank `json:"idea_bank"`

	// Variants is the transient candidate list shown during the Variants
	// stage. Regenerating it never touches the IdeaBank.
	Variants []string `json:"variants,omitempty"`

	// LockedArtifact is set at most once per session lifetime, until reset.
	LockedArtifact string `json:"locked_artifact,omitempty"`

	// Guards records which one-shot transitions have fired.
	Guards map[string]bool `json:"guards,omitempty"`
}

// NewConvergenceSession starts a session at Reflect with all guards armed.
func NewConvergenceSession() *ConvergenceSession {
	return &ConvergenceSession{
		Stage:  StageReflect,
		Guards: map[string]bool{},
	}
}

// GuardFired reports whether the named one-shot transition already ran.
func (s *ConvergenceSession) GuardFired(name string) bool {
	return s.Guards != nil && s.Guards[name]
}
