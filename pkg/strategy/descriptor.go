package strategy

import (
	"fmt"

	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// PromptBuilder turns a focus context into the user prompt for one call.
type PromptBuilder func(fc *domain.FocusContext) string

// Descriptor is the immutable configuration for one focus. The request
// payload is a tagged union keyed by focus: NewPayload returns a pointer to
// the variant this strategy expects, and DecodePayload fills it.
type Descriptor struct {
	Focus             domain.Focus
	SystemInstruction string
	Sampling          ports.SamplingParams
	OutputMode        domain.OutputMode
	NewPayload        func() any
	BuildPrompt       PromptBuilder
}

// DecodePayload decodes the request's raw payload into this strategy's
// variant. Unknown fields are ignored; a nil raw payload yields the zero
// variant so prompt builders can rely on the type being present.
func (d *Descriptor) DecodePayload(raw map[string]any) (any, error) {
	if d.NewPayload == nil {
		return nil, nil
	}
	payload := d.NewPayload()
	if raw == nil {
		return payload, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           payload,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("payload decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", d.Focus.Key(), err)
	}
	return payload, nil
}

// Payload variants, one per registered focus.

// ProblemPayload carries the learner's problem statements for review.
type ProblemPayload struct {
	Statements []string `json:"statements"`
}

// AudiencePayload carries draft audience personas for review.
type AudiencePayload struct {
	Personas []string `json:"personas"`
}

// ResearchPayload asks for research question suggestions.
type ResearchPayload struct {
	Notes []string `json:"notes"`
}

// ReflectPayload carries the full candidate set for the opening reflection.
type ReflectPayload struct {
	Candidates []string `json:"candidates"`
}

// CoDesignPayload carries the working direction and the learner's draft for
// one co-design sub-phase.
type CoDesignPayload struct {
	Direction string `json:"direction"`
	Phase     string `json:"phase"`
	Draft     string `json:"draft"`
}

// VariantsPayload asks for fresh phrasings of the working direction.
type VariantsPayload struct {
	Direction string   `json:"direction"`
	Liked     []string `json:"liked"`
	Count     int      `json:"count"`
}

// SelectionPayload presents all banked ideas for comparison.
type SelectionPayload struct {
	Ideas []string `json:"ideas"`
}
