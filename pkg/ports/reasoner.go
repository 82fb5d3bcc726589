package ports

import "context"

// SamplingParams tune one reasoning call. Zero values mean "service default".
type SamplingParams struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Reasoner is the external free-text reasoning service. One Complete call
// maps prompt text to response text, with no further guarantees about the
// response's structure.
//
// Implementations perform exactly one service call per invocation (transport
// -level retry of idempotent network errors aside) and classify failures as
// domain.ErrRateLimited, domain.ErrUnauthorized, or leave them unwrapped.
type Reasoner interface {
	Complete(ctx context.Context, systemInstruction, userPrompt string, params SamplingParams) (string, error)
}
