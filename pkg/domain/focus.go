package domain

import "strings"

// Focus identifies which part of a learner's project a request targets.
// The zone is optional; registry keys are "stage" or "stage:zone".
type Focus struct {
	StageID string `json:"stage_id"`
	ZoneID  string `json:"zone_id,omitempty"`
}

// Key returns the registry lookup key for the focus.
func (f Focus) Key() string {
	if f.ZoneID == "" {
		return f.StageID
	}
	return f.StageID + ":" + f.ZoneID
}

// ParseFocus splits a "stage" or "stage:zone" key back into a Focus.
func ParseFocus(key string) Focus {
	stage, zone, _ := strings.Cut(key, ":")
	return Focus{StageID: stage, ZoneID: zone}
}

// Action is the kind of collaboration the client asks for.
type Action string

const (
	ActionReview   Action = "review"
	ActionGenerate Action = "generate"
	ActionSuggest  Action = "suggest"
)

// OutputMode fixes how a strategy's raw response is interpreted. The mode is
// a hard per-strategy contract: output that does not match it fails closed
// (empty item list or fallback feedback), never a guess at the other mode.
type OutputMode string

const (
	ModeFeedback OutputMode = "feedback"
	ModeItems    OutputMode = "items"
)

// FocusContext is the read-only, per-request merge of the project's chosen
// topic, completed feature data relevant to the focus, and the request's
// inline payload. It is rebuilt on every request and never persisted.
type FocusContext struct {
	ProjectID string
	Focus     Focus
	Action    Action

	// Topic is the project's top-level chosen artifact. May be empty on a
	// degraded context.
	Topic string

	// FeatureData maps feature name to that feature's completed fields.
	FeatureData map[string]map[string]any

	// Payload is the request's inline payload, decoded per strategy.
	Payload any

	// Degraded marks a context built without a persisted project. Callers
	// proceed with best effort; it is not an error.
	Degraded bool
}

// FeatureField returns a string field from a feature's completed data.
func (c *FocusContext) FeatureField(feature, field string) string {
	if data, ok := c.FeatureData[feature]; ok {
		if v, ok := data[field].(string); ok {
			return v
		}
	}
	return ""
}

// FeatureList returns a string-slice field from a feature's completed data,
// tolerating the []any shape JSON round-trips produce.
func (c *FocusContext) FeatureList(feature, field string) []string {
	data, ok := c.FeatureData[feature]
	if !ok {
		return nil
	}
	switch v := data[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
