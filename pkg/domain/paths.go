package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AppendMarker, used as the final path segment, turns a partial write into an
// array append instead of a field overwrite: "conversation.+" appends one
// element to the "conversation" array.
const AppendMarker = "+"

// ApplyFields applies dotted-path partial writes to a document in place.
// Intermediate objects are created as needed; sibling fields are never
// clobbered. Writing a nil value deletes the field.
func ApplyFields(doc map[string]any, fields map[string]any) error {
	for path, value := range fields {
		if err := applyField(doc, path, value); err != nil {
			return fmt.Errorf("apply %q: %w", path, err)
		}
	}
	return nil
}

func applyField(doc map[string]any, path string, value any) error {
	segments := strings.Split(path, ".")
	if len(segments) == 0 || segments[0] == "" {
		return fmt.Errorf("empty path")
	}

	appendTo := false
	if segments[len(segments)-1] == AppendMarker {
		appendTo = true
		segments = segments[:len(segments)-1]
		if len(segments) == 0 {
			return fmt.Errorf("append marker needs a target path")
		}
	}

	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg]
		if !ok || next == nil {
			child := make(map[string]any)
			current[seg] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("segment %q is not an object", seg)
		}
		current = child
	}

	leaf := segments[len(segments)-1]
	if appendTo {
		existing, _ := current[leaf].([]any)
		current[leaf] = append(existing, value)
		return nil
	}
	if value == nil {
		delete(current, leaf)
		return nil
	}
	current[leaf] = value
	return nil
}

// ToDocument converts a ProjectState into its map form via a JSON round
// trip, so path writes see exactly the persisted field names.
func ToDocument(state *ProjectState) (map[string]any, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal project: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal project document: %w", err)
	}
	return doc, nil
}

// FromDocument converts a map document back into a typed ProjectState.
func FromDocument(doc map[string]any) (*ProjectState, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal project document: %w", err)
	}
	var state ProjectState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal project: %w", err)
	}
	return &state, nil
}
