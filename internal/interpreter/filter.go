package interpreter

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// defaultLexicon holds the solution-oriented phrase markers. A statement
// matching any of them is rejected: the collaborator's job is to sharpen the
// learner's problem, not to hand out solutions.
var defaultLexicon = []string{
	`(?i)^\s*(build|create|design|develop|make|invent|construct|program|code|prototype)\b`,
	`(?i)\byou (should|could|can) (build|create|design|develop|make)\b`,
	`(?i)\ban?\s+(mobile\s+|web\s+)?app\s+(to|that|which|for)\b`,
	`(?i)\ba\s+(website|platform|system|device|robot|chatbot|service)\s+(to|that|which|for)\b`,
	`(?i)\bthe solution is\b`,
}

// Filter applies the content-policy lexicon to statements and items.
type Filter struct {
	patterns []*regexp.Regexp
}

// NewFilter compiles the default lexicon.
func NewFilter() *Filter {
	f := &Filter{}
	for _, expr := range defaultLexicon {
		f.patterns = append(f.patterns, regexp.MustCompile(expr))
	}
	return f
}

// NewFilterFromFile compiles a YAML lexicon override: a file containing a
// top-level `patterns` list of regular expressions.
func NewFilterFromFile(path string) (*Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var doc struct {
		Patterns []string `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	f := &Filter{}
	for _, expr := range doc.Patterns {
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile lexicon pattern %q: %w", expr, err)
		}
		f.patterns = append(f.patterns, pattern)
	}
	return f, nil
}

// Reject reports whether the text trips the lexicon.
func (f *Filter) Reject(text string) bool {
	for _, pattern := range f.patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Keep returns the entries that pass the lexicon, preserving order.
func (f *Filter) Keep(entries []string) []string {
	kept := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !f.Reject(entry) {
			kept = append(kept, entry)
		}
	}
	return kept
}
