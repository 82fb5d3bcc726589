/*
Package validator is the pure text-quality gate used across the wider
workflow. Every feature's completion check at the presentation boundary runs
through it; it has no dependencies and no side effects.
*/
package validator

import (
	"strings"
	"unicode"
)

// DefaultMinLength is the minimum trimmed length a field must reach.
const DefaultMinLength = 10

// fillerPhrases are throwaway answers that never count as real content,
// compared case-insensitively after trimming.
var fillerPhrases = map[string]struct{}{
	"idk":          {},
	"i don't know": {},
	"i dont know":  {},
	"n/a":          {},
	"na":           {},
	"none":         {},
	"nothing":      {},
	"tbd":          {},
	"todo":         {},
	"test":         {},
	"asdf":         {},
}

// Normalize is the shared trim+lowercase normalization used for uniqueness.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// IsValid reports whether text carries real content: at least minLength
// runes after trimming, not a known filler phrase, and not punctuation-only.
// A minLength of 0 falls back to DefaultMinLength.
func IsValid(text string, minLength int) bool {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < minLength {
		return false
	}
	if _, filler := fillerPhrases[strings.ToLower(trimmed)]; filler {
		return false
	}
	return !punctuationOnly(trimmed)
}

func punctuationOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// IsUnique reports whether text occurs at most once in corpus under
// normalization. The corpus is expected to include the instance being
// checked, so a second normalize-equal occurrence means a duplicate.
func IsUnique(text string, corpus []string) bool {
	key := Normalize(text)
	count := 0
	for _, entry := range corpus {
		if Normalize(entry) == key {
			count++
			if count > 1 {
				return false
			}
		}
	}
	return true
}

// CompleteCount returns how many entries are both valid and unique within
// the full set. It is the single gate used to unlock forward progression.
func CompleteCount(entries []string, minLength int) int {
	count := 0
	for _, entry := range entries {
		if IsValid(entry, minLength) && IsUnique(entry, entries) {
			count++
		}
	}
	return count
}

// MeetsThreshold reports whether the set has at least required entries that
// are both valid and unique.
func MeetsThreshold(entries []string, minLength, required int) bool {
	return CompleteCount(entries, minLength) >= required
}
