package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid_MinLength(t *testing.T) {
	cases := []struct {
		name string
		text string
		min  int
		want bool
	}{
		{"empty", "", 10, false},
		{"whitespace only", "    \n\t  ", 10, false},
		{"below minimum", "too short", 10, false},
		{"exactly minimum", "ten chars!", 10, true},
		{"above minimum", "a real substantive answer", 10, true},
		{"custom minimum", "short", 3, true},
		{"zero uses default", "tiny", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValid(tc.text, tc.min))
		})
	}
}

func TestIsValid_ShortIsAlwaysInvalid(t *testing.T) {
	// Content never rescues a too-short answer.
	for _, text := range []string{"!!!", "ok", " yes ", "водa", strings.Repeat("x", 9)} {
		assert.False(t, IsValid(text, 10), "text=%q", text)
	}
}

func TestIsValid_FillerPhrases(t *testing.T) {
	// Fillers are rejected case-insensitively even when a low minimum
	// would otherwise let them through.
	for _, text := range []string{"idk", "IDK", " n/a ", "None", "tbd"} {
		assert.False(t, IsValid(text, 1), "text=%q", text)
	}
}

func TestIsValid_PunctuationOnly(t *testing.T) {
	assert.False(t, IsValid("?!?!?!?!?!?!", 10))
	assert.False(t, IsValid("---------- ----", 10))
	assert.True(t, IsValid("well... maybe this one?", 10))
}

func TestIsUnique(t *testing.T) {
	corpus := []string{
		"Lack of access to clean water",
		"Food waste in school cafeterias",
		"  lack of access to clean water  ",
	}

	assert.False(t, IsUnique("Lack of access to clean water", corpus))
	assert.True(t, IsUnique("Food waste in school cafeterias", corpus))
	assert.True(t, IsUnique("Something entirely new", corpus))
}

func TestCompleteCount(t *testing.T) {
	entries := []string{
		"Lack of access to clean water",
		"lack of access to clean water", // duplicate
		"Food waste in school cafeterias",
		"idk",
		"short",
	}

	assert.Equal(t, 1, CompleteCount(entries, 10))
	assert.False(t, MeetsThreshold(entries, 10, 3))

	entries = append(entries, "Unreliable rural internet connectivity")
	assert.True(t, MeetsThreshold(entries, 10, 2))
}
