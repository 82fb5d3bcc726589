package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdeaBank_BoundAndDedup(t *testing.T) {
	var bank IdeaBank

	assert.True(t, bank.Add("Rainwater capture for schools", nil))
	assert.True(t, bank.Add("Community seed library", nil))

	// Normalize-equal entries are rejected regardless of case or
	// trailing punctuation.
	assert.False(t, bank.Add("  rainwater capture for schools. ", nil))
	assert.Len(t, bank.Ideas, 2)

	assert.True(t, bank.Add("Repair café mentorship", nil))
	assert.True(t, bank.Full())

	// Beyond the bound every add is a no-op.
	assert.False(t, bank.Add("A fourth idea", nil))
	assert.Len(t, bank.Ideas, IdeaBankCap)
}

func TestIdeaBank_NeverExceedsBoundUnderMixedOps(t *testing.T) {
	var bank IdeaBank
	for i := 0; i < 20; i++ {
		bank.Add(fmt.Sprintf("idea %d", i%5), nil)
		if i%7 == 0 {
			bank.Remove(fmt.Sprintf("idea %d", i%3), nil)
		}
		assert.LessOrEqual(t, len(bank.Ideas), IdeaBankCap)

		seen := map[string]bool{}
		for _, idea := range bank.Ideas {
			key := NormalizeIdea(idea)
			assert.False(t, seen[key], "duplicate entry %q", idea)
			seen[key] = true
		}
	}
}

func TestIdeaBank_RejectsEmpty(t *testing.T) {
	var bank IdeaBank
	assert.False(t, bank.Add("   ", nil))
	assert.Empty(t, bank.Ideas)
}

func TestNextPhase(t *testing.T) {
	next, ok := NextPhase(PhaseRank)
	assert.True(t, ok)
	assert.Equal(t, PhaseVary, next)

	_, ok = NextPhase(PhaseCommit)
	assert.False(t, ok)
}

func TestFocusKeyRoundTrip(t *testing.T) {
	f := Focus{StageID: "convergence", ZoneID: "variants"}
	assert.Equal(t, "convergence:variants", f.Key())
	assert.Equal(t, f, ParseFocus(f.Key()))

	plain := Focus{StageID: "problem"}
	assert.Equal(t, "problem", plain.Key())
	assert.Equal(t, plain, ParseFocus("problem"))
}
