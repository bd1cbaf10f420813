package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlan(t *testing.T) *GenCopyPlan {
	t.Helper()
	common := NewRegion(4096)
	return NewGenCopyPlan(4096, 8192, common)
}

func TestPlanFlipSpacesSwapsRoles(t *testing.T) {
	p := newTestPlan(t)
	to0 := p.Tospace()
	from0 := p.Fromspace()
	require.NotEqual(t, to0.Name(), from0.Name())

	p.FlipSpaces()
	assert.Equal(t, from0.Name(), p.Tospace().Name())
	assert.Equal(t, to0.Name(), p.Fromspace().Name())

	p.FlipSpaces()
	assert.Equal(t, to0.Name(), p.Tospace().Name())
}

func TestDetermineCollectionKindDefaultsToNursery(t *testing.T) {
	p := newTestPlan(t)
	assert.Equal(t, KindNursery, p.DetermineCollectionKind())
}

func TestDetermineCollectionKindEscalatesWhenTospaceCannotAbsorbNursery(t *testing.T) {
	p := newTestPlan(t)
	p.MarkNurseryFull()
	// tospace (8192 bytes) comfortably exceeds the nursery (4096 bytes),
	// so a full nursery still only triggers a nursery GC.
	assert.Equal(t, KindNursery, p.DetermineCollectionKind())

	tight := NewGenCopyPlan(8192, 4096, NewRegion(4096))
	tight.MarkNurseryFull()
	assert.Equal(t, KindMature, tight.DetermineCollectionKind())
}

// TestScannedStacksNeverResetsToLiteralZero exercises the counter
// wraparound design: AllStacksScanned subtracts by the mutator count via
// CAS rather than ever comparing to (or resetting to) a hardcoded zero,
// so the counter keeps counting up across many GCs without overflowing
// its intended meaning.
func TestScannedStacksNeverResetsToLiteralZero(t *testing.T) {
	p := newTestPlan(t)
	const mutators = 3

	for round := 0; round < 5; round++ {
		for i := 0; i < mutators; i++ {
			p.IncScannedStacks()
		}
		assert.True(t, p.AllStacksScanned(mutators), "round %d", round)
		assert.False(t, p.AllStacksScanned(mutators), "round %d: double-count should not re-trigger", round)
	}
}

func TestAllStacksScannedFalseWhenIncomplete(t *testing.T) {
	p := newTestPlan(t)
	p.ResetScannedStacks()
	p.IncScannedStacks()
	assert.False(t, p.AllStacksScanned(2))
}
