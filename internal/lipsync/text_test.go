package lipsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/facerig/internal/avatar3d"
)

func TestEstimateCues(t *testing.T) {
	track := EstimateCues("Hi, mom. Fine?", 2*time.Second)
	cues := track.Cues()
	require.NotEmpty(t, cues)

	assert.InDelta(t, 2.0, track.Duration(), 1e-9)
	assert.Greater(t, cues[0].Start, 0.0)

	seen := map[avatar3d.Viseme]bool{}
	for i, c := range cues {
		seen[c.Symbol] = true
		assert.Less(t, c.Start, c.End)
		if i > 0 {
			assert.GreaterOrEqual(t, c.Start, cues[i-1].End-1e-9)
			assert.NotEqual(t, cues[i-1].Symbol, c.Symbol, "adjacent equal shapes merge")
		}
	}
	for _, v := range []avatar3d.Viseme{avatar3d.VisemeA, avatar3d.VisemeD, avatar3d.VisemeG, avatar3d.VisemeX, avatar3d.VisemeC} {
		assert.True(t, seen[v], "missing %s", v)
	}
}

func TestEstimateCues_Unscaled(t *testing.T) {
	cues := EstimateCues("ma", 0).Cues()
	require.Len(t, cues, 2)

	assert.Equal(t, avatar3d.VisemeA, cues[0].Symbol)
	assert.InDelta(t, leadIn, cues[0].Start, 1e-9)
	assert.InDelta(t, leadIn+consonantDur, cues[0].End, 1e-9)

	assert.Equal(t, avatar3d.VisemeD, cues[1].Symbol)
	assert.InDelta(t, leadIn+consonantDur+vowelDur, cues[1].End, 1e-9)
}

func TestEstimateCues_Empty(t *testing.T) {
	assert.Equal(t, 0, EstimateCues("   ", time.Second).Len())
	assert.Equal(t, 0, EstimateCues("", 0).Len())
}
