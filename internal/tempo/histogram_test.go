package tempo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateNeedsEnoughMass(t *testing.T) {
	var r intervalRing
	_, ok := r.estimate()
	assert.False(t, ok, "empty ring")

	r.record(500)
	r.record(500)
	_, ok = r.estimate()
	assert.False(t, ok, "two intervals are below the peak threshold")

	r.record(500)
	bpm, ok := r.estimate()
	require.True(t, ok)
	assert.InDelta(t, 120, bpm, 4, "500 ms intervals are 120 BPM within bin quantisation")
}

func TestEstimatePicksDominantBin(t *testing.T) {
	var r intervalRing
	for i := 0; i < 10; i++ {
		r.record(400) // 150 BPM
	}
	for i := 0; i < 3; i++ {
		r.record(900)
	}

	bpm, ok := r.estimate()
	require.True(t, ok)
	assert.InDelta(t, 150, bpm, 5)
}

func TestOctaveErrorPromotesDoubleTempo(t *testing.T) {
	// Beats heard on alternate clicks: 800 ms intervals dominate (75 BPM)
	// but the 400 ms half-interval bin carries real mass too.
	var r intervalRing
	for i := 0; i < 8; i++ {
		r.record(800)
	}
	for i := 0; i < 4; i++ {
		r.record(400)
	}

	bpm, ok := r.estimate()
	require.True(t, ok)
	assert.InDelta(t, 150, bpm, 6, "75 BPM candidate should promote to ~150")
}

func TestNoOctavePromotionWithoutSupport(t *testing.T) {
	var r intervalRing
	for i := 0; i < 8; i++ {
		r.record(800)
	}

	bpm, ok := r.estimate()
	require.True(t, ok)
	assert.InDelta(t, 74, bpm, 4, "no half-interval mass, keep 75 BPM")
}

func TestRingIsBounded(t *testing.T) {
	var r intervalRing
	for i := 0; i < maxIntervals*3; i++ {
		r.record(500)
	}
	assert.Equal(t, maxIntervals, r.n)
}
