package tempo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bankFor returns the default test bank: 60..200 BPM at 60 Hz frames.
func bankFor(t *testing.T) *combBank {
	t.Helper()
	return newCombBank(60, 200, 60, 0.5, 0.95)
}

// filterIndex finds the hypothesis closest to the given BPM.
func filterIndex(c *combBank, bpm float64) int {
	best := 0
	for i := range c.bpms {
		if abs(c.bpms[i]-bpm) < abs(c.bpms[best]-bpm) {
			best = i
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestPeriodsAreQuantisedToFrames(t *testing.T) {
	c := bankFor(t)
	// 120 BPM at 60 Hz is exactly 30 frames per beat.
	idx := filterIndex(c, 120)
	assert.Equal(t, 30, c.periods[idx])
	for _, p := range c.periods {
		assert.GreaterOrEqual(t, p, 1)
		assert.Less(t, p, combDelaySize)
	}
}

func TestMatchingPeriodAccumulatesMoreEnergy(t *testing.T) {
	c := bankFor(t)

	// A click train at 120 BPM: one strength-1 frame every 30 frames.
	for frame := 0; frame < 600; frame++ {
		strength := 0.0
		if frame%30 == 0 {
			strength = 1.0
		}
		c.push(strength)
	}

	matched := c.energies[filterIndex(c, 120)]
	offbeat := c.energies[filterIndex(c, 100)]
	assert.Greater(t, matched, offbeat,
		"the resonator at the true tempo must out-score a mismatched one")

	// Harmonically related periods (60 BPM = every second click) also
	// resonate; the peak must be one of them.
	bpm, peakE, avgE := c.peak()
	require.Greater(t, peakE, avgE)
	isHarmonic := abs(bpm-120) < 3 || abs(bpm-60) < 3
	assert.True(t, isHarmonic, "peak at %v BPM is not harmonically related to 120", bpm)
}

func TestSilenceDecaysEnergy(t *testing.T) {
	c := bankFor(t)
	for frame := 0; frame < 300; frame++ {
		strength := 0.0
		if frame%30 == 0 {
			strength = 1.0
		}
		c.push(strength)
	}
	_, peakBefore, _ := c.peak()

	for frame := 0; frame < 600; frame++ {
		c.push(0)
	}
	_, peakAfter, _ := c.peak()

	assert.Less(t, peakAfter, peakBefore/10)
}
