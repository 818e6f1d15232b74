package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiterSuppressesRepeats(t *testing.T) {
	var l Limiter

	assert.True(t, l.Allow(1000), "first warning always fires")
	assert.False(t, l.Allow(2000), "inside the default 5 s interval")
	assert.True(t, l.Allow(6001))
}

func TestLimiterCustomInterval(t *testing.T) {
	l := Limiter{IntervalMs: 100}

	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(50))
	assert.True(t, l.Allow(101))
}

func TestNopLoggerDoesNothing(t *testing.T) {
	// Just exercise the calls.
	Nop.Warnf("warn %d", 1)
	Nop.Infof("info %d", 2)
}
