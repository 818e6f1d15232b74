package tempo

import (
	"testing"

	"github.com/luminode/beatcore/internal/config"
)

// BenchmarkTick measures one frame of the tracker including the full comb
// bank sweep.
func BenchmarkTick(b *testing.B) {
	tr := New(config.Default(), nil)

	b.ReportAllocs()
	b.ResetTimer()
	now := 0.0
	for i := 0; i < b.N; i++ {
		now += tickDt * 1000
		strength := 0.0
		if i%30 == 0 {
			strength = 1.0
		}
		tr.Tick(tickDt, int64(now), strength)
	}
}

func BenchmarkOnOnset(b *testing.B) {
	tr := New(config.Default(), nil)

	b.ReportAllocs()
	b.ResetTimer()
	now := int64(0)
	for i := 0; i < b.N; i++ {
		now += 500
		tr.OnOnset(now, 1.0)
	}
}
