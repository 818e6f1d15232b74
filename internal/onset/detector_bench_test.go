package onset

import (
	"testing"

	"github.com/luminode/beatcore/internal/config"
)

// BenchmarkProcess measures one full FFT frame: window, transform, flux.
// This is the heaviest per-frame cost in the pipeline and must fit well
// inside a 16 ms frame budget.
func BenchmarkProcess(b *testing.B) {
	d := New(config.Default())
	frame := sineFrame(15000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.AddSamples(frame)
		d.Process(int64(i)*16, 0.3)
	}
}

func BenchmarkAddSamples(b *testing.B) {
	d := New(config.Default())
	block := make([]int16, 512)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.AddSamples(block)
		if d.Ready() {
			d.Process(int64(i)*16, 0)
		}
	}
}
