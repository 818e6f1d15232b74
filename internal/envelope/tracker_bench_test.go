package envelope

import (
	"testing"

	"github.com/luminode/beatcore/internal/config"
)

func BenchmarkUpdate(b *testing.B) {
	tr := New(config.Default(), nil, nil)

	b.ReportAllocs()
	b.ResetTimer()
	now := int64(0)
	for i := 0; i < b.N; i++ {
		now += 17
		tr.Update(float64(1000+i%8000), frameDt, now)
	}
}
