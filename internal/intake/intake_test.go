package intake

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDrainReturnsBlockStatistics(t *testing.T) {
	a := New()
	a.OnBlock(0, []int16{100, -200, 300, -400})

	snap := a.Drain()
	assert.InDelta(t, 250.0, snap.AvgAbs, 1e-9) // (100+200+300+400)/4
	assert.Equal(t, uint16(400), snap.PeakAbs)
	assert.Equal(t, uint32(4), snap.Count)
	assert.Equal(t, uint32(1), snap.Blocks)
	assert.Equal(t, []int16{100, -200, 300, -400}, snap.Samples)
}

func TestDrainIsIdempotent(t *testing.T) {
	a := New()
	a.OnBlock(0, []int16{1000, 2000})
	a.Drain()

	// Second drain with no new samples must be all zeros.
	snap := a.Drain()
	assert.Zero(t, snap.AvgAbs)
	assert.Zero(t, snap.PeakAbs)
	assert.Zero(t, snap.Count)
	assert.Empty(t, snap.Samples)
}

func TestMinimumSampleNegatesSafely(t *testing.T) {
	a := New()
	a.OnBlock(0, []int16{-32768})

	snap := a.Drain()
	assert.Equal(t, uint16(32768), snap.PeakAbs)
	assert.InDelta(t, 32768.0, snap.AvgAbs, 1e-9)
}

func TestAccumulationAcrossBlocks(t *testing.T) {
	a := New()
	a.OnBlock(0, []int16{100})
	a.OnBlock(5, []int16{-300})

	snap := a.Drain()
	assert.InDelta(t, 200.0, snap.AvgAbs, 1e-9)
	assert.Equal(t, uint16(300), snap.PeakAbs)
	assert.Equal(t, uint32(2), snap.Blocks)
	assert.Equal(t, []int16{100, -300}, snap.Samples)
}

func TestOverflowDropsExcessSamples(t *testing.T) {
	a := New()
	block := make([]int16, 512)
	for i := range block {
		block[i] = 1
	}
	// 9 blocks of 512 = 4608 > 4096 capacity.
	for i := 0; i < 9; i++ {
		a.OnBlock(int64(i), block)
	}

	snap := a.Drain()
	assert.Equal(t, uint32(9*512), snap.Count, "statistics still count every sample")
	assert.Len(t, snap.Samples, bufferSamples)
	assert.Equal(t, uint32(9*512-bufferSamples), snap.Dropped)

	// The next interval starts with a fresh buffer.
	a.OnBlock(10, block)
	snap = a.Drain()
	assert.Len(t, snap.Samples, 512)
	assert.Zero(t, snap.Dropped)
}

func TestAlive(t *testing.T) {
	a := New()
	assert.False(t, a.Alive(0, 250), "no block yet")

	a.OnBlock(1000, []int16{1})
	assert.True(t, a.Alive(1100, 250))
	assert.True(t, a.Alive(1250, 250))
	assert.False(t, a.Alive(1251, 250))
}

func TestConcurrentProducer(t *testing.T) {
	a := New()

	const blocks = 1000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		block := []int16{10, -10, 10, -10}
		for i := 0; i < blocks; i++ {
			a.OnBlock(int64(i), block)
		}
	}()

	// Consumer drains concurrently; totals must balance.
	var count, dropped uint64
	for a.LastBlockMs() < blocks-1 {
		snap := a.Drain()
		count += uint64(snap.Count)
		dropped += uint64(snap.Dropped)
	}
	wg.Wait()
	snap := a.Drain()
	count += uint64(snap.Count)
	dropped += uint64(snap.Dropped)

	require.Equal(t, uint64(blocks*4), count)
	assert.LessOrEqual(t, dropped, count)
}

func TestPropertyCountsBalance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := New()
		var delivered uint64
		var drained, dropped uint64
		var sampleTotal int

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "drain") {
				snap := a.Drain()
				drained += uint64(snap.Count)
				dropped += uint64(snap.Dropped)
				sampleTotal += len(snap.Samples)
			} else {
				block := rapid.SliceOfN(rapid.Int16(), 0, 512).Draw(t, "block")
				a.OnBlock(int64(i), block)
				delivered += uint64(len(block))
			}
		}
		snap := a.Drain()
		drained += uint64(snap.Count)
		dropped += uint64(snap.Dropped)
		sampleTotal += len(snap.Samples)

		if drained != delivered {
			t.Fatalf("drained %d != delivered %d", drained, delivered)
		}
		if uint64(sampleTotal)+dropped != delivered {
			t.Fatalf("samples %d + dropped %d != delivered %d", sampleTotal, dropped, delivered)
		}
	})
}
