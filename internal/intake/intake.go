// Package intake bridges the asynchronous sample producer to the frame loop.
//
// The producer (a hardware interrupt on device, an audio callback on hosted
// builds) delivers blocks of up to 512 int16 samples. Block statistics and the
// raw samples accumulate into a double-buffered accumulator; the frame loop
// drains one side while the producer fills the other. The accumulator is the
// only state shared between the two contexts.
package intake

import "sync"

// bufferSamples sizes each side of the sample double-buffer. At 16 kHz this
// holds 256 ms of audio, enough to ride out a stalled consumer frame without
// losing the onset detector's input.
const bufferSamples = 4096

// Snapshot is the result of draining the accumulator: everything the producer
// delivered since the previous drain.
type Snapshot struct {
	AvgAbs  float64 // mean absolute sample value, 0..32768
	PeakAbs uint16  // largest absolute sample value
	Count   uint32  // samples received
	Blocks  uint32  // producer callbacks received
	Dropped uint32  // samples discarded because the buffer was full

	// Samples is the raw audio received since the previous drain. The slice
	// aliases the inactive side of the double-buffer and is valid only until
	// the next Drain call.
	Samples []int16
}

// Accumulator collects per-block statistics and raw samples from the producer
// context. One producer, one consumer; all methods are safe for that pairing
// and no other.
type Accumulator struct {
	mu sync.Mutex

	sumAbs    uint64
	count     uint32
	peakAbs   uint16
	blocks    uint32
	dropped   uint32
	lastSeen  int64 // ms timestamp of the most recent block, -1 before any
	haveBlock bool

	bufs   [2][bufferSamples]int16
	active int // index into bufs being filled
	fill   int // samples in the active buffer
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{lastSeen: -1}
}

// OnBlock ingests one producer block. The per-block reduction runs outside
// the critical section so the lock is held only for the accumulator update.
// Safe to call from the producer context.
func (a *Accumulator) OnBlock(nowMs int64, samples []int16) {
	if len(samples) == 0 {
		return
	}

	var localSum uint64
	var localPeak uint16
	for _, s := range samples {
		abs := uint16(s)
		if s < 0 {
			abs = uint16(-int32(s)) // -32768 negates safely in int32
		}
		localSum += uint64(abs)
		if abs > localPeak {
			localPeak = abs
		}
	}

	a.mu.Lock()
	a.sumAbs += localSum
	a.count += uint32(len(samples))
	if localPeak > a.peakAbs {
		a.peakAbs = localPeak
	}
	a.blocks++
	a.lastSeen = nowMs
	a.haveBlock = true

	space := bufferSamples - a.fill
	n := len(samples)
	if n > space {
		a.dropped += uint32(n - space)
		n = space
	}
	copy(a.bufs[a.active][a.fill:], samples[:n])
	a.fill += n
	a.mu.Unlock()
}

// Drain copies and zeroes the accumulator, swapping the sample double-buffer.
// Calling it twice without intervening blocks returns an all-zero snapshot.
// Safe to call only from the frame loop.
func (a *Accumulator) Drain() Snapshot {
	a.mu.Lock()
	snap := Snapshot{
		PeakAbs: a.peakAbs,
		Count:   a.count,
		Blocks:  a.blocks,
		Dropped: a.dropped,
		Samples: a.bufs[a.active][:a.fill],
	}
	if a.count > 0 {
		snap.AvgAbs = float64(a.sumAbs) / float64(a.count)
	}
	a.sumAbs = 0
	a.count = 0
	a.peakAbs = 0
	a.blocks = 0
	a.dropped = 0
	a.active = 1 - a.active
	a.fill = 0
	a.mu.Unlock()
	return snap
}

// Alive reports whether the producer has delivered a block within timeoutMs
// of nowMs. Before the first block it reports false.
func (a *Accumulator) Alive(nowMs int64, timeoutMs int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.haveBlock && nowMs-a.lastSeen <= timeoutMs
}

// LastBlockMs returns the timestamp of the most recent block, or -1 if no
// block has arrived yet.
func (a *Accumulator) LastBlockMs() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSeen
}
