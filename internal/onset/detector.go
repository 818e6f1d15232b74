// Package onset detects percussive events in the sample stream via spectral
// flux.
//
// Samples accumulate in a ring; each time a full FFT frame's worth has
// arrived the detector windows it, transforms it, and sums the positive
// per-bin magnitude increases since the previous frame. An onset fires when
// that flux exceeds an adaptive multiple of its running mean and the cooldown
// has elapsed.
package onset

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/luminode/beatcore/internal/config"
)

const (
	// FFTSize is the analysis frame length. Frames do not overlap: the hop
	// equals the frame. TODO: evaluate 50% overlap for sharper flux peaks.
	FFTSize = 256

	// MinBin and MaxBin bound the flux sum. At 16 kHz with 256-point frames
	// each bin spans 62.5 Hz, so this covers roughly 62 Hz to 4 kHz; bin 0
	// (DC) is excluded.
	MinBin = 1
	MaxBin = 64

	// bassBins is the low end of the range used for the adaptive factor.
	bassBins = 8

	// ringSize buffers incoming samples between frame ticks. Power of two,
	// must exceed the intake double-buffer.
	ringSize = 8192

	// fluxMeanCoeff is the per-frame EWMA coefficient of the running mean.
	fluxMeanCoeff = 0.05

	// warmupFrames suppresses events until the running mean is meaningful.
	warmupFrames = 8

	// fluxFloor is the smallest running mean considered signal; below it
	// the threshold comparison is meaningless and no event fires.
	fluxFloor = 1e-4
)

// Frame is the result of processing one FFT frame.
type Frame struct {
	Flux     float64 // half-wave-rectified spectral flux
	Strength float64 // normalised onset strength in [0,1]
	Onset    bool    // true when an onset event fired this frame
}

// Detector owns the sample ring and spectral state. All buffers are sized at
// construction; processing allocates nothing.
type Detector struct {
	cfg *config.Params

	ring  [ringSize]int16
	wr    uint64
	rd    uint64
	drops uint64

	fft    *fourier.FFT
	buf    []float64    // windowed real input, FFTSize
	coeffs []complex128 // FFTSize/2+1 spectrum

	mags    [MaxBin + 1]float64
	prevMag [MaxBin + 1]float64

	fluxMean  float64
	flux      float64
	frames    uint64
	primed    bool // prevMag holds a valid frame
	lastOnset int64
	haveOnset bool
}

// New returns a detector for the given parameters.
func New(cfg *config.Params) *Detector {
	return &Detector{
		cfg:    cfg,
		fft:    fourier.NewFFT(FFTSize),
		buf:    make([]float64, FFTSize),
		coeffs: make([]complex128, FFTSize/2+1),
	}
}

// AddSamples appends producer samples to the ring and reports whether at
// least one full frame is ready. Overflow drops the incoming excess.
func (d *Detector) AddSamples(samples []int16) bool {
	for i, s := range samples {
		if d.wr-d.rd >= ringSize {
			d.drops += uint64(len(samples) - i)
			break
		}
		d.ring[d.wr%ringSize] = s
		d.wr++
	}
	return d.Ready()
}

// Ready reports whether Process may be called.
func (d *Detector) Ready() bool {
	return d.wr-d.rd >= FFTSize
}

// Process consumes one frame and returns its flux and any onset event.
// Calling it when Ready is false is a programming error; it returns a zero
// frame rather than panicking.
func (d *Detector) Process(nowMs int64, ambient float64) Frame {
	if !d.Ready() {
		return Frame{}
	}

	for i := 0; i < FFTSize; i++ {
		d.buf[i] = float64(d.ring[(d.rd+uint64(i))%ringSize]) / 32768.0
	}
	d.rd += FFTSize

	window.Hamming(d.buf)
	d.fft.Coefficients(d.coeffs, d.buf)

	var bass float64
	for k := MinBin; k <= MaxBin; k++ {
		d.mags[k] = cmplx.Abs(d.coeffs[k])
		if k < MinBin+bassBins {
			bass += d.mags[k]
		}
	}
	bass /= bassBins

	// A reset (or first ever frame) has no reference spectrum; prime it and
	// report zero flux.
	if !d.primed {
		d.primed = true
		copy(d.prevMag[:], d.mags[:])
		d.frames++
		return Frame{}
	}

	flux := 0.0
	for k := MinBin; k <= MaxBin; k++ {
		if diff := d.mags[k] - d.prevMag[k]; diff > 0 {
			flux += diff
		}
	}
	copy(d.prevMag[:], d.mags[:])
	d.flux = flux
	d.frames++

	// Threshold against the mean of prior frames, then fold this frame in.
	// Loud bass and loud ambience both raise the bar: sustained energy in
	// either produces flux that is not an onset.
	factor := d.cfg.OnsetFactor * (1 + 0.5*clamp01(bass/8) + 0.3*clamp01(ambient))

	frame := Frame{Flux: flux}
	if d.frames > warmupFrames && d.fluxMean > fluxFloor && flux > factor*d.fluxMean {
		if !d.haveOnset || nowMs-d.lastOnset >= int64(d.cfg.OnsetCooldownMs) {
			frame.Onset = true
			frame.Strength = clamp01(flux / (2 * factor * d.fluxMean))
			d.haveOnset = true
			d.lastOnset = nowMs
		}
	}

	d.fluxMean += fluxMeanCoeff * (flux - d.fluxMean)
	return frame
}

// Reset discards buffered samples and the reference spectrum; the next frame
// produces zero flux. Used on mode changes.
func (d *Detector) Reset() {
	d.rd = d.wr
	d.primed = false
	d.fluxMean = 0
	d.flux = 0
	d.frames = 0
	d.haveOnset = false
}

// Flux returns the most recent frame's spectral flux.
func (d *Detector) Flux() float64 { return d.flux }

// FluxMean returns the running mean flux.
func (d *Detector) FluxMean() float64 { return d.fluxMean }

// Dropped returns the count of samples discarded to ring overflow.
func (d *Detector) Dropped() uint64 { return d.drops }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
