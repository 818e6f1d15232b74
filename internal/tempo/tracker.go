// Package tempo maintains a best current tempo hypothesis with sub-beat
// phase, tolerant of tempo drift and brief silence.
//
// Three estimators cooperate. A phase-locked loop adjusts the active
// hypothesis' period and phase from each onset and owns tracking once
// confident. A comb-filter resonator bank scores the whole tempo range
// continuously and has authority while confidence is low. A histogram over
// inter-onset intervals provides a coarse backup with octave-error
// correction. The tracker never fails: every input maps to a clamp, a skip,
// or a logged repair.
package tempo

import (
	"math"

	"github.com/luminode/beatcore/internal/config"
	"github.com/luminode/beatcore/internal/logx"
)

const (
	// Confidence dynamics. A phase snap counts as a stable acquisition so a
	// clean click train can activate within minBeatsToActivate onsets.
	confIncrement     = 0.15
	confDecrement     = 0.10
	missedBeatPenalty = 0.10

	// stableErrThreshold is the largest phase error still counted as an
	// on-beat onset.
	stableErrThreshold = 0.10

	// BPM-lock hysteresis inside the Locked state.
	lockThreshold   = 0.80
	unlockThreshold = 0.65

	// combConfThreshold bounds the comb bank's authority: above it the PLL
	// owns tracking.
	combConfThreshold = 0.5
	combBlendBase     = 0.3

	// histBlend mixes a histogram candidate into the current tempo.
	histBlend = 0.15

	// histEvery runs the histogram estimate every n-th onset.
	histEvery = 8

	integratorLimit = 10.0

	// Sanity bounds. Phase beyond the limit or an absurd beat count per
	// tick indicates a broken dt; repair and carry on.
	phaseSanityLimit = 100.0
	maxBeatsPerTick  = 10

	initialBPM = 120.0
)

// Tracker is the tempo and phase estimator. Frame loop only.
type Tracker struct {
	cfg *config.Params
	log logx.Logger

	bpm      float64
	periodMs float64
	phase    float64

	confidence float64
	active     bool
	bpmLocked  bool

	beatNumber  uint64
	stableBeats int
	missedBeats int

	integrator float64
	lastErr    float64

	lastOnsetMs int64
	haveOnset   bool
	onsetCount  int

	beat  bool
	half  bool
	whole bool

	comb *combBank
	hist intervalRing

	phaseWarn logx.Limiter
	beatsWarn logx.Limiter
}

// New returns a tracker at the initial free-running hypothesis.
func New(cfg *config.Params, lg logx.Logger) *Tracker {
	if lg == nil {
		lg = logx.Nop
	}
	bpm := clamp(initialBPM, cfg.BPMMin, cfg.BPMMax)
	return &Tracker{
		cfg:      cfg,
		log:      lg,
		bpm:      bpm,
		periodMs: 60000 / bpm,
		comb:     newCombBank(cfg.BPMMin, cfg.BPMMax, cfg.FrameRate, cfg.CombFeedback, cfg.CombDecay),
	}
}

// Tick advances the oscillator by dt seconds, runs the comb bank on this
// frame's onset strength (0 when none), and raises one-shot beat flags on
// phase wrap. Flags from the previous tick are cleared on entry.
func (t *Tracker) Tick(dt float64, nowMs int64, onsetStrength float64) {
	dt = clamp(dt, 0.0001, 0.1)
	t.beat, t.half, t.whole = false, false, false

	t.comb.push(onsetStrength)
	t.applyCombEstimate(dt)

	t.phase += dt * 1000 / t.periodMs

	if t.phase > phaseSanityLimit {
		if t.phaseWarn.Allow(nowMs) {
			t.log.Warnf("tempo phase %.1f beyond sanity limit, resetting", t.phase)
		}
		t.phase = 1
	}

	if t.phase >= 1 {
		beatsAdded := int(t.phase)
		if beatsAdded > maxBeatsPerTick {
			if t.beatsWarn.Allow(nowMs) {
				t.log.Warnf("tick spanned %d beats, treating as one", beatsAdded)
			}
			beatsAdded = 1
		} else if beatsAdded >= 2 {
			if t.beatsWarn.Allow(nowMs) {
				t.log.Warnf("tick spanned %d beats", beatsAdded)
			}
		}
		t.phase = math.Mod(t.phase, 1)
		t.beatNumber += uint64(beatsAdded)

		if t.active {
			t.beat = true
			t.half = t.beatNumber%2 == 0
			t.whole = t.beatNumber%4 == 0
		}

		// Once per beat period: decay confidence if onsets have gone quiet.
		if t.haveOnset && float64(nowMs-t.lastOnsetMs) > 1.5*t.periodMs {
			t.missedBeats++
			t.confidence = math.Max(0, t.confidence-missedBeatPenalty)
		}
	}

	t.updateState()
}

// OnOnset feeds one detected onset into the PLL and the backup estimators.
func (t *Tracker) OnOnset(nowMs int64, strength float64) {
	_ = strength // strength drives the comb bank via Tick; the PLL treats onsets equally

	if t.haveOnset {
		if iv := float64(nowMs - t.lastOnsetMs); iv >= histMinMs && iv <= histMaxMs {
			t.hist.record(iv)
		}
	}
	t.lastOnsetMs = nowMs
	t.haveOnset = true

	t.onsetCount++
	if t.onsetCount%histEvery == 0 {
		if cand, ok := t.hist.estimate(); ok {
			t.setBPM(t.bpm*(1-histBlend) + cand*histBlend)
			t.confidence = math.Min(1, t.confidence+2*confIncrement)
		}
	}

	t.runPLL()
	t.updateState()
}

// runPLL applies one adaptive-gain PI correction from the current phase.
//
// The error is the oscillator phase at the onset, remapped to (-0.5, 0.5]
// and negated: positive when the onset lands late in the cycle (oscillator
// slow, period must shorten). T <- T*(1-correction) then converges from both
// sides. Gains scale with 2-confidence so acquisition is fast and a locked
// hypothesis is sticky.
func (t *Tracker) runPLL() {
	wrapped := t.phase
	if wrapped > 0.5 {
		wrapped -= 1
	}
	err := -wrapped
	t.lastErr = err

	adaptive := 2 - t.confidence

	if math.Abs(err) > t.cfg.PhaseSnapThreshold && t.confidence < t.cfg.PhaseSnapConfidence {
		// Too far off and not yet committed: re-anchor instead of steering.
		t.phase = 0
		t.integrator = 0
		t.stableBeats++
		t.missedBeats = 0
		t.confidence = math.Min(1, t.confidence+confIncrement)
		return
	}

	t.integrator = clamp(t.integrator+err, -integratorLimit, integratorLimit)
	correction := t.cfg.PLLKp*adaptive*err + t.cfg.PLLKi*adaptive*t.integrator
	t.periodMs *= 1 - correction
	t.setBPM(60000 / t.periodMs)

	if math.Abs(err) < stableErrThreshold {
		t.stableBeats++
		t.missedBeats = 0
		t.confidence = math.Min(1, t.confidence+confIncrement)
	} else {
		t.missedBeats++
		t.confidence = math.Max(0, t.confidence-confDecrement)
	}
}

// applyCombEstimate lets the resonator bank steer the tempo while the PLL is
// not confident. The blend shrinks as confidence grows, and a BPM-locked
// hypothesis rate-limits the change.
func (t *Tracker) applyCombEstimate(dt float64) {
	if t.confidence >= combConfThreshold {
		return
	}
	peakBPM, peakE, avgE := t.comb.peak()
	if peakE <= avgE*1.5 || peakE <= 0.02 {
		return
	}

	blend := combBlendBase * (1 - t.confidence)
	target := t.bpm + blend*(peakBPM-t.bpm)
	if t.bpmLocked {
		maxStep := t.cfg.BPMLockMaxChange * dt
		target = clamp(target, t.bpm-maxStep, t.bpm+maxStep)
	}
	t.setBPM(target)
}

// updateState runs the activation state machine and the BPM-lock hysteresis.
func (t *Tracker) updateState() {
	if !t.active {
		if t.confidence >= t.cfg.ActivationThreshold && t.stableBeats >= t.cfg.MinBeatsToActivate {
			t.active = true
		}
	} else if t.confidence < 0.5*t.cfg.ActivationThreshold || t.missedBeats >= t.cfg.MaxMissedBeats {
		t.active = false
		t.bpmLocked = false
		t.stableBeats = 0
	}

	if t.active {
		if t.confidence >= lockThreshold {
			t.bpmLocked = true
		} else if t.confidence < unlockThreshold {
			t.bpmLocked = false
		}
	}
}

// setBPM clamps and applies a new tempo, keeping period and BPM consistent.
func (t *Tracker) setBPM(bpm float64) {
	t.bpm = clamp(bpm, t.cfg.BPMMin, t.cfg.BPMMax)
	t.periodMs = 60000 / t.bpm
}

// Read accessors. One-shot flags are valid until the next Tick.

func (t *Tracker) BPM() float64        { return t.bpm }
func (t *Tracker) PeriodMs() float64   { return t.periodMs }
func (t *Tracker) Phase() float64      { return t.phase }
func (t *Tracker) Confidence() float64 { return t.confidence }
func (t *Tracker) Active() bool        { return t.active }
func (t *Tracker) BPMLocked() bool     { return t.bpmLocked }
func (t *Tracker) Beat() bool          { return t.beat }
func (t *Tracker) Quarter() bool       { return t.beat }
func (t *Tracker) Half() bool          { return t.half }
func (t *Tracker) Whole() bool         { return t.whole }
func (t *Tracker) BeatNumber() uint64  { return t.beatNumber }
func (t *Tracker) PhaseError() float64 { return t.lastErr }
func (t *Tracker) StableBeats() int    { return t.stableBeats }
func (t *Tracker) MissedBeats() int    { return t.missedBeats }
func (t *Tracker) OnsetCount() int     { return t.onsetCount }

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
