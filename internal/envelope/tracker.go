// Package envelope converts raw block-average magnitude into a perceptually
// useful level in [0,1].
//
// The chain per frame: attack/release envelope follower → adaptive min/max
// normalisation window → software auto-gain → noise gate → soft-knee
// compressor. A slow calibration loop steps the platform hardware gain when
// the software gain runs out of range, so the tracker holds a useful level
// from whisper to concert.
package envelope

import (
	"math"

	"github.com/luminode/beatcore/internal/config"
	"github.com/luminode/beatcore/internal/logx"
)

// GainSink receives hardware gain updates. On device this writes the codec's
// PGA register; hosted builds record the value or ignore it.
type GainSink interface {
	SetHardwareGain(gain int) error
}

// NopSink discards gain updates.
type NopSink struct{}

func (NopSink) SetHardwareGain(int) error { return nil }

const (
	// minSpan keeps the normalisation window from collapsing, in raw
	// magnitude units (0..32768).
	minSpan = 1.0

	// levelInset is the margin at each end of the normalised window that
	// reads as exactly 0 or exactly 1: levels within it of the floor map to
	// 0, so gated silence reaches an exact 0, and levels within it of the
	// ceiling map to 1, so full scale is reached before the window ceiling.
	levelInset = 0.05

	// envMeanTau is the very slow mean used for hardware gain targeting.
	envMeanTau = 90.0 // seconds

	// Adaptive window time constants. The floor falls quickly when the
	// signal drops below it and creeps up slowly; the ceiling is the mirror.
	minFallTau = 0.25 // seconds
	minRiseTau = 20.0 // seconds
	maxRiseTau = 0.10 // seconds
	maxFallTau = 30.0 // seconds

	// Software auto-gain integral rate, gain units per second per unit of
	// level error.
	agcRate = 0.5

	// Compressor detector time constants.
	compAttackTau  = 0.005 // seconds
	compReleaseTau = 0.050 // seconds

	// Hardware calibration targets, in raw magnitude units.
	hwTargetRaw = 2000.0
	hwRawLow    = hwTargetRaw * 0.5
	hwRawHigh   = hwTargetRaw * 2.0

	// hwDwellSec is how long the software gain must sit pinned at a limit
	// before the hardware gain steps.
	hwDwellSec = 3.0

	// hwGainComp compensates a hardware step in software so the output
	// level does not jump audibly.
	hwGainComp = 1.05

	hwGainMax = 80
)

// Tracker owns the envelope and dynamic-range state. All methods are frame
// loop only.
type Tracker struct {
	cfg  *config.Params
	sink GainSink
	log  logx.Logger

	env     float64 // attack/release envelope, raw units
	envMean float64 // ~90 s mean, raw units
	minEnv  float64 // adaptive window floor, raw units
	maxEnv  float64 // adaptive window ceiling, raw units

	softwareGain float64
	hwGain       int

	preGate float64 // normalised level before gain and gate
	postAGC float64 // after software gain, before gate
	level   float64 // final output

	compEnv float64 // compressor detector state

	highDwell float64 // seconds pinned at AGMax
	lowDwell  float64 // seconds pinned at AGMin
	lastCalMs int64

	started bool
	sinkErr logx.Limiter
	nanWarn logx.Limiter
}

// New returns a tracker using the supplied parameters and gain sink. A nil
// sink is replaced with NopSink; a nil logger with logx.Nop.
func New(cfg *config.Params, sink GainSink, lg logx.Logger) *Tracker {
	if sink == nil {
		sink = NopSink{}
	}
	if lg == nil {
		lg = logx.Nop
	}
	return &Tracker{
		cfg:          cfg,
		sink:         sink,
		log:          lg,
		maxEnv:       minSpan, // window span holds before the first audible frame
		softwareGain: 1.0,
		hwGain:       40,
		lastCalMs:    -int64(cfg.HWCalPeriodMs), // first calibration allowed immediately
	}
}

// Update runs one frame of the chain and returns the output level in [0,1].
// avgAbs is the mean absolute sample magnitude from the intake (0..32768),
// dt the elapsed frame time in seconds.
func (t *Tracker) Update(avgAbs, dt float64, nowMs int64) float64 {
	dt = clamp(dt, 0.0001, 0.1)

	// State initialises lazily on the first audible frame so the adaptive
	// window opens around the actual signal rather than zero.
	if !t.started {
		if avgAbs <= 0 {
			return 0
		}
		t.started = true
		t.env = avgAbs
		t.envMean = avgAbs
		t.minEnv = avgAbs * 0.5
		t.maxEnv = math.Max(avgAbs*2, t.minEnv+minSpan)
	}

	t.followEnvelope(avgAbs, dt, nowMs)
	t.trackWindow(dt)

	// Normalise into the adaptive window, then inset so the extremes are
	// reachable: values inside the inset margins round to exactly 0 or 1.
	norm := clamp((t.env-t.minEnv)/(t.maxEnv-t.minEnv), 0, 1)
	t.preGate = clamp((norm-levelInset)/(1-2*levelInset), 0, 1)

	t.runAutoGain(dt)
	t.postAGC = clamp(t.preGate*t.softwareGain, 0, 1)

	t.level = t.gateAndCompress(t.postAGC, dt)

	t.calibrateHardwareGain(nowMs)

	return t.level
}

// followEnvelope advances the attack/release follower and the slow mean.
// Coefficients come from 1-exp(-dt/tau) so the trajectory is independent of
// the frame cadence.
func (t *Tracker) followEnvelope(avgAbs, dt float64, nowMs int64) {
	aAtk := 1 - math.Exp(-dt/t.cfg.AttackTau)
	aRel := 1 - math.Exp(-dt/t.cfg.ReleaseTau)

	a := aRel
	if avgAbs >= t.env {
		a = aAtk
	}
	t.env += a * (avgAbs - t.env)

	aMean := 1 - math.Exp(-dt/envMeanTau)
	t.envMean += aMean * (avgAbs - t.envMean)

	if math.IsNaN(t.env) || math.IsInf(t.env, 0) {
		if t.nanWarn.Allow(nowMs) {
			t.log.Warnf("envelope became non-finite, resetting")
		}
		t.env = avgAbs
		t.envMean = avgAbs
	}
}

// trackWindow updates the adaptive min/max normalisation window.
func (t *Tracker) trackWindow(dt float64) {
	if t.env < t.minEnv {
		t.minEnv += (1 - math.Exp(-dt/minFallTau)) * (t.env - t.minEnv)
	} else {
		t.minEnv += (1 - math.Exp(-dt/minRiseTau)) * (t.env - t.minEnv)
	}
	if t.env > t.maxEnv {
		t.maxEnv += (1 - math.Exp(-dt/maxRiseTau)) * (t.env - t.maxEnv)
	} else {
		t.maxEnv += (1 - math.Exp(-dt/maxFallTau)) * (t.env - t.maxEnv)
	}

	if t.minEnv < 0 {
		t.minEnv = 0
	}
	if t.maxEnv < t.minEnv+minSpan {
		t.maxEnv = t.minEnv + minSpan
	}
}

// runAutoGain drives preGate*softwareGain toward the target with a slow
// integral controller and tracks dwell time against the gain limits.
func (t *Tracker) runAutoGain(dt float64) {
	t.softwareGain += agcRate * (t.cfg.AGTarget - t.preGate*t.softwareGain) * dt
	t.softwareGain = clamp(t.softwareGain, t.cfg.AGMin, t.cfg.AGMax)

	if math.IsNaN(t.softwareGain) {
		t.softwareGain = 1.0
	}

	const eps = 1e-6
	if t.softwareGain >= t.cfg.AGMax-eps {
		t.highDwell += dt
	} else {
		t.highDwell = 0
	}
	if t.softwareGain <= t.cfg.AGMin+eps {
		t.lowDwell += dt
	} else {
		t.lowDwell = 0
	}
}

// gateAndCompress applies the noise gate and the soft-knee compressor.
func (t *Tracker) gateAndCompress(x, dt float64) float64 {
	gated := x
	if x < t.cfg.NoiseGate {
		gated = 0
	}

	// Detector runs on the gated signal so the release carries the gate
	// closure down smoothly.
	aAtk := 1 - math.Exp(-dt/compAttackTau)
	aRel := 1 - math.Exp(-dt/compReleaseTau)
	a := aRel
	if gated >= t.compEnv {
		a = aAtk
	}
	t.compEnv += a * (gated - t.compEnv)

	if gated == 0 {
		return 0
	}

	thr := t.cfg.CompThreshold
	ratio := t.cfg.CompRatio
	makeup := 1 / compCurve(1, thr, ratio) // full scale maps back to 1

	gain := 1.0
	if t.compEnv > thr {
		gain = compCurve(t.compEnv, thr, ratio) / t.compEnv
	}
	return clamp(gated*gain*makeup, 0, 1)
}

// compCurve is the compressor's static transfer: identity below the
// threshold, excess attenuated by 1/(1+(ratio-1)*(over/(1-thr))) above it.
func compCurve(x, thr, ratio float64) float64 {
	if x <= thr {
		return x
	}
	over := x - thr
	att := 1 / (1 + (ratio-1)*(over/(1-thr)))
	return thr + over*att
}

// calibrateHardwareGain steps the platform gain at most once per calibration
// period, when the raw signal sits far from target or the software gain has
// dwelt against a limit. Each step is compensated in software so the output
// does not jump.
func (t *Tracker) calibrateHardwareGain(nowMs int64) {
	if nowMs-t.lastCalMs < int64(t.cfg.HWCalPeriodMs) {
		return
	}

	step := 0
	switch {
	case (t.envMean < hwRawLow || t.highDwell > hwDwellSec) && t.hwGain < hwGainMax:
		step = t.cfg.HWGainStep
	case (t.envMean > hwRawHigh || t.lowDwell > hwDwellSec) && t.hwGain > 0:
		step = -t.cfg.HWGainStep
	}
	if step == 0 {
		return
	}

	t.lastCalMs = nowMs
	t.hwGain = clampInt(t.hwGain+step, 0, hwGainMax)
	if step > 0 {
		t.softwareGain /= hwGainComp
	} else {
		t.softwareGain *= hwGainComp
	}
	t.softwareGain = clamp(t.softwareGain, t.cfg.AGMin, t.cfg.AGMax)

	if err := t.sink.SetHardwareGain(t.hwGain); err != nil {
		// Software gain carries on alone.
		if t.sinkErr.Allow(nowMs) {
			t.log.Warnf("hardware gain update failed: %v", err)
		}
	}
}

// SetHardwareGain overrides the hardware gain out of band (console command,
// test rig). The value is forwarded to the sink.
func (t *Tracker) SetHardwareGain(gain int) error {
	t.hwGain = clampInt(gain, 0, hwGainMax)
	return t.sink.SetHardwareGain(t.hwGain)
}

// Read-only accessors for telemetry and diagnostics.

func (t *Tracker) Env() float64          { return t.env }
func (t *Tracker) EnvMean() float64      { return t.envMean }
func (t *Tracker) AdaptiveMin() float64  { return t.minEnv }
func (t *Tracker) AdaptiveMax() float64  { return t.maxEnv }
func (t *Tracker) PreGate() float64      { return t.preGate }
func (t *Tracker) PostAGC() float64      { return t.postAGC }
func (t *Tracker) Level() float64        { return t.level }
func (t *Tracker) SoftwareGain() float64 { return t.softwareGain }
func (t *Tracker) HardwareGain() int     { return t.hwGain }

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
