// Package engine composes the analysis pipeline and publishes the per-frame
// control signal.
//
// The frame loop is single-threaded and never blocks: each Step drains the
// intake, advances the envelope, onset, and tempo stages in order, and
// publishes an immutable Control snapshot. The producer callback touches only
// the intake accumulator.
package engine

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/luminode/beatcore/internal/config"
	"github.com/luminode/beatcore/internal/envelope"
	"github.com/luminode/beatcore/internal/intake"
	"github.com/luminode/beatcore/internal/logx"
	"github.com/luminode/beatcore/internal/onset"
	"github.com/luminode/beatcore/internal/telemetry"
	"github.com/luminode/beatcore/internal/tempo"
)

// Control is the frame-rate control signal read by the LED generators.
// Snapshots are immutable; consumers copy, never mutate.
type Control struct {
	Level      float32 // 0..1, post gate/AGC/compression
	Raw        float32 // 0..1, pre gate
	Transient  float32 // 0..1, decaying onset strength
	Pulse      float32 // 0..1, beat-synchronous envelope
	BPM        float32
	Phase      float32 // 0..1, 0 = on beat
	Confidence float32 // 0..1
	Active     bool
	Beat       bool // one-shot: this frame crossed a beat
	Half       bool // one-shot: half-note boundary
	Whole      bool // one-shot: whole-bar boundary
	HWGain     uint8
	Alive      bool // false when the intake has been silent too long
}

// Clock supplies monotonic milliseconds since start.
type Clock interface {
	NowMs() int64
}

// WallClock is the default monotonic clock.
type WallClock struct {
	start time.Time
}

func NewWallClock() *WallClock { return &WallClock{start: time.Now()} }

func (c *WallClock) NowMs() int64 { return time.Since(c.start).Milliseconds() }

// ManualClock is a deterministic clock for offline replay and tests.
type ManualClock struct {
	ms float64
}

func (c *ManualClock) NowMs() int64 { return int64(c.ms) }

// Advance moves the clock forward by dt seconds.
func (c *ManualClock) Advance(dt float64) { c.ms += dt * 1000 }

// Engine owns the pipeline. OnBlock is safe from the producer context;
// everything else belongs to the frame loop.
type Engine struct {
	cfg *config.Params

	intake *intake.Accumulator
	env    *envelope.Tracker
	det    *onset.Detector
	tempo  *tempo.Tracker
	tel    *telemetry.Emitter
	clock  Clock

	transient float64
	lastPeak  uint16

	latest atomic.Pointer[Control]
}

// Options carries the optional collaborators. Zero value is fully usable.
type Options struct {
	Sink      envelope.GainSink  // hardware gain sink; nil for none
	Logger    logx.Logger        // shell logger; nil discards
	Telemetry *telemetry.Emitter // nil disables telemetry
	Clock     Clock              // nil uses a wall clock
}

// New builds an engine from sanitised parameters.
func New(cfg *config.Params, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = NewWallClock()
	}
	e := &Engine{
		cfg:    cfg,
		intake: intake.New(),
		env:    envelope.New(cfg, opts.Sink, opts.Logger),
		det:    onset.New(cfg),
		tempo:  tempo.New(cfg, opts.Logger),
		tel:    opts.Telemetry,
		clock:  opts.Clock,
	}
	e.latest.Store(&Control{})
	return e
}

// OnBlock ingests one producer block. Producer context only.
func (e *Engine) OnBlock(samples []int16) {
	e.intake.OnBlock(e.clock.NowMs(), samples)
}

// Step runs one frame with elapsed time dt seconds and returns the new
// snapshot. Frame loop only.
func (e *Engine) Step(dt float64) Control {
	nowMs := e.clock.NowMs()

	snap := e.intake.Drain()
	alive := e.intake.Alive(nowMs, config.IntakeTimeoutMs)

	// An empty frame leaves the envelope untouched. The onset and tempo
	// stages still run every frame, so the beat phase keeps advancing with
	// dt and the transient output keeps decaying.
	if snap.Count > 0 {
		e.env.Update(snap.AvgAbs, dt, nowMs)
		e.lastPeak = snap.PeakAbs
	}

	e.det.AddSamples(snap.Samples)
	frameStrength := 0.0
	for e.det.Ready() {
		frame := e.det.Process(nowMs, e.env.Level())
		if frame.Onset {
			e.tempo.OnOnset(nowMs, frame.Strength)
			e.tel.Transient(nowMs, frame.Strength)
			if frame.Strength > frameStrength {
				frameStrength = frame.Strength
			}
		}
	}

	e.transient *= math.Exp(-dt * e.cfg.TransientDecay)
	if frameStrength > e.transient {
		e.transient = frameStrength
	}

	e.tempo.Tick(dt, nowMs, frameStrength)

	ctrl := Control{
		Level:      float32(e.env.Level()),
		Raw:        float32(e.env.PreGate()),
		Transient:  float32(e.transient),
		BPM:        float32(e.tempo.BPM()),
		Phase:      float32(e.tempo.Phase()),
		Confidence: float32(e.tempo.Confidence()),
		Active:     e.tempo.Active(),
		Beat:       e.tempo.Beat(),
		Half:       e.tempo.Half(),
		Whole:      e.tempo.Whole(),
		HWGain:     uint8(e.env.HardwareGain()),
		Alive:      alive,
	}
	if ctrl.Active {
		ctrl.Pulse = float32(1 - e.tempo.Phase())
	}

	// A dead intake zeroes the audio outputs but every state machine keeps
	// its state so recovery is immediate.
	if !alive {
		ctrl.Level, ctrl.Raw, ctrl.Transient, ctrl.Pulse = 0, 0, 0, 0
		ctrl.Beat, ctrl.Half, ctrl.Whole = false, false, false
	}

	e.latest.Store(&ctrl)
	e.emit(ctrl)
	return ctrl
}

// Control returns the most recent snapshot. Safe from any goroutine.
func (e *Engine) Control() Control {
	return *e.latest.Load()
}

// Reset clears the onset detector's spectral history, e.g. on a mode change.
// Tempo and envelope state are retained.
func (e *Engine) Reset() {
	e.det.Reset()
}

// Onsets returns the number of onsets fed to the tempo tracker so far.
func (e *Engine) Onsets() int {
	return e.tempo.OnsetCount()
}

func (e *Engine) emit(ctrl Control) {
	if e.tel == nil {
		return
	}
	aliveFlag := 0
	if ctrl.Alive {
		aliveFlag = 1
	}
	e.tel.Audio(telemetry.AudioLine{
		Level:     float64(ctrl.Level),
		Transient: float64(ctrl.Transient),
		Peak:      float64(e.lastPeak) / 32768.0,
		Valley:    e.env.AdaptiveMin() / 32768.0,
		Raw:       float64(ctrl.Raw),
		HWGain:    e.env.HardwareGain(),
		Alive:     aliveFlag,
		Gain:      e.env.SoftwareGain() / e.cfg.AGMax,
	})
	activeFlag := 0
	if ctrl.Active {
		activeFlag = 1
	}
	quarterFlag := 0
	if e.tempo.Quarter() {
		quarterFlag = 1
	}
	e.tel.Tempo(telemetry.TempoLine{
		Active:     activeFlag,
		BPM:        float64(ctrl.BPM),
		Phase:      float64(ctrl.Phase),
		Confidence: float64(ctrl.Confidence),
		Strength:   float64(ctrl.Transient),
		BeatCount:  e.tempo.BeatNumber(),
		Quarter:    quarterFlag,
		PhaseErr:   e.tempo.PhaseError(),
		PeriodMs:   e.tempo.PeriodMs(),
	})
}
