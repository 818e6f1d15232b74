// Package config holds the tunable parameters for the audio analysis core.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixed properties of the audio front end. These are wired into buffer sizes
// at initialisation and are not runtime-tunable.
const (
	// SampleRate is the PCM input rate in Hz.
	SampleRate = 16000

	// MaxBlockSamples is the largest block the producer callback may deliver.
	MaxBlockSamples = 512

	// IntakeTimeoutMs is how long the intake tolerates silence from the
	// producer before reporting alive=false.
	IntakeTimeoutMs = 250
)

// Params is the full parameter set for the analysis pipeline.
// All values are clamped to their documented ranges by Sanitise before use;
// out-of-range input is corrected, never rejected.
type Params struct {
	// Envelope and dynamic range
	NoiseGate  float64 `yaml:"noise_gate"`  // 0..0.5: post-AGC level below which output clamps to 0
	AttackTau  float64 `yaml:"attack_tau"`  // seconds: envelope follower attack time constant
	ReleaseTau float64 `yaml:"release_tau"` // seconds: envelope follower release time constant

	// Software auto-gain
	AGTarget float64 `yaml:"ag_target"` // 0.1..0.95: target pre-gate level
	AGMin    float64 `yaml:"ag_min"`    // software gain lower clamp
	AGMax    float64 `yaml:"ag_max"`    // software gain upper clamp

	// Compressor
	CompThreshold float64 `yaml:"comp_threshold"` // 0..1: knee position
	CompRatio     float64 `yaml:"comp_ratio"`     // >=1: compression ratio

	// Hardware gain calibration
	HWGainStep    int `yaml:"hw_gain_step"`     // 1..80: step size per calibration
	HWCalPeriodMs int `yaml:"hw_cal_period_ms"` // >100: minimum ms between calibrations

	// Onset detection
	OnsetCooldownMs int     `yaml:"onset_cooldown_ms"` // >=20: minimum ms between onsets
	OnsetFactor     float64 `yaml:"onset_factor"`      // >1: multiple of mean flux to trigger

	// Tempo tracking
	BPMMin              float64 `yaml:"bpm_min"`
	BPMMax              float64 `yaml:"bpm_max"`
	ActivationThreshold float64 `yaml:"activation_threshold"` // 0..1: confidence to enter Locked
	MinBeatsToActivate  int     `yaml:"min_beats_to_activate"`
	MaxMissedBeats      int     `yaml:"max_missed_beats"`
	PLLKp               float64 `yaml:"pll_kp"` // proportional gain at confidence=1
	PLLKi               float64 `yaml:"pll_ki"` // integral gain at confidence=1
	PhaseSnapThreshold  float64 `yaml:"phase_snap_threshold"`  // 0..0.5
	PhaseSnapConfidence float64 `yaml:"phase_snap_confidence"` // 0..1
	CombFeedback        float64 `yaml:"comb_feedback"`         // 0..1
	CombDecay           float64 `yaml:"comb_decay"`            // 0..1
	BPMLockMaxChange    float64 `yaml:"bpm_lock_max_change"`   // BPM per second when locked

	// Control signal
	TransientDecay float64 `yaml:"transient_decay"` // 1/s: decay rate of the transient output

	// FrameRate is the nominal consumer frame rate in Hz. It quantises the
	// comb bank's delay-line periods; the rest of the pipeline derives its
	// coefficients from dt and does not assume a cadence.
	FrameRate float64 `yaml:"frame_rate"`
}

// Default returns the parameter set with documented defaults.
func Default() *Params {
	return &Params{
		NoiseGate:           0.06,
		AttackTau:           0.08,
		ReleaseTau:          0.30,
		AGTarget:            0.35,
		AGMin:               0.5,
		AGMax:               3.0,
		CompThreshold:       0.7,
		CompRatio:           3.0,
		HWGainStep:          2,
		HWCalPeriodMs:       2000,
		OnsetCooldownMs:     80,
		OnsetFactor:         2.0,
		BPMMin:              60,
		BPMMax:              200,
		ActivationThreshold: 0.6,
		MinBeatsToActivate:  4,
		MaxMissedBeats:      8,
		PLLKp:               0.08,
		PLLKi:               0.002,
		PhaseSnapThreshold:  0.25,
		PhaseSnapConfidence: 0.4,
		CombFeedback:        0.5,
		CombDecay:           0.95,
		BPMLockMaxChange:    20,
		TransientDecay:      3.0,
		FrameRate:           60,
	}
}

// Diagnostic is called once per corrected parameter during Sanitise.
// A nil diagnostic discards the messages.
type Diagnostic func(name string, was, now float64)

// Sanitise clamps every parameter to its documented range in place.
// It returns the number of corrections made.
func (p *Params) Sanitise(diag Diagnostic) int {
	if diag == nil {
		diag = func(string, float64, float64) {}
	}
	n := 0
	clampF := func(name string, v *float64, lo, hi float64) {
		if *v >= lo && *v <= hi {
			return
		}
		was := *v
		*v = clamp(*v, lo, hi)
		diag(name, was, *v)
		n++
	}
	clampI := func(name string, v *int, lo, hi int) {
		if *v >= lo && *v <= hi {
			return
		}
		was := *v
		if *v < lo {
			*v = lo
		} else {
			*v = hi
		}
		diag(name, float64(was), float64(*v))
		n++
	}

	clampF("noise_gate", &p.NoiseGate, 0, 0.5)
	clampF("attack_tau", &p.AttackTau, 0.001, 5)
	clampF("release_tau", &p.ReleaseTau, 0.001, 10)
	clampF("ag_target", &p.AGTarget, 0.1, 0.95)
	clampF("ag_min", &p.AGMin, 0.01, 10)
	clampF("ag_max", &p.AGMax, p.AGMin, 20)
	clampF("comp_threshold", &p.CompThreshold, 0.05, 0.99)
	clampF("comp_ratio", &p.CompRatio, 1, 20)
	clampI("hw_gain_step", &p.HWGainStep, 1, 80)
	clampI("hw_cal_period_ms", &p.HWCalPeriodMs, 101, 60000)
	clampI("onset_cooldown_ms", &p.OnsetCooldownMs, 20, 2000)
	clampF("onset_factor", &p.OnsetFactor, 1.01, 10)
	clampF("bpm_min", &p.BPMMin, 30, 300)
	clampF("bpm_max", &p.BPMMax, p.BPMMin+1, 400)
	clampF("activation_threshold", &p.ActivationThreshold, 0, 1)
	clampI("min_beats_to_activate", &p.MinBeatsToActivate, 1, 64)
	clampI("max_missed_beats", &p.MaxMissedBeats, 1, 64)
	clampF("pll_kp", &p.PLLKp, 0, 1)
	clampF("pll_ki", &p.PLLKi, 0, 1)
	clampF("phase_snap_threshold", &p.PhaseSnapThreshold, 0, 0.5)
	clampF("phase_snap_confidence", &p.PhaseSnapConfidence, 0, 1)
	clampF("comb_feedback", &p.CombFeedback, 0, 1)
	clampF("comb_decay", &p.CombDecay, 0, 0.999)
	clampF("bpm_lock_max_change", &p.BPMLockMaxChange, 0.1, 1000)
	clampF("transient_decay", &p.TransientDecay, 0.1, 50)
	clampF("frame_rate", &p.FrameRate, 10, 240)
	return n
}

// Load reads a YAML parameter file over the defaults and sanitises the
// result. A missing path returns the defaults unchanged.
func Load(path string, diag Diagnostic) (*Params, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	p.Sanitise(diag)
	return p, nil
}

// clamp restricts val to the range [min, max].
func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
