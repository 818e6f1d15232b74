// Package telemetry emits the core's diagnostic stream as newline-delimited
// JSON. The line shapes are a wire contract with the tuning harness and must
// not change: consumers accept missing optional fields and ignore extras.
package telemetry

import (
	"encoding/json"
	"io"
)

// AudioLine is the per-frame audio snapshot, {"a":{...}}.
type AudioLine struct {
	Level     float64 `json:"l"`
	Transient float64 `json:"t"`
	Peak      float64 `json:"pk"`
	Valley    float64 `json:"vl"`
	Raw       float64 `json:"raw"`
	HWGain    int     `json:"h"`
	Alive     int     `json:"alive"`
	Gain      float64 `json:"z,omitempty"` // software gain, normalised; optional
}

// TempoLine is the per-frame tempo snapshot, {"m":{...}}.
type TempoLine struct {
	Active     int     `json:"a"`
	BPM        float64 `json:"bpm"`
	Phase      float64 `json:"ph"`
	Confidence float64 `json:"conf"`
	Strength   float64 `json:"str"`
	BeatCount  uint64  `json:"bc"`
	Quarter    int     `json:"q"`
	PhaseErr   float64 `json:"e,omitempty"`
	PeriodMs   float64 `json:"p,omitempty"`
}

// TransientEvent is the one-shot onset record.
type TransientEvent struct {
	Type        string  `json:"type"`
	TimestampMs int64   `json:"timestampMs"`
	Strength    float64 `json:"strength"`
}

type audioEnvelope struct {
	A *AudioLine `json:"a"`
}

type tempoEnvelope struct {
	M *TempoLine `json:"m"`
}

// Emitter writes telemetry lines to a single writer. A nil Emitter is valid
// and emits nothing, so callers need no enabled checks.
type Emitter struct {
	enc *json.Encoder
}

// New returns an emitter writing to w, or nil when w is nil.
func New(w io.Writer) *Emitter {
	if w == nil {
		return nil
	}
	return &Emitter{enc: json.NewEncoder(w)}
}

// Audio emits the per-frame audio snapshot.
func (e *Emitter) Audio(line AudioLine) {
	if e == nil {
		return
	}
	_ = e.enc.Encode(audioEnvelope{A: &line})
}

// Tempo emits the per-frame tempo snapshot.
func (e *Emitter) Tempo(line TempoLine) {
	if e == nil {
		return
	}
	_ = e.enc.Encode(tempoEnvelope{M: &line})
}

// Transient emits a one-shot onset event.
func (e *Emitter) Transient(timestampMs int64, strength float64) {
	if e == nil {
		return
	}
	_ = e.enc.Encode(TransientEvent{Type: "TRANSIENT", TimestampMs: timestampMs, Strength: strength})
}
