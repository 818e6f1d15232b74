package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioLineShape(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)

	e.Audio(AudioLine{Level: 0.5, Transient: 0.25, Peak: 0.9, Valley: 0.1, Raw: 0.6, HWGain: 42, Alive: 1, Gain: 0.33})

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	a, ok := decoded["a"]
	require.True(t, ok, "audio lines live under the 'a' key")

	for _, key := range []string{"l", "t", "pk", "vl", "raw", "h", "alive", "z"} {
		assert.Contains(t, a, key)
	}
	assert.EqualValues(t, 42, a["h"])
	assert.EqualValues(t, 1, a["alive"])
}

func TestAudioLineOmitsZeroGain(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)

	e.Audio(AudioLine{Level: 0.5})

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.NotContains(t, decoded["a"], "z", "optional field omitted when zero")
}

func TestTempoLineShape(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)

	e.Tempo(TempoLine{Active: 1, BPM: 128, Phase: 0.75, Confidence: 0.8, Strength: 0.5, BeatCount: 17, Quarter: 1, PhaseErr: -0.01, PeriodMs: 468.75})

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	m, ok := decoded["m"]
	require.True(t, ok, "tempo lines live under the 'm' key")

	for _, key := range []string{"a", "bpm", "ph", "conf", "str", "bc", "q"} {
		assert.Contains(t, m, key)
	}
	assert.EqualValues(t, 128, m["bpm"])
	assert.EqualValues(t, 17, m["bc"])
}

func TestTransientEventShape(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)

	e.Transient(12345, 0.875)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "TRANSIENT", decoded["type"])
	assert.EqualValues(t, 12345, decoded["timestampMs"])
	assert.EqualValues(t, 0.875, decoded["strength"])
}

func TestLinesAreNewlineDelimited(t *testing.T) {
	var buf bytes.Buffer
	e := New(&buf)

	e.Audio(AudioLine{Level: 0.1})
	e.Tempo(TempoLine{BPM: 120})
	e.Transient(1, 0.5)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var v map[string]any
		assert.NoError(t, json.Unmarshal([]byte(line), &v))
	}
}

func TestNilEmitterIsSafe(t *testing.T) {
	var e *Emitter
	e.Audio(AudioLine{})
	e.Tempo(TempoLine{})
	e.Transient(0, 0)

	assert.Nil(t, New(nil))
}
