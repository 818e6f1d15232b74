package report

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyTableRendersNothing(t *testing.T) {
	tbl := &MetricTable{Headers: []string{"Value"}}
	assert.Empty(t, tbl.String())
}

func TestTableAlignsColumns(t *testing.T) {
	tbl := &MetricTable{Headers: []string{"Value"}}
	tbl.AddMetric("Tempo", 120.04, 1, "BPM", "")
	tbl.AddMetric("Confidence", 0.87, 2, "", "")

	out := tbl.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3) // header + 2 rows
	assert.Contains(t, out, "120.0")
	assert.Contains(t, out, "0.87")
	assert.Contains(t, out, "BPM")
}

func TestMissingValuesRenderAsDash(t *testing.T) {
	tbl := &MetricTable{Headers: []string{""}}
	tbl.AddMetric("Tempo", math.NaN(), 1, "BPM", "")
	assert.Contains(t, tbl.String(), MissingValue)
}

func TestInterpretationColumnOnlyWhenPresent(t *testing.T) {
	tbl := &MetricTable{Headers: []string{""}}
	tbl.AddMetric("Tempo", 120, 1, "BPM", "locked")
	assert.Contains(t, tbl.String(), "locked")
}

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"plain", 12.345, 2, "12.35"},
		{"zero", 0, 1, "0.0"},
		{"nan", math.NaN(), 1, MissingValue},
		{"inf", math.Inf(1), 1, MissingValue},
		{"tiny uses scientific", 0.00001, 2, "1.00e-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMetric(tt.value, tt.decimals))
		})
	}
}

func TestSummaryRender(t *testing.T) {
	s := NewSummary("clip.wav")
	s.DurationSecs = 10
	for i := 0; i < 600; i++ {
		s.Frame(float64(i)/60, 0.5, i > 300)
	}
	s.OnsetCount = 20
	s.FinalBPM = 120.2
	s.FinalConfidence = 0.9
	s.HWGain = 40

	out := s.Render()
	assert.Contains(t, out, "Estimated tempo")
	assert.Contains(t, out, "120.2")
	assert.Contains(t, out, "locked")
	assert.Contains(t, out, "First lock")
	assert.Contains(t, out, "50%")
}

func TestSummaryWithoutLock(t *testing.T) {
	s := NewSummary("clip.wav")
	s.Frame(0, 0.1, false)
	s.FinalBPM = 97
	s.FinalConfidence = 0.1

	out := s.Render()
	assert.Contains(t, out, "no stable tempo found")
	assert.Contains(t, out, "low confidence")
}
