package report

import "math"

// Summary accumulates per-frame results during an offline run and renders
// the closing table.
type Summary struct {
	Path         string
	DurationSecs float64

	Frames      int
	OnsetCount  int
	ActiveCount int

	levelSum  float64
	PeakLevel float64

	FinalBPM        float64
	FinalConfidence float64
	LockedAtSec     float64 // -1 until first activation
	HWGain          int
}

// NewSummary starts a summary for one input file.
func NewSummary(path string) *Summary {
	return &Summary{Path: path, LockedAtSec: -1}
}

// Frame folds one frame's outputs into the running statistics.
func (s *Summary) Frame(tSec, level float64, active bool) {
	s.Frames++
	s.levelSum += level
	if level > s.PeakLevel {
		s.PeakLevel = level
	}
	if active {
		s.ActiveCount++
		if s.LockedAtSec < 0 {
			s.LockedAtSec = tSec
		}
	}
}

// MeanLevel is the average output level over the run.
func (s *Summary) MeanLevel() float64 {
	if s.Frames == 0 {
		return 0
	}
	return s.levelSum / float64(s.Frames)
}

// Render produces the summary table.
func (s *Summary) Render() string {
	t := &MetricTable{Headers: []string{""}}

	t.AddMetric("Duration", s.DurationSecs, 1, "s", "")
	t.AddMetric("Frames analysed", float64(s.Frames), 0, "", "")
	t.AddMetric("Onsets detected", float64(s.OnsetCount), 0, "", "")
	t.AddMetric("Mean level", s.MeanLevel(), 3, "", "")
	t.AddMetric("Peak level", s.PeakLevel, 3, "", "")

	bpmNote := ""
	switch {
	case s.FinalConfidence >= 0.8:
		bpmNote = "locked"
	case s.FinalConfidence >= 0.5:
		bpmNote = "tracking"
	default:
		bpmNote = "low confidence"
	}
	t.AddMetric("Estimated tempo", s.FinalBPM, 1, "BPM", bpmNote)
	t.AddMetric("Confidence", s.FinalConfidence, 2, "", "")

	if s.LockedAtSec >= 0 {
		t.AddMetric("First lock", s.LockedAtSec, 1, "s", "")
		active := math.NaN()
		if s.Frames > 0 {
			active = float64(s.ActiveCount) / float64(s.Frames)
		}
		t.AddRow("Beat-active", []string{formatPercent(active)}, "", "")
	} else {
		t.AddRow("First lock", []string{MissingValue}, "", "no stable tempo found")
	}

	t.AddMetric("Hardware gain", float64(s.HWGain), 0, "", "")

	return t.String()
}
