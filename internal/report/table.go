// Package report renders the offline analysis summary. This file contains
// reusable table formatting infrastructure for labelled metric rows.
package report

import (
	"fmt"
	"math"
	"strings"
)

// MetricRow represents a single row in a summary table.
// Values are pre-formatted strings to allow mixed formatting.
type MetricRow struct {
	Label          string   // Row label, e.g. "Estimated tempo"
	Values         []string // One value per column
	Unit           string   // Unit suffix, e.g. "BPM", "" for unitless
	Interpretation string   // Optional interpretation text (only shown if non-empty)
}

// MetricTable formats aligned columns for metric display.
// Handles variable column widths, missing values, and an optional
// interpretation column.
type MetricTable struct {
	Headers []string
	Rows    []MetricRow
}

// AddRow adds a row with pre-formatted values.
func (t *MetricTable) AddRow(label string, values []string, unit, interpretation string) {
	t.Rows = append(t.Rows, MetricRow{
		Label:          label,
		Values:         values,
		Unit:           unit,
		Interpretation: interpretation,
	})
}

// AddMetric adds a single-value row, formatting the number automatically.
// Pass math.NaN() for missing values; they display as "-".
func (t *MetricTable) AddMetric(label string, value float64, decimals int, unit, interpretation string) {
	t.AddRow(label, []string{formatMetric(value, decimals)}, unit, interpretation)
}

// String renders the table with aligned columns: labels left-aligned, values
// right-aligned, units after the last value column.
func (t *MetricTable) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	hasInterpretation := false
	for _, row := range t.Rows {
		if row.Interpretation != "" {
			hasInterpretation = true
			break
		}
	}

	labelWidth := 0
	for _, row := range t.Rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
	}

	valueWidths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		valueWidths[i] = len(header)
	}
	for _, row := range t.Rows {
		for i, val := range row.Values {
			if i < len(valueWidths) && len(val) > valueWidths[i] {
				valueWidths[i] = len(val)
			}
		}
	}

	unitWidth := 0
	for _, row := range t.Rows {
		if len(row.Unit) > unitWidth {
			unitWidth = len(row.Unit)
		}
	}

	var sb strings.Builder

	if headerLine(t.Headers) {
		sb.WriteString(strings.Repeat(" ", labelWidth+2))
		for i, header := range t.Headers {
			sb.WriteString(fmt.Sprintf("%*s  ", valueWidths[i], header))
		}
		sb.WriteString("\n")
	}

	for _, row := range t.Rows {
		sb.WriteString(fmt.Sprintf("%-*s  ", labelWidth, row.Label))

		for i := 0; i < len(t.Headers); i++ {
			val := MissingValue
			if i < len(row.Values) && row.Values[i] != "" {
				val = row.Values[i]
			}
			sb.WriteString(fmt.Sprintf("%*s  ", valueWidths[i], val))
		}

		if unitWidth > 0 {
			sb.WriteString(fmt.Sprintf("%-*s ", unitWidth, row.Unit))
		}

		if hasInterpretation {
			sb.WriteString(row.Interpretation)
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

// headerLine reports whether any header is worth printing.
func headerLine(headers []string) bool {
	for _, h := range headers {
		if h != "" {
			return true
		}
	}
	return false
}

// MissingValue is the placeholder for unavailable measurements
const MissingValue = "-"

// formatMetric formats a numeric value with appropriate precision.
// NaN/Inf display as MissingValue; very small non-zero values use scientific
// notation.
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	if value != 0 && math.Abs(value) < 0.0001 {
		return fmt.Sprintf("%.2e", value)
	}
	format := fmt.Sprintf("%%.%df", decimals)
	return fmt.Sprintf(format, value)
}

// formatPercent formats a 0..1 fraction as a percentage.
func formatPercent(value float64) string {
	if math.IsNaN(value) {
		return MissingValue
	}
	return fmt.Sprintf("%.0f%%", value*100)
}
