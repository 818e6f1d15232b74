// Package logx defines the narrow logging surface the analysis core emits
// warnings through. The shell passes a charmbracelet/log Logger; tests and
// bare-metal builds pass Nop.
package logx

// Logger is the subset of a leveled logger the core needs. The hot path never
// logs; only sanity repairs and configuration corrections reach it.
type Logger interface {
	Warnf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

// Nop discards everything.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{}) {}

// Limiter suppresses repeats of a warning until at least intervalMs has
// passed. State is per-call-site; zero value is ready to use.
type Limiter struct {
	lastMs     int64
	IntervalMs int64
}

// Allow reports whether a warning may fire at nowMs, and records it if so.
func (l *Limiter) Allow(nowMs int64) bool {
	interval := l.IntervalMs
	if interval == 0 {
		interval = 5000
	}
	if l.lastMs != 0 && nowMs-l.lastMs < interval {
		return false
	}
	l.lastMs = nowMs
	return true
}
