package harness

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Isolation selects how instances are shared between checks.
type Isolation string

const (
	// PerRun generates a fresh instance for every Harness.Run.
	PerRun Isolation = "per-run"
	// PerSession shares one instance across every check of a Session.
	PerSession Isolation = "per-session"
)

// ParseIsolation validates a configured isolation mode. Empty means PerRun.
func ParseIsolation(s string) (Isolation, error) {
	switch Isolation(strings.ToLower(s)) {
	case "", PerRun:
		return PerRun, nil
	case PerSession:
		return PerSession, nil
	default:
		return "", fmt.Errorf("unknown isolation %q (supported: %s, %s)", s, PerRun, PerSession)
	}
}

// Report summarizes one acquire/release cycle.
type Report struct {
	SessionID string
	Template  string
	Path      string // Instance path, empty when generation never named one
	Isolation Isolation
	Started   time.Time
	Finished  time.Time
	Stages    []StageResult

	// Err is the first acquire, strict stage or callback failure.
	Err error
	// CleanupErr is set when release could not remove everything. It never
	// replaces Err.
	CleanupErr error
}

// Passed reports whether the cycle completed without error. Cleanup
// failures are not counted.
func (r *Report) Passed() bool {
	return r.Err == nil
}

// Failed returns the stages that exited non-zero, strict or tolerant.
func (r *Report) Failed() []StageResult {
	var failed []StageResult
	for _, s := range r.Stages {
		if !s.Passed() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Duration is the wall time between acquire and release.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Recorder persists reports after release.
type Recorder interface {
	Record(ctx context.Context, r *Report) error
}
