package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/instance"
)

// Lease is exclusive use of one generated instance until Release.
//
// Thread-safety: Release, Report and Results may be called from any
// goroutine. Stages share one working tree and are meant to run one at a
// time.
type Lease struct {
	h         *Harness
	inst      *instance.Instance
	isolation Isolation
	started   time.Time

	mu       sync.Mutex
	results  []StageResult
	err      error
	released bool
	managed  bool
	report   *Report

	once       sync.Once
	releaseErr error
}

// Path returns the instance directory.
func (l *Lease) Path() string {
	if l.inst == nil {
		return ""
	}
	return l.inst.Path
}

// Instance returns the generated instance.
func (l *Lease) Instance() *instance.Instance {
	return l.inst
}

// Results returns the stages run so far, warm-up included.
func (l *Lease) Results() []StageResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	results := make([]StageResult, len(l.results))
	copy(results, l.results)
	return results
}

// Run executes one stage inside the instance.
//
// A strict stage that exits non-zero returns a *ValidationError. A tolerant
// stage's failure is logged and recorded, and Run returns nil unless ctx
// was cancelled.
func (l *Lease) Run(ctx context.Context, s Stage) (StageResult, error) {
	l.mu.Lock()
	released := l.released
	l.mu.Unlock()
	if released {
		return StageResult{Stage: s}, fmt.Errorf("%w: cannot run %s", ErrClosed, s.Name)
	}

	h := l.h
	cmd := exec.Command{
		Name:  h.cfg.Entrypoint,
		Args:  []string{s.Target},
		Dir:   l.inst.Path,
		Label: s.Name,
	}

	h.logger.Info("running stage", "stage", s.Name, "cmd", cmd.String(), "strict", s.Strict)

	start := time.Now()
	err := h.runner.Exec(ctx, cmd)
	result := StageResult{
		Stage:    s,
		ExitCode: exec.ExitCode(err),
		Duration: time.Since(start),
		Err:      err,
	}

	l.mu.Lock()
	l.results = append(l.results, result)
	l.mu.Unlock()

	if err == nil {
		h.logger.Debug("stage passed", "stage", s.Name, "duration", result.Duration)
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("stage %s: %w", s.Name, ctxErr)
	}

	if !s.Strict {
		h.logger.Warn("tolerant stage failed", "stage", s.Name, "exit_code", result.ExitCode)
		return result, nil
	}

	verr := &ValidationError{Stage: s.Name, ExitCode: result.ExitCode, Err: err}
	l.fail(verr)
	return result, verr
}

// RunPipeline runs stages in order, stopping at the first error.
func (l *Lease) RunPipeline(ctx context.Context, stages []Stage) error {
	for _, s := range stages {
		if _, err := l.Run(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Release removes the instance directory, its session directory when the
// instance was namespaced, and its configuration artifact. Missing paths
// are ignored. Only the first call does any work; later calls return the
// same result. Inside Harness.Run the lease is released by Run itself and
// Release returns nil.
func (l *Lease) Release() error {
	l.mu.Lock()
	managed := l.managed
	l.mu.Unlock()
	if managed {
		return nil
	}
	return l.release()
}

func (l *Lease) release() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.released = true
		l.mu.Unlock()

		if l.inst != nil {
			if err := l.inst.Remove(); err != nil {
				l.releaseErr = fmt.Errorf("%w: %w", ErrCleanup, err)
				l.h.logger.Error("releasing instance", "path", l.inst.Path, "error", err)
			} else {
				l.h.logger.Info("instance released", "path", l.inst.Path, "session", l.inst.SessionID)
			}
		}

		l.mu.Lock()
		l.report = l.buildReport()
		report := l.report
		l.mu.Unlock()

		l.h.record(report)
	})
	return l.releaseErr
}

// Report returns the cycle summary, or nil before Release.
func (l *Lease) Report() *Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.report
}

// fail records err as the outcome unless an earlier failure was recorded
func (l *Lease) fail(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = err
	}
}

// buildReport snapshots the lease; callers hold l.mu
func (l *Lease) buildReport() *Report {
	r := &Report{
		Template:   l.h.cfg.Template,
		Isolation:  l.isolation,
		Started:    l.started,
		Finished:   time.Now(),
		Stages:     append([]StageResult(nil), l.results...),
		Err:        l.err,
		CleanupErr: l.releaseErr,
	}
	if l.inst != nil {
		r.SessionID = l.inst.SessionID
		r.Path = l.inst.Path
	}
	return r
}
