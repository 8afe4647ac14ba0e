package harness

import (
	"context"
	"fmt"
)

// Session shares one instance across any number of checks. Close releases
// it.
type Session struct {
	lease *Lease
}

// Path returns the shared instance directory.
func (s *Session) Path() string {
	return s.lease.Path()
}

// Lease exposes the underlying lease.
func (s *Session) Lease() *Lease {
	return s.lease
}

// Check runs a catalog stage against the shared instance, with the
// catalog's strictness.
func (s *Session) Check(ctx context.Context, name string) (StageResult, error) {
	stage, ok := s.lease.h.cfg.Catalog.Get(name)
	if !ok {
		return StageResult{}, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	return s.lease.Run(ctx, stage)
}

// CheckTolerant runs a catalog stage whose failure is recorded and ignored.
func (s *Session) CheckTolerant(ctx context.Context, name string) (StageResult, error) {
	stage, ok := s.lease.h.cfg.Catalog.Get(name)
	if !ok {
		return StageResult{}, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	return s.lease.Run(ctx, stage.Tolerant())
}

// Close releases the instance. It is safe to call more than once.
func (s *Session) Close() error {
	return s.lease.Release()
}

// Report returns the session summary, or nil before Close.
func (s *Session) Report() *Report {
	return s.lease.Report()
}
