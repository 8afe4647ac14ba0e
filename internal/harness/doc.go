// Package harness wraps a generated template instance in an
// acquire/validate/release lifecycle.
//
// Acquire generates an instance, optionally turns it into a git repository
// and runs tolerant warm-up stages (lint auto-fix by default). The instance
// is then handed out as a Lease: stages run inside it through an entry point
// such as make, and Release removes the instance directory, its session
// directory and its configuration artifact.
//
// Two isolation modes are offered:
//
//	report, err := h.Run(ctx, values, func(l *harness.Lease) error {
//	    // per-run: a fresh instance, released when fn returns or panics
//	    return nil
//	})
//
//	s, err := h.Session(ctx, values)
//	defer s.Close()
//	s.Check(ctx, harness.StageTest) // per-session: one instance, many checks
//
// Stages are either strict or tolerant. A strict stage that exits non-zero
// fails with a *ValidationError; a tolerant one is recorded and ignored.
package harness
