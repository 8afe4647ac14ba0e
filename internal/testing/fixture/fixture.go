// Package fixture exposes harness instances to Go tests, released through
// t.Cleanup.
package fixture

import (
	"context"
	"testing"

	"github.com/simonhull/firebird-suite/hatch/internal/harness"
	"github.com/simonhull/firebird-suite/hatch/internal/instance"
)

// Acquire returns a fresh instance that is released when the test ends.
// A failed acquire stops the test. A failed release is only logged: the
// results are already in by then.
func Acquire(t testing.TB, h *harness.Harness, values instance.Values) *harness.Lease {
	t.Helper()

	lease, err := h.Acquire(context.Background(), values)
	if err != nil {
		t.Fatalf("acquiring instance: %v", err)
	}

	t.Cleanup(func() {
		if err := lease.Release(); err != nil {
			t.Logf("releasing instance %s: %v", lease.Path(), err)
		}
	})
	return lease
}

// Session returns an instance shared by every check in the test, closed
// when the test (including its subtests) ends.
func Session(t testing.TB, h *harness.Harness, values instance.Values) *harness.Session {
	t.Helper()

	s, err := h.Session(context.Background(), values)
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("closing session %s: %v", s.Path(), err)
		}
	})
	return s
}
