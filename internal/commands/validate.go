package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/simonhull/firebird-suite/hatch/internal/harness"
	"github.com/simonhull/firebird-suite/hatch/internal/instance"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
)

// ValidateCmd creates the 'validate' command
func ValidateCmd() *cobra.Command {
	var sets, stages []string
	var isolation string

	cmd := &cobra.Command{
		Use:   "validate [template]",
		Short: "Generate an instance, run its checks and remove it",
		Long: `Validate runs the full lifecycle against a fresh instance:

  1. cookiecutter generates the instance
  2. git init, branch, add and commit (unless vcs.enabled is false)
  3. warm-up stages run and may fail (lint auto-fixes the tree)
  4. pipeline stages run; the first strict failure stops a per-run validation
  5. the instance, its session directory and its artifact are removed

Stages:
  lint           make lint-ci
  install        make install
  test           make test
  test-artifact  make test-wheel-locally

With --isolation per-session every stage runs against the same instance and
all failures are reported.

Examples:
  hatch validate gh:org/python-template --set repo_name=demo
  hatch validate --stage lint --stage test
  hatch validate --isolation per-session`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := a.resolveTemplate(args); err != nil {
				return err
			}
			if cmd.Flags().Changed("isolation") {
				a.cfg.Isolation = isolation
			}
			if len(stages) > 0 {
				a.cfg.Pipeline = stages
			}
			iso, err := harness.ParseIsolation(a.cfg.Isolation)
			if err != nil {
				return err
			}
			values, err := a.values(sets)
			if err != nil {
				return err
			}

			h, closeLedger, err := a.harness()
			if err != nil {
				return err
			}
			defer closeLedger()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			output.Info(fmt.Sprintf("Validating %s (%s)", a.cfg.Template, iso))

			var report *harness.Report
			if iso == harness.PerSession {
				report, err = validateSession(ctx, h, values, a.cfg.Pipeline)
			} else {
				report, err = h.Run(ctx, values, nil)
			}

			printReport(report)
			if err != nil {
				return err
			}

			output.Success(fmt.Sprintf("%s validated in %s", a.cfg.Template, report.Duration().Round(time.Millisecond)))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Template value as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&stages, "stage", nil, "Stage to run (repeatable, default: configured pipeline)")
	cmd.Flags().StringVar(&isolation, "isolation", "", "per-run or per-session (default: configured isolation)")

	return cmd
}

// validateSession runs every stage against one shared instance and returns
// the first strict failure
func validateSession(ctx context.Context, h *harness.Harness, values instance.Values, names []string) (*harness.Report, error) {
	s, err := h.Session(ctx, values)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var errs []error
	for _, name := range names {
		if _, err := s.Check(ctx, name); err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}

	// A close failure shows up in the report as CleanupErr
	_ = s.Close()

	if len(errs) > 0 {
		return s.Report(), errors.Join(errs...)
	}
	return s.Report(), nil
}

// printReport lists each stage outcome
func printReport(r *harness.Report) {
	if r == nil {
		return
	}

	for _, st := range r.Stages {
		output.Stage(st.Stage.Name, st.Duration, st.ExitCode, st.Stage.Strict)
	}

	if r.CleanupErr != nil {
		output.CleanupFailed(r.Path, r.CleanupErr.Error())
	}
	if r.Path != "" {
		output.Verbose(fmt.Sprintf("instance %s (session %s)", r.Path, r.SessionID))
	}
}
