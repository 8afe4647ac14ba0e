package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/simonhull/firebird-suite/hatch/internal/ledger"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
)

// HistoryCmd creates the 'history' command
func HistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent validation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if a.cfg.Ledger.Path == "" {
				return fmt.Errorf("run history is disabled (ledger.path is empty)")
			}

			store, err := ledger.Open(a.cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				output.Info("No runs recorded yet")
				return nil
			}

			for _, run := range runs {
				summary := fmt.Sprintf("%s  %-8s %-11s %s  (%s)",
					run.Started.Format("2006-01-02 15:04:05"),
					run.SessionID, run.Isolation, run.Template,
					run.Finished.Sub(run.Started).Round(time.Millisecond))

				if run.Passed {
					output.Success(summary)
				} else {
					output.Error(summary)
					output.Step(run.Error)
				}
				if run.CleanupError != "" {
					output.CleanupFailed(run.Path, run.CleanupError)
				}

				if output.IsVerbose() {
					for _, st := range run.Stages {
						output.Stage(st.Name, st.Duration, st.ExitCode, st.Strict)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")

	return cmd
}
