package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonhull/firebird-suite/hatch/internal/input"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
)

// CleanCmd creates the 'clean' command
func CleanCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove instances and artifacts left behind",
		Long: `Clean removes every instance that still has a configuration artifact:
output of "hatch generate" and leftovers of interrupted validations.

Do not run it while a validation is in progress in the same directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			gen, err := a.generator()
			if err != nil {
				return err
			}

			orphans, err := gen.Orphans()
			if err != nil {
				return err
			}
			if len(orphans) == 0 {
				output.Info("Nothing to clean")
				return nil
			}

			for _, o := range orphans {
				target := o.Path
				if target == "" {
					target = "(unknown instance)"
				}
				output.Step(fmt.Sprintf("%s  %s", o.SessionID, target))
			}

			if !yes && !input.Confirm(fmt.Sprintf("Remove %d instance(s)?", len(orphans)), false) {
				output.Info("Aborted")
				return nil
			}

			var failed int
			for _, o := range orphans {
				if err := o.Remove(); err != nil {
					failed++
					output.Error(fmt.Sprintf("%s: %v", o.SessionID, err))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d instance(s) could not be removed", failed, len(orphans))
			}

			output.Success(fmt.Sprintf("Removed %d instance(s)", len(orphans)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
