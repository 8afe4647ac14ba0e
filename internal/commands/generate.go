package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/simonhull/firebird-suite/hatch/internal/filesystem"
	"github.com/simonhull/firebird-suite/hatch/internal/instance"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
)

// GenerateCmd creates the 'generate' command
func GenerateCmd() *cobra.Command {
	var sets []string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "generate [template]",
		Short: "Generate one template instance and keep it",
		Long: `Generate runs cookiecutter non-interactively and prints the instance path.

The instance and its configuration artifact are left on disk; remove them
with "hatch clean".

Examples:
  hatch generate gh:org/python-template --set repo_name=demo
  hatch generate --set repo_name=demo --session dev01`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := a.resolveTemplate(args); err != nil {
				return err
			}
			values, err := a.values(sets)
			if err != nil {
				return err
			}
			gen, err := a.generator()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			output.Info(fmt.Sprintf("Generating %s", a.cfg.Template))

			inst, err := gen.Generate(ctx, instance.Request{
				Template:  a.cfg.Template,
				Values:    values,
				SessionID: sessionID,
			})
			if err != nil {
				if inst != nil {
					if rerr := inst.Remove(); rerr != nil {
						output.CleanupFailed(inst.Path, rerr.Error())
					}
				}
				return err
			}

			files, _ := filesystem.CountFiles(inst.Path)
			output.Success(fmt.Sprintf("Generated %s", inst.Path))
			output.Step(fmt.Sprintf("session:  %s", inst.SessionID))
			output.Step(fmt.Sprintf("config:   %s", inst.ArtifactPath))
			output.Step(fmt.Sprintf("files:    %d", files))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Template value as key=value (repeatable)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (default: random)")

	return cmd
}
