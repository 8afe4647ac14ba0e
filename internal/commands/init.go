package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonhull/firebird-suite/hatch/internal/config"
	"github.com/simonhull/firebird-suite/hatch/internal/input"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
)

// InitCmd creates the 'init' command
func InitCmd() *cobra.Command {
	var yes, force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a hatch.yml with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.FileName
			}

			cfg := config.Default()
			cfg.Template = "."
			cfg.Values[cfg.NameKey] = "test-repo"

			if !yes {
				cfg.Template = input.Prompt("Template", cfg.Template)
				cfg.Values = input.Values([]string{cfg.NameKey}, cfg.Values)
			}

			if err := config.Write(path, cfg, force); err != nil {
				return err
			}

			output.Success(fmt.Sprintf("Wrote %s", path))
			output.Step("Run 'hatch validate' to generate and check an instance")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
