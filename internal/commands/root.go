package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/simonhull/firebird-suite/hatch"
	"github.com/simonhull/firebird-suite/hatch/internal/config"
	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/harness"
	"github.com/simonhull/firebird-suite/hatch/internal/instance"
	"github.com/simonhull/firebird-suite/hatch/internal/ledger"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
)

// newRunner builds the command runner. Tests swap it for a fake.
var newRunner = func(spinner bool) instance.Runner {
	return exec.NewExecutor(&exec.Options{Spinner: spinner})
}

// RootCmd creates and returns the root command for the hatch CLI
func RootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "hatch",
		Short: "Generate and validate cookiecutter template instances",
		Long: `Hatch materializes a cookiecutter template with a set of values, turns the
result into a git repository, runs its lint, install and test targets, and
removes everything it generated, whatever the outcome.

Configuration is read from hatch.yml in the working directory (see
"hatch init"). Every key can be overridden with a HATCH_ environment
variable, for example HATCH_ISOLATION=per-session.`,
		Version:       hatch.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			output.SetVerbose(verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")
	cmd.PersistentFlags().StringP("config", "c", "", "Config file (default: ./hatch.yml)")

	return cmd
}

// VersionCmd prints the hatch version
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hatch v%s\n", hatch.Version)
		},
	}
}

// app is everything a command needs to generate and validate instances
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	runner  instance.Runner
	verbose bool
}

// loadApp reads configuration and wires the logger and runner
func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	spinner := !verbose && term.IsTerminal(int(os.Stdout.Fd()))

	return &app{
		cfg:     cfg,
		logger:  newLogger(verbose),
		runner:  newRunner(spinner),
		verbose: verbose,
	}, nil
}

// newLogger returns a debug-level stderr logger in verbose mode and a
// discarding one otherwise
func newLogger(verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (a *app) generator() (*instance.Generator, error) {
	opts, err := a.cfg.GeneratorOptions(a.logger)
	if err != nil {
		return nil, err
	}
	return instance.NewGenerator(a.runner, opts), nil
}

// harness builds a harness; the returned close func releases the ledger
func (a *app) harness() (*harness.Harness, func(), error) {
	gen, err := a.generator()
	if err != nil {
		return nil, nil, err
	}

	var recorder harness.Recorder
	closeFn := func() {}

	if a.cfg.Ledger.Path != "" {
		store, err := ledger.Open(a.cfg.Ledger.Path)
		if err != nil {
			// History is optional; validation still runs
			output.Warn(fmt.Sprintf("Run history disabled: %v", err))
		} else {
			recorder = store
			closeFn = func() { store.Close() }
		}
	}

	hc, err := a.cfg.HarnessConfig(a.logger, recorder)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return harness.New(gen, a.runner, hc), closeFn, nil
}

// resolveTemplate picks the template argument over the configured one
func (a *app) resolveTemplate(args []string) error {
	if len(args) > 0 {
		a.cfg.Template = args[0]
	}
	if a.cfg.Template == "" {
		return fmt.Errorf("no template given (pass one as an argument or set template in %s)", config.FileName)
	}
	return nil
}

// values merges --set pairs over the configured values
func (a *app) values(sets []string) (instance.Values, error) {
	values := instance.Values(a.cfg.Values).Clone()
	if values == nil {
		values = instance.Values{}
	}

	overrides, err := parseSet(sets)
	if err != nil {
		return nil, err
	}
	for k, v := range overrides {
		values[k] = v
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("no values (use --set %s=<name> or set values in %s)", a.cfg.NameKey, config.FileName)
	}
	return values, nil
}

// parseSet parses key=value pairs
func parseSet(pairs []string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", pair)
		}
		result[key] = value
	}
	return result, nil
}
