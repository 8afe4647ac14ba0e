// Package exec runs the external tools hatch drives: the templating engine,
// git, and the generated project's own entry point.
//
// The package is domain-agnostic. It provides:
//
// 1. Executor - runs commands with context support, labelled streaming output and spinners
// 2. Command - a value describing one invocation (name, args, working directory, env, label)
// 3. ExitCode - recovers the process exit status from any error the executor returned
//
// # Basic Usage
//
//	executor := exec.NewExecutor(nil)
//	err := executor.Exec(ctx, exec.Command{
//	    Name:  "make",
//	    Args:  []string{"lint-ci"},
//	    Dir:   instancePath,
//	    Label: "lint",
//	})
//	if code := exec.ExitCode(err); code != 0 {
//	    // the tool failed
//	}
//
// Labelled commands stream every output line with a "[label] " prefix. When the
// executor is created with Spinner enabled, labelled commands show a spinner
// instead and their output is discarded.
//
// # Testing
//
// Executor swaps its command constructor in tests; callers that depend on
// process execution should accept a small interface with an Exec method so
// that tests can substitute a fake runner.
package exec
