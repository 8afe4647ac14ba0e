package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Executor runs external commands
type Executor struct {
	stdout  io.Writer
	stderr  io.Writer
	env     []string
	dir     string
	spinner bool

	// For mocking in tests
	commandFunc func(name string, args ...string) *exec.Cmd
}

// Options configures command execution
type Options struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Env     []string // Additional environment variables
	Dir     string   // Default working directory
	Spinner bool     // Show a spinner for labelled commands instead of streaming output
}

// Command describes a single external invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string   // Working directory, overrides the executor default
	Env   []string // Added on top of the executor environment
	Label string   // Output prefix and spinner message
}

// String returns the command line for logs and error messages
func (c Command) String() string {
	parts := []string{c.Name}
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// NewExecutor creates an executor with sensible defaults
func NewExecutor(opts *Options) *Executor {
	if opts == nil {
		opts = &Options{}
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Executor{
		stdout:      stdout,
		stderr:      stderr,
		env:         opts.Env,
		dir:         opts.Dir,
		spinner:     opts.Spinner,
		commandFunc: exec.Command, // Can be mocked for tests
	}
}

// Exec runs c. Labelled commands get prefixed output, or a spinner when the
// executor was created with Spinner enabled.
func (e *Executor) Exec(ctx context.Context, c Command) error {
	sub := e.derive(c)

	if c.Label == "" {
		return sub.Run(ctx, c.Name, c.Args...)
	}

	if e.spinner {
		return sub.RunWithSpinner(ctx, c.Label, c.Name, c.Args...)
	}

	stdout, stderr := NewStreamingPair(e.stdout, e.stderr, c.Label)
	sub.stdout = stdout
	sub.stderr = stderr

	err := sub.Run(ctx, c.Name, c.Args...)
	_ = stdout.Flush()
	_ = stderr.Flush()
	return err
}

// derive returns a copy of e configured for c
func (e *Executor) derive(c Command) *Executor {
	env := make([]string, 0, len(e.env)+len(c.Env))
	env = append(env, e.env...)
	env = append(env, c.Env...)

	dir := c.Dir
	if dir == "" {
		dir = e.dir
	}

	return &Executor{
		stdout:      e.stdout,
		stderr:      e.stderr,
		env:         env,
		dir:         dir,
		spinner:     e.spinner,
		commandFunc: e.commandFunc,
	}
}

// Run executes a command, streaming its output to the executor writers
func (e *Executor) Run(ctx context.Context, name string, args ...string) error {
	cmd := e.commandFunc(name, args...)

	// Set working directory
	if e.dir != "" {
		cmd.Dir = e.dir
	}

	// Set environment on top of whatever the command already carries
	if len(e.env) > 0 {
		base := cmd.Env
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(base, e.env...)
	}

	// Connect output streams
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	// Start the command
	if err := cmd.Start(); err != nil {
		if isCommandNotFound(err) {
			return enhanceError(err, name)
		}
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	// Wait for completion
	errCh := make(chan error, 1)
	go func() {
		errCh <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	case err := <-errCh:
		if err != nil {
			if isCommandNotFound(err) {
				return enhanceError(err, name)
			}
			return fmt.Errorf("%s failed: %w", name, err)
		}
		return nil
	}
}

// RunWithSpinner runs a command with a progress spinner, discarding its output
func (e *Executor) RunWithSpinner(ctx context.Context, message string, name string, args ...string) error {
	// Create pipes to capture output
	stdoutPipe, stdoutWriter := io.Pipe()
	stderrPipe, stderrWriter := io.Pipe()

	// Create a new executor with piped output
	execWithPipes := &Executor{
		stdout:      stdoutWriter,
		stderr:      stderrWriter,
		env:         e.env,
		dir:         e.dir,
		commandFunc: e.commandFunc,
	}

	// Channel to signal command completion
	done := make(chan error, 1)

	// Run command in background
	go func() {
		err := execWithPipes.Run(ctx, name, args...)
		stdoutWriter.Close()
		stderrWriter.Close()
		done <- err
	}()

	m := newSpinnerModel(message)
	p := tea.NewProgram(m, tea.WithOutput(e.stderr), tea.WithInput(nil))

	go func() {
		// Spinner failures never affect the command result
		_, _ = p.Run()
	}()

	go io.Copy(io.Discard, stdoutPipe)
	go io.Copy(io.Discard, stderrPipe)

	err := <-done

	p.Send(spinnerDoneMsg{err: err})

	// Give spinner time to render final state
	time.Sleep(50 * time.Millisecond)
	p.Quit()

	return err
}

// ExitCode returns the exit status carried by err: 0 for nil, the process
// exit code when err wraps one, and -1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

// spinnerModel is the bubbletea model for the spinner
type spinnerModel struct {
	spinner spinner.Model
	message string
	done    bool
	err     error
}

type spinnerDoneMsg struct {
	err error
}

func newSpinnerModel(message string) *spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &spinnerModel{
		spinner: s,
		message: message,
	}
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done {
		if m.err != nil {
			return fmt.Sprintf("❌ %s\n", m.message)
		}
		return fmt.Sprintf("✅ %s\n", m.message)
	}
	return fmt.Sprintf("%s %s...", m.spinner.View(), m.message)
}

// isCommandNotFound checks if an error indicates a command was not found
func isCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) ||
		strings.Contains(err.Error(), "executable file not found") ||
		strings.Contains(err.Error(), "command not found")
}

// enhanceError adds helpful message for missing commands
func enhanceError(err error, cmd string) error {
	return fmt.Errorf("%w\n💡 Command '%s' not found. Please install it and try again", err, cmd)
}
