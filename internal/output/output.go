package output

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	passStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("green"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	tolerateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))

	verboseMode bool
)

// SetVerbose enables or disables verbose output.
// The CLI calls this when the --verbose flag is set.
func SetVerbose(v bool) {
	verboseMode = v
}

// IsVerbose reports whether verbose output is enabled.
func IsVerbose() bool {
	return verboseMode
}

// Success prints a success message with 🐣 emoji and green color.
//
// Example:
//
//	output.Success("Validated test-repo")
func Success(msg string) {
	fmt.Println(successStyle.Render("🐣 " + msg))
}

// Error prints an error message with ❌ emoji and red color.
func Error(msg string) {
	fmt.Println(errorStyle.Render("❌ " + msg))
}

// Warn prints a warning with ⚠️ emoji and yellow color.
// Use this for problems that do not fail the command, such as a
// cleanup failure after results were recorded.
func Warn(msg string) {
	fmt.Println(warnStyle.Render("⚠️  " + msg))
}

// Info prints an informational message with ℹ️ emoji and cyan color.
func Info(msg string) {
	fmt.Println(infoStyle.Render("ℹ️  " + msg))
}

// Step prints an indented step message in gray.
func Step(msg string) {
	fmt.Println(stepStyle.Render("   " + msg))
}

// Verbose prints a debug message with 🔍 emoji only if verbose mode is enabled.
func Verbose(msg string) {
	if verboseMode {
		fmt.Println(stepStyle.Render("🔍 " + msg))
	}
}

// Stage prints the outcome of one validation stage, indented like Step.
// A zero exit code passed; otherwise strict stages are marked ✗ and
// tolerant ones ~.
//
// Example:
//
//	output.Stage("install", 3*time.Second, 2, true)
//	// Displays:    ✗ install        3s (exit 2)
func Stage(name string, d time.Duration, exitCode int, strict bool) {
	line := fmt.Sprintf("%-14s %s", name, d.Round(time.Millisecond))
	switch {
	case exitCode == 0:
		fmt.Println("   " + passStyle.Render("✓") + " " + stepStyle.Render(line))
	case strict:
		fmt.Println("   " + failStyle.Render("✗") + " " + stepStyle.Render(fmt.Sprintf("%s (exit %d)", line, exitCode)))
	default:
		fmt.Println("   " + tolerateStyle.Render("~") + " " + stepStyle.Render(fmt.Sprintf("%s (exit %d, tolerated)", line, exitCode)))
	}
}

// CleanupFailed warns that an instance was not fully removed. It never
// fails the command; "hatch clean" removes the leftovers later.
func CleanupFailed(path, reason string) {
	if path == "" {
		path = "instance"
	}
	Warn(fmt.Sprintf("Cleanup of %s incomplete: %s", path, reason))
	Step("run 'hatch clean' to remove what is left")
}
