package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	// Swapped in tests
	in  io.Reader = os.Stdin
	out io.Writer = os.Stdout

	reader   *bufio.Reader
	readerOf io.Reader
)

// lineReader returns the buffered reader over in, rebuilt when in changes.
// Every prompt reads through it so lines buffered by one prompt reach the next.
func lineReader() *bufio.Reader {
	if reader == nil || readerOf != in {
		reader = bufio.NewReader(in)
		readerOf = in
	}
	return reader
}

// Prompt asks the user for text input with an optional default value.
// If the user presses Enter without typing anything, the default is returned.
//
// Example:
//
//	name := input.Prompt("Project name", "test-repo")
//	// Displays: Project name (test-repo): _
func Prompt(message, defaultValue string) string {
	return prompt(message, defaultValue)
}

func prompt(message, defaultValue string) string {
	if defaultValue != "" {
		fmt.Fprint(out, promptStyle.Render(message)+" "+
			hintStyle.Render(fmt.Sprintf("(%s)", defaultValue))+": ")
	} else {
		fmt.Fprint(out, promptStyle.Render(message)+": ")
	}

	line, err := lineReader().ReadString('\n')
	if err != nil && line == "" {
		return defaultValue
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return defaultValue
	}

	return line
}

// Confirm asks the user a yes/no question.
// Returns true if the user answers yes (y/Y/yes/YES), false otherwise.
// If defaultYes is true, pressing Enter returns true.
//
// Example:
//
//	if input.Confirm("Remove orphaned artifacts?", false) {
//	    // User said yes
//	}
//	// Displays: Remove orphaned artifacts? [y/N]: _
func Confirm(message string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	fmt.Fprint(out, promptStyle.Render(message)+" "+hintStyle.Render(hint)+": ")

	line, err := lineReader().ReadString('\n')
	if err != nil && line == "" {
		return defaultYes
	}

	line = strings.TrimSpace(strings.ToLower(line))
	if line == "" {
		return defaultYes
	}

	return line == "y" || line == "yes"
}

// Values prompts for each template key in order, offering the value in
// defaults, and returns a new map holding defaults plus the answers.
// Keys answered with an empty string and no default are left out.
//
// Example:
//
//	values := input.Values([]string{"repo_name"}, map[string]string{"repo_name": "test-repo"})
//	// Displays: repo_name (test-repo): _
func Values(keys []string, defaults map[string]string) map[string]string {
	values := make(map[string]string, len(defaults)+len(keys))
	for k, v := range defaults {
		values[k] = v
	}

	for _, key := range keys {
		if v := prompt(key, defaults[key]); v != "" {
			values[key] = v
		}
	}
	return values
}
