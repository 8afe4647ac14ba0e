package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
)

// ExitError is a non-zero process exit, as exec.ExitCode understands it.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// ExitCode returns the scripted exit status.
func (e ExitError) ExitCode() int { return e.Code }

// DefaultFiles are written into every instance the fake engine generates.
var DefaultFiles = map[string]string{
	"Makefile":       "lint-ci:\n\t@true\ninstall:\n\t@true\ntest:\n\t@true\n",
	"README.md":      "# generated\n",
	"pyproject.toml": "[project]\n",
	"src/app.py":     "def add(a, b):\n    return a + b\n",
	"tests/t.py":     "from app import add\n",
}

// FakeRunner stands in for cookiecutter, git and make.
//
// The fake engine reads the configuration artifact named by --config-file,
// creates <output-dir>/<value of NameKey>/ and fills it with Files. Fake git
// creates .git/ on init, records the branch on "branch -m" and appends each
// commit message to .git/COMMITS. Every other command succeeds unless an exit
// code was scripted with Fail.
type FakeRunner struct {
	NameKey string
	Files   map[string]string

	mu     sync.Mutex
	calls  []exec.Command
	exits  map[string][]int
	panics map[string]bool
}

// NewFakeRunner returns a runner that generates DefaultFiles under "repo_name".
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		NameKey: "repo_name",
		Files:   DefaultFiles,
		exits:   make(map[string][]int),
		panics:  make(map[string]bool),
	}
}

// Key identifies a call for scripting: the engine is "cookiecutter", other
// tools are "<name> <first arg>", e.g. "make install" or "git commit".
func Key(c exec.Command) string {
	if c.Name == "cookiecutter" || len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + c.Args[0]
}

// Fail scripts exit codes for calls matching key. Codes are consumed in
// order and the last one repeats, so Fail("make lint-ci", 1, 0) fails the
// first lint and passes every later one.
func (f *FakeRunner) Fail(key string, codes ...int) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exits[key] = codes
	return f
}

// Panic makes calls matching key panic once their side effects are done,
// so a panicking engine leaves its tree behind.
func (f *FakeRunner) Panic(key string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[key] = true
	return f
}

// Exec records c and simulates it.
func (f *FakeRunner) Exec(ctx context.Context, c exec.Command) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s cancelled: %w", c.Name, err)
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	code := f.nextExit(Key(c))
	panics := f.panics[Key(c)]
	f.mu.Unlock()

	var err error
	switch c.Name {
	case "cookiecutter":
		err = f.cookiecut(c)
	case "git":
		err = f.git(c)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", c.Name, err)
	}
	if panics {
		panic(Key(c) + " panicked")
	}

	if code != 0 {
		return fmt.Errorf("%s failed: %w", c.Name, ExitError{Code: code})
	}
	return nil
}

// nextExit pops the next scripted exit code; callers hold f.mu
func (f *FakeRunner) nextExit(key string) int {
	codes := f.exits[key]
	if len(codes) == 0 {
		return 0
	}
	code := codes[0]
	if len(codes) > 1 {
		f.exits[key] = codes[1:]
	}
	return code
}

// Calls returns every command executed so far.
func (f *FakeRunner) Calls() []exec.Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	calls := make([]exec.Command, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// Commands returns the command lines executed so far.
func (f *FakeRunner) Commands() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// CountKey returns how many calls matched key.
func (f *FakeRunner) CountKey(key string) int {
	n := 0
	for _, c := range f.Calls() {
		if Key(c) == key {
			n++
		}
	}
	return n
}

func (f *FakeRunner) cookiecut(c exec.Command) error {
	outputDir := flagValue(c.Args, "--output-dir")
	configFile := flagValue(c.Args, "--config-file")
	if outputDir == "" || configFile == "" {
		return ExitError{Code: 2}
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return ExitError{Code: 1}
	}

	// JSON is valid YAML, so one decoder reads either artifact format
	var envelope struct {
		DefaultContext map[string]string `yaml:"default_context"`
	}
	if err := yaml.Unmarshal(data, &envelope); err != nil {
		return ExitError{Code: 1}
	}

	name := envelope.DefaultContext[f.NameKey]
	if name == "" {
		return ExitError{Code: 1}
	}

	root := filepath.Join(outputDir, name)
	if _, err := os.Stat(root); err == nil {
		// cookiecutter's OutputDirExistsException
		return ExitError{Code: 1}
	}

	for rel, content := range f.Files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return os.MkdirAll(root, 0755)
}

func (f *FakeRunner) git(c exec.Command) error {
	if info, err := os.Stat(c.Dir); err != nil || !info.IsDir() {
		return ExitError{Code: 128}
	}
	gitDir := filepath.Join(c.Dir, ".git")

	switch {
	case len(c.Args) > 0 && c.Args[0] == "init":
		return os.MkdirAll(gitDir, 0755)
	case len(c.Args) > 2 && c.Args[0] == "branch" && c.Args[1] == "-m":
		return os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/"+c.Args[2]+"\n"), 0644)
	case len(c.Args) > 2 && c.Args[0] == "commit":
		fh, err := os.OpenFile(filepath.Join(gitDir, "COMMITS"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		defer fh.Close()
		_, err = fh.WriteString(strings.Join(c.Args[2:], " ") + "\n")
		return err
	}
	return nil
}

// flagValue returns the argument following flag
func flagValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
