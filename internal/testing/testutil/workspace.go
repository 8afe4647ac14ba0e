package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Workspace is a temporary directory laid out like a template checkout:
// instances are generated under sample/ and artifacts are written under
// tests/.
type Workspace struct {
	Root string
	t    testing.TB
}

// NewWorkspace creates a workspace in a fresh temporary directory
func NewWorkspace(t testing.TB) *Workspace {
	t.Helper()

	return &Workspace{
		Root: t.TempDir(),
		t:    t,
	}
}

// OutputRoot is where instances are generated
func (w *Workspace) OutputRoot() string {
	return filepath.Join(w.Root, "sample")
}

// ConfigRoot is the parent of the artifact directory
func (w *Workspace) ConfigRoot() string {
	return filepath.Join(w.Root, "tests")
}

// Exists checks if a path exists; relative paths are resolved against Root
func (w *Workspace) Exists(path string) bool {
	w.t.Helper()

	if !filepath.IsAbs(path) {
		path = filepath.Join(w.Root, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// WriteFile writes a file relative to Root, creating parent directories
func (w *Workspace) WriteFile(path, content string) {
	w.t.Helper()

	full := filepath.Join(w.Root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		w.t.Fatalf("creating %s: %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		w.t.Fatalf("writing %s: %v", full, err)
	}
}

// ReadFile reads a file; relative paths are resolved against Root
func (w *Workspace) ReadFile(path string) string {
	w.t.Helper()

	if !filepath.IsAbs(path) {
		path = filepath.Join(w.Root, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		w.t.Fatalf("reading %s: %v", path, err)
	}
	return string(content)
}
