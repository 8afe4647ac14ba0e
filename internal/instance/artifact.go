package instance

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ArtifactDir is the directory, under the config root, that holds
// configuration artifacts.
const ArtifactDir = "cookiecutter_test_configs"

// writeFileOp creates a file that must not exist yet.
//
// Validate creates the parent directory and checks for an existing file
// unless force is set. Execute creates the file exclusively, so a file that
// appears between Validate and Execute is still never overwritten.
type writeFileOp struct {
	Path    string
	Content []byte
	Mode    fs.FileMode
}

func (op *writeFileOp) Validate(ctx context.Context, force bool) error {
	dir := filepath.Dir(op.Path)

	// Create parent directory (side effect, but idempotent)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}

	if !force {
		if _, err := os.Stat(op.Path); err == nil {
			return fmt.Errorf("file already exists: %s", op.Path)
		}
	}

	if op.Content == nil {
		return fmt.Errorf("content is nil for file: %s", op.Path)
	}

	return nil
}

func (op *writeFileOp) Execute(ctx context.Context) error {
	f, err := os.OpenFile(op.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, op.Mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(op.Content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (op *writeFileOp) Description() string {
	return fmt.Sprintf("Create %s (%d bytes)", op.Path, len(op.Content))
}
