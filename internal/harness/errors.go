package harness

import (
	"errors"
	"fmt"
)

var (
	// ErrRepoInit reports that one of the git initialization steps failed.
	ErrRepoInit = errors.New("repository initialization failed")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrCleanup reports that generated paths could not be removed.
	ErrCleanup = errors.New("cleanup failed")

	// ErrClosed is returned when a released lease or closed session is used.
	ErrClosed = errors.New("instance already released")

	// ErrUnknownStage reports a stage name missing from the catalog.
	ErrUnknownStage = errors.New("unknown stage")
)

// ValidationError is a strict stage that exited non-zero.
type ValidationError struct {
	Stage    string
	ExitCode int
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("stage %s failed with exit code %d", e.Stage, e.ExitCode)
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
