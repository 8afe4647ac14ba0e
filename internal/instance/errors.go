package instance

import "errors"

var (
	// ErrInvalidRequest reports a request that cannot name an instance:
	// missing template or values, or an unusable project name or session id.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrConfigWrite reports that the configuration artifact could not be
	// written.
	ErrConfigWrite = errors.New("config artifact write failed")

	// ErrGeneration reports that the templating engine failed or that the
	// instance path was already taken.
	ErrGeneration = errors.New("instance generation failed")
)
