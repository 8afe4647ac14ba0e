// Package hatch materializes cookiecutter templates into throwaway project
// instances and validates them with the instance's own tooling.
package hatch

// Version is the current hatch release.
const Version = "0.1.0"
