package harness

import (
	"fmt"
	"sync"
	"time"
)

// Names of the stages in the default catalog.
const (
	StageLint         = "lint"
	StageInstall      = "install"
	StageTest         = "test"
	StageTestArtifact = "test-artifact"
)

// Stage is one verification step, run as "<entrypoint> <Target>" inside the
// instance.
type Stage struct {
	Name   string
	Target string
	Strict bool // Non-zero exit fails the run
}

// Tolerant returns a copy of s whose failures are recorded and ignored.
func (s Stage) Tolerant() Stage {
	s.Strict = false
	return s
}

// StageResult is the outcome of running one stage.
type StageResult struct {
	Stage    Stage
	ExitCode int // 0 on success, -1 when the entry point could not be run
	Duration time.Duration
	Err      error
}

// Passed reports whether the stage exited zero.
func (r StageResult) Passed() bool {
	return r.Err == nil
}

// Catalog is an ordered registry of named stages.
//
// Thread-safety: Catalog is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	stages map[string]Stage
	order  []string
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		stages: make(map[string]Stage),
	}
}

// DefaultCatalog returns the standard stages, in this order:
//
//	lint           make lint-ci
//	install        make install
//	test           make test
//	test-artifact  make test-wheel-locally
//
// All of them are strict; warm-up runs relax lint to tolerant.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, s := range []Stage{
		{Name: StageLint, Target: "lint-ci", Strict: true},
		{Name: StageInstall, Target: "install", Strict: true},
		{Name: StageTest, Target: "test", Strict: true},
		{Name: StageTestArtifact, Target: "test-wheel-locally", Strict: true},
	} {
		// Names are distinct and non-empty
		_ = c.Register(s)
	}
	return c
}

// DefaultWarmup names the stages run tolerantly while acquiring.
var DefaultWarmup = []string{StageLint}

// DefaultPipeline names the stages Harness.Run executes before fn.
var DefaultPipeline = []string{StageLint, StageInstall, StageTestArtifact}

// Register adds a stage to the catalog
func (c *Catalog) Register(s Stage) error {
	if s.Name == "" {
		return fmt.Errorf("cannot register stage with empty name")
	}
	if s.Target == "" {
		return fmt.Errorf("stage '%s' has no target", s.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.stages[s.Name]; exists {
		return fmt.Errorf("stage '%s' is already registered", s.Name)
	}

	c.stages[s.Name] = s
	c.order = append(c.order, s.Name)
	return nil
}

// Get retrieves a stage by name
func (c *Catalog) Get(name string) (Stage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.stages[name]
	return s, ok
}

// Has checks if a stage is registered
func (c *Catalog) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// List returns stage names in registration order
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Size returns the number of registered stages
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.stages)
}

// SetTarget changes the entry-point target of a registered stage
func (c *Catalog) SetTarget(name, target string) error {
	if target == "" {
		return fmt.Errorf("stage '%s': empty target", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stages[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	s.Target = target
	c.stages[name] = s
	return nil
}

// Resolve looks up stages by name, keeping the given order
func (c *Catalog) Resolve(names []string) ([]Stage, error) {
	stages := make([]Stage, 0, len(names))
	for _, name := range names {
		s, ok := c.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s (known: %v)", ErrUnknownStage, name, c.List())
		}
		stages = append(stages, s)
	}
	return stages, nil
}
