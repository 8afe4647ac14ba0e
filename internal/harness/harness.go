package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/instance"
)

// VCSConfig controls turning the instance into a git repository.
type VCSConfig struct {
	Enabled     bool
	Command     string // default "git"
	Branch      string // default "main"
	Message     string // default "feat: initial commit by hatch"
	AuthorName  string // exported as GIT_AUTHOR_NAME and GIT_COMMITTER_NAME
	AuthorEmail string // exported as GIT_AUTHOR_EMAIL and GIT_COMMITTER_EMAIL
}

// Config configures a Harness.
type Config struct {
	Template   string
	Entrypoint string // Runs stage targets (default "make")
	VCS        VCSConfig

	Warmup   []string // Stages run tolerantly during acquire
	Pipeline []string // Stages run strictly by Run, before fn

	Catalog  *Catalog // default DefaultCatalog()
	Recorder Recorder // Optional
	Logger   *slog.Logger
}

// DefaultConfig returns a configuration with git enabled, the default
// warm-up and the default pipeline.
func DefaultConfig(template string) Config {
	return Config{
		Template:   template,
		Entrypoint: "make",
		VCS: VCSConfig{
			Enabled:     true,
			Command:     "git",
			Branch:      "main",
			Message:     "feat: initial commit by hatch",
			AuthorName:  "hatch",
			AuthorEmail: "hatch@localhost",
		},
		Warmup:   append([]string(nil), DefaultWarmup...),
		Pipeline: append([]string(nil), DefaultPipeline...),
		Catalog:  DefaultCatalog(),
	}
}

// Harness acquires, validates and releases template instances.
type Harness struct {
	gen    *instance.Generator
	runner instance.Runner
	cfg    Config
	logger *slog.Logger
}

// New creates a harness that generates with gen and runs git and stage
// commands through runner
func New(gen *instance.Generator, runner instance.Runner, cfg Config) *Harness {
	if cfg.Entrypoint == "" {
		cfg.Entrypoint = "make"
	}
	if cfg.VCS.Command == "" {
		cfg.VCS.Command = "git"
	}
	if cfg.VCS.Branch == "" {
		cfg.VCS.Branch = "main"
	}
	if cfg.VCS.Message == "" {
		cfg.VCS.Message = "feat: initial commit by hatch"
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Harness{
		gen:    gen,
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
}

// Catalog returns the stages this harness can run.
func (h *Harness) Catalog() *Catalog {
	return h.cfg.Catalog
}

// Acquire generates an instance, initializes git and runs the warm-up
// stages. If any step fails, everything created so far is removed before
// the error is returned.
func (h *Harness) Acquire(ctx context.Context, values instance.Values) (*Lease, error) {
	lease, err := h.acquire(ctx, values, PerRun)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// acquire always returns a lease; on error it has already been released so
// that its report carries the failure and any cleanup error.
func (h *Harness) acquire(ctx context.Context, values instance.Values, iso Isolation) (*Lease, error) {
	lease := &Lease{
		h:         h,
		isolation: iso,
		started:   time.Now(),
	}

	fail := func(err error) (*Lease, error) {
		lease.fail(err)
		lease.release()
		return lease, err
	}

	defer func() {
		if p := recover(); p != nil {
			lease.fail(fmt.Errorf("panic: %v", p))
			lease.release()
			panic(p)
		}
	}()

	warmup, err := h.cfg.Catalog.Resolve(h.cfg.Warmup)
	if err != nil {
		return fail(err)
	}

	inst, err := h.gen.Generate(ctx, instance.Request{
		Template: h.cfg.Template,
		Values:   values,
	})
	lease.inst = inst
	if err != nil {
		return fail(err)
	}

	h.logger.Info("instance acquired", "path", inst.Path, "session", inst.SessionID)

	if h.cfg.VCS.Enabled {
		if err := h.initRepository(ctx, inst.Path); err != nil {
			return fail(err)
		}
	}

	for _, s := range warmup {
		if _, err := lease.Run(ctx, s.Tolerant()); err != nil {
			return fail(err)
		}
	}

	return lease, nil
}

// initRepository runs git init, names the branch and commits every file
func (h *Harness) initRepository(ctx context.Context, dir string) error {
	vcs := h.cfg.VCS

	var env []string
	if vcs.AuthorName != "" {
		env = append(env, "GIT_AUTHOR_NAME="+vcs.AuthorName, "GIT_COMMITTER_NAME="+vcs.AuthorName)
	}
	if vcs.AuthorEmail != "" {
		env = append(env, "GIT_AUTHOR_EMAIL="+vcs.AuthorEmail, "GIT_COMMITTER_EMAIL="+vcs.AuthorEmail)
	}

	steps := [][]string{
		{"init"},
		{"branch", "-m", vcs.Branch},
		{"add", "--all"},
		{"commit", "-m", vcs.Message},
	}

	for _, args := range steps {
		cmd := exec.Command{
			Name:  vcs.Command,
			Args:  args,
			Dir:   dir,
			Env:   env,
			Label: "git",
		}
		h.logger.Debug("initializing repository", "cmd", cmd.String())

		if err := h.runner.Exec(ctx, cmd); err != nil {
			return fmt.Errorf("%w: %s %s: %w", ErrRepoInit, vcs.Command, args[0], err)
		}
	}
	return nil
}

// Run acquires an instance, runs the configured pipeline, calls fn and
// releases the instance. fn may be nil.
//
// Release happens on every path, including a panic in fn, which is
// re-raised afterwards. Run owns the release: a Release call made by fn
// returns nil and does nothing, so the report and the recorder always see
// fn's outcome. The returned error is the first acquire, stage or fn
// failure; cleanup failures only appear in Report.CleanupErr.
func (h *Harness) Run(ctx context.Context, values instance.Values, fn func(*Lease) error) (*Report, error) {
	pipeline, err := h.cfg.Catalog.Resolve(h.cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	lease, err := h.acquire(ctx, values, PerRun)
	if err != nil {
		return lease.Report(), err
	}

	lease.mu.Lock()
	lease.managed = true
	lease.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			lease.fail(fmt.Errorf("panic: %v", p))
			lease.release()
			panic(p)
		}
	}()

	err = lease.RunPipeline(ctx, pipeline)
	if err == nil && fn != nil {
		err = fn(lease)
	}
	lease.fail(err)
	lease.release()

	return lease.Report(), err
}

// Session acquires one instance to be shared by every Check until Close.
func (h *Harness) Session(ctx context.Context, values instance.Values) (*Session, error) {
	lease, err := h.acquire(ctx, values, PerSession)
	if err != nil {
		return nil, err
	}
	return &Session{lease: lease}, nil
}

// record hands a finished report to the recorder
func (h *Harness) record(r *Report) {
	if h.cfg.Recorder == nil {
		return
	}
	if err := h.cfg.Recorder.Record(context.Background(), r); err != nil {
		h.logger.Warn("recording run failed", "session", r.SessionID, "error", err)
	}
}
