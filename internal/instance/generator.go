package instance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/filesystem"
	"github.com/simonhull/firebird-suite/hatch/internal/session"
)

// Runner executes one external command.
type Runner interface {
	Exec(ctx context.Context, c exec.Command) error
}

// Options configures a Generator. Zero values select the defaults noted on
// each field.
type Options struct {
	Engine       string // Templating engine executable (default "cookiecutter")
	OutputRoot   string // Parent of generated instances (default "sample")
	ConfigRoot   string // Parent of ArtifactDir (default ".")
	ArtifactName string // Artifact file name stem (default "cookiecutter-test-config")
	Format       Format // Artifact encoding (default FormatJSON)
	NameKey      string // Value naming the project directory (default "repo_name")

	// NamespaceSession generates into <OutputRoot>/<session id>/.
	NamespaceSession bool
	// SuffixSession appends "-<session id>" to the project name.
	SuffixSession bool

	IDs    session.Generator // Session id source (default session.UUIDGenerator)
	Logger *slog.Logger
}

// Request asks for one instance.
type Request struct {
	Template  string
	Values    Values
	SessionID string // Minted by the generator when empty
}

// Instance is a generated project on disk and the files that produced it.
type Instance struct {
	Name         string // Resolved project name
	Path         string // OutputDir/Name
	OutputDir    string // Directory passed to the engine
	SessionID    string
	ArtifactPath string
	Namespaced   bool // OutputDir is a per-session directory owned by this instance
}

// Exists reports whether the instance directory is present.
func (i *Instance) Exists() bool {
	info, err := os.Stat(i.Path)
	return err == nil && info.IsDir()
}

// Remove deletes the instance directory, the session directory when the
// instance is namespaced, and the configuration artifact. Paths that do not
// exist are skipped. The output root itself is never removed.
func (i *Instance) Remove() error {
	var errs []error

	if err := os.RemoveAll(i.Path); err != nil {
		errs = append(errs, err)
	}
	if i.Namespaced {
		if err := os.RemoveAll(i.OutputDir); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(i.ArtifactPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Generator materializes template instances.
type Generator struct {
	runner Runner
	opts   Options
	logger *slog.Logger
}

// NewGenerator creates a generator that drives the engine through runner
func NewGenerator(runner Runner, opts Options) *Generator {
	if opts.Engine == "" {
		opts.Engine = "cookiecutter"
	}
	if opts.OutputRoot == "" {
		opts.OutputRoot = "sample"
	}
	if opts.ConfigRoot == "" {
		opts.ConfigRoot = "."
	}
	if opts.ArtifactName == "" {
		opts.ArtifactName = "cookiecutter-test-config"
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if opts.NameKey == "" {
		opts.NameKey = "repo_name"
	}
	if opts.IDs == nil {
		opts.IDs = session.UUIDGenerator{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Generator{
		runner: runner,
		opts:   opts,
		logger: logger,
	}
}

// ArtifactDir returns the directory holding configuration artifacts.
func (g *Generator) ArtifactDir() string {
	return filepath.Join(g.opts.ConfigRoot, ArtifactDir)
}

// ArtifactPath returns the configuration artifact path for a session.
func (g *Generator) ArtifactPath(sessionID string) string {
	return filepath.Join(g.ArtifactDir(), g.opts.ArtifactName+"-"+sessionID+g.opts.Format.Ext())
}

// ArtifactPattern matches the names of every artifact this generator writes.
func (g *Generator) ArtifactPattern() string {
	return g.opts.ArtifactName + "-*" + g.opts.Format.Ext()
}

// OutputRoot returns the configured output root.
func (g *Generator) OutputRoot() string {
	return g.opts.OutputRoot
}

// NewSessionID mints a session id from the configured source.
func (g *Generator) NewSessionID() string {
	return g.opts.IDs.Generate()
}

// Generate materializes one instance of req.Template.
//
// On ErrGeneration or ErrConfigWrite the returned Instance, when non-nil,
// names paths this request may have partially created and that the caller
// may remove. A nil Instance means no instance directory was touched.
func (g *Generator) Generate(ctx context.Context, req Request) (*Instance, error) {
	if req.Template == "" {
		return nil, fmt.Errorf("%w: template source is empty", ErrInvalidRequest)
	}
	if len(req.Values) == 0 {
		return nil, fmt.Errorf("%w: no substitution values", ErrInvalidRequest)
	}

	sid := req.SessionID
	if sid == "" {
		sid = g.opts.IDs.Generate()
	}
	if err := session.Validate(sid); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	values := req.Values.Clone()
	if g.opts.SuffixSession {
		if name := values[g.opts.NameKey]; name != "" {
			values[g.opts.NameKey] = name + "-" + sid
		}
	}
	envelope := Envelope{DefaultContext: values}

	// The path comes from the same envelope the engine reads
	name, err := envelope.ProjectName(g.opts.NameKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	outputDir := g.opts.OutputRoot
	if g.opts.NamespaceSession {
		outputDir = filepath.Join(outputDir, sid)
	}

	inst := &Instance{
		Name:         name,
		Path:         filepath.Join(outputDir, name),
		OutputDir:    outputDir,
		SessionID:    sid,
		ArtifactPath: g.ArtifactPath(sid),
		Namespaced:   g.opts.NamespaceSession,
	}

	if _, err := os.Stat(inst.Path); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", ErrGeneration, inst.Path)
	}

	if err := g.writeArtifact(ctx, inst.ArtifactPath, envelope); err != nil {
		return nil, err
	}

	// The caller never sees inst if the engine panics
	defer func() {
		if p := recover(); p != nil {
			_ = inst.Remove()
			panic(p)
		}
	}()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return inst, fmt.Errorf("%w: creating %s: %w", ErrGeneration, outputDir, err)
	}

	cmd := exec.Command{
		Name: g.opts.Engine,
		Args: []string{
			req.Template,
			"--output-dir", outputDir,
			"--no-input",
			"--config-file", inst.ArtifactPath,
		},
		Label: "generate",
	}

	g.logger.Info("generating instance", "cmd", cmd.String(), "session", sid)

	if err := g.runner.Exec(ctx, cmd); err != nil {
		return inst, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	if !inst.Exists() {
		return inst, fmt.Errorf("%w: %s succeeded but %s was not created (does the template directory use %q?)",
			ErrGeneration, g.opts.Engine, inst.Path, g.opts.NameKey)
	}

	g.logger.Debug("instance generated", "path", inst.Path, "session", sid)
	return inst, nil
}

// writeArtifact writes the envelope to path, never replacing an existing file
func (g *Generator) writeArtifact(ctx context.Context, path string, envelope Envelope) error {
	content, err := envelope.Marshal(g.opts.Format)
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrConfigWrite, err)
	}

	op := &writeFileOp{Path: path, Content: content, Mode: 0644}
	if err := op.Validate(ctx, false); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigWrite, err)
	}
	if err := op.Execute(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigWrite, err)
	}

	g.logger.Debug(op.Description())
	return nil
}

// Orphans reconstructs the instances whose configuration artifacts are
// still on disk. Every artifact belongs to an instance that was never
// released: a crashed run, an interrupted run, or "hatch generate" output.
func (g *Generator) Orphans() ([]*Instance, error) {
	paths, err := filesystem.Glob(g.ArtifactDir(), g.ArtifactPattern())
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	prefix := g.opts.ArtifactName + "-"
	ext := g.opts.Format.Ext()

	var orphans []*Instance
	for _, path := range paths {
		sid := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), prefix), ext)
		if session.Validate(sid) != nil {
			g.logger.Warn("skipping artifact with unexpected name", "path", path)
			continue
		}

		inst := &Instance{
			OutputDir:    g.opts.OutputRoot,
			SessionID:    sid,
			ArtifactPath: path,
			Namespaced:   g.opts.NamespaceSession,
		}
		if inst.Namespaced {
			inst.OutputDir = filepath.Join(inst.OutputDir, sid)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		envelope, err := DecodeEnvelope(data, g.opts.Format)
		if err == nil {
			inst.Name, err = envelope.ProjectName(g.opts.NameKey)
		}
		if err != nil {
			// Without a name only the artifact and session directory can be removed
			g.logger.Warn("artifact names no instance", "path", path, "error", err)
		} else {
			inst.Path = filepath.Join(inst.OutputDir, inst.Name)
		}

		orphans = append(orphans, inst)
	}
	return orphans, nil
}
