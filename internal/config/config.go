// Package config loads hatch.yml.
//
// Every key has a default, so hatch runs without a config file as long as
// a template is given on the command line. Environment variables prefixed
// with HATCH_ override file values; nested keys use underscores, e.g.
// HATCH_VCS_ENABLED=false or HATCH_LEDGER_PATH=/tmp/ledger.db.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/simonhull/firebird-suite/hatch/internal/harness"
	"github.com/simonhull/firebird-suite/hatch/internal/instance"
	"github.com/simonhull/firebird-suite/hatch/internal/session"
)

// FileName is the config file written by "hatch init" and searched for in
// the working directory.
const FileName = "hatch.yml"

// Config is the full hatch configuration.
type Config struct {
	Template  string            `mapstructure:"template" yaml:"template"`
	Values    map[string]string `mapstructure:"values" yaml:"values"`
	Isolation string            `mapstructure:"isolation" yaml:"isolation"`

	OutputRoot       string `mapstructure:"output_root" yaml:"output_root"`
	ConfigRoot       string `mapstructure:"config_root" yaml:"config_root"`
	ArtifactName     string `mapstructure:"artifact_name" yaml:"artifact_name"`
	ConfigFormat     string `mapstructure:"config_format" yaml:"config_format"`
	NameKey          string `mapstructure:"name_key" yaml:"name_key"`
	NamespaceSession bool   `mapstructure:"namespace_session" yaml:"namespace_session"`
	SuffixSession    bool   `mapstructure:"suffix_session" yaml:"suffix_session"`
	SessionIDLength  int    `mapstructure:"session_id_length" yaml:"session_id_length"`

	Engine     string `mapstructure:"engine" yaml:"engine"`
	Entrypoint string `mapstructure:"entrypoint" yaml:"entrypoint"`

	VCS VCS `mapstructure:"vcs" yaml:"vcs"`

	Warmup   []string          `mapstructure:"warmup" yaml:"warmup"`
	Pipeline []string          `mapstructure:"pipeline" yaml:"pipeline"`
	Stages   map[string]string `mapstructure:"stages" yaml:"stages,omitempty"` // Stage name -> entry-point target

	Ledger Ledger `mapstructure:"ledger" yaml:"ledger"`
}

// VCS configures git initialization of generated instances.
type VCS struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Command     string `mapstructure:"command" yaml:"command"`
	Branch      string `mapstructure:"branch" yaml:"branch"`
	Message     string `mapstructure:"message" yaml:"message"`
	AuthorName  string `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" yaml:"author_email"`
}

// Ledger configures the run history database. An empty path disables it.
type Ledger struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	h := harness.DefaultConfig("")
	return &Config{
		Values:           map[string]string{},
		Isolation:        string(harness.PerRun),
		OutputRoot:       "sample",
		ConfigRoot:       "tests",
		ArtifactName:     "cookiecutter-test-config",
		ConfigFormat:     string(instance.FormatJSON),
		NameKey:          "repo_name",
		NamespaceSession: false,
		SuffixSession:    false,
		SessionIDLength:  session.DefaultLength,
		Engine:           "cookiecutter",
		Entrypoint:       h.Entrypoint,
		VCS: VCS{
			Enabled:     h.VCS.Enabled,
			Command:     h.VCS.Command,
			Branch:      h.VCS.Branch,
			Message:     h.VCS.Message,
			AuthorName:  h.VCS.AuthorName,
			AuthorEmail: h.VCS.AuthorEmail,
		},
		Warmup:   h.Warmup,
		Pipeline: h.Pipeline,
		Stages:   map[string]string{},
		Ledger:   Ledger{Path: ".hatch/ledger.db"},
	}
}

// Load reads configuration from path, or from hatch.yml in the working
// directory when path is empty. A missing hatch.yml is not an error; a
// missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	} else {
		// No config type here: with one set, viper also accepts an
		// extensionless "hatch" file, which is usually the binary
		v.SetConfigName("hatch")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Values == nil {
		cfg.Values = map[string]string{}
	}
	if cfg.Stages == nil {
		cfg.Stages = map[string]string{}
	}

	return cfg, nil
}

// setDefaults registers every key so environment overrides apply even when
// the file omits it
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("template", d.Template)
	v.SetDefault("values", d.Values)
	v.SetDefault("isolation", d.Isolation)
	v.SetDefault("output_root", d.OutputRoot)
	v.SetDefault("config_root", d.ConfigRoot)
	v.SetDefault("artifact_name", d.ArtifactName)
	v.SetDefault("config_format", d.ConfigFormat)
	v.SetDefault("name_key", d.NameKey)
	v.SetDefault("namespace_session", d.NamespaceSession)
	v.SetDefault("suffix_session", d.SuffixSession)
	v.SetDefault("session_id_length", d.SessionIDLength)
	v.SetDefault("engine", d.Engine)
	v.SetDefault("entrypoint", d.Entrypoint)
	v.SetDefault("vcs.enabled", d.VCS.Enabled)
	v.SetDefault("vcs.command", d.VCS.Command)
	v.SetDefault("vcs.branch", d.VCS.Branch)
	v.SetDefault("vcs.message", d.VCS.Message)
	v.SetDefault("vcs.author_name", d.VCS.AuthorName)
	v.SetDefault("vcs.author_email", d.VCS.AuthorEmail)
	v.SetDefault("warmup", d.Warmup)
	v.SetDefault("pipeline", d.Pipeline)
	v.SetDefault("stages", d.Stages)
	v.SetDefault("ledger.path", d.Ledger.Path)
}

// Validate checks values that would otherwise fail deep inside a run.
// The template is not required here; commands check it when they need it.
func (c *Config) Validate() error {
	if _, err := harness.ParseIsolation(c.Isolation); err != nil {
		return err
	}
	if _, err := instance.ParseFormat(c.ConfigFormat); err != nil {
		return err
	}
	if c.NameKey == "" {
		return fmt.Errorf("name_key must not be empty")
	}
	if c.SessionIDLength < 1 || c.SessionIDLength > 32 {
		return fmt.Errorf("session_id_length must be between 1 and 32, got %d", c.SessionIDLength)
	}
	if c.Engine == "" {
		return fmt.Errorf("engine must not be empty")
	}
	if c.Entrypoint == "" {
		return fmt.Errorf("entrypoint must not be empty")
	}
	if _, err := c.Catalog(); err != nil {
		return err
	}
	return nil
}

// Catalog returns the default catalog with configured target overrides.
func (c *Config) Catalog() (*harness.Catalog, error) {
	catalog := harness.DefaultCatalog()
	for name, target := range c.Stages {
		if err := catalog.SetTarget(name, target); err != nil {
			return nil, fmt.Errorf("stages.%s: %w", name, err)
		}
	}
	if _, err := catalog.Resolve(c.Warmup); err != nil {
		return nil, fmt.Errorf("warmup: %w", err)
	}
	if _, err := catalog.Resolve(c.Pipeline); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return catalog, nil
}

// GeneratorOptions converts the configuration for instance.NewGenerator.
func (c *Config) GeneratorOptions(logger *slog.Logger) (instance.Options, error) {
	format, err := instance.ParseFormat(c.ConfigFormat)
	if err != nil {
		return instance.Options{}, err
	}

	return instance.Options{
		Engine:           c.Engine,
		OutputRoot:       c.OutputRoot,
		ConfigRoot:       c.ConfigRoot,
		ArtifactName:     c.ArtifactName,
		Format:           format,
		NameKey:          c.NameKey,
		NamespaceSession: c.NamespaceSession,
		SuffixSession:    c.SuffixSession,
		IDs:              session.UUIDGenerator{Length: c.SessionIDLength},
		Logger:           logger,
	}, nil
}

// HarnessConfig converts the configuration for harness.New.
func (c *Config) HarnessConfig(logger *slog.Logger, recorder harness.Recorder) (harness.Config, error) {
	catalog, err := c.Catalog()
	if err != nil {
		return harness.Config{}, err
	}

	return harness.Config{
		Template:   c.Template,
		Entrypoint: c.Entrypoint,
		VCS: harness.VCSConfig{
			Enabled:     c.VCS.Enabled,
			Command:     c.VCS.Command,
			Branch:      c.VCS.Branch,
			Message:     c.VCS.Message,
			AuthorName:  c.VCS.AuthorName,
			AuthorEmail: c.VCS.AuthorEmail,
		},
		Warmup:   c.Warmup,
		Pipeline: c.Pipeline,
		Catalog:  catalog,
		Recorder: recorder,
		Logger:   logger,
	}, nil
}

// Write saves c as YAML at path. An existing file is only replaced when
// force is set.
func Write(path string, c *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Encode renders c as YAML with a leading comment.
func Encode(c *Config) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	header := "# hatch configuration\n# Environment variables prefixed with HATCH_ override these values.\n\n"
	return append([]byte(header), data...), nil
}
