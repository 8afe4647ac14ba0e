package instance

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"
)

// Values maps template placeholder names to substitution values.
type Values map[string]string

// Clone returns a deep copy of v.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	return deepcopy.Copy(v).(Values)
}

// Format selects the encoding of the configuration artifact.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Ext returns the artifact file extension for f.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// ParseFormat validates a configured artifact format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported config format %q (supported: json, yaml)", s)
	}
}

// Envelope is the configuration document cookiecutter reads in
// non-interactive mode.
type Envelope struct {
	DefaultContext Values `json:"default_context" yaml:"default_context"`
}

// Marshal encodes the envelope. Map keys are emitted in sorted order so the
// artifact bytes depend only on the values.
func (e Envelope) Marshal(f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(e)
	case FormatJSON, "":
		data, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported config format %q", f)
	}
}

// DecodeEnvelope parses an artifact written in format f.
func DecodeEnvelope(data []byte, f Format) (Envelope, error) {
	var e Envelope
	var err error
	switch f {
	case FormatYAML:
		err = yaml.Unmarshal(data, &e)
	case FormatJSON, "":
		err = json.Unmarshal(data, &e)
	default:
		err = fmt.Errorf("unsupported config format %q", f)
	}
	return e, err
}

// ProjectName returns the value of key, which must be usable as a single
// directory name.
func (e Envelope) ProjectName(key string) (string, error) {
	name, ok := e.DefaultContext[key]
	if !ok || name == "" {
		return "", fmt.Errorf("values have no %q entry", key)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%s %q is not a single directory name", key, name)
	}
	return name, nil
}
