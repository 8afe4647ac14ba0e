package input

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// withInput feeds text to the prompts for the duration of the test
func withInput(t *testing.T, text string) *bytes.Buffer {
	t.Helper()

	oldIn, oldOut := in, out
	var buf bytes.Buffer
	in = strings.NewReader(text)
	out = &buf
	t.Cleanup(func() {
		in, out = oldIn, oldOut
	})
	return &buf
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   string
		want  string
	}{
		{name: "typed value", input: "my-template\n", def: ".", want: "my-template"},
		{name: "enter keeps default", input: "\n", def: ".", want: "."},
		{name: "whitespace trimmed", input: "  spaced  \n", def: "", want: "spaced"},
		{name: "eof without newline", input: "last", def: "x", want: "last"},
		{name: "closed input", input: "", def: "fallback", want: "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := withInput(t, tt.input)
			assert.Equal(t, tt.want, Prompt("Template", tt.def))
			assert.Contains(t, buf.String(), "Template")
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "YES", input: "YES\n", want: true},
		{name: "no", input: "n\n", defaultYes: true, want: false},
		{name: "enter with default yes", input: "\n", defaultYes: true, want: true},
		{name: "enter with default no", input: "\n", want: false},
		{name: "closed input", input: "", defaultYes: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withInput(t, tt.input)
			assert.Equal(t, tt.want, Confirm("Continue?", tt.defaultYes))
		})
	}
}

func TestValues(t *testing.T) {
	buf := withInput(t, "my-repo\n\n")

	defaults := map[string]string{"repo_name": "test-repo", "license": "MIT"}
	values := Values([]string{"repo_name", "license", "author"}, defaults)

	assert.Equal(t, map[string]string{"repo_name": "my-repo", "license": "MIT"}, values)
	assert.Equal(t, "test-repo", defaults["repo_name"], "defaults are not modified")
	assert.Contains(t, buf.String(), "repo_name")
	assert.Contains(t, buf.String(), "(MIT)")
	assert.Contains(t, buf.String(), "author")
}

func TestPrompt_ThenValuesShareInput(t *testing.T) {
	withInput(t, "gh:org/template\nmy-repo\n")

	assert.Equal(t, "gh:org/template", Prompt("Template", "."))
	assert.Equal(t, map[string]string{"repo_name": "my-repo"},
		Values([]string{"repo_name"}, map[string]string{"repo_name": "test-repo"}))
}
