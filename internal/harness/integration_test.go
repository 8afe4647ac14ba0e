//go:build integration

package harness_test

import (
	"context"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/harness"
	"github.com/simonhull/firebird-suite/hatch/internal/instance"
	"github.com/simonhull/firebird-suite/hatch/internal/testing/fixture"
	"github.com/simonhull/firebird-suite/hatch/internal/testing/testutil"
)

// Run with: go test -tags integration ./internal/harness/...

func requireTools(t *testing.T) {
	t.Helper()
	for _, tool := range []string{"cookiecutter", "git", "make"} {
		if _, err := osexec.LookPath(tool); err != nil {
			t.Skipf("%s not found on PATH", tool)
		}
	}
}

func newRealHarness(t *testing.T, genOpts instance.Options) (*harness.Harness, *testutil.Workspace) {
	t.Helper()
	requireTools(t)

	template, err := filepath.Abs(filepath.Join("testdata", "template"))
	require.NoError(t, err)

	ws := testutil.NewWorkspace(t)
	runner := exec.NewExecutor(&exec.Options{Stdout: testWriter{t}, Stderr: testWriter{t}})

	genOpts.OutputRoot = ws.OutputRoot()
	genOpts.ConfigRoot = ws.ConfigRoot()
	gen := instance.NewGenerator(runner, genOpts)

	return harness.New(gen, runner, harness.DefaultConfig(template)), ws
}

func TestIntegration_GenerateAndCommit(t *testing.T) {
	h, _ := newRealHarness(t, instance.Options{})

	lease := fixture.Acquire(t, h, instance.Values{"project_name": "Test Repo", "repo_name": "test-repo"})

	assert.True(t, strings.HasSuffix(lease.Path(), "test-repo"))
	assert.FileExists(t, filepath.Join(lease.Path(), "Makefile"))
	assert.DirExists(t, filepath.Join(lease.Path(), ".git"))

	out, err := osexec.Command("git", "-C", lease.Path(), "rev-list", "--count", "main").Output()
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(string(out)))

	out, err = osexec.Command("git", "-C", lease.Path(), "log", "-1", "--format=%s").Output()
	require.NoError(t, err)
	assert.Equal(t, "feat: initial commit by hatch", strings.TrimSpace(string(out)))
}

func TestIntegration_FullPipeline(t *testing.T) {
	h, ws := newRealHarness(t, instance.Options{SuffixSession: true})

	report, err := h.Run(context.Background(), instance.Values{"project_name": "Test Repo", "repo_name": "test-repo"}, nil)
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.Len(t, report.Stages, 4)

	_, statErr := os.Stat(report.Path)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(ws.OutputRoot())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIntegration_StrictInstallFailure(t *testing.T) {
	h, _ := newRealHarness(t, instance.Options{})

	report, err := h.Run(context.Background(), instance.Values{
		"project_name": "Test Repo",
		"repo_name":    "test-repo",
		"fail_install": "yes",
	}, nil)

	var verr *harness.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, harness.StageInstall, verr.Stage)
	assert.NotZero(t, verr.ExitCode)

	_, statErr := os.Stat(report.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestIntegration_PerSession(t *testing.T) {
	h, _ := newRealHarness(t, instance.Options{NamespaceSession: true})

	var path string
	t.Run("checks", func(t *testing.T) {
		s := fixture.Session(t, h, instance.Values{"project_name": "Test Repo", "repo_name": "test-repo"})
		path = s.Path()

		_, err := s.CheckTolerant(context.Background(), harness.StageLint)
		require.NoError(t, err)
		_, err = s.Check(context.Background(), harness.StageTest)
		require.NoError(t, err)
		_, err = s.Check(context.Background(), harness.StageTestArtifact)
		require.NoError(t, err)

		assert.DirExists(t, path)
	})

	assert.NoDirExists(t, path)
	assert.NoDirExists(t, filepath.Dir(path))
}

// testWriter sends subprocess output to the test log
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
