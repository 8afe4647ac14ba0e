package harness_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/harness"
	"github.com/simonhull/firebird-suite/hatch/internal/instance"
	"github.com/simonhull/firebird-suite/hatch/internal/testing/testutil"
)

var testValues = instance.Values{"repo_name": "test-repo"}

type testEnv struct {
	h      *harness.Harness
	runner *testutil.FakeRunner
	ws     *testutil.Workspace
}

func newTestEnv(t *testing.T, genOpts instance.Options, configure func(*harness.Config)) *testEnv {
	t.Helper()

	ws := testutil.NewWorkspace(t)
	runner := testutil.NewFakeRunner()

	genOpts.OutputRoot = ws.OutputRoot()
	genOpts.ConfigRoot = ws.ConfigRoot()
	gen := instance.NewGenerator(runner, genOpts)

	cfg := harness.DefaultConfig("template")
	if configure != nil {
		configure(&cfg)
	}

	return &testEnv{
		h:      harness.New(gen, runner, cfg),
		runner: runner,
		ws:     ws,
	}
}

func (e *testEnv) keys() []string {
	calls := e.runner.Calls()
	keys := make([]string, len(calls))
	for i, c := range calls {
		keys[i] = testutil.Key(c)
	}
	return keys
}

func assertGone(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.Truef(t, os.IsNotExist(err), "%s should have been removed", path)
}

func TestAcquire_InitializesRepository(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)

	lease, err := env.h.Acquire(context.Background(), testValues)
	require.NoError(t, err)
	defer lease.Release()

	assert.True(t, env.ws.Exists(filepath.Join(lease.Path(), ".git")))
	assert.Equal(t, "ref: refs/heads/main\n", env.ws.ReadFile(filepath.Join(lease.Path(), ".git", "HEAD")))
	assert.Equal(t, "feat: initial commit by hatch\n", env.ws.ReadFile(filepath.Join(lease.Path(), ".git", "COMMITS")))

	assert.Equal(t, []string{
		"cookiecutter",
		"git init",
		"git branch",
		"git add",
		"git commit",
		"make lint-ci",
	}, env.keys())

	calls := env.runner.Calls()
	for _, c := range calls[1:5] {
		assert.Equal(t, lease.Path(), c.Dir)
		assert.Contains(t, c.Env, "GIT_AUTHOR_NAME=hatch")
		assert.Contains(t, c.Env, "GIT_COMMITTER_EMAIL=hatch@localhost")
	}
	assert.Equal(t, []string{"branch", "-m", "main"}, calls[2].Args)
	assert.Equal(t, []string{"add", "--all"}, calls[3].Args)
}

func TestAcquire_WithoutVCS(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, func(c *harness.Config) {
		c.VCS.Enabled = false
		c.Warmup = nil
	})

	lease, err := env.h.Acquire(context.Background(), testValues)
	require.NoError(t, err)
	defer lease.Release()

	assert.False(t, env.ws.Exists(filepath.Join(lease.Path(), ".git")))
	assert.Equal(t, []string{"cookiecutter"}, env.keys())
}

func TestAcquire_TolerantWarmupFailure(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	env.runner.Fail("make lint-ci", 1, 0)

	lease, err := env.h.Acquire(context.Background(), testValues)
	require.NoError(t, err, "a failing warm-up must not abort acquire")
	defer lease.Release()

	results := lease.Results()
	require.Len(t, results, 1)
	assert.Equal(t, harness.StageLint, results[0].Stage.Name)
	assert.False(t, results[0].Stage.Strict)
	assert.Equal(t, 1, results[0].ExitCode)

	// After the auto-fix pass the strict check is clean
	lint, _ := env.h.Catalog().Get(harness.StageLint)
	_, err = lease.Run(context.Background(), lint)
	assert.NoError(t, err)
}

func TestLease_StrictLintFailure(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	env.runner.Fail("make lint-ci", 1)

	lease, err := env.h.Acquire(context.Background(), testValues)
	require.NoError(t, err)
	defer lease.Release()

	lint, _ := env.h.Catalog().Get(harness.StageLint)
	result, err := lease.Run(context.Background(), lint)

	require.ErrorIs(t, err, harness.ErrValidation)
	var verr *harness.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, harness.StageLint, verr.Stage)
	assert.Equal(t, 1, verr.ExitCode)
	assert.Equal(t, 1, exec.ExitCode(err))
	assert.False(t, result.Passed())
}

func TestAcquire_RepoInitFailureCleansUp(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	env.runner.Fail("git commit", 1)

	lease, err := env.h.Acquire(context.Background(), testValues)
	require.ErrorIs(t, err, harness.ErrRepoInit)
	assert.Nil(t, lease)
	assert.Contains(t, err.Error(), "git commit")
	assert.Equal(t, 1, exec.ExitCode(err))

	assertGone(t, filepath.Join(env.ws.OutputRoot(), "test-repo"))
	assert.Empty(t, globArtifacts(t, env.ws))
	assert.Zero(t, env.runner.CountKey("make lint-ci"), "warm-up must not run after a failed init")
}

func TestAcquire_GenerationFailureRemovesPartialTree(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	env.runner.Fail("cookiecutter", 1)

	_, err := env.h.Acquire(context.Background(), testValues)
	require.ErrorIs(t, err, instance.ErrGeneration)

	assertGone(t, filepath.Join(env.ws.OutputRoot(), "test-repo"))
	assert.Empty(t, globArtifacts(t, env.ws))
	assert.Zero(t, env.runner.CountKey("git init"))
}

func TestAcquire_CollisionKeepsExistingTree(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	env.ws.WriteFile("sample/test-repo/keep.txt", "not ours")

	_, err := env.h.Acquire(context.Background(), testValues)
	require.ErrorIs(t, err, instance.ErrGeneration)

	assert.Equal(t, "not ours", env.ws.ReadFile("sample/test-repo/keep.txt"))
	assert.Empty(t, env.runner.Calls())
}

func TestAcquire_UnknownWarmupStage(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, func(c *harness.Config) {
		c.Warmup = []string{"format"}
	})

	_, err := env.h.Acquire(context.Background(), testValues)
	require.ErrorIs(t, err, harness.ErrUnknownStage)
	assert.Empty(t, env.runner.Calls())
}

func TestRun_Success(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)

	var path string
	report, err := env.h.Run(context.Background(), testValues, func(l *harness.Lease) error {
		path = l.Path()
		assert.True(t, env.ws.Exists(path))
		return nil
	})
	require.NoError(t, err)

	assert.True(t, report.Passed())
	assert.NoError(t, report.CleanupErr)
	assert.Equal(t, harness.PerRun, report.Isolation)
	assert.Equal(t, path, report.Path)
	assert.NotEmpty(t, report.SessionID)

	var names []string
	for _, s := range report.Stages {
		names = append(names, s.Stage.Name)
	}
	assert.Equal(t, []string{"lint", "lint", "install", "test-artifact"}, names)
	assert.False(t, report.Stages[0].Stage.Strict, "warm-up lint is tolerant")
	assert.True(t, report.Stages[1].Stage.Strict)

	assertGone(t, path)
	assert.Empty(t, globArtifacts(t, env.ws))
	assert.True(t, env.ws.Exists(env.ws.OutputRoot()), "output root is never removed")
}

func TestRun_StrictInstallFailure(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	env.runner.Fail("make install", 2)

	called := false
	report, err := env.h.Run(context.Background(), testValues, func(l *harness.Lease) error {
		called = true
		return nil
	})

	var verr *harness.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, harness.StageInstall, verr.Stage)
	assert.Equal(t, 2, verr.ExitCode)
	assert.False(t, called, "fn must not run after a strict failure")
	assert.Zero(t, env.runner.CountKey("make test-wheel-locally"))

	require.NotNil(t, report)
	assert.Same(t, err, report.Err)
	assert.NoError(t, report.CleanupErr)
	assertGone(t, report.Path)
	assert.Empty(t, globArtifacts(t, env.ws))
}

func TestRun_FnErrorReleases(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	boom := errors.New("boom")

	var path string
	report, err := env.h.Run(context.Background(), testValues, func(l *harness.Lease) error {
		path = l.Path()
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, report.Passed())
	assertGone(t, path)
}

func TestRun_PanicReleases(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(t, instance.Options{}, func(c *harness.Config) {
		c.Recorder = rec
	})

	var path string
	assert.PanicsWithValue(t, "boom", func() {
		_, _ = env.h.Run(context.Background(), testValues, func(l *harness.Lease) error {
			path = l.Path()
			panic("boom")
		})
	})

	require.NotEmpty(t, path)
	assertGone(t, path)

	reports := rec.all()
	require.Len(t, reports, 1)
	assert.ErrorContains(t, reports[0].Err, "panic: boom")
}

func TestRun_PanicDuringAcquireReleases(t *testing.T) {
	for _, key := range []string{"cookiecutter", "git commit", "make lint-ci"} {
		t.Run(key, func(t *testing.T) {
			rec := &recorder{}
			env := newTestEnv(t, instance.Options{}, func(c *harness.Config) {
				c.Recorder = rec
			})
			env.runner.Panic(key)

			called := false
			assert.PanicsWithValue(t, key+" panicked", func() {
				_, _ = env.h.Run(context.Background(), testValues, func(l *harness.Lease) error {
					called = true
					return nil
				})
			})

			assert.False(t, called)
			assertGone(t, filepath.Join(env.ws.OutputRoot(), "test-repo"))
			assert.Empty(t, globArtifacts(t, env.ws))

			reports := rec.all()
			require.Len(t, reports, 1)
			assert.ErrorContains(t, reports[0].Err, "panic: "+key+" panicked")
		})
	}
}

func TestSession_PanicDuringWarmupReleases(t *testing.T) {
	env := newTestEnv(t, instance.Options{NamespaceSession: true}, nil)
	env.runner.Panic("make lint-ci")

	assert.Panics(t, func() {
		_, _ = env.h.Session(context.Background(), testValues)
	})

	entries, err := os.ReadDir(env.ws.OutputRoot())
	require.NoError(t, err)
	assert.Empty(t, entries, "no session directory may survive")
	assert.Empty(t, globArtifacts(t, env.ws))
}

func TestRun_CleanupFailureKeepsOriginalError(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	boom := errors.New("boom")

	report, err := env.h.Run(context.Background(), testValues, func(l *harness.Lease) error {
		// A non-empty directory where the artifact was cannot be removed
		artifact := l.Instance().ArtifactPath
		require.NoError(t, os.Remove(artifact))
		require.NoError(t, os.MkdirAll(filepath.Join(artifact, "keep"), 0755))
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, harness.ErrCleanup)

	require.NotNil(t, report)
	assert.Same(t, err, report.Err)
	require.ErrorIs(t, report.CleanupErr, harness.ErrCleanup)
	assert.False(t, report.Passed())
	assertGone(t, report.Path)
}

func TestRun_ReleaseInsideFnIsDeferred(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(t, instance.Options{}, func(c *harness.Config) {
		c.Recorder = rec
	})
	boom := errors.New("boom")

	var path string
	report, err := env.h.Run(context.Background(), testValues, func(l *harness.Lease) error {
		path = l.Path()
		assert.NoError(t, l.Release())
		assert.True(t, env.ws.Exists(path), "Run releases the instance after fn returns")
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Same(t, err, report.Err)
	assertGone(t, path)

	reports := rec.all()
	require.Len(t, reports, 1)
	assert.ErrorIs(t, reports[0].Err, boom)
}

func TestRun_AcquireFailureReport(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	env.runner.Fail("git init", 128)

	report, err := env.h.Run(context.Background(), testValues, nil)
	require.ErrorIs(t, err, harness.ErrRepoInit)
	require.NotNil(t, report)
	assert.Same(t, err, report.Err)
	assertGone(t, report.Path)
}

func TestRun_DistinctInstancesPerRun(t *testing.T) {
	env := newTestEnv(t, instance.Options{NamespaceSession: true}, nil)

	var first, second string
	_, err := env.h.Run(context.Background(), testValues, func(l *harness.Lease) error {
		first = l.Path()
		return nil
	})
	require.NoError(t, err)
	_, err = env.h.Run(context.Background(), testValues, func(l *harness.Lease) error {
		second = l.Path()
		return nil
	})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assertGone(t, filepath.Dir(first))
	assertGone(t, filepath.Dir(second))
	assert.True(t, env.ws.Exists(env.ws.OutputRoot()))
}

func TestSession_SharesInstanceUntilClose(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	env.runner.Fail("make lint-ci", 1)

	s, err := env.h.Session(context.Background(), testValues)
	require.NoError(t, err)
	path := s.Path()

	_, err = s.CheckTolerant(context.Background(), harness.StageLint)
	require.NoError(t, err)
	assert.True(t, env.ws.Exists(path))

	_, err = s.Check(context.Background(), harness.StageTest)
	require.NoError(t, err)
	assert.True(t, env.ws.Exists(path))

	_, err = s.Check(context.Background(), harness.StageInstall)
	require.NoError(t, err)
	assert.True(t, env.ws.Exists(path))

	assert.Equal(t, 1, env.runner.CountKey("cookiecutter"), "one instance for the whole session")
	assert.Nil(t, s.Report())

	require.NoError(t, s.Close())
	assertGone(t, path)

	report := s.Report()
	require.NotNil(t, report)
	assert.Equal(t, harness.PerSession, report.Isolation)
	assert.True(t, report.Passed())
	assert.Len(t, report.Failed(), 2, "warm-up and tolerant lint both failed")

	_, err = s.Check(context.Background(), harness.StageTest)
	assert.ErrorIs(t, err, harness.ErrClosed)
	assert.NoError(t, s.Close())
}

func TestSession_UnknownStage(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)

	s, err := env.h.Session(context.Background(), testValues)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Check(context.Background(), "deploy")
	assert.ErrorIs(t, err, harness.ErrUnknownStage)
}

func TestSession_StrictFailureMarksReport(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)
	env.runner.Fail("make test", 1)

	s, err := env.h.Session(context.Background(), testValues)
	require.NoError(t, err)

	_, err = s.Check(context.Background(), harness.StageTest)
	require.ErrorIs(t, err, harness.ErrValidation)

	require.NoError(t, s.Close())
	assert.False(t, s.Report().Passed())
}

func TestLease_ReleaseIsIdempotent(t *testing.T) {
	env := newTestEnv(t, instance.Options{NamespaceSession: true}, nil)

	lease, err := env.h.Acquire(context.Background(), testValues)
	require.NoError(t, err)
	inst := lease.Instance()

	require.NoError(t, lease.Release())
	require.NoError(t, lease.Release())

	assertGone(t, inst.Path)
	assertGone(t, inst.OutputDir)
	assertGone(t, inst.ArtifactPath)
	assert.True(t, env.ws.Exists(env.ws.OutputRoot()))

	_, err = lease.Run(context.Background(), harness.Stage{Name: "test", Target: "test", Strict: true})
	assert.ErrorIs(t, err, harness.ErrClosed)
}

func TestLease_ReleaseToleratesMissingPaths(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)

	lease, err := env.h.Acquire(context.Background(), testValues)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(lease.Path()))
	require.NoError(t, os.Remove(lease.Instance().ArtifactPath))

	assert.NoError(t, lease.Release())
}

func TestLease_CancelledTolerantStage(t *testing.T) {
	env := newTestEnv(t, instance.Options{}, nil)

	lease, err := env.h.Acquire(context.Background(), testValues)
	require.NoError(t, err)
	defer lease.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = lease.Run(ctx, harness.Stage{Name: "lint", Target: "lint-ci"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecorder(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	env := newTestEnv(t, instance.Options{}, func(c *harness.Config) {
		c.Recorder = rec
	})

	_, err := env.h.Run(context.Background(), testValues, nil)
	require.NoError(t, err, "recorder errors are never propagated")

	reports := rec.all()
	require.Len(t, reports, 1)
	assert.Equal(t, "template", reports[0].Template)
	assert.Len(t, reports[0].Stages, 4)
	assert.False(t, reports[0].Finished.Before(reports[0].Started))
}

type recorder struct {
	mu      sync.Mutex
	reports []*harness.Report
	err     error
}

func (r *recorder) Record(ctx context.Context, report *harness.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return r.err
}

func (r *recorder) all() []*harness.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*harness.Report(nil), r.reports...)
}

func globArtifacts(t *testing.T, ws *testutil.Workspace) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(ws.ConfigRoot(), instance.ArtifactDir, "*"))
	require.NoError(t, err)
	return matches
}
