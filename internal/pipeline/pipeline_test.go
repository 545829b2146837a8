package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modkit/cli/internal/config"
	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/manifest"
	"github.com/modkit/cli/internal/orchestrator"
	"github.com/modkit/cli/internal/progress"
	"github.com/modkit/cli/internal/selection"
	"github.com/modkit/cli/internal/testutil"
)

type waiterFunc func() error

func (f waiterFunc) Wait() error { return f() }

type fakeStarter struct {
	mu    sync.Mutex
	calls []orchestrator.Command
	run   func(ctx context.Context, cmd orchestrator.Command, stdout io.Writer) error
}

func (f *fakeStarter) Start(ctx context.Context, cmd orchestrator.Command, stdout, _ io.Writer) (orchestrator.Waiter, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	return waiterFunc(func() error {
		if f.run == nil {
			fmt.Fprintf(stdout, "ran %s\n", cmd.String())
			return nil
		}
		return f.run(ctx, cmd, stdout)
	}), nil
}

func (f *fakeStarter) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.String())
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Source:        "/src",
		Destination:   "/dst",
		Archive:       "source.tar",
		AlwaysInclude: []string{"lib"},
		CustomLibrary: "lib/custom",
		Phases: []config.PhaseConfig{
			{Name: "install", Dir: "lib", Command: "yarn install"},
			{Name: "unlink", Dir: "lib/dist", Command: "yarn unlink", TolerateFailure: true},
			{Name: "build-ui", Module: "container", Dir: "lib", Command: "./build.sh build-ui", AppendModules: true},
		},
	}
}

func seedSource(t *testing.T, fs afero.Fs) {
	t.Helper()
	testutil.WriteFiles(t, fs, "/src", map[string]string{
		"moduleA/packages/pkg1/src-custom/app.ts": "custom",
		"moduleA/packages/pkg2/index.ts":          "pkg2",
		"moduleA/packages/pkg3/index.ts":          "pkg3",
		"moduleA/angular.json":                    "{}",
		"moduleA/package.json":                    `{"name":"moduleA"}`,
		"moduleA/package-customization.json":      `{"routes":{"pkg3":{"type":"code"}}}`,
		"moduleB/packages/x/index.ts":             "x",
		"lib/custom/lib.ts":                       "custom library",
	})

	archive := testutil.TarBytes(t, testutil.Files(map[string]string{
		"moduleA/packages/pkg1/src-custom/app.ts": "archived",
		"moduleA/packages/pkg1/index.ts":          "pkg1",
		"lib/index.ts":                            "lib",
		"moduleB/packages/x/index.ts":             "x",
	}), testutil.None)
	require.NoError(t, afero.WriteFile(fs, "/src/source.tar", archive, 0o644))

	testutil.WriteFiles(t, fs, "/dst/extracted", map[string]string{
		"moduleA/node_modules/cache": "cache",
		"moduleB/stale.ts":           "stale",
	})
}

func collect(s *Session) []progress.Event {
	var events []progress.Event
	for e := range s.Events() {
		events = append(events, e)
	}
	return events
}

func messages(events []progress.Event) string {
	var lines []string
	for _, e := range events {
		lines = append(lines, e.Message)
	}
	return strings.Join(lines, "\n")
}

func TestSession_EndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	fake := &fakeStarter{}

	p := New(testConfig(), WithFs(fs), WithStarter(fake))
	s := p.Start(context.Background(), Options{Selection: selection.Selection{"moduleA": {"pkg1", "pkg2"}}})
	events := collect(s)
	res := s.Wait()

	require.NoError(t, res.Err)
	assert.Equal(t, orchestrator.Succeeded, res.State)
	assert.Equal(t, StageBuild, res.Stage)
	assert.Equal(t, []string{"lib", "moduleA"}, res.ExtractionSet)

	tree := "/dst/extracted/"
	entries, err := afero.ReadDir(fs, tree)
	require.NoError(t, err)
	var top []string
	for _, e := range entries {
		top = append(top, e.Name())
	}
	assert.Equal(t, []string{"lib", "moduleA"}, top)

	assert.Equal(t, "cache", testutil.ReadFile(t, fs, tree+"moduleA/node_modules/cache"))
	assert.Equal(t, "pkg1", testutil.ReadFile(t, fs, tree+"moduleA/packages/pkg1/index.ts"))
	assert.Equal(t, "custom", testutil.ReadFile(t, fs, tree+"moduleA/packages/pkg1/src-custom/app.ts"))
	assert.Equal(t, "custom library", testutil.ReadFile(t, fs, tree+"lib/custom/lib.ts"))
	assert.Equal(t, `{"name":"moduleA"}`, testutil.ReadFile(t, fs, tree+"moduleA/package.json"))

	for _, p := range []string{"/src/moduleA/package-customization.json", tree + "moduleA/package-customization.json"} {
		routes, err := manifest.Routes([]byte(testutil.ReadFile(t, fs, p)))
		require.NoError(t, err)
		assert.Equal(t, []string{"pkg1", "pkg2"}, routes, p)
	}

	assert.Equal(t, []string{"yarn install", "yarn unlink", "./build.sh build-ui moduleA"}, fake.commands())
	assert.Equal(t, "/dst/extracted/lib/dist", fake.calls[1].Dir)

	all := messages(events)
	assert.Contains(t, all, "extracting lib, moduleA")
	assert.Contains(t, all, "extracted 3 entries, skipped 1")
	assert.Contains(t, all, "routes: pkg1, pkg2")
	assert.Contains(t, all, "ran ./build.sh build-ui moduleA")

	var buildModules []string
	for _, e := range events {
		if e.Phase == "build-ui" {
			buildModules = append(buildModules, e.Module)
		}
	}
	require.NotEmpty(t, buildModules)
	for _, m := range buildModules {
		assert.Equal(t, "container", m)
	}
}

func TestSession_SkipBuild(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	fake := &fakeStarter{}

	s := New(testConfig(), WithFs(fs), WithStarter(fake)).
		Start(context.Background(), Options{Selection: selection.Selection{"moduleA": {"pkg1"}}, SkipBuild: true})
	collect(s)
	res := s.Wait()

	assert.Equal(t, orchestrator.Succeeded, res.State)
	assert.Equal(t, StageManifest, res.Stage)
	assert.Empty(t, fake.commands())
}

func TestSession_StageFailures(t *testing.T) {
	tests := []struct {
		name     string
		sel      selection.Selection
		mutate   func(fs afero.Fs)
		stage    Stage
		sentinel error
	}{
		{
			name:     "unknown module",
			sel:      selection.Selection{"moduleZ": {"a"}},
			stage:    StageCatalog,
			sentinel: oerrors.ErrInvalidSelection,
		},
		{
			name:     "empty selection",
			sel:      selection.Selection{},
			stage:    StageCatalog,
			sentinel: oerrors.ErrInvalidSelection,
		},
		{
			name:     "missing archive",
			sel:      selection.Selection{"moduleA": {"pkg1"}},
			mutate:   func(fs afero.Fs) { _ = fs.Remove("/src/source.tar") },
			stage:    StageExtract,
			sentinel: oerrors.ErrExtraction,
		},
		{
			name:     "broken manifest",
			sel:      selection.Selection{"moduleA": {"pkg1"}},
			mutate:   func(fs afero.Fs) { _ = afero.WriteFile(fs, "/src/moduleA/package-customization.json", []byte("{"), 0o644) },
			stage:    StageManifest,
			sentinel: oerrors.ErrManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			seedSource(t, fs)
			if tt.mutate != nil {
				tt.mutate(fs)
			}
			fake := &fakeStarter{}

			s := New(testConfig(), WithFs(fs), WithStarter(fake)).Start(context.Background(), Options{Selection: tt.sel})
			events := collect(s)
			res := s.Wait()

			assert.Equal(t, orchestrator.Failed, res.State)
			assert.Equal(t, tt.stage, res.Stage)
			assert.True(t, errors.Is(res.Err, tt.sentinel), "got %v", res.Err)
			assert.Empty(t, fake.commands())
			assert.Contains(t, messages(events), string(tt.stage)+" stage failed: "+res.Err.Error())
		})
	}
}

func TestSession_BuildFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	fake := &fakeStarter{run: func(_ context.Context, cmd orchestrator.Command, _ io.Writer) error {
		if cmd.Name == "./build.sh" {
			return exitCode(4)
		}
		return nil
	}}

	s := New(testConfig(), WithFs(fs), WithStarter(fake)).
		Start(context.Background(), Options{Selection: selection.Selection{"moduleA": {"pkg1"}}})
	collect(s)
	res := s.Wait()

	assert.Equal(t, orchestrator.Failed, res.State)
	assert.Equal(t, StageBuild, res.Stage)
	var cmdErr *orchestrator.CommandError
	require.True(t, errors.As(res.Err, &cmdErr))
	assert.Equal(t, 4, cmdErr.ExitCode)
}

type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitCode) ExitCode() int { return int(e) }

func TestSession_HaltAtStageBoundary(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	fake := &fakeStarter{}

	inExtract := make(chan struct{})
	release := make(chan struct{})
	runner := func(_ context.Context, title string, fn func() error) error {
		if strings.HasPrefix(title, "Extracting") {
			close(inExtract)
			<-release
		}
		return fn()
	}

	s := New(testConfig(), WithFs(fs), WithStarter(fake), WithStageRunner(runner)).
		Start(context.Background(), Options{Selection: selection.Selection{"moduleA": {"pkg1"}}})

	go func() {
		<-inExtract
		s.Halt()
		close(release)
	}()
	collect(s)
	res := s.Wait()

	assert.Equal(t, orchestrator.Cancelled, res.State)
	assert.True(t, errors.Is(res.Err, oerrors.ErrCancelled))
	assert.Equal(t, StageExtract, res.Stage, "the running stage completes")
	assert.Equal(t, 3, res.Extract.Stats.Extracted)
	assert.False(t, testutil.Exists(fs, "/dst/extracted/lib/custom"), "overlay stage must not run")
	assert.Empty(t, fake.commands())
}

func TestSession_HaltWhileStageFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	fake := &fakeStarter{}

	var s *Session
	started := make(chan struct{})
	runner := func(_ context.Context, title string, fn func() error) error {
		if strings.HasPrefix(title, "Copying") {
			<-started
			s.Halt()
			return errors.New("program was interrupted")
		}
		return fn()
	}

	s = New(testConfig(), WithFs(fs), WithStarter(fake), WithStageRunner(runner)).
		Start(context.Background(), Options{Selection: selection.Selection{"moduleA": {"pkg1"}}})
	close(started)
	collect(s)
	res := s.Wait()

	assert.Equal(t, orchestrator.Cancelled, res.State)
	assert.Equal(t, StageOverlay, res.Stage)
	assert.True(t, errors.Is(res.Err, oerrors.ErrCancelled), "got %v", res.Err)
	assert.Empty(t, fake.commands())
}

func TestSession_HaltDuringBuild(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	fake := &fakeStarter{run: func(ctx context.Context, cmd orchestrator.Command, stdout io.Writer) error {
		fmt.Fprintln(stdout, "working")
		<-ctx.Done()
		return ctx.Err()
	}}

	s := New(testConfig(), WithFs(fs), WithStarter(fake)).
		Start(context.Background(), Options{Selection: selection.Selection{"moduleA": {"pkg1"}}})

	for e := range s.Events() {
		if e.Message == "working" {
			break
		}
	}
	s.Halt()
	assert.Empty(t, collect(s))

	res := s.Wait()
	assert.Equal(t, orchestrator.Cancelled, res.State)
	assert.Equal(t, StageBuild, res.Stage)
	assert.True(t, errors.Is(res.Err, oerrors.ErrCancelled))
	assert.Equal(t, []string{"yarn install"}, fake.commands())
}

func TestPipelineJob(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 0
	job := New(cfg).Job([]string{"moduleA", "moduleB"})

	require.Len(t, job.Phases, 3)
	assert.Equal(t, "lib", job.Phases[0].Module)
	assert.Equal(t, "/dst/extracted/lib/dist", job.Phases[1].Dir)
	assert.True(t, job.Phases[1].TolerateFailure)
	assert.Nil(t, job.Phases[0].Args)
	assert.Equal(t, []string{"moduleA", "moduleB"}, job.Phases[2].Args)
	assert.Equal(t, config.DefaultTimeout, job.Phases[2].Timeout)
}
