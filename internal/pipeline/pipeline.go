// Package pipeline runs one end-to-end build session: catalog read,
// reconciliation and extraction, overlays, manifest patches and the
// external build phases, in that order.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/modkit/cli/internal/catalog"
	"github.com/modkit/cli/internal/config"
	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/extract"
	"github.com/modkit/cli/internal/manifest"
	"github.com/modkit/cli/internal/orchestrator"
	"github.com/modkit/cli/internal/output"
	"github.com/modkit/cli/internal/overlay"
	"github.com/modkit/cli/internal/progress"
	"github.com/modkit/cli/internal/selection"
)

// Stage names a step of the session.
type Stage string

const (
	StageCatalog  Stage = "catalog"
	StageExtract  Stage = "extract"
	StageOverlay  Stage = "overlay"
	StageManifest Stage = "manifest"
	StageBuild    Stage = "build"
)

// Options selects what a session builds.
type Options struct {
	Selection selection.Selection
	// SkipBuild stops after the manifest stage.
	SkipBuild bool
}

// Result is the terminal outcome of a session.
type Result struct {
	State orchestrator.State
	Err   error
	// Stage is the last stage entered.
	Stage Stage

	Catalog       catalog.Catalog
	ExtractionSet []string
	Extract       extract.Result
	Overlay       overlay.Report
	Manifests     []manifest.Result
	Build         orchestrator.Result
}

// StageRunner executes one non-command stage. It must run fn to completion.
type StageRunner func(ctx context.Context, title string, fn func() error) error

func runDirect(_ context.Context, _ string, fn func() error) error {
	return fn()
}

// Pipeline builds sessions from a configuration.
type Pipeline struct {
	cfg      *config.Config
	fs       afero.Fs
	orch     *orchestrator.Orchestrator
	runStage StageRunner
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) { p.fs = fs }
}

// WithStarter replaces the process starter of the build stage.
func WithStarter(s orchestrator.Starter) Option {
	return func(p *Pipeline) { p.orch.Starter = s }
}

// WithStageRunner wraps every non-command stage, e.g. with a spinner.
func WithStageRunner(r StageRunner) Option {
	return func(p *Pipeline) { p.runStage = r }
}

// New returns a pipeline for cfg. Unset config fields take their defaults.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	cfg = cfg.WithDefaults()
	p := &Pipeline{
		cfg: cfg,
		fs:  afero.NewOsFs(),
		orch: &orchestrator.Orchestrator{
			Shell:   cfg.Shell,
			Timeout: cfg.Timeout,
		},
		runStage: runDirect,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// Extractor returns the extractor used by the extract stage.
func (p *Pipeline) Extractor() *extract.Extractor {
	return &extract.Extractor{
		Fs:       p.fs,
		CacheDir: p.cfg.CacheDir,
		S3: extract.S3Options{
			Endpoint:  p.cfg.S3.Endpoint,
			Region:    p.cfg.S3.Region,
			AccessKey: p.cfg.S3.AccessKey,
			SecretKey: p.cfg.S3.SecretKey,
			UseSSL:    p.cfg.S3.UseSSL,
		},
	}
}

// Copier returns the overlay copier used by the overlay stage.
func (p *Pipeline) Copier() *overlay.Copier {
	return &overlay.Copier{
		Fs:             p.fs,
		Source:         p.cfg.Source,
		Tree:           p.cfg.ExtractedRoot(),
		OverlayDir:     p.cfg.OverlayDir,
		SharedSuffixes: p.cfg.SharedSuffixes,
		CustomLibrary:  p.cfg.CustomLibrary,
	}
}

// Patcher returns the manifest patcher used by the manifest stage.
func (p *Pipeline) Patcher() *manifest.Patcher {
	return &manifest.Patcher{
		Fs:          p.fs,
		Source:      p.cfg.Source,
		Tree:        p.cfg.ExtractedRoot(),
		Descriptors: p.cfg.Descriptors,
		Manifest:    p.cfg.Manifest,
	}
}

// ReadCatalog scans the configured source tree.
func (p *Pipeline) ReadCatalog() (catalog.Catalog, error) {
	return catalog.Read(p.fs, p.cfg.Source)
}

// Job turns the configured phases into a build job for the given modules.
// Phase directories are resolved inside the extracted tree; phases without
// a module label take the first segment of their directory.
func (p *Pipeline) Job(modules []string) orchestrator.Job {
	tree := p.cfg.ExtractedRoot()
	var job orchestrator.Job
	for _, pc := range p.cfg.Phases {
		module := pc.Module
		if module == "" {
			module, _, _ = strings.Cut(filepath.ToSlash(pc.Dir), "/")
		}
		var args []string
		if pc.AppendModules {
			args = append(args, modules...)
		}
		job.Phases = append(job.Phases, orchestrator.Phase{
			Name:            pc.Name,
			Module:          module,
			Dir:             filepath.Join(tree, filepath.FromSlash(pc.Dir)),
			Command:         pc.Command,
			Args:            args,
			Timeout:         p.cfg.Timeout,
			TolerateFailure: pc.TolerateFailure,
		})
	}
	return job
}

// Session is one running build.
type Session struct {
	p        *Pipeline
	progress *progress.Channel
	done     chan struct{}

	mu     sync.Mutex
	task   *orchestrator.Task
	result Result
}

// Start runs a session in the background. Only one session may mutate a
// destination tree at a time; callers must not start overlapping sessions.
func (p *Pipeline) Start(ctx context.Context, opts Options) *Session {
	s := &Session{
		p:        p,
		progress: progress.NewChannel(0),
		done:     make(chan struct{}),
	}
	go s.run(ctx, opts)
	return s
}

// Events returns the progress stream. It is closed when the session ends
// and must be drained.
func (s *Session) Events() <-chan progress.Event {
	return s.progress.Events()
}

// Halt stops the session. A running build command is terminated at once;
// any other stage completes and the session stops at the next stage
// boundary. No event is delivered after Halt returns.
func (s *Session) Halt() {
	s.progress.Halt()
	s.mu.Lock()
	task := s.task
	s.mu.Unlock()
	if task != nil {
		task.Halt()
	}
}

// Wait blocks until the session ends and returns its result.
func (s *Session) Wait() Result {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) status(stage Stage, module, format string, args ...any) {
	s.progress.Emit(progress.Event{
		Module:  module,
		Phase:   string(stage),
		Stream:  progress.StreamStatus,
		Message: fmt.Sprintf(format, args...),
	})
}

func (s *Session) run(ctx context.Context, opts Options) {
	res := Result{State: orchestrator.Running}
	defer func() {
		s.mu.Lock()
		s.result = res
		s.mu.Unlock()
		s.progress.Close()
		close(s.done)
	}()

	stages := []struct {
		stage Stage
		title string
		fn    func() error
	}{
		{StageCatalog, "Reading module catalog...", func() error { return s.readCatalog(&res, opts) }},
		{StageExtract, "Extracting archive...", func() error { return s.extract(ctx, &res, opts) }},
		{StageOverlay, "Copying overlays...", func() error { return s.overlay(&res, opts) }},
		{StageManifest, "Patching manifests...", func() error { return s.patchManifests(&res, opts) }},
	}

	for _, st := range stages {
		if s.progress.IsHalted() || ctx.Err() != nil {
			res.State = orchestrator.Cancelled
			res.Err = oerrors.Wrap(oerrors.ErrCancelled, fmt.Sprintf("build halted before stage %s", st.stage))
			return
		}
		res.Stage = st.stage
		if err := s.p.runStage(ctx, st.title, st.fn); err != nil {
			if s.progress.IsHalted() || ctx.Err() != nil {
				res.State = orchestrator.Cancelled
				res.Err = oerrors.Wrap(oerrors.ErrCancelled, fmt.Sprintf("build halted during stage %s: %v", st.stage, err))
				return
			}
			s.status(st.stage, "", "%s stage failed: %v", st.stage, err)
			res.State = orchestrator.Failed
			res.Err = err
			return
		}
	}

	if opts.SkipBuild {
		res.State = orchestrator.Succeeded
		return
	}
	if s.progress.IsHalted() || ctx.Err() != nil {
		res.State = orchestrator.Cancelled
		res.Err = oerrors.Wrap(oerrors.ErrCancelled, "build halted before stage build")
		return
	}

	res.Stage = StageBuild
	res.Build = s.build(ctx, opts)
	res.State = res.Build.State
	res.Err = res.Build.Err
}

func (s *Session) readCatalog(res *Result, opts Options) error {
	cat, err := s.p.ReadCatalog()
	if err != nil {
		return err
	}
	res.Catalog = cat
	if err := opts.Selection.Validate(cat); err != nil {
		return err
	}
	s.status(StageCatalog, "", "%d modules in catalog, %d selected", len(cat), len(opts.Selection))
	return nil
}

func (s *Session) extract(ctx context.Context, res *Result, opts Options) error {
	cfg := s.p.cfg
	res.ExtractionSet = opts.Selection.ExtractionSet(cfg.AlwaysInclude)
	s.status(StageExtract, "", "extracting %s", strings.Join(res.ExtractionSet, ", "))

	out, err := s.p.Extractor().ReconcileAndExtract(ctx, cfg.ArchiveRef(), cfg.Destination, res.ExtractionSet)
	res.Extract = out
	if err != nil {
		return err
	}
	s.status(StageExtract, "", "pruned %d entries, preserved %d caches", len(out.Plan.Deletes), len(out.Plan.Preserved))
	s.status(StageExtract, "", "extracted %d entries, skipped %d", out.Stats.Extracted, out.Stats.Skipped)
	if out.Stats.Unsupported > 0 {
		output.Warn("some archive entries could not be materialized", "count", out.Stats.Unsupported)
	}
	return nil
}

func (s *Session) overlay(res *Result, opts Options) error {
	report, err := s.p.Copier().Apply(opts.Selection)
	res.Overlay = report
	if err != nil {
		return err
	}
	for _, c := range report.Copied {
		s.status(StageOverlay, c.Module, "copied %s overlay %s (%d files)", c.Kind, c.Source, c.Files)
	}
	return nil
}

func (s *Session) patchManifests(res *Result, opts Options) error {
	results, err := s.p.Patcher().PatchAll(opts.Selection)
	res.Manifests = results
	if err != nil {
		return err
	}
	for _, r := range results {
		s.status(StageManifest, r.Module, "routes: %s", strings.Join(opts.Selection[r.Module], ", "))
	}
	return nil
}

func (s *Session) build(ctx context.Context, opts Options) orchestrator.Result {
	task := s.p.orch.Start(ctx, s.p.Job(opts.Selection.Modules()))

	s.mu.Lock()
	s.task = task
	s.mu.Unlock()
	if s.progress.IsHalted() {
		task.Halt()
	}

	for e := range task.Events() {
		s.progress.Emit(e)
	}
	return task.Wait()
}
