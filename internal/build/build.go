// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package build runs the pipeline that turns a recipe into a published
// package for one platform: fetch, build, package, publish.
package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goplus/pkgsmith/internal/config"
	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/fetch"
	"github.com/goplus/pkgsmith/internal/logging"
	"github.com/goplus/pkgsmith/internal/metrics"
	"github.com/goplus/pkgsmith/internal/pack"
	"github.com/goplus/pkgsmith/internal/publish"
	"github.com/goplus/pkgsmith/pkgs/buildsys"
	"github.com/goplus/pkgsmith/pkgs/buildsys/cargo"
	"github.com/goplus/pkgsmith/platform"
	"github.com/goplus/pkgsmith/recipe"
)

// Fetcher obtains recipe sources.
type Fetcher interface {
	Fetch(ctx context.Context, r *recipe.Recipe, version string, t platform.Triple, dir string) (*fetch.Source, error)
}

// Builder runs pipelines inside a work directory.
type Builder struct {
	workDir   string
	fetcher   Fetcher
	systems   SystemFactory
	packager  *pack.Packager
	publisher *publish.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	strict    bool
	jobs      int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Builder.
type Option func(*Builder)

// WithFetcher sets the source fetcher.
func WithFetcher(f Fetcher) Option {
	return func(b *Builder) { b.fetcher = f }
}

// WithSystems sets the build system factory.
func WithSystems(f SystemFactory) Option {
	return func(b *Builder) { b.systems = f }
}

// WithPublisher sets the publisher.
func WithPublisher(p *publish.Publisher) Option {
	return func(b *Builder) { b.publisher = p }
}

// WithMetrics records stage metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = logging.OrNop(l) }
}

// WithStrictPlatforms makes platform values unknown to a recipe's table
// an error instead of falling back to its defaults.
func WithStrictPlatforms(on bool) Option {
	return func(b *Builder) { b.strict = on }
}

// WithJobs bounds the parallelism of build tools.
func WithJobs(n int) Option {
	return func(b *Builder) { b.jobs = n }
}

// NewBuilder returns a Builder using workDir. Without options it fetches
// with git from PATH, runs build tools from PATH and publishes with every
// generator.
func NewBuilder(workDir string, opts ...Option) *Builder {
	b := &Builder{
		workDir: workDir,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.fetcher == nil {
		b.fetcher = fetch.New(fetch.WithLogger(b.logger))
	}
	if b.systems == nil {
		b.systems = Systems(&buildsys.Runner{Logger: b.logger}, config.Tools{}, config.CMake{})
	}
	if b.publisher == nil {
		b.publisher, _ = publish.New(nil, b.logger)
	}
	b.packager = pack.New(b.logger)
	return b
}

// Request is one pipeline run.
type Request struct {
	Recipe *recipe.Recipe
	// Version defaults to the recipe's version.
	Version string
	Triple  platform.Triple
	// Options are "name=value" overrides of the recipe's option defaults.
	Options map[string]string
	// Force ignores the build cache.
	Force bool
}

// Result is the outcome of a pipeline run.
type Result struct {
	Recipe   string
	Version  string
	Triple   platform.Triple
	BuildID  string
	State    State
	Cached   bool
	Source   *fetch.Source
	Metadata *publish.Metadata
}

// dirs holds the directories of one run.
type dirs struct {
	source  string
	build   string
	stage   string
	pkgroot string
}

func (b *Builder) dirs(name, version string, t platform.Triple) dirs {
	root := filepath.Join(b.workDir, name, version)
	key := filepath.FromSlash(t.Key())
	return dirs{
		source:  filepath.Join(root, "source", key),
		build:   filepath.Join(root, "build", key, t.BuildType),
		stage:   filepath.Join(root, "stage", key, t.BuildType),
		pkgroot: filepath.Join(root, "package", key, t.BuildType),
	}
}

// SourceDir returns where the sources of name at version for t are fetched.
func (b *Builder) SourceDir(name, version string, t platform.Triple) string {
	return b.dirs(name, version, t).source
}

// PackageDir returns the package root of name at version for t.
func (b *Builder) PackageDir(name, version string, t platform.Triple) string {
	if t.BuildType == "" {
		t.BuildType = platform.Release
	}
	return b.dirs(name, version, t).pkgroot
}

// variantBuild is a configured and built variant.
type variantBuild struct {
	variant *recipe.Variant
	system  buildsys.BuildSystem
	build   string
	stage   string
}

// Build runs the pipeline for req. Configuration problems are reported
// before anything touches the network. A cached result is returned without
// running any stage unless req.Force is set or the version is dev.
func (b *Builder) Build(ctx context.Context, req *Request) (*Result, error) {
	r := req.Recipe
	version := req.Version
	if version == "" {
		version = r.Version
	}
	if err := recipe.CheckVersion(version); err != nil {
		return nil, errors.InStage(errors.StageResolve, err)
	}
	t := req.Triple
	if t.BuildType == "" {
		t.BuildType = platform.Release
	}
	if err := t.Validate(); err != nil {
		return nil, errors.InStage(errors.StageResolve, errors.Configuration("%v", err))
	}
	cfg, err := recipe.Resolve(r, req.Options, t.OS)
	if err != nil {
		return nil, errors.InStage(errors.StageResolve, err)
	}
	mapping, err := r.MapPlatform(t.OS, t.Arch, b.strict)
	if err != nil {
		return nil, errors.InStage(errors.StageResolve, err)
	}
	if r.BuildSystem() == recipe.SystemCargo {
		if _, err := platform.RustTarget(t.OS, t.Arch); err != nil {
			return nil, errors.InStage(errors.StageResolve, errors.UnsupportedPlatform(t.OS, t.Arch, "%s: %v", r.Name, err))
		}
	}
	if mapping != nil && mapping.Fallback {
		b.logger.Warn("unknown platform, using defaults",
			zap.String("recipe", r.Name),
			zap.String("target", t.Key()),
			zap.String("platform", mapping.Platform),
			zap.String("arch", mapping.Target))
	}

	res := &Result{Recipe: r.Name, Version: version, Triple: t}
	key := cacheKey(version, t, cfg.Hash())
	dev := recipe.IsDev(version)
	if !dev && !req.Force {
		if entry, ok := b.lookup(r.Name, key); ok {
			m, err := publish.Load(filepath.Dir(entry.Metadata))
			if err == nil {
				b.metrics.CacheHit(r.Name)
				b.logger.Info("cached", zap.String("recipe", r.Name), zap.String("key", key))
				res.BuildID, res.State, res.Cached, res.Metadata = entry.BuildID, Published, true, m
				return res, nil
			}
		}
	}

	res.BuildID = uuid.NewString()
	logger := b.logger.With(
		zap.String("build_id", res.BuildID),
		zap.String("recipe", r.Name),
		zap.String("version", version),
		zap.Stringer("platform", t))
	d := b.dirs(r.Name, version, t)
	p := &run{}
	defer func() { res.State = p.state }()

	// Fetch.
	start := time.Now()
	src, err := b.fetcher.Fetch(ctx, r, version, t, d.source)
	b.metrics.ObserveStage(r.Name, string(errors.StageFetch), start, err)
	if err != nil {
		return res, p.fail(err)
	}
	res.Source = src
	p.advance(Fetched)
	logger.Info("fetched", zap.String("dir", src.Dir), zap.Bool("reused", src.Reused))

	// Configure and build every variant.
	start = time.Now()
	builds, err := b.buildVariants(ctx, r, cfg, mapping, t, d, src.Dir, logger)
	b.metrics.ObserveStage(r.Name, string(errors.StageBuild), start, err)
	if err != nil {
		return res, p.fail(err)
	}
	p.advance(Built)

	// Install and package.
	start = time.Now()
	err = b.packageVariants(ctx, r, t, d, src.Dir, builds)
	b.metrics.ObserveStage(r.Name, string(errors.StagePackage), start, err)
	if err != nil {
		return res, p.fail(err)
	}
	p.advance(Packaged)
	logger.Info("packaged", zap.String("root", d.pkgroot))

	// Publish.
	start = time.Now()
	m, err := b.publisher.Publish(ctx, &publish.Artifact{
		Recipe:  r,
		Version: version,
		Triple:  t,
		Root:    d.pkgroot,
		Options: cfg.Values(),
		Source:  sourceRef(src),
		BuildID: res.BuildID,
	})
	b.metrics.ObserveStage(r.Name, string(errors.StagePublish), start, err)
	if err != nil {
		return res, p.fail(err)
	}
	res.Metadata = m
	p.advance(Published)

	if !dev {
		entry := &buildEntry{
			Metadata:  filepath.Join(d.pkgroot, publish.InfoFile),
			Version:   version,
			BuildID:   res.BuildID,
			BuildTime: time.Now().UTC(),
		}
		if err := b.updateCache(r.Name, func(c *buildCache) { c.set(key, entry) }); err != nil {
			logger.Warn("save build cache", zap.Error(err))
		}
	}
	return res, nil
}

func (b *Builder) buildVariants(ctx context.Context, r *recipe.Recipe, cfg *recipe.Config, mapping *platform.Mapping,
	t platform.Triple, d dirs, srcDir string, logger *zap.Logger) ([]variantBuild, error) {
	variants := r.VariantList()
	builds := make([]variantBuild, 0, len(variants))
	for i := range variants {
		v := &variants[i]
		vb := variantBuild{variant: v, build: d.build, stage: filepath.Join(d.stage, v.Name)}
		if len(variants) > 1 {
			vb.build = filepath.Join(d.build, v.Name)
		}
		sys, err := b.systems(r)
		if err != nil {
			return nil, err
		}
		if sys == nil {
			builds = append(builds, vb)
			continue
		}
		if i == 0 {
			if err := buildsys.LookTools(sys.Tools()...); err != nil {
				return nil, err
			}
		}

		vt := t
		if v.BuildType != "" {
			vt.BuildType = v.BuildType
		}
		if err := sys.Target(vt); err != nil {
			return nil, err
		}
		sys.Source(srcDir)
		sys.BuildDir(vb.build)
		sys.InstallDir(vb.stage)
		sys.Jobs(b.jobs)
		for k, val := range r.Build.Env {
			sys.Env(k, val)
		}
		flags := cfg.Render(mapping, v)
		for _, k := range flags.Sorted() {
			sys.Flag(k, flags[k])
		}

		logger.Info("building", zap.String("variant", v.Name), zap.String("system", sys.Name()), zap.String("options", cfg.String()))
		if err := sys.Configure(ctx); err != nil {
			return nil, err
		}
		if err := sys.Build(ctx); err != nil {
			return nil, err
		}
		vb.system = sys
		builds = append(builds, vb)
	}
	return builds, nil
}

func (b *Builder) packageVariants(ctx context.Context, r *recipe.Recipe, t platform.Triple, d dirs, srcDir string, builds []variantBuild) error {
	variants := make([]pack.Variant, 0, len(builds))
	for _, vb := range builds {
		if vb.system != nil {
			if err := os.RemoveAll(vb.stage); err != nil {
				return err
			}
			if err := vb.system.Install(ctx); err != nil {
				return err
			}
		}
		variants = append(variants, pack.Variant{Name: vb.variant.Name, Stage: vb.stage, Rename: vb.variant.Rename})
	}

	data := recipe.CopyData{OS: t.OS, Arch: t.Arch, BuildType: t.BuildType, Profile: "release"}
	if t.BuildType == platform.Debug {
		data.Profile = "debug"
	}
	if rt, err := platform.RustTarget(t.OS, t.Arch); err == nil {
		data.RustTarget = rt
	}
	if len(builds) > 0 {
		if c, ok := builds[0].system.(*cargo.Cargo); ok {
			data.RustTarget, data.Profile = c.TargetTriple(), c.Profile()
		}
	}
	roots := pack.Roots{Source: srcDir}
	if len(builds) > 0 {
		roots.Build, roots.Install = builds[0].build, builds[0].stage
	}
	_, err := b.packager.Package(ctx, &pack.Request{
		Recipe:   r,
		Triple:   t,
		Root:     d.pkgroot,
		Roots:    roots,
		Data:     data,
		Variants: variants,
	})
	return err
}

func sourceRef(src *fetch.Source) string {
	if src.Commit != "" {
		return src.Ref + "@" + src.Commit
	}
	return src.Ref
}

// Clean removes the work files of name, of one version when version is set,
// and drops the matching cache entries.
func (b *Builder) Clean(name, version string) error {
	if version == "" {
		unlock := b.lockRecipe(name)
		defer unlock()
		return os.RemoveAll(b.cacheDir(name))
	}
	if err := os.RemoveAll(filepath.Join(b.cacheDir(name), version)); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(b.cacheDir(name), cacheFile)); os.IsNotExist(err) {
		return nil
	}
	return b.updateCache(name, func(c *buildCache) { c.dropVersion(version) })
}
