// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog resolves recipe names to recipes.
//
// A name is looked up, in order, in the configured recipe directories, in a
// synced git repository of recipes and in the recipes built into the binary.
// A path to a recipe file bypasses the lookup.
package catalog

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/logging"
	"github.com/goplus/pkgsmith/internal/vcs"
	"github.com/goplus/pkgsmith/recipe"
	"github.com/goplus/pkgsmith/recipes"
)

// Origins of a recipe.
const (
	OriginFile    = "file"
	OriginDir     = "dir"
	OriginRepo    = "repo"
	OriginBuiltin = "builtin"
)

// Entry is a recipe and where it was found.
type Entry struct {
	Recipe *recipe.Recipe
	Origin string
	// Location is the directory, repository URL or file it came from.
	Location string
}

// Catalog looks up recipes.
type Catalog struct {
	dirs    []string
	repo    string
	repoRef string
	repoDir string
	vcs     vcs.VCS
	builtin fs.FS
	logger  *zap.Logger

	syncOnce sync.Once
	syncErr  error
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithDirs adds local recipe directories, searched in order.
func WithDirs(dirs ...string) Option {
	return func(c *Catalog) { c.dirs = append(c.dirs, dirs...) }
}

// WithRepo sets a git repository of recipes, checked out at ref into dir
// the first time it is needed.
func WithRepo(url, ref, dir string) Option {
	return func(c *Catalog) { c.repo, c.repoRef, c.repoDir = url, ref, dir }
}

// WithVCS sets the VCS used to sync the recipe repository.
func WithVCS(v vcs.VCS) Option {
	return func(c *Catalog) { c.vcs = v }
}

// WithBuiltin replaces the built-in recipes.
func WithBuiltin(fsys fs.FS) Option {
	return func(c *Catalog) { c.builtin = fsys }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) { c.logger = logging.OrNop(l) }
}

// New returns a Catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{builtin: recipes.FS(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.vcs == nil {
		c.vcs = vcs.NewGitVCS()
	}
	return c
}

// source is one place recipes are looked up in.
type source struct {
	origin   string
	location string
	// dir is the local directory behind fsys, empty for built-in recipes.
	dir  string
	fsys fs.FS
}

func (c *Catalog) sources(ctx context.Context) []source {
	var srcs []source
	for _, dir := range c.dirs {
		srcs = append(srcs, source{OriginDir, dir, dir, os.DirFS(dir)})
	}
	if c.repo != "" {
		if err := c.sync(ctx); err != nil {
			c.logger.Warn("recipe repository unavailable", zap.String("repo", c.repo), zap.Error(err))
		} else {
			srcs = append(srcs, source{OriginRepo, c.repo, c.repoDir, os.DirFS(c.repoDir)})
		}
	}
	if c.builtin != nil {
		srcs = append(srcs, source{OriginBuiltin, "", "", c.builtin})
	}
	return srcs
}

// file returns the path of a recipe file of the source.
func (s *source) file(name string) string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, name)
}

// sync checks out the recipe repository once per Catalog.
func (c *Catalog) sync(ctx context.Context) error {
	c.syncOnce.Do(func() {
		c.logger.Info("syncing recipes", zap.String("repo", c.repo), zap.String("ref", c.repoRef))
		c.syncErr = c.vcs.Sync(ctx, c.repo, c.repoRef, c.repoDir)
	})
	return c.syncErr
}

// IsPath reports whether arg names a recipe file rather than a recipe.
func IsPath(arg string) bool {
	_, ok := recipe.FormatOf(arg)
	return ok || strings.ContainsRune(arg, '/') || strings.ContainsRune(arg, filepath.Separator)
}

// Load returns the recipe called name, or the recipe file at name when it
// is a path.
func (c *Catalog) Load(ctx context.Context, name string) (*Entry, error) {
	if IsPath(name) {
		r, err := recipe.Load(name)
		if err != nil {
			return nil, err
		}
		return &Entry{Recipe: r, Origin: OriginFile, Location: name}, nil
	}
	for _, src := range c.sources(ctx) {
		r, ok, err := find(src.fsys, name)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfiguration, err, "recipe %q from %s %s", name, src.origin, src.location)
		}
		if ok {
			r.File = src.file(r.File)
			c.logger.Debug("recipe found", zap.String("recipe", name), zap.String("origin", src.origin))
			return &Entry{Recipe: r, Origin: src.origin, Location: src.location}, nil
		}
	}
	known, _ := c.List(ctx)
	names := make([]string, len(known))
	for i, e := range known {
		names[i] = e.Recipe.Name
	}
	return nil, errors.Configuration("unknown recipe %q", name).With("recipes", names)
}

// List returns every recipe that Load can find by name, sorted by name. A
// recipe shadowed by an earlier source is left out. Files that fail to load
// are skipped with a warning.
func (c *Catalog) List(ctx context.Context) ([]*Entry, error) {
	seen := make(map[string]bool)
	var entries []*Entry
	for _, src := range c.sources(ctx) {
		files, err := fs.ReadDir(src.fsys, ".")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if _, ok := recipe.FormatOf(f.Name()); !ok {
				continue
			}
			name := strings.TrimSuffix(f.Name(), path.Ext(f.Name()))
			if seen[name] {
				continue
			}
			r, ok, err := find(src.fsys, name)
			if err != nil || !ok {
				c.logger.Warn("skip recipe", zap.String("file", f.Name()), zap.String("origin", src.origin), zap.Error(err))
				continue
			}
			seen[name] = true
			r.File = src.file(r.File)
			entries = append(entries, &Entry{Recipe: r, Origin: src.origin, Location: src.location})
		}
	}
	slices.SortFunc(entries, func(a, b *Entry) int { return strings.Compare(a.Recipe.Name, b.Recipe.Name) })
	return entries, nil
}

// find loads name from fsys trying every recipe extension. The recipe must
// call itself name.
func find(fsys fs.FS, name string) (*recipe.Recipe, bool, error) {
	for _, ext := range recipe.Extensions {
		file := name + ext
		if _, err := fs.Stat(fsys, file); err != nil {
			continue
		}
		r, err := recipe.LoadFS(fsys, file)
		if err != nil {
			return nil, true, err
		}
		if r.Name != name {
			return nil, true, errors.Configuration("%s declares name %q", file, r.Name)
		}
		return r, true, nil
	}
	return nil, false, nil
}
