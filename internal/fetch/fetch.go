// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch obtains the sources of a recipe: a shallow git checkout of
// a release tag, or a prebuilt archive downloaded and unpacked.
package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/logging"
	"github.com/goplus/pkgsmith/internal/vcs"
	"github.com/goplus/pkgsmith/platform"
	"github.com/goplus/pkgsmith/recipe"
)

// Source is a fetched source tree.
type Source struct {
	Dir      string `json:"-"`
	Strategy string `json:"strategy"`
	// Ref is the git ref, empty for the default branch, or the archive URL.
	Ref string `json:"ref"`
	// Commit is the checked out commit of a git source.
	Commit string `json:"commit,omitempty"`
	// Digest is the SHA-256 of a downloaded archive.
	Digest    string    `json:"digest,omitempty"`
	Version   string    `json:"version"`
	FetchedAt time.Time `json:"fetched_at"`
	// Reused is set when an earlier checkout was kept.
	Reused bool `json:"-"`
}

// Fetcher fetches recipe sources.
type Fetcher struct {
	vcs    vcs.VCS
	client *http.Client
	logger *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithVCS sets the version control backend.
func WithVCS(v vcs.VCS) Option {
	return func(f *Fetcher) { f.vcs = v }
}

// WithHTTPClient sets the client archives are downloaded with.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = logging.OrNop(l) }
}

// New returns a Fetcher using git from PATH and http.DefaultClient.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		vcs:    vcs.NewGitVCS(),
		client: http.DefaultClient,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch places the sources of r at version for t into dir. A previous
// fetch of the same ref is reused unless version is dev.
//
// Errors are ConfigurationError for an invalid version,
// UnsupportedPlatformError for a platform without a prebuilt archive, and
// FetchError for everything that goes wrong on the wire or on disk.
func (f *Fetcher) Fetch(ctx context.Context, r *recipe.Recipe, version string, t platform.Triple, dir string) (*Source, error) {
	if err := recipe.CheckVersion(version); err != nil {
		return nil, err
	}
	switch {
	case r.Source.Git != nil:
		return f.fetchGit(ctx, r, version, dir)
	case r.Source.Download != nil:
		return f.fetchDownload(ctx, r, version, t, dir)
	}
	return nil, errors.Configuration("recipe %q has no source", r.Name)
}

func (f *Fetcher) fetchGit(ctx context.Context, r *recipe.Recipe, version, dir string) (*Source, error) {
	g := r.Source.Git
	ref, err := g.Ref(version)
	if err != nil {
		return nil, err
	}
	want := &Source{Dir: dir, Strategy: "git", Ref: ref, Version: version}
	if src, ok := reusable(dir, want); ok {
		f.logger.Debug("reusing checkout", zap.String("dir", dir), zap.String("ref", ref))
		return src, nil
	}

	if err := Clean(dir); err != nil {
		return nil, errors.Fetch(err, "clean %s", dir)
	}
	f.logger.Info("cloning", zap.String("url", g.URL), zap.String("ref", ref))
	if err := f.vcs.Clone(ctx, g.URL, ref, dir); err != nil {
		os.RemoveAll(dir)
		return nil, errors.Fetch(err, "clone %s at %q", g.URL, ref).With("url", g.URL)
	}
	commit, err := f.vcs.Head(ctx, dir)
	if err != nil {
		return nil, errors.Fetch(err, "resolve checkout of %s", g.URL)
	}
	want.Commit = commit
	want.FetchedAt = time.Now().UTC()
	if err := writeMarker(dir, want); err != nil {
		return nil, err
	}
	return want, nil
}

func (f *Fetcher) fetchDownload(ctx context.Context, r *recipe.Recipe, version string, t platform.Triple, dir string) (*Source, error) {
	d := r.Source.Download
	url, err := d.Resolve(r.Name, version, t.OS, t.Arch)
	if err != nil {
		return nil, err
	}
	want := &Source{Dir: dir, Strategy: "download", Ref: url, Version: version}
	if src, ok := reusable(dir, want); ok {
		f.logger.Debug("reusing archive", zap.String("dir", dir), zap.String("url", url))
		return src, nil
	}

	if err := Clean(dir); err != nil {
		return nil, errors.Fetch(err, "clean %s", dir)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, errors.Fetch(err, "create %s", filepath.Dir(dir))
	}

	f.logger.Info("downloading", zap.String("url", url))
	archive, digest, err := f.download(ctx, url, filepath.Dir(dir))
	if err != nil {
		return nil, err
	}
	defer os.Remove(archive)

	if expected := d.Digest(t.OS, t.Arch); expected != "" && expected != digest {
		return nil, errors.Fetch(nil, "checksum mismatch for %s: got sha256 %s, want %s", url, digest, expected).
			With("url", url)
	}
	if err := unpack(archive, kindOf(url), dir, d.StripRoot); err != nil {
		os.RemoveAll(dir)
		return nil, errors.Fetch(err, "unpack %s", url)
	}
	want.Digest = digest
	want.FetchedAt = time.Now().UTC()
	if err := writeMarker(dir, want); err != nil {
		return nil, err
	}
	return want, nil
}

// markerPath returns the path of the marker describing dir. It lives next
// to dir so that copy rules reading the source tree never see it.
func markerPath(dir string) string {
	return filepath.Clean(dir) + ".source.json"
}

func reusable(dir string, want *Source) (*Source, bool) {
	if recipe.IsDev(want.Version) {
		return nil, false
	}
	data, err := os.ReadFile(markerPath(dir))
	if err != nil {
		return nil, false
	}
	var have Source
	if json.Unmarshal(data, &have) != nil {
		return nil, false
	}
	if have.Strategy != want.Strategy || have.Ref != want.Ref || have.Version != want.Version {
		return nil, false
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, false
	}
	have.Dir = dir
	have.Reused = true
	return &have, true
}

func writeMarker(dir string, src *Source) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return errors.Fetch(err, "encode source marker")
	}
	if err := os.WriteFile(markerPath(dir), data, 0o644); err != nil {
		return errors.Fetch(err, "write source marker")
	}
	return nil
}

// Clean removes dir and its marker.
func Clean(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.Remove(markerPath(dir)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
