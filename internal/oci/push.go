// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package oci pushes published packages to OCI registries as artifacts.
package oci

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/distribution/reference"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/logging"
	"github.com/goplus/pkgsmith/internal/publish"
)

// ArtifactType is the artifact type of pushed packages.
const ArtifactType = "application/vnd.goplus.pkgsmith.package.v1"

// Manifest annotations besides the standard org.opencontainers ones.
const (
	AnnotationRecipe   = "dev.goplus.pkgsmith.recipe"
	AnnotationPlatform = "dev.goplus.pkgsmith.platform"
	AnnotationBuildID  = "dev.goplus.pkgsmith.build-id"
)

// Options configures a push.
type Options struct {
	// Registry is the registry host, with or without an http(s):// prefix.
	Registry   string
	Repository string
	// Tag defaults to Tag(metadata).
	Tag string
	// PlainHTTP talks HTTP instead of HTTPS.
	PlainHTTP bool
	// InsecureTLS skips certificate verification.
	InsecureTLS bool
}

// Result is a pushed artifact.
type Result struct {
	Digest    string
	Reference string
}

// Tag returns the default tag of a package: "<version>-<os>-<arch>-<buildtype>",
// lowercased.
func Tag(m *publish.Metadata) string {
	return strings.ToLower(strings.Join([]string{m.Version, m.OS, m.Arch, m.BuildType}, "-"))
}

// Reference returns the validated "registry/repository:tag" reference.
func Reference(registry, repository, tag string) (string, error) {
	ref := fmt.Sprintf("%s/%s:%s", stripProtocol(registry), repository, tag)
	if _, err := reference.ParseNormalizedNamed(ref); err != nil {
		return "", errors.Configuration("invalid image reference %q: %v", ref, err)
	}
	return ref, nil
}

// Pusher pushes package roots.
type Pusher struct {
	logger *zap.Logger
}

// New returns a Pusher logging to logger.
func New(logger *zap.Logger) *Pusher {
	return &Pusher{logger: logging.OrNop(logger)}
}

// Push pushes the published package at root. The package must have been
// published: its package-info.json supplies the tag and the annotations.
func (p *Pusher) Push(ctx context.Context, root string, opts Options) (*Result, error) {
	if opts.Registry == "" || opts.Repository == "" {
		return nil, errors.Configuration("registry and repository are required to push")
	}
	m, err := publish.Load(root)
	if err != nil {
		return nil, err
	}
	tag := opts.Tag
	if tag == "" {
		tag = Tag(m)
	}
	ref, err := Reference(opts.Registry, opts.Repository, tag)
	if err != nil {
		return nil, err
	}

	repo, err := remote.NewRepository(stripProtocol(opts.Registry) + "/" + opts.Repository)
	if err != nil {
		return nil, errors.Configuration("repository %s/%s: %v", opts.Registry, opts.Repository, err)
	}
	repo.PlainHTTP = opts.PlainHTTP
	repo.Client = authClient(opts.PlainHTTP, opts.InsecureTLS)

	p.logger.Info("pushing", zap.String("reference", ref), zap.String("root", root))
	desc, err := p.pushTo(ctx, root, m, tag, repo)
	if err != nil {
		return nil, err
	}
	p.logger.Info("pushed", zap.String("reference", ref), zap.String("digest", desc.Digest.String()))
	return &Result{Digest: desc.Digest.String(), Reference: ref}, nil
}

// pushTo packs root as one gzip layer under an artifact manifest tagged tag,
// and copies it to dst.
func (p *Pusher) pushTo(ctx context.Context, root string, m *publish.Metadata, tag string, dst oras.Target) (ocispec.Descriptor, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	store, err := file.New(abs)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("create file store: %w", err)
	}
	defer store.Close()
	store.TarReproducible = true

	layer, err := store.Add(ctx, m.Name, ocispec.MediaTypeImageLayerGzip, abs)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("add %s: %w", abs, err)
	}
	manifest, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers:              []ocispec.Descriptor{layer},
		ManifestAnnotations: annotations(m),
	})
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("pack manifest: %w", err)
	}
	if err := store.Tag(ctx, manifest, tag); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("tag manifest: %w", err)
	}
	desc, err := oras.Copy(ctx, store, tag, dst, tag, oras.DefaultCopyOptions)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("push %s: %w", tag, err)
	}
	return desc, nil
}

func annotations(m *publish.Metadata) map[string]string {
	a := map[string]string{
		ocispec.AnnotationTitle:   m.Name,
		ocispec.AnnotationVersion: m.Version,
		AnnotationRecipe:          m.Name,
		AnnotationPlatform:        m.Triple().String(),
	}
	// Repeated pushes of one build produce the same manifest.
	if !m.CreatedAt.IsZero() {
		a[ocispec.AnnotationCreated] = m.CreatedAt.UTC().Format(time.RFC3339)
	}
	if m.BuildID != "" {
		a[AnnotationBuildID] = m.BuildID
	}
	if m.Source != "" {
		a[ocispec.AnnotationRevision] = m.Source
	}
	return a
}

func stripProtocol(registry string) string {
	registry = strings.TrimPrefix(registry, "https://")
	return strings.TrimPrefix(registry, "http://")
}

// authClient returns a client using Docker credentials when there are any.
func authClient(plainHTTP, insecureTLS bool) *auth.Client {
	store, _ := credentials.NewStoreFromDocker(credentials.StoreOptions{})

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !plainHTTP && insecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
	}
	client := &auth.Client{
		Client: &http.Client{Transport: transport},
		Cache:  auth.NewCache(),
	}
	if store != nil {
		client.Credential = credentials.Credential(store)
	}
	return client
}
