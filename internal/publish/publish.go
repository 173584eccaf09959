// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package publish writes the consumption metadata of a package root and the
// files consumers build against it with.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/logging"
	"github.com/goplus/pkgsmith/platform"
	"github.com/goplus/pkgsmith/recipe"
)

// InfoFile is the name of the metadata file at the package root.
const InfoFile = "package-info.json"

// Generator names.
const (
	GenPkgConfig = "pkgconfig"
	GenCMake     = "cmake"
	GenCgo       = "cgo"
	GenChecksums = "checksums"
)

var allGenerators = []string{GenPkgConfig, GenCMake, GenCgo, GenChecksums}

// Generators returns every generator name, the default set.
func Generators() []string { return slices.Clone(allGenerators) }

// CheckGenerators rejects unknown generator names.
func CheckGenerators(names []string) error {
	for _, name := range names {
		if !slices.Contains(allGenerators, name) {
			return errors.Configuration("unknown generator %q", name).With("generators", allGenerators)
		}
	}
	return nil
}

// Component is the consumption information of one variant.
type Component struct {
	Name        string   `json:"name"`
	IncludeDirs []string `json:"include_dirs"`
	LibDirs     []string `json:"lib_dirs"`
	Libs        []string `json:"libs"`
	SystemLibs  []string `json:"system_libs"`
	Defines     []string `json:"defines"`
}

// Metadata is the content of package-info.json.
type Metadata struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	OS         string            `json:"os"`
	Arch       string            `json:"arch"`
	BuildType  string            `json:"build_type"`
	Options    map[string]string `json:"options,omitempty"`
	Source     string            `json:"source,omitempty"`
	BuildID    string            `json:"build_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Components []Component       `json:"components"`
	// Files lists the generated consumer files, relative to the root.
	Files []string `json:"files,omitempty"`

	// Root is the package root the metadata was read from or written to.
	Root string `json:"-"`
}

// Triple returns the platform the package was built for.
func (m *Metadata) Triple() platform.Triple {
	return platform.Triple{OS: m.OS, Arch: m.Arch, BuildType: m.BuildType}
}

// Component returns the component called name.
func (m *Metadata) Component(name string) (*Component, bool) {
	for i := range m.Components {
		if m.Components[i].Name == name {
			return &m.Components[i], true
		}
	}
	return nil, false
}

// Components derives one component per variant of r for os.
func Components(r *recipe.Recipe, os string) []Component {
	variants := r.VariantList()
	comps := make([]Component, 0, len(variants))
	for i := range variants {
		comps = append(comps, Component{
			Name:        variants[i].Name,
			IncludeDirs: r.IncludeDirs(),
			LibDirs:     r.LibDirs(),
			Libs:        r.Libs(&variants[i], os),
			SystemLibs:  r.SystemLibs(os),
			Defines:     slices.Clone(r.Info.Defines),
		})
	}
	return comps
}

// Artifact is a packaged build ready to publish.
type Artifact struct {
	Recipe  *recipe.Recipe
	Version string
	Triple  platform.Triple
	Root    string
	Options map[string]string
	Source  string
	BuildID string
}

// Publisher writes package-info.json and the configured generators.
type Publisher struct {
	generators []string
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a Publisher running generators; nil means all of them.
func New(generators []string, logger *zap.Logger) (*Publisher, error) {
	if generators == nil {
		generators = Generators()
	}
	if err := CheckGenerators(generators); err != nil {
		return nil, err
	}
	return &Publisher{generators: generators, logger: logging.OrNop(logger), now: time.Now}, nil
}

// Publish writes the metadata of a into its root. Checksums, when enabled,
// are written last and cover every other file.
func (p *Publisher) Publish(ctx context.Context, a *Artifact) (*Metadata, error) {
	m := &Metadata{
		Name:       a.Recipe.Name,
		Version:    a.Version,
		OS:         a.Triple.OS,
		Arch:       a.Triple.Arch,
		BuildType:  a.Triple.BuildType,
		Options:    a.Options,
		Source:     a.Source,
		BuildID:    a.BuildID,
		CreatedAt:  p.now().UTC(),
		Components: Components(a.Recipe, a.Triple.OS),
		Root:       a.Root,
	}

	for _, gen := range p.generators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			files []string
			err   error
		)
		switch gen {
		case GenPkgConfig:
			files, err = writePkgConfig(a.Root, m, a.Recipe.Description)
		case GenCMake:
			files, err = writeCMakeConfig(a.Root, m)
		case GenCgo:
			files, err = writeCgo(a.Root, m)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", gen, err)
		}
		p.logger.Debug("generated", zap.String("generator", gen), zap.Strings("files", files))
		m.Files = append(m.Files, files...)
	}

	if err := writeJSON(filepath.Join(a.Root, InfoFile), m); err != nil {
		return nil, err
	}
	if slices.Contains(p.generators, GenChecksums) {
		if err := GenerateChecksums(ctx, a.Root); err != nil {
			return nil, err
		}
	}
	p.logger.Info("published",
		zap.String("name", m.Name),
		zap.String("version", m.Version),
		zap.Stringer("platform", a.Triple),
		zap.Int("components", len(m.Components)))
	return m, nil
}

// Load reads the metadata published at root.
func Load(root string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(root, InfoFile))
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", InfoFile, err)
	}
	m.Root = root
	return &m, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
