// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package recipe describes how to fetch, build and package one native
// dependency.
//
// Recipes are declarative YAML or TOML documents:
//
//	name: wamr
//	version: 2.4.4
//	source:
//	  git:
//	    url: https://github.com/bytecodealliance/wasm-micro-runtime.git
//	    tag: WAMR-{{.Version}}
//	build:
//	  system: cmake
//	options:
//	  - {name: interp, default: true}
//	flags:
//	  interp: WAMR_BUILD_INTERP
//
// A Recipe is static for the lifetime of an invocation. Everything that
// depends on the target platform is derived from it by Resolve and by the
// methods of Git and Download.
package recipe

import (
	"fmt"
	"slices"
	"strings"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/platform"
)

// Build system kinds.
const (
	SystemCMake     = "cmake"
	SystemAutotools = "autotools"
	SystemCargo     = "cargo"
	SystemNone      = "none"
)

// Roots a copy rule can read from.
const (
	RootSource  = "source"
	RootBuild   = "build"
	RootInstall = "install"
)

// DevVersion selects the unstable branch or release of a dependency.
const DevVersion = "dev"

// Recipe is the declarative description of one dependency.
type Recipe struct {
	Name        string   `yaml:"name" toml:"name" validate:"required,recipename"`
	Version     string   `yaml:"version" toml:"version"`
	Description string   `yaml:"description" toml:"description"`
	Homepage    string   `yaml:"homepage" toml:"homepage" validate:"omitempty,url"`
	License     string   `yaml:"license" toml:"license"`
	Settings    []string `yaml:"settings" toml:"settings" validate:"dive,oneof=os arch build_type compiler"`

	Source   Source            `yaml:"source" toml:"source"`
	Build    Build             `yaml:"build" toml:"build"`
	Options  []Option          `yaml:"options" toml:"options" validate:"dive"`
	Flags    map[string]string `yaml:"flags" toml:"flags" validate:"dive,required"`
	Variants []Variant         `yaml:"variants" toml:"variants" validate:"dive"`
	Package  Package           `yaml:"package" toml:"package"`
	Info     Info              `yaml:"info" toml:"info"`

	// File is the path the recipe was loaded from, empty for built-in recipes.
	File string `yaml:"-" toml:"-"`
}

// Source is a tagged union: exactly one of Git and Download is set.
type Source struct {
	Git      *Git      `yaml:"git,omitempty" toml:"git,omitempty"`
	Download *Download `yaml:"download,omitempty" toml:"download,omitempty"`
}

// Strategy returns "git" or "download".
func (s *Source) Strategy() string {
	switch {
	case s.Git != nil:
		return "git"
	case s.Download != nil:
		return "download"
	}
	return ""
}

// Build configures the external build system.
type Build struct {
	System   string            `yaml:"system" toml:"system" validate:"omitempty,oneof=cmake autotools cargo none"`
	Platform *PlatformFlags    `yaml:"platform,omitempty" toml:"platform,omitempty"`
	Defines  map[string]string `yaml:"defines" toml:"defines"`
	Env      map[string]string `yaml:"env" toml:"env"`
	Cargo    *Cargo            `yaml:"cargo,omitempty" toml:"cargo,omitempty"`
}

// PlatformFlags names the flags that receive the mapped platform and target
// strings, and the table mapping package-manager names onto them.
type PlatformFlags struct {
	Platform    string            `yaml:"platform" toml:"platform"`
	Target      string            `yaml:"target" toml:"target"`
	OS          map[string]string `yaml:"os" toml:"os"`
	Arch        map[string]string `yaml:"arch" toml:"arch"`
	DefaultOS   string            `yaml:"default_os" toml:"default_os" validate:"required"`
	DefaultArch string            `yaml:"default_arch" toml:"default_arch" validate:"required"`
}

// Table returns the mapping table of p.
func (p *PlatformFlags) Table() *platform.Table {
	return &platform.Table{OS: p.OS, Arch: p.Arch, DefaultOS: p.DefaultOS, DefaultArch: p.DefaultArch}
}

// Cargo configures a cargo build.
type Cargo struct {
	Manifest string `yaml:"manifest" toml:"manifest"`
	Package  string `yaml:"package" toml:"package" validate:"required"`
	// Rustup runs "rustup target add" before building.
	Rustup bool `yaml:"rustup" toml:"rustup"`
}

// Option types.
const (
	TypeBool   = "bool"
	TypeString = "string"
)

// Option is a user-tunable build option.
type Option struct {
	Name    string   `yaml:"name" toml:"name" validate:"required"`
	Type    string   `yaml:"type" toml:"type" validate:"omitempty,oneof=bool string"`
	Values  []string `yaml:"values" toml:"values"`
	Default any      `yaml:"default" toml:"default"`
	// ExcludeOS lists the OSes the option does not exist on.
	ExcludeOS []string `yaml:"exclude_os" toml:"exclude_os"`
	Help      string   `yaml:"help" toml:"help"`
}

func (o *Option) excluded(os string) bool {
	return slices.Contains(o.ExcludeOS, os)
}

// Variant is an independently packaged build of the dependency.
type Variant struct {
	Name      string            `yaml:"name" toml:"name" validate:"required"`
	Libs      []string          `yaml:"libs" toml:"libs"`
	BuildType string            `yaml:"build_type" toml:"build_type" validate:"omitempty,oneof=Release Debug RelWithDebInfo MinSizeRel"`
	Flags     map[string]string `yaml:"flags" toml:"flags"`
	// Rename maps installed library names to the names this variant publishes.
	Rename map[string]string `yaml:"rename" toml:"rename"`
}

// Package configures the package stage.
type Package struct {
	Copy []CopyRule `yaml:"copy" toml:"copy" validate:"dive"`
	// Expect lists glob patterns, relative to the package root, that must
	// match after packaging.
	Expect []string `yaml:"expect" toml:"expect"`
}

// CopyRule copies files into the package root.
type CopyRule struct {
	Root     string   `yaml:"root" toml:"root" validate:"omitempty,oneof=source build install"`
	From     string   `yaml:"from" toml:"from"`
	Patterns []string `yaml:"patterns" toml:"patterns"`
	To       string   `yaml:"to" toml:"to"`
	// Flat copies only the top level of From.
	Flat bool `yaml:"flat" toml:"flat"`
}

// CopyData is the data the From path of a copy rule is rendered with.
type CopyData struct {
	OS         string
	Arch       string
	BuildType  string
	RustTarget string
	// Profile is the cargo profile directory, "release" or "debug".
	Profile string
}

// Dir renders the rule's From path.
func (c *CopyRule) Dir(data CopyData) (string, error) {
	return expand("copy", c.From, data)
}

// RootDir returns the rule's root, "source" by default.
func (c *CopyRule) RootDir() string {
	if c.Root == "" {
		return RootSource
	}
	return c.Root
}

// Info is the consumption information published with a package.
type Info struct {
	IncludeDirs []string            `yaml:"include_dirs" toml:"include_dirs"`
	LibDirs     []string            `yaml:"lib_dirs" toml:"lib_dirs"`
	Libs        []string            `yaml:"libs" toml:"libs"`
	LibsByOS    map[string][]string `yaml:"libs_by_os" toml:"libs_by_os"`
	SystemLibs  map[string][]string `yaml:"system_libs" toml:"system_libs"`
	Defines     []string            `yaml:"defines" toml:"defines"`
}

// Option returns the option called name.
func (r *Recipe) Option(name string) (*Option, bool) {
	for i := range r.Options {
		if r.Options[i].Name == name {
			return &r.Options[i], true
		}
	}
	return nil, false
}

// BuildSystem returns the build system kind, defaulting to none for
// prebuilt downloads.
func (r *Recipe) BuildSystem() string {
	if r.Build.System == "" && r.Source.Download != nil {
		return SystemNone
	}
	return r.Build.System
}

// VariantList returns the declared variants, or a single implicit variant
// named after the recipe.
func (r *Recipe) VariantList() []Variant {
	if len(r.Variants) > 0 {
		return r.Variants
	}
	return []Variant{{Name: r.Name}}
}

// Libs returns the libraries v publishes on os. Variant libraries win over
// per-OS libraries, which win over the recipe-wide list.
func (r *Recipe) Libs(v *Variant, os string) []string {
	if v != nil && len(v.Libs) > 0 {
		return slices.Clone(v.Libs)
	}
	if libs, ok := r.Info.LibsByOS[os]; ok {
		return slices.Clone(libs)
	}
	return slices.Clone(r.Info.Libs)
}

// SystemLibs returns the system libraries consumers link on os.
func (r *Recipe) SystemLibs(os string) []string {
	return platform.SystemLibs(r.Info.SystemLibs, os)
}

// IncludeDirs returns the published include directories.
func (r *Recipe) IncludeDirs() []string {
	if len(r.Info.IncludeDirs) == 0 {
		return []string{"include"}
	}
	return slices.Clone(r.Info.IncludeDirs)
}

// LibDirs returns the published library directories.
func (r *Recipe) LibDirs() []string {
	if len(r.Info.LibDirs) == 0 {
		return []string{"lib"}
	}
	return slices.Clone(r.Info.LibDirs)
}

// Expect returns the expected-output patterns; a non-empty include
// directory by default.
func (r *Recipe) Expect() []string {
	if len(r.Package.Expect) == 0 {
		return []string{"include/*"}
	}
	return slices.Clone(r.Package.Expect)
}

// MapPlatform maps os/arch through the recipe's platform table. It returns
// nil when the recipe declares none. In strict mode a value the table does
// not know is an UnsupportedPlatformError.
func (r *Recipe) MapPlatform(os, arch string, strict bool) (*platform.Mapping, error) {
	p := r.Build.Platform
	if p == nil {
		return nil, nil
	}
	table := p.Table()
	if strict {
		m, err := table.MapStrict(os, arch)
		if err != nil {
			return nil, errors.UnsupportedPlatform(os, arch, "%s: %v", r.Name, err)
		}
		return &m, nil
	}
	m := table.Map(os, arch)
	return &m, nil
}

// Validate checks the recipe's invariants. All violations are
// ConfigurationErrors.
func (r *Recipe) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.KindConfiguration, err, "recipe %q", r.Name)
	}
	if (r.Source.Git == nil) == (r.Source.Download == nil) {
		return errors.Configuration("recipe %q: exactly one of source.git and source.download must be set", r.Name)
	}
	if err := r.Source.checkTemplates(); err != nil {
		return fmt.Errorf("recipe %q: %w", r.Name, err)
	}
	for _, rule := range r.Package.Copy {
		if _, err := rule.Dir(CopyData{}); err != nil {
			return fmt.Errorf("recipe %q: copy rule: %w", r.Name, err)
		}
	}

	switch sys := r.BuildSystem(); {
	case sys == "":
		return errors.Configuration("recipe %q: build.system is required for git sources", r.Name)
	case r.Source.Download != nil && sys != SystemNone:
		return errors.Configuration("recipe %q: prebuilt downloads cannot use build system %q", r.Name, sys)
	case r.Source.Git != nil && sys == SystemNone:
		return errors.Configuration("recipe %q: git sources need a build system", r.Name)
	case sys == SystemCargo && r.Build.Cargo == nil:
		return errors.Configuration("recipe %q: build.cargo is required for cargo builds", r.Name)
	}

	seen := make(map[string]bool)
	for i := range r.Options {
		o := &r.Options[i]
		if seen[o.Name] {
			return errors.Configuration("recipe %q: duplicate option %q", r.Name, o.Name)
		}
		seen[o.Name] = true
		if err := o.check(); err != nil {
			return errors.Wrap(errors.KindConfiguration, err, "recipe %q", r.Name)
		}
	}

	for name, flag := range r.Flags {
		o, ok := r.Option(name)
		if !ok {
			return errors.Configuration("recipe %q: flag %q maps undeclared option %q", r.Name, flag, name)
		}
		if strings.HasPrefix(flag, "!") && o.kind() != TypeBool {
			return errors.Configuration("recipe %q: flag %q inverts non-boolean option %q", r.Name, flag, name)
		}
	}

	seen = make(map[string]bool)
	for _, v := range r.Variants {
		if seen[v.Name] {
			return errors.Configuration("recipe %q: duplicate variant %q", r.Name, v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

func (o *Option) kind() string {
	if o.Type == "" {
		return TypeBool
	}
	return o.Type
}

func (o *Option) check() error {
	switch o.kind() {
	case TypeBool:
		if len(o.Values) > 0 {
			return fmt.Errorf("option %q: boolean options take no values", o.Name)
		}
	case TypeString:
		if len(o.Values) == 0 {
			return fmt.Errorf("option %q: string options need a list of values", o.Name)
		}
	}
	if o.Default == nil {
		return fmt.Errorf("option %q: missing default", o.Name)
	}
	if _, err := o.normalize(fmt.Sprint(o.Default)); err != nil {
		return fmt.Errorf("option %q: invalid default: %w", o.Name, err)
	}
	return nil
}

// normalize validates value against o and returns its canonical form:
// "true"/"false" for booleans, the value itself for strings.
func (o *Option) normalize(value string) (string, error) {
	if o.kind() == TypeBool {
		b, err := parseBool(value)
		if err != nil {
			return "", err
		}
		return fmt.Sprint(b), nil
	}
	if !slices.Contains(o.Values, value) {
		return "", fmt.Errorf("%q is not one of %s", value, strings.Join(o.Values, ", "))
	}
	return value, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", s)
}
