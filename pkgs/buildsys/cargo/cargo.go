// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cargo drives Rust crates that expose a C API.
package cargo

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/pkgs/buildsys"
	"github.com/goplus/pkgsmith/platform"
)

// Cargo builds one package of a workspace for a Rust target triple.
// It has no install step; copy rules pick artifacts from
// <target-dir>/<triple>/<profile>.
type Cargo struct {
	runner     *buildsys.Runner
	cargo      string
	rustup     string
	SourceDir  string
	buildDir   string
	installDir string
	manifest   string
	pkg        string
	addTarget  bool
	target     string
	release    bool
	jobs       int
	env        buildsys.Env
}

var _ buildsys.BuildSystem = (*Cargo)(nil)

// New creates a Cargo helper. Empty tool paths default to "cargo" and "rustup".
func New(r *buildsys.Runner, cargo, rustup string) *Cargo {
	if cargo == "" {
		cargo = "cargo"
	}
	if rustup == "" {
		rustup = "rustup"
	}
	return &Cargo{
		runner:   r,
		cargo:    cargo,
		rustup:   rustup,
		manifest: "Cargo.toml",
		release:  true,
		env:      buildsys.Env{},
	}
}

func (c *Cargo) Name() string { return "cargo" }

func (c *Cargo) Tools() []string {
	if c.addTarget {
		return []string{c.cargo, c.rustup}
	}
	return []string{c.cargo}
}

// Manifest sets the Cargo.toml path relative to the source directory.
func (c *Cargo) Manifest(path string) *Cargo {
	if path != "" {
		c.manifest = path
	}
	return c
}

// Package selects the workspace member to build.
func (c *Cargo) Package(name string) *Cargo {
	c.pkg = name
	return c
}

// Rustup makes Configure install the target's standard library first.
func (c *Cargo) Rustup(on bool) *Cargo {
	c.addTarget = on
	return c
}

func (c *Cargo) Source(dir string) {
	c.SourceDir = dir
}

func (c *Cargo) BuildDir(dir string) {
	c.buildDir = dir
}

func (c *Cargo) InstallDir(dir string) {
	c.installDir = dir
}

func (c *Cargo) Jobs(n int) {
	c.jobs = n
}

// Target resolves the Rust triple; Debug builds use the dev profile.
func (c *Cargo) Target(t platform.Triple) error {
	target, err := platform.RustTarget(t.OS, t.Arch)
	if err != nil {
		return errors.UnsupportedPlatform(t.OS, t.Arch, "%v", err)
	}
	c.target = target
	c.release = t.BuildType != platform.Debug
	return nil
}

// Flag exports key to the build; crate build scripts read it from the environment.
func (c *Cargo) Flag(key, value string) {
	c.env[key] = value
}

func (c *Cargo) Env(key, value string) {
	c.env[key] = value
}

// TargetTriple returns the Rust target selected by Target.
func (c *Cargo) TargetTriple() string { return c.target }

// Profile returns the output profile directory name.
func (c *Cargo) Profile() string {
	if c.release {
		return "release"
	}
	return "debug"
}

func (c *Cargo) dir() string {
	if c.buildDir == "" {
		return filepath.Join(c.SourceDir, "target")
	}
	return c.buildDir
}

func (c *Cargo) callEnv() buildsys.Env {
	env := make(buildsys.Env, len(c.env)+1)
	for k, v := range c.env {
		env[k] = v
	}
	if c.target != "" {
		env["CARGO_BUILD_TARGET"] = c.target
	}
	return env
}

// Configure adds the Rust target when rustup is enabled.
func (c *Cargo) Configure(ctx context.Context, args ...string) error {
	if !c.addTarget || c.target == "" {
		return nil
	}
	return c.runner.Run(ctx, c.rustup, append([]string{"target", "add", c.target}, args...), c.callEnv(), c.SourceDir)
}

// BuildArgs returns the arguments Build passes to cargo.
func (c *Cargo) BuildArgs(args ...string) []string {
	cmdArgs := []string{"build", "--manifest-path", filepath.Join(c.SourceDir, c.manifest)}
	if c.release {
		cmdArgs = append(cmdArgs, "--release")
	}
	if c.pkg != "" {
		cmdArgs = append(cmdArgs, "-p", c.pkg)
	}
	if c.target != "" {
		cmdArgs = append(cmdArgs, "--target", c.target)
	}
	cmdArgs = append(cmdArgs, "--target-dir", c.dir())
	if c.jobs > 0 {
		cmdArgs = append(cmdArgs, "--jobs", strconv.Itoa(c.jobs))
	}
	return append(cmdArgs, args...)
}

func (c *Cargo) Build(ctx context.Context, args ...string) error {
	return c.runner.Run(ctx, c.cargo, c.BuildArgs(args...), c.callEnv(), c.SourceDir)
}

// Install does nothing.
func (c *Cargo) Install(context.Context, ...string) error { return nil }
