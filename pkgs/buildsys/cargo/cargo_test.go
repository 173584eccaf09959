// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cargo

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/platform"
)

func TestBuildArgs(t *testing.T) {
	c := New(nil, "", "")
	c.Source("/src")
	c.BuildDir("/build")
	c.Manifest("crates/c-api/Cargo.toml").Package("wasmtime-c-api")
	if err := c.Target(platform.Triple{OS: platform.Linux, Arch: platform.X86_64, BuildType: platform.Release}); err != nil {
		t.Fatal(err)
	}
	got := c.BuildArgs()
	want := []string{
		"build", "--manifest-path", filepath.Join("/src", "crates/c-api/Cargo.toml"),
		"--release", "-p", "wasmtime-c-api",
		"--target", "x86_64-unknown-linux-gnu",
		"--target-dir", "/build",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("BuildArgs() =\n%q\nwant\n%q", got, want)
	}
	if c.TargetTriple() != "x86_64-unknown-linux-gnu" || c.Profile() != "release" {
		t.Errorf("TargetTriple() = %s, Profile() = %s", c.TargetTriple(), c.Profile())
	}
	if env := c.callEnv(); env["CARGO_BUILD_TARGET"] != "x86_64-unknown-linux-gnu" {
		t.Errorf("CARGO_BUILD_TARGET = %q", env["CARGO_BUILD_TARGET"])
	}
	if os.Getenv("CARGO_BUILD_TARGET") == "x86_64-unknown-linux-gnu" {
		t.Error("process env mutated")
	}
}

func TestDebugProfile(t *testing.T) {
	c := New(nil, "", "")
	if err := c.Target(platform.Triple{OS: platform.Macos, Arch: platform.ARMv8, BuildType: platform.Debug}); err != nil {
		t.Fatal(err)
	}
	if c.Profile() != "debug" || slices.Contains(c.BuildArgs(), "--release") {
		t.Fatalf("Debug build uses %s profile, args %q", c.Profile(), c.BuildArgs())
	}
	if c.TargetTriple() != "aarch64-apple-darwin" {
		t.Fatalf("TargetTriple() = %s", c.TargetTriple())
	}
}

func TestUnsupportedTarget(t *testing.T) {
	c := New(nil, "", "")
	err := c.Target(platform.Triple{OS: platform.IOS, Arch: platform.X86, BuildType: platform.Release})
	if !errors.IsKind(err, errors.KindUnsupportedPlatform) {
		t.Fatalf("Target() = %v, want UnsupportedPlatformError", err)
	}
}

func TestTools(t *testing.T) {
	c := New(nil, "/opt/cargo", "")
	if got := c.Tools(); !slices.Equal(got, []string{"/opt/cargo"}) {
		t.Errorf("Tools() = %q", got)
	}
	c.Rustup(true)
	if got := c.Tools(); !slices.Equal(got, []string{"/opt/cargo", "rustup"}) {
		t.Errorf("Tools() with rustup = %q", got)
	}
	// Configure without a target runs nothing.
	if err := New(nil, "", "").Rustup(true).Configure(context.Background()); err != nil {
		t.Errorf("Configure() = %v", err)
	}
	if err := c.Install(context.Background()); err != nil {
		t.Errorf("Install() = %v", err)
	}
}
