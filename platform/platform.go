// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package platform maps package-manager platform settings onto the
// vocabulary of external build systems.
package platform

import (
	"fmt"
	"path"
	"runtime"
	"slices"
	"strings"
)

// Package-manager OS names.
const (
	Linux   = "Linux"
	Macos   = "Macos"
	Windows = "Windows"
	Android = "Android"
	IOS     = "iOS"
)

// Package-manager architecture names.
const (
	X86     = "x86"
	X86_64  = "x86_64"
	ARMv7   = "armv7"
	ARMv7hf = "armv7hf"
	ARMv8   = "armv8"
)

// Build types.
const (
	Release        = "Release"
	Debug          = "Debug"
	RelWithDebInfo = "RelWithDebInfo"
	MinSizeRel     = "MinSizeRel"
)

var (
	knownOS         = []string{Linux, Macos, Windows, Android, IOS}
	knownArch       = []string{X86, X86_64, ARMv7, ARMv7hf, ARMv8}
	knownBuildTypes = []string{Release, Debug, RelWithDebInfo, MinSizeRel}
)

// KnownOS returns the OS names the mapper tables are written against.
func KnownOS() []string { return slices.Clone(knownOS) }

// KnownArch returns the architecture names the mapper tables are written against.
func KnownArch() []string { return slices.Clone(knownArch) }

// Triple is the (OS, architecture, build type) a build request targets.
type Triple struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	BuildType string `json:"build_type"`
}

// Key returns "<OS>/<Arch>", the directory key that keeps concurrent builds apart.
func (t Triple) Key() string {
	return path.Join(t.OS, t.Arch)
}

func (t Triple) String() string {
	return t.OS + "/" + t.Arch + "/" + t.BuildType
}

// Validate checks the build type. OS and Arch are open: the
// mapper degrades to defaults for values it does not know.
func (t Triple) Validate() error {
	if t.OS == "" || t.Arch == "" {
		return fmt.Errorf("platform: os and arch are required, got %q/%q", t.OS, t.Arch)
	}
	if !slices.Contains(knownBuildTypes, t.BuildType) {
		return fmt.Errorf("platform: unknown build type %q (want one of %s)", t.BuildType, strings.Join(knownBuildTypes, ", "))
	}
	return nil
}

// Host returns the triple of the running machine.
func Host(buildType string) Triple {
	os := map[string]string{
		"linux":   Linux,
		"darwin":  Macos,
		"windows": Windows,
		"android": Android,
		"ios":     IOS,
	}[runtime.GOOS]
	if os == "" {
		os = runtime.GOOS
	}
	arch := map[string]string{
		"386":   X86,
		"amd64": X86_64,
		"arm":   ARMv7,
		"arm64": ARMv8,
	}[runtime.GOARCH]
	if arch == "" {
		arch = runtime.GOARCH
	}
	return Triple{OS: os, Arch: arch, BuildType: buildType}
}

// ParseTarget parses "OS/arch".
func ParseTarget(s string) (os, arch string, err error) {
	os, arch, ok := strings.Cut(s, "/")
	if !ok || os == "" || arch == "" || strings.Contains(arch, "/") {
		return "", "", fmt.Errorf("platform: invalid target %q, expected OS/arch", s)
	}
	return os, arch, nil
}

// GoOSArch returns the GOOS/GOARCH pair matching os and arch, used for Go
// build constraints of generated cgo files.
func GoOSArch(os, arch string) (goos, goarch string) {
	goos = map[string]string{
		Linux:   "linux",
		Macos:   "darwin",
		Windows: "windows",
		Android: "android",
		IOS:     "ios",
	}[os]
	if goos == "" {
		goos = strings.ToLower(os)
	}
	goarch = map[string]string{
		X86:     "386",
		X86_64:  "amd64",
		ARMv7:   "arm",
		ARMv7hf: "arm",
		ARMv8:   "arm64",
	}[arch]
	if goarch == "" {
		goarch = strings.ToLower(arch)
	}
	return goos, goarch
}
