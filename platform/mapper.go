// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"fmt"
	"slices"
)

// Table translates package-manager OS/arch names into the strings one
// external build system expects.
//
// Map is total: values missing from OS or Arch fall back to DefaultOS and
// DefaultArch, so a build on an unseen platform degrades instead of aborting.
type Table struct {
	OS          map[string]string `yaml:"os" toml:"os"`
	Arch        map[string]string `yaml:"arch" toml:"arch"`
	DefaultOS   string            `yaml:"default_os" toml:"default_os"`
	DefaultArch string            `yaml:"default_arch" toml:"default_arch"`
}

// Mapping is the result of mapping a triple through a Table.
type Mapping struct {
	Platform string
	Target   string
	// Fallback is set when a default was substituted for an unknown value.
	Fallback bool
}

// Map returns the platform and target strings for os and arch.
func (t *Table) Map(os, arch string) Mapping {
	var m Mapping
	var ok bool
	if m.Platform, ok = t.OS[os]; !ok {
		m.Platform, m.Fallback = t.DefaultOS, true
	}
	if m.Target, ok = t.Arch[arch]; !ok {
		m.Target, m.Fallback = t.DefaultArch, true
	}
	return m
}

// MapStrict is Map without fallbacks: an unknown value is an error.
func (t *Table) MapStrict(os, arch string) (Mapping, error) {
	m := t.Map(os, arch)
	if m.Fallback {
		return Mapping{}, fmt.Errorf("no mapping for %s/%s", os, arch)
	}
	return m, nil
}

// Empty reports whether the table maps nothing.
func (t *Table) Empty() bool {
	return t == nil || (len(t.OS) == 0 && len(t.Arch) == 0)
}

// Translate returns names[name], or name itself when names has no entry.
func Translate(name string, names map[string]string) string {
	if v, ok := names[name]; ok {
		return v
	}
	return name
}

// SystemLibs returns the system libraries listed for os. The result is never
// nil and never aliases the table.
func SystemLibs(table map[string][]string, os string) []string {
	libs := slices.Clone(table[os])
	if libs == nil {
		libs = []string{}
	}
	return libs
}

var rustTargets = map[string]map[string]string{
	Linux: {
		X86_64: "x86_64-unknown-linux-gnu",
		ARMv8:  "aarch64-unknown-linux-gnu",
	},
	Windows: {
		X86_64: "x86_64-pc-windows-msvc",
	},
	Macos: {
		X86_64: "x86_64-apple-darwin",
		ARMv8:  "aarch64-apple-darwin",
	},
	IOS: {
		ARMv8: "aarch64-apple-ios",
	},
	Android: {
		ARMv8: "aarch64-linux-android",
	},
}

// RustTarget returns the rustc target triple for os/arch. There is no safe
// default for a compiler target, so unknown pairs are an error.
func RustTarget(os, arch string) (string, error) {
	if t, ok := rustTargets[os][arch]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unsupported OS/arch combination: %s/%s", os, arch)
}

var gnuTriples = map[string]map[string]string{
	Linux: {
		X86:     "i686-linux-gnu",
		X86_64:  "x86_64-linux-gnu",
		ARMv7:   "arm-linux-gnueabi",
		ARMv7hf: "arm-linux-gnueabihf",
		ARMv8:   "aarch64-linux-gnu",
	},
	Windows: {
		X86:    "i686-w64-mingw32",
		X86_64: "x86_64-w64-mingw32",
	},
	Macos: {
		X86_64: "x86_64-apple-darwin",
		ARMv8:  "aarch64-apple-darwin",
	},
	IOS: {
		ARMv8: "aarch64-apple-ios",
	},
	Android: {
		X86:    "i686-linux-android",
		X86_64: "x86_64-linux-android",
		ARMv7:  "armv7a-linux-androideabi",
		ARMv8:  "aarch64-linux-android",
	},
}

// GNUTriple returns the GNU host triplet configure scripts take for os/arch.
func GNUTriple(os, arch string) (string, error) {
	if t, ok := gnuTriples[os][arch]; ok {
		return t, nil
	}
	return "", fmt.Errorf("no GNU triplet for %s/%s", os, arch)
}

// ArchiveExt returns the extension of prebuilt archives published for os.
func ArchiveExt(os string) string {
	if os == Windows {
		return "zip"
	}
	return "tar.xz"
}

// LibraryFiles returns the file names a library called name may have on os,
// static first.
func LibraryFiles(os, name string) []string {
	switch os {
	case Windows:
		return []string{name + ".lib", name + ".dll", "lib" + name + ".a"}
	case Macos, IOS:
		return []string{"lib" + name + ".a", "lib" + name + ".dylib"}
	}
	return []string{"lib" + name + ".a", "lib" + name + ".so"}
}
