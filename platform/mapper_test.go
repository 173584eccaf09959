// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"slices"
	"testing"
)

func wamrTable() *Table {
	return &Table{
		OS: map[string]string{
			Linux:   "linux",
			Macos:   "darwin",
			Windows: "windows",
			Android: "android",
			IOS:     "darwin",
		},
		Arch: map[string]string{
			X86:     "X86_32",
			X86_64:  "X86_64",
			ARMv7:   "ARM",
			ARMv8:   "AARCH64",
			ARMv7hf: "ARM",
		},
		DefaultOS:   "linux",
		DefaultArch: "X86_64",
	}
}

func TestMapKnownPairs(t *testing.T) {
	table := wamrTable()
	for os, wantPlatform := range table.OS {
		for arch, wantTarget := range table.Arch {
			m := table.Map(os, arch)
			if m.Platform == "" || m.Target == "" {
				t.Fatalf("Map(%s, %s) returned empty string: %+v", os, arch, m)
			}
			if m.Platform != wantPlatform || m.Target != wantTarget {
				t.Errorf("Map(%s, %s) = %s/%s, want %s/%s", os, arch, m.Platform, m.Target, wantPlatform, wantTarget)
			}
			if m.Fallback {
				t.Errorf("Map(%s, %s) reported a fallback", os, arch)
			}
		}
	}
}

func TestMapFallsBackToDefaults(t *testing.T) {
	table := wamrTable()
	tests := []struct {
		os, arch             string
		wantPlatform, wantTarget string
	}{
		{"FreeBSD", X86_64, "linux", "X86_64"},
		{Linux, "riscv64", "linux", "X86_64"},
		{"Neutrino", "sh4", "linux", "X86_64"},
	}
	for _, tt := range tests {
		m := table.Map(tt.os, tt.arch)
		if m.Platform != tt.wantPlatform || m.Target != tt.wantTarget || !m.Fallback {
			t.Errorf("Map(%s, %s) = %+v, want %s/%s with fallback", tt.os, tt.arch, m, tt.wantPlatform, tt.wantTarget)
		}
		if _, err := table.MapStrict(tt.os, tt.arch); err == nil {
			t.Errorf("MapStrict(%s, %s) succeeded, want error", tt.os, tt.arch)
		}
	}
}

func TestTranslate(t *testing.T) {
	names := map[string]string{X86: "x86_64", ARMv8: "aarch64"}
	for in, want := range map[string]string{
		X86:    "x86_64",
		ARMv8:  "aarch64",
		X86_64: "x86_64",
		"s390x": "s390x",
	} {
		if got := Translate(in, names); got != want {
			t.Errorf("Translate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSystemLibs(t *testing.T) {
	table := map[string][]string{
		Linux:   {"pthread", "m", "dl"},
		Windows: {"ws2_32"},
	}
	got := SystemLibs(table, Linux)
	if !slices.Equal(got, []string{"pthread", "m", "dl"}) {
		t.Errorf("SystemLibs(Linux) = %v", got)
	}
	got[0] = "changed"
	if table[Linux][0] != "pthread" {
		t.Error("SystemLibs aliases the table")
	}
	if got := SystemLibs(table, Android); got == nil || len(got) != 0 {
		t.Errorf("SystemLibs(Android) = %#v, want empty non-nil", got)
	}
}

func TestRustTarget(t *testing.T) {
	got, err := RustTarget(Macos, ARMv8)
	if err != nil || got != "aarch64-apple-darwin" {
		t.Errorf("RustTarget(Macos, armv8) = %q, %v", got, err)
	}
	if _, err := RustTarget(Windows, ARMv8); err == nil {
		t.Error("RustTarget(Windows, armv8) succeeded, want error")
	}
}

func TestGNUTriple(t *testing.T) {
	tests := []struct {
		os, arch, want string
	}{
		{Linux, ARMv7hf, "arm-linux-gnueabihf"},
		{Android, ARMv8, "aarch64-linux-android"},
		{Windows, X86_64, "x86_64-w64-mingw32"},
	}
	for _, tt := range tests {
		if got, err := GNUTriple(tt.os, tt.arch); err != nil || got != tt.want {
			t.Errorf("GNUTriple(%s, %s) = %q, %v, want %q", tt.os, tt.arch, got, err, tt.want)
		}
	}
	if _, err := GNUTriple(IOS, X86); err == nil {
		t.Error("GNUTriple(iOS, x86) succeeded, want error")
	}
}

func TestArchiveExt(t *testing.T) {
	if got := ArchiveExt(Windows); got != "zip" {
		t.Errorf("ArchiveExt(Windows) = %q, want zip", got)
	}
	for _, os := range []string{Linux, Macos, Android, IOS, "FreeBSD"} {
		if got := ArchiveExt(os); got != "tar.xz" {
			t.Errorf("ArchiveExt(%s) = %q, want tar.xz", os, got)
		}
	}
}

func TestLibraryFiles(t *testing.T) {
	if got := LibraryFiles(Linux, "iwasm"); got[0] != "libiwasm.a" {
		t.Errorf("LibraryFiles(Linux) = %v", got)
	}
	if got := LibraryFiles(Windows, "wasmtime"); got[0] != "wasmtime.lib" {
		t.Errorf("LibraryFiles(Windows) = %v", got)
	}
}
