// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/platform"
	"github.com/goplus/pkgsmith/recipe"
)

func wamrRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name:        "wamr",
		Description: "WebAssembly Micro Runtime",
		Variants: []recipe.Variant{
			{Name: "iwasm", Libs: []string{"iwasm"}},
			{Name: "iwasm_d", Libs: []string{"iwasm_d"}},
		},
		Info: recipe.Info{
			SystemLibs: map[string][]string{
				platform.Linux:   {"pthread", "m", "dl"},
				platform.Macos:   {"pthread", "m"},
				platform.Windows: {"ws2_32"},
			},
		},
	}
}

func wasmtimeRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name: "wasmtime",
		Info: recipe.Info{
			Libs:       []string{"wasmtime"},
			LibsByOS:   map[string][]string{platform.Windows: {"wasmtime.lib"}},
			SystemLibs: map[string][]string{platform.Windows: {"ws2_32", "ntdll", "userenv", "bcrypt"}},
			Defines:    []string{"LIBWASM_STATIC"},
		},
	}
}

func packageRoot(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	}
	return root
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestComponents(t *testing.T) {
	comps := Components(wamrRecipe(), platform.Linux)
	require.Len(t, comps, 2)
	assert.Equal(t, "iwasm", comps[0].Name)
	assert.Equal(t, []string{"iwasm"}, comps[0].Libs)
	assert.Equal(t, []string{"iwasm_d"}, comps[1].Libs)
	for _, c := range comps {
		assert.Equal(t, []string{"include"}, c.IncludeDirs)
		assert.Equal(t, []string{"lib"}, c.LibDirs)
		assert.Equal(t, []string{"pthread", "m", "dl"}, c.SystemLibs)
	}

	assert.Equal(t, []string{"ws2_32"}, Components(wamrRecipe(), platform.Windows)[0].SystemLibs)
	assert.Empty(t, Components(wamrRecipe(), platform.Android)[0].SystemLibs)

	win := Components(wasmtimeRecipe(), platform.Windows)
	require.Len(t, win, 1)
	assert.Equal(t, "wasmtime", win[0].Name)
	assert.Equal(t, []string{"wasmtime.lib"}, win[0].Libs)
	assert.Equal(t, []string{"ws2_32", "ntdll", "userenv", "bcrypt"}, win[0].SystemLibs)
	assert.Equal(t, []string{"LIBWASM_STATIC"}, win[0].Defines)
	assert.Equal(t, []string{"wasmtime"}, Components(wasmtimeRecipe(), platform.Linux)[0].Libs)
}

func TestPublishWAMRLinux(t *testing.T) {
	root := packageRoot(t, "include/wasm_export.h", "lib/libiwasm.a", "lib/libiwasm_d.a")
	p, err := New(nil, nil)
	require.NoError(t, err)

	triple := platform.Triple{OS: platform.Linux, Arch: platform.X86_64, BuildType: platform.Release}
	m, err := p.Publish(context.Background(), &Artifact{
		Recipe:  wamrRecipe(),
		Version: "2.4.4",
		Triple:  triple,
		Root:    root,
		Options: map[string]string{"shared": "false"},
		BuildID: "b1",
	})
	require.NoError(t, err)
	assert.Equal(t, triple, m.Triple())
	assert.ElementsMatch(t, []string{
		"lib/pkgconfig/iwasm.pc",
		"lib/pkgconfig/iwasm_d.pc",
		"cmake/wamrConfig.cmake",
		"cgo/wamr_linux_amd64.go",
	}, m.Files)

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, m.Components, loaded.Components)
	assert.Equal(t, "2.4.4", loaded.Version)
	assert.Equal(t, "b1", loaded.BuildID)
	c, ok := loaded.Component("iwasm_d")
	require.True(t, ok)
	assert.Equal(t, []string{"iwasm_d"}, c.Libs)

	pc := readFile(t, root, "lib/pkgconfig/iwasm.pc")
	assert.Contains(t, pc, "Version: 2.4.4\n")
	assert.Contains(t, pc, "Cflags: -I${prefix}/include\n")
	assert.Contains(t, pc, "Libs: -L${libdir} -liwasm\n")
	assert.Contains(t, pc, "Libs.private: -lpthread -lm -ldl\n")

	cm := readFile(t, root, "cmake/wamrConfig.cmake")
	assert.Contains(t, cm, "add_library(wamr::iwasm UNKNOWN IMPORTED)")
	assert.Contains(t, cm, `IMPORTED_LOCATION "${_wamr_PREFIX}/lib/libiwasm_d.a"`)
	assert.Contains(t, cm, `INTERFACE_LINK_LIBRARIES "pthread;m;dl"`)
	assert.Contains(t, cm, "set(wamr_FOUND TRUE)")

	cgo := readFile(t, root, "cgo/wamr_linux_amd64.go")
	assert.Contains(t, cgo, "//go:build linux && amd64\n")
	assert.Contains(t, cgo, "package wamr\n")
	assert.Contains(t, cgo, "// #cgo CPPFLAGS: -I${SRCDIR}/../include\n")
	assert.Contains(t, cgo, "// #cgo LDFLAGS: -L${SRCDIR}/../lib -liwasm -lpthread -lm -ldl\n")

	bad, err := VerifyChecksums(root)
	require.NoError(t, err)
	assert.Empty(t, bad)
	sums := readFile(t, root, ChecksumFileName)
	for _, rel := range append(m.Files, InfoFile, "lib/libiwasm.a") {
		assert.Contains(t, sums, "  "+rel+"\n")
	}
	assert.NotContains(t, sums, ChecksumFileName)
}

func TestPublishWasmtimeWindows(t *testing.T) {
	root := packageRoot(t, "include/wasmtime.h", "lib/wasmtime.lib")
	p, err := New([]string{GenCMake, GenCgo}, nil)
	require.NoError(t, err)

	m, err := p.Publish(context.Background(), &Artifact{
		Recipe:  wasmtimeRecipe(),
		Version: "40.0.1",
		Triple:  platform.Triple{OS: platform.Windows, Arch: platform.X86_64, BuildType: platform.Release},
		Root:    root,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cmake/wasmtimeConfig.cmake", "cgo/wasmtime_windows_amd64.go"}, m.Files)
	assert.NoFileExists(t, GetChecksumFilePath(root))

	cm := readFile(t, root, "cmake/wasmtimeConfig.cmake")
	assert.Contains(t, cm, `IMPORTED_LOCATION "${_wasmtime_PREFIX}/lib/wasmtime.lib"`)
	assert.Contains(t, cm, `INTERFACE_LINK_LIBRARIES "ws2_32;ntdll;userenv;bcrypt"`)
	assert.Contains(t, cm, `INTERFACE_COMPILE_DEFINITIONS "LIBWASM_STATIC"`)

	cgo := readFile(t, root, "cgo/wasmtime_windows_amd64.go")
	assert.Contains(t, cgo, "-DLIBWASM_STATIC")
	assert.Contains(t, cgo, "-lwasmtime -lws2_32 -lntdll -luserenv -lbcrypt")
}

func TestHeaderOnlyComponent(t *testing.T) {
	root := packageRoot(t, "include/a.h")
	p, err := New([]string{GenCMake}, nil)
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), &Artifact{
		Recipe:  &recipe.Recipe{Name: "hdr"},
		Version: "1.0.0",
		Triple:  platform.Triple{OS: platform.Linux, Arch: platform.ARMv8, BuildType: platform.Release},
		Root:    root,
	})
	require.NoError(t, err)
	cm := readFile(t, root, "cmake/hdrConfig.cmake")
	assert.Contains(t, cm, "add_library(hdr::hdr INTERFACE IMPORTED)")
	assert.NotContains(t, cm, "IMPORTED_LOCATION")
}

func TestUnknownGenerator(t *testing.T) {
	_, err := New([]string{"pkgconfig", "meson"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfiguration))
}

func TestChecksumsDetectChanges(t *testing.T) {
	root := packageRoot(t, "include/a.h", "lib/liba.a")
	require.NoError(t, GenerateChecksums(context.Background(), root))

	lines := strings.Split(strings.TrimSpace(readFile(t, root, ChecksumFileName)), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		parts := strings.Split(line, "  ")
		require.Len(t, parts, 2)
		assert.Len(t, parts[0], 64)
	}

	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "liba.a"), []byte("changed"), 0o644))
	bad, err := VerifyChecksums(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/liba.a"}, bad)
}

func TestChecksumsCancelled(t *testing.T) {
	root := packageRoot(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, GenerateChecksums(ctx, root), context.Canceled)
}

func TestLinkName(t *testing.T) {
	for lib, want := range map[string]string{
		"iwasm":          "iwasm",
		"wasmtime.lib":   "wasmtime",
		"libwasmtime.a":  "wasmtime",
		"libfoo.dylib":   "foo",
		"libfoo.so":      "foo",
		"wasm-c-api.dll": "wasm-c-api",
	} {
		assert.Equal(t, want, linkName(lib), lib)
	}
	assert.Equal(t, "wasmtime_src", identifier("wasmtime-src"))
	assert.Equal(t, "_7zip", identifier("7zip"))
}
