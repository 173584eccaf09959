package cmake

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/platform"
)

func TestConfigureArgs(t *testing.T) {
	c := New(nil, "")
	c.Source("/src")
	c.BuildDir("/build")
	c.InstallDir("/stage")
	c.Generator("Ninja")
	if err := c.Target(platform.Triple{OS: platform.Linux, Arch: platform.X86_64, BuildType: platform.Debug}); err != nil {
		t.Fatal(err)
	}
	c.Flag("WAMR_BUILD_INTERP", "1")
	c.Define("FOO", "BAR")
	c.Toolchain("/ndk/android.toolchain.cmake")

	got := c.ConfigureArgs()
	want := []string{
		"-S", "/src", "-B", "/build", "-G", "Ninja",
		"-DCMAKE_BUILD_TYPE:STRING=Debug",
		"-DCMAKE_INSTALL_PREFIX:STRING=/stage",
		"-DCMAKE_TOOLCHAIN_FILE:STRING=/ndk/android.toolchain.cmake",
		"-DFOO:STRING=BAR",
		"-DWAMR_BUILD_INTERP=1",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("ConfigureArgs() =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildInstallArgs(t *testing.T) {
	c := New(nil, "")
	c.BuildDir("/build")
	c.InstallDir("/stage")
	c.Target(platform.Triple{OS: platform.Linux, Arch: platform.X86_64, BuildType: platform.Release})
	c.Jobs(4)
	if got, want := c.BuildArgs(), []string{"--build", "/build", "--config", "Release", "--parallel", "4"}; !slices.Equal(got, want) {
		t.Errorf("BuildArgs() = %q, want %q", got, want)
	}
	if got, want := c.InstallArgs(), []string{"--install", "/build", "--prefix", "/stage", "--config", "Release"}; !slices.Equal(got, want) {
		t.Errorf("InstallArgs() = %q, want %q", got, want)
	}
}

func TestMacosArchitectures(t *testing.T) {
	c := New(nil, "")
	c.Target(platform.Triple{OS: platform.Macos, Arch: platform.ARMv8, BuildType: platform.Release})
	if got := c.Defines["CMAKE_OSX_ARCHITECTURES"].value; got != "arm64" {
		t.Fatalf("CMAKE_OSX_ARCHITECTURES = %q", got)
	}
}

func TestEnvStaysLocal(t *testing.T) {
	t.Setenv("PKGSMITH_CMAKE_TEST", "")
	c := New(nil, "")
	c.Env("PKGSMITH_CMAKE_TEST", "set")
	if got := os.Getenv("PKGSMITH_CMAKE_TEST"); got != "" {
		t.Fatalf("process env mutated: %q", got)
	}
	if c.env["PKGSMITH_CMAKE_TEST"] != "set" {
		t.Fatal("env not recorded")
	}
}

const projectCMake = `cmake_minimum_required(VERSION 3.10)
project(dummy C)
if(NOT DUMMY_VALUE STREQUAL "42")
  message(FATAL_ERROR "DUMMY_VALUE is ${DUMMY_VALUE}")
endif()
add_library(dummy STATIC dummy.c)
install(TARGETS dummy ARCHIVE DESTINATION lib)
install(FILES dummy.h DESTINATION include)
`

func writeProject(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"CMakeLists.txt": projectCMake,
		"dummy.c":        "int dummy(void) { return 42; }\n",
		"dummy.h":        "int dummy(void);\n",
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestConfigureBuildInstallE2E(t *testing.T) {
	if _, err := exec.LookPath("cmake"); err != nil {
		t.Skip("cmake not found in PATH")
	}

	tmp := t.TempDir()
	sourceDir := filepath.Join(tmp, "project")
	installDir := filepath.Join(tmp, "install")
	writeProject(t, sourceDir)

	c := New(nil, "")
	c.Env("CUSTOM", "VAL")
	c.Source(sourceDir)
	c.BuildDir(filepath.Join(tmp, "build"))
	c.InstallDir(installDir)
	c.Target(platform.Host(platform.Release))
	c.Flag("DUMMY_VALUE", "42")

	ctx := context.Background()
	if err := c.Configure(ctx); err != nil {
		t.Fatalf("configure: %v\n%s", err, errors.OutputOf(err))
	}
	if err := c.Build(ctx); err != nil {
		t.Fatalf("build: %v\n%s", err, errors.OutputOf(err))
	}
	if err := c.Install(ctx); err != nil {
		t.Fatalf("install: %v\n%s", err, errors.OutputOf(err))
	}

	if _, err := os.Stat(filepath.Join(installDir, "include", "dummy.h")); err != nil {
		t.Fatalf("installed header missing: %v", err)
	}
	libs, _ := filepath.Glob(filepath.Join(installDir, "lib", "*dummy*"))
	if len(libs) == 0 {
		t.Fatal("installed lib missing")
	}

	data, err := os.ReadFile(filepath.Join(tmp, "build", "CMakeCache.txt"))
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	for _, snippet := range []string{
		"DUMMY_VALUE:UNINITIALIZED=42",
		"ENABLE:BOOL=ON",
		"CMAKE_BUILD_TYPE:STRING=Release",
	} {
		if !strings.Contains(string(data), snippet) {
			t.Errorf("cache missing %q", snippet)
		}
	}
}

func TestConfigureFailureKeepsOutput(t *testing.T) {
	if _, err := exec.LookPath("cmake"); err != nil {
		t.Skip("cmake not found in PATH")
	}

	tmp := t.TempDir()
	sourceDir := filepath.Join(tmp, "project")
	writeProject(t, sourceDir)

	c := New(nil, "")
	c.Source(sourceDir)
	c.BuildDir(filepath.Join(tmp, "build"))
	c.Flag("DUMMY_VALUE", "7")
	err := c.Configure(context.Background())
	if !errors.IsKind(err, errors.KindBuildTool) {
		t.Fatalf("Configure() = %v, want BuildToolError", err)
	}
	if out := string(errors.OutputOf(err)); !strings.Contains(out, "DUMMY_VALUE is 7") {
		t.Fatalf("output lost:\n%s", out)
	}
}
