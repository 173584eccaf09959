package cmake

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/goplus/pkgsmith/pkgs/buildsys"
	"github.com/goplus/pkgsmith/platform"
)

type defineValue struct {
	value    string
	typeName string
}

// CMake wraps common CMake build steps with chainable configuration.
type CMake struct {
	runner     *buildsys.Runner
	bin        string
	SourceDir  string
	buildDir   string
	installDir string
	generator  string
	buildType  string
	toolchain  string
	jobs       int
	Defines    map[string]defineValue
	env        buildsys.Env
}

var _ buildsys.BuildSystem = (*CMake)(nil)

// New creates a CMake helper running bin ("cmake" if empty) through r.
func New(r *buildsys.Runner, bin string) *CMake {
	if bin == "" {
		bin = "cmake"
	}
	return &CMake{
		runner:  r,
		bin:     bin,
		Defines: map[string]defineValue{},
		env:     buildsys.Env{},
	}
}

func (c *CMake) Name() string { return "cmake" }

func (c *CMake) Tools() []string { return []string{c.bin} }

func (c *CMake) Source(dir string) {
	c.SourceDir = dir
}

func (c *CMake) BuildDir(dir string) {
	c.buildDir = dir
}

func (c *CMake) InstallDir(dir string) {
	c.installDir = dir
}

func (c *CMake) Jobs(n int) {
	c.jobs = n
}

// Target sets the build type, and the slice architecture when building
// for macOS.
func (c *CMake) Target(t platform.Triple) error {
	c.buildType = t.BuildType
	if t.OS == platform.Macos {
		switch t.Arch {
		case platform.ARMv8:
			c.Define("CMAKE_OSX_ARCHITECTURES", "arm64")
		case platform.X86_64:
			c.Define("CMAKE_OSX_ARCHITECTURES", "x86_64")
		}
	}
	return nil
}

func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

// Toolchain sets CMAKE_TOOLCHAIN_FILE, for cross builds.
func (c *CMake) Toolchain(path string) *CMake {
	c.toolchain = path
	return c
}

func (c *CMake) Define(key, value string) *CMake {
	c.Defines[key] = defineValue{value: value, typeName: "STRING"}
	return c
}

// Flag defines an untyped cache variable, the way the project's own
// CMakeLists declares it.
func (c *CMake) Flag(key, value string) {
	c.Defines[key] = defineValue{value: value}
}

func (c *CMake) Env(key, value string) {
	c.env[key] = value
}

func (c *CMake) dir() string {
	if c.buildDir == "" {
		return filepath.Join(c.SourceDir, "build")
	}
	return c.buildDir
}

// ConfigureArgs returns the arguments Configure passes to cmake.
func (c *CMake) ConfigureArgs(args ...string) []string {
	cmakeArgs := []string{"-S", c.SourceDir, "-B", c.dir()}
	if c.generator != "" {
		cmakeArgs = append(cmakeArgs, "-G", c.generator)
	}
	if c.installDir != "" {
		c.Define("CMAKE_INSTALL_PREFIX", c.installDir)
	}
	if c.toolchain != "" {
		c.Define("CMAKE_TOOLCHAIN_FILE", c.toolchain)
	}
	if c.buildType != "" {
		c.Define("CMAKE_BUILD_TYPE", c.buildType)
	}
	cmakeArgs = append(cmakeArgs, c.definesArgs()...)
	return append(cmakeArgs, args...)
}

func (c *CMake) Configure(ctx context.Context, args ...string) error {
	if err := os.MkdirAll(c.dir(), 0o755); err != nil {
		return err
	}
	return c.runner.Run(ctx, c.bin, c.ConfigureArgs(args...), c.env, "")
}

// BuildArgs returns the arguments Build passes to cmake.
func (c *CMake) BuildArgs(args ...string) []string {
	cmdArgs := []string{"--build", c.dir()}
	if c.buildType != "" {
		cmdArgs = append(cmdArgs, "--config", c.buildType)
	}
	if c.jobs > 0 {
		cmdArgs = append(cmdArgs, "--parallel", strconv.Itoa(c.jobs))
	}
	return append(cmdArgs, args...)
}

func (c *CMake) Build(ctx context.Context, args ...string) error {
	return c.runner.Run(ctx, c.bin, c.BuildArgs(args...), c.env, "")
}

// InstallArgs returns the arguments Install passes to cmake.
func (c *CMake) InstallArgs(args ...string) []string {
	cmdArgs := []string{"--install", c.dir()}
	if c.installDir != "" {
		cmdArgs = append(cmdArgs, "--prefix", c.installDir)
	}
	if c.buildType != "" {
		cmdArgs = append(cmdArgs, "--config", c.buildType)
	}
	return append(cmdArgs, args...)
}

func (c *CMake) Install(ctx context.Context, args ...string) error {
	return c.runner.Run(ctx, c.bin, c.InstallArgs(args...), c.env, "")
}

func (c *CMake) definesArgs() []string {
	args := make([]string, 0, len(c.Defines))
	for _, k := range slices.Sorted(maps.Keys(c.Defines)) {
		def := c.Defines[k]
		if def.typeName != "" {
			args = append(args, "-D"+k+":"+def.typeName+"="+def.value)
			continue
		}
		args = append(args, "-D"+k+"="+def.value)
	}
	return args
}
