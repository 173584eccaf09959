package autotools

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/pkgs/buildsys"
	"github.com/goplus/pkgsmith/platform"
)

// AutoTools wraps common Autotools build steps: configure, make, make install.
type AutoTools struct {
	runner     *buildsys.Runner
	make       string
	SourceDir  string
	buildDir   string
	installDir string
	jobs       int
	host       string
	vars       map[string]string
	env        buildsys.Env
}

var _ buildsys.BuildSystem = (*AutoTools)(nil)

// New creates an AutoTools helper running make as bin ("make" if empty).
func New(r *buildsys.Runner, bin string) *AutoTools {
	if bin == "" {
		bin = "make"
	}
	return &AutoTools{
		runner: r,
		make:   bin,
		vars:   map[string]string{},
		env:    buildsys.Env{},
	}
}

func (a *AutoTools) Name() string { return "autotools" }

func (a *AutoTools) Tools() []string { return []string{a.make} }

func (a *AutoTools) Source(dir string) {
	a.SourceDir = dir
}

func (a *AutoTools) BuildDir(dir string) {
	a.buildDir = dir
}

func (a *AutoTools) InstallDir(dir string) {
	a.installDir = dir
}

func (a *AutoTools) Jobs(n int) {
	a.jobs = n
}

// Target cross-compiles with --host when t is not the machine's own platform.
func (a *AutoTools) Target(t platform.Triple) error {
	a.host = ""
	if native := platform.Host(t.BuildType); native.OS == t.OS && native.Arch == t.Arch {
		return nil
	}
	host, err := platform.GNUTriple(t.OS, t.Arch)
	if err != nil {
		return errors.UnsupportedPlatform(t.OS, t.Arch, "%v", err)
	}
	a.host = host
	return nil
}

// Flag passes key as a configure variable assignment.
func (a *AutoTools) Flag(key, value string) {
	a.vars[key] = value
}

func (a *AutoTools) Env(key, value string) {
	a.env[key] = value
}

func (a *AutoTools) dir() string {
	if a.buildDir == "" {
		return a.SourceDir
	}
	return a.buildDir
}

// ConfigureArgs returns the arguments Configure passes to the configure script.
func (a *AutoTools) ConfigureArgs(args ...string) []string {
	var configArgs []string
	if a.installDir != "" {
		configArgs = append(configArgs, "--prefix="+a.installDir)
	}
	if a.host != "" {
		configArgs = append(configArgs, "--host="+a.host)
	}
	for _, k := range slices.Sorted(maps.Keys(a.vars)) {
		configArgs = append(configArgs, k+"="+a.vars[k])
	}
	return append(configArgs, args...)
}

// Configure runs <src>/configure from the build directory.
func (a *AutoTools) Configure(ctx context.Context, args ...string) error {
	buildDir := a.dir()
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}
	exe, err := filepath.Abs(filepath.Join(a.SourceDir, "configure"))
	if err != nil {
		return err
	}
	return a.runner.Run(ctx, exe, a.ConfigureArgs(args...), a.env, buildDir)
}

// BuildArgs returns the arguments Build passes to make.
func (a *AutoTools) BuildArgs(args ...string) []string {
	var cmdArgs []string
	if a.jobs > 0 {
		cmdArgs = append(cmdArgs, "-j"+strconv.Itoa(a.jobs))
	}
	return append(cmdArgs, args...)
}

// Build runs make in the build directory.
func (a *AutoTools) Build(ctx context.Context, args ...string) error {
	return a.runner.Run(ctx, a.make, a.BuildArgs(args...), a.env, a.dir())
}

// Install runs make install in the build directory.
func (a *AutoTools) Install(ctx context.Context, args ...string) error {
	return a.runner.Run(ctx, a.make, append([]string{"install"}, args...), a.env, a.dir())
}
