package buildsys

import (
	"context"

	"github.com/goplus/pkgsmith/platform"
)

// BuildSystem captures shared capabilities of build helpers (CMake, Autotools, Cargo).
// One value drives one build: the caller sets paths, target, flags and
// environment, then runs the lifecycle. Nothing is read from or written to the
// process environment beyond what each call is given.
type BuildSystem interface {
	// Name is the recipe's build system kind.
	Name() string

	// Tools lists the executables the lifecycle runs, as configured.
	Tools() []string

	// Basic paths.
	Source(dir string)
	BuildDir(dir string)
	InstallDir(dir string)

	// Target selects the platform and build type being built.
	Target(t platform.Triple) error

	// Env sets a variable for every command this build runs.
	Env(key, val string)

	// Flag passes a rendered recipe flag to the build system.
	Flag(key, value string)

	// Jobs bounds tool parallelism; zero leaves it to the tool.
	Jobs(n int)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error
	Install(ctx context.Context, args ...string) error
}
