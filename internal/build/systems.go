package build

import (
	"github.com/goplus/pkgsmith/internal/config"
	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/pkgs/buildsys"
	"github.com/goplus/pkgsmith/pkgs/buildsys/autotools"
	"github.com/goplus/pkgsmith/pkgs/buildsys/cargo"
	"github.com/goplus/pkgsmith/pkgs/buildsys/cmake"
	"github.com/goplus/pkgsmith/recipe"
)

// SystemFactory creates the build system a recipe asks for. It returns nil
// for recipes that need no build.
type SystemFactory func(r *recipe.Recipe) (buildsys.BuildSystem, error)

// Systems returns the factory of the real build systems, running tools
// configured in tools through runner. cmake builds use the generator and
// toolchain file of cm.
func Systems(runner *buildsys.Runner, tools config.Tools, cm config.CMake) SystemFactory {
	return func(r *recipe.Recipe) (buildsys.BuildSystem, error) {
		switch r.BuildSystem() {
		case recipe.SystemNone:
			return nil, nil
		case recipe.SystemCMake:
			c := cmake.New(runner, tools.CMake)
			if cm.Generator != "" {
				c.Generator(cm.Generator)
			}
			if cm.Toolchain != "" {
				c.Toolchain(cm.Toolchain)
			}
			return c, nil
		case recipe.SystemAutotools:
			return autotools.New(runner, tools.Make), nil
		case recipe.SystemCargo:
			c := cargo.New(runner, tools.Cargo, tools.Rustup)
			if cfg := r.Build.Cargo; cfg != nil {
				c.Manifest(cfg.Manifest).Package(cfg.Package).Rustup(cfg.Rustup)
			}
			return c, nil
		}
		return nil, errors.Configuration("%s: unknown build system %q", r.Name, r.BuildSystem())
	}
}
