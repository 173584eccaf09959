package internal

import (
	"github.com/spf13/cobra"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/platform"
	"github.com/goplus/pkgsmith/recipe"
)

// targetFlags select the version and platforms a command works on.
type targetFlags struct {
	version    string
	os         string
	arch       string
	buildType  string
	buildTypes []string
	targets    []string
}

// register adds the flags to cmd. With multi, --target and --build-type
// may be repeated to select several platforms.
func (f *targetFlags) register(cmd *cobra.Command, multi bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.version, "version", "", "Version to use (default the recipe's version; \"dev\" for the unstable branch)")
	fs.StringVar(&f.os, "os", "", "Target OS, e.g. Linux, Macos, Windows (default the host)")
	fs.StringVar(&f.arch, "arch", "", "Target architecture, e.g. x86_64, armv8 (default the host)")
	if multi {
		fs.StringArrayVar(&f.buildTypes, "build-type", nil, "Build type: Release, Debug, RelWithDebInfo or MinSizeRel; repeat for several (default Release)")
		fs.StringArrayVar(&f.targets, "target", nil, "Target as OS/arch; repeat to build several targets concurrently")
	} else {
		fs.StringVar(&f.buildType, "build-type", platform.Release, "Build type: Release, Debug, RelWithDebInfo or MinSizeRel")
	}
}

// versionOf returns the selected version of r.
func (f *targetFlags) versionOf(r *recipe.Recipe) (string, error) {
	version := f.version
	if version == "" {
		version = r.Version
	}
	if err := recipe.CheckVersion(version); err != nil {
		return "", err
	}
	return version, nil
}

// triples returns the selected platforms: every build type for each
// --target, or for the host overridden by --os and --arch.
func (f *targetFlags) triples() ([]platform.Triple, error) {
	buildTypes := f.buildTypes
	if len(buildTypes) == 0 && f.buildType != "" {
		buildTypes = []string{f.buildType}
	}
	var matrices []platform.Matrix
	if len(f.targets) == 0 {
		host := platform.Host(platform.Release)
		if f.os != "" {
			host.OS = f.os
		}
		if f.arch != "" {
			host.Arch = f.arch
		}
		matrices = append(matrices, platform.Matrix{OS: []string{host.OS}, Arch: []string{host.Arch}, BuildType: buildTypes})
	} else {
		if f.os != "" || f.arch != "" {
			return nil, errors.Configuration("--target cannot be combined with --os or --arch")
		}
		for _, target := range f.targets {
			os, arch, err := platform.ParseTarget(target)
			if err != nil {
				return nil, errors.Configuration("%v", err)
			}
			matrices = append(matrices, platform.Matrix{OS: []string{os}, Arch: []string{arch}, BuildType: buildTypes})
		}
	}

	seen := make(map[platform.Triple]bool)
	var ts []platform.Triple
	for _, m := range matrices {
		for _, t := range m.Combinations() {
			if err := t.Validate(); err != nil {
				return nil, errors.Configuration("%v", err)
			}
			if seen[t] {
				continue
			}
			seen[t] = true
			ts = append(ts, t)
		}
	}
	return ts, nil
}

// triple returns the single selected platform.
func (f *targetFlags) triple() (platform.Triple, error) {
	ts, err := f.triples()
	if err != nil {
		return platform.Triple{}, err
	}
	return ts[0], nil
}
