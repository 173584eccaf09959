package internal

import (
	"github.com/spf13/cobra"

	"github.com/goplus/pkgsmith/internal/build"
	"github.com/goplus/pkgsmith/recipe"
)

var (
	buildTarget  targetFlags
	buildOptions []string
	buildForce   bool
	buildVerbose bool
)

var buildCmd = &cobra.Command{
	Use:   "build <recipe>",
	Short: "Fetch, build, package and publish a recipe",
	Long: `Build runs the full pipeline of a recipe for one or more platforms and prints
the path of the package-info.json of every package it publishes.

The recipe is a name from the catalog or a path to a recipe file.`,
	Example: `  pkgsmith build wamr
  pkgsmith build wamr -o jit=true --build-type Debug
  pkgsmith build wasmtime --target Linux/x86_64 --target Macos/armv8`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildTarget.register(buildCmd, true)
	buildCmd.Flags().StringArrayVarP(&buildOptions, "option", "o", nil, "Recipe option as name=value; repeatable")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "Rebuild even when a cached package exists")
	buildCmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "Stream build tool output to stderr")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	entry, err := sess.catalog.Load(ctx, args[0])
	if err != nil {
		return err
	}
	r := entry.Recipe
	overrides, err := recipe.ParseOverrides(buildOptions)
	if err != nil {
		return err
	}
	version, err := buildTarget.versionOf(r)
	if err != nil {
		return err
	}
	triples, err := buildTarget.triples()
	if err != nil {
		return err
	}
	b, err := sess.builder(buildVerbose)
	if err != nil {
		return err
	}

	reqs := make([]*build.Request, len(triples))
	for i, t := range triples {
		reqs[i] = &build.Request{Recipe: r, Version: version, Triple: t, Options: overrides, Force: buildForce}
	}
	results, err := b.BuildAll(ctx, reqs, sess.cfg.MaxConcurrent)
	summarize(cmd.OutOrStdout(), reqs, results, err)
	return err
}
