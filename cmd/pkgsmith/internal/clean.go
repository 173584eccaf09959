package internal

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goplus/pkgsmith/internal/catalog"
	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/recipe"
)

var cleanVersion string

var cleanCmd = &cobra.Command{
	Use:   "clean <recipe>",
	Short: "Remove the work files of a recipe",
	Long: `Clean removes the sources, builds and packages of a recipe, or of one version
with --version, and drops the matching build cache entries.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVar(&cleanVersion, "version", "", "Only remove this version")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	name := args[0]
	if catalog.IsPath(name) {
		r, err := recipe.Load(name)
		if err != nil {
			return err
		}
		name = r.Name
	}
	if !recipe.ValidName(name) {
		return errors.Configuration("invalid recipe name %q", name)
	}
	if cleanVersion != "" {
		if err := recipe.CheckVersion(cleanVersion); err != nil {
			return err
		}
	}
	b, err := sess.builder(false)
	if err != nil {
		return err
	}
	if err := b.Clean(name, cleanVersion); err != nil {
		return err
	}
	sess.logger.Info("cleaned", zap.String("recipe", name), zap.String("version", cleanVersion))
	return nil
}
