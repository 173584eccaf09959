package internal

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goplus/pkgsmith/internal/errors"
)

var fetchTarget targetFlags

var fetchCmd = &cobra.Command{
	Use:   "fetch <recipe>",
	Short: "Fetch the sources of a recipe",
	Long:  `Fetch runs the fetch stage only and prints the source directory.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchTarget.register(fetchCmd, false)
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	entry, err := sess.catalog.Load(ctx, args[0])
	if err != nil {
		return err
	}
	r := entry.Recipe
	version, err := fetchTarget.versionOf(r)
	if err != nil {
		return err
	}
	t, err := fetchTarget.triple()
	if err != nil {
		return err
	}
	b, err := sess.builder(false)
	if err != nil {
		return err
	}
	src, err := sess.fetcher().Fetch(ctx, r, version, t, b.SourceDir(r.Name, version, t))
	if err != nil {
		return errors.InStage(errors.StageFetch, err)
	}
	sess.logger.Info("fetched", zap.String("recipe", r.Name), zap.String("version", version),
		zap.String("ref", src.Ref), zap.Bool("reused", src.Reused))
	fmt.Fprintln(cmd.OutOrStdout(), src.Dir)
	return nil
}
