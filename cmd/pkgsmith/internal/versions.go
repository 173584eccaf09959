package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/recipe"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <recipe>",
	Short: "List the released versions of a git recipe",
	Long: `Versions lists the tags of a git recipe's remote that match its tag template,
mapped back to versions and sorted oldest first.`,
	Args: cobra.ExactArgs(1),
	RunE: runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	entry, err := sess.catalog.Load(ctx, args[0])
	if err != nil {
		return err
	}
	r := entry.Recipe
	if r.Source.Git == nil {
		return errors.Configuration("%s is a prebuilt recipe; only git recipes have remote versions", r.Name)
	}
	tags, err := gitVCS(sess.cfg).Tags(ctx, r.Source.Git.URL)
	if err != nil {
		return errors.InStage(errors.StageFetch, errors.Fetch(err, "list tags of %s", r.Source.Git.URL))
	}
	var versions []string
	for _, tag := range tags {
		if v, ok := r.Source.Git.VersionOf(tag); ok {
			versions = append(versions, v)
		}
	}
	recipe.SortVersions(versions)
	for _, v := range versions {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return nil
}
