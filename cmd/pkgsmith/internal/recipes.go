package internal

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List the known recipes",
	Args:  cobra.NoArgs,
	RunE:  runRecipes,
}

func init() {
	rootCmd.AddCommand(recipesCmd)
}

func runRecipes(cmd *cobra.Command, args []string) error {
	entries, err := sess.catalog.List(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tSOURCE\tSYSTEM\tORIGIN\tOPTIONS")
	for _, e := range entries {
		r := e.Recipe
		opts := make([]string, len(r.Options))
		for i, o := range r.Options {
			opts[i] = fmt.Sprintf("%s=%v", o.Name, o.Default)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name, r.Version, r.Source.Strategy(), r.BuildSystem(), e.Origin, strings.Join(opts, " "))
	}
	return tw.Flush()
}
