package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/pkgsmith/internal/oci"
)

var (
	pushTarget      targetFlags
	pushRegistry    string
	pushRepository  string
	pushTag         string
	pushPlainHTTP   bool
	pushInsecureTLS bool
)

var pushCmd = &cobra.Command{
	Use:   "push <recipe>",
	Short: "Push a published package to an OCI registry",
	Long: `Push uploads a package built by "pkgsmith build" to an OCI registry as an
artifact, authenticating with the Docker credentials of the user.`,
	Example: `  pkgsmith push wamr --registry ghcr.io --repository goplus/wamr`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPush,
}

func init() {
	pushTarget.register(pushCmd, false)
	fs := pushCmd.Flags()
	fs.StringVar(&pushRegistry, "registry", "", "Registry host (default [oci] registry)")
	fs.StringVar(&pushRepository, "repository", "", "Repository path (default [oci] repository)")
	fs.StringVar(&pushTag, "tag", "", "Tag (default <version>-<os>-<arch>-<buildtype>)")
	fs.BoolVar(&pushPlainHTTP, "plain-http", false, "Use HTTP instead of HTTPS")
	fs.BoolVar(&pushInsecureTLS, "insecure-tls", false, "Skip TLS certificate verification")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	m, err := loadPublished(cmd, args[0], &pushTarget)
	if err != nil {
		return err
	}
	opts := oci.Options{
		Registry:    pushRegistry,
		Repository:  pushRepository,
		Tag:         pushTag,
		PlainHTTP:   pushPlainHTTP || sess.cfg.OCI.PlainHTTP,
		InsecureTLS: pushInsecureTLS || sess.cfg.OCI.InsecureTLS,
	}
	if opts.Registry == "" {
		opts.Registry = sess.cfg.OCI.Registry
	}
	if opts.Repository == "" {
		opts.Repository = sess.cfg.OCI.Repository
	}
	res, err := oci.New(sess.logger).Push(cmd.Context(), m.Root, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s@%s\n", res.Reference, res.Digest)
	return nil
}
