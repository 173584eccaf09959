package internal

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/publish"
)

var (
	infoTarget    targetFlags
	infoFormat    string
	infoComponent string
	infoVerify    bool
)

var infoCmd = &cobra.Command{
	Use:   "info <recipe>",
	Short: "Print the metadata of a published package",
	Long: `Info prints the package-info.json of a package built by "pkgsmith build", or
with --format flags the compiler and linker flags of one component.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoTarget.register(infoCmd, false)
	infoCmd.Flags().StringVar(&infoFormat, "format", "json", "Output format: json or flags")
	infoCmd.Flags().StringVar(&infoComponent, "component", "", "Component for --format flags (default the first)")
	infoCmd.Flags().BoolVar(&infoVerify, "verify", false, "Check the package files against checksums.txt")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	m, err := loadPublished(cmd, args[0], &infoTarget)
	if err != nil {
		return err
	}
	if infoVerify {
		bad, err := publish.VerifyChecksums(m.Root)
		if err != nil {
			return errors.Wrap(errors.KindPackaging, err, "verify %s", m.Root)
		}
		if len(bad) > 0 {
			return errors.Packaging("%d files do not match %s", len(bad), publish.ChecksumFileName).With("files", bad)
		}
	}

	w := cmd.OutOrStdout()
	switch infoFormat {
	case "json":
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	case "flags":
		if len(m.Components) == 0 {
			return errors.Packaging("%s has no components", m.Name)
		}
		c := &m.Components[0]
		if infoComponent != "" {
			var ok bool
			if c, ok = m.Component(infoComponent); !ok {
				names := make([]string, len(m.Components))
				for i := range m.Components {
					names[i] = m.Components[i].Name
				}
				return errors.Configuration("unknown component %q", infoComponent).With("components", names)
			}
		}
		cflags, ldflags := c.Flags(m.Root)
		fmt.Fprintln(w, "CFLAGS:", strings.Join(cflags, " "))
		fmt.Fprintln(w, "LDFLAGS:", strings.Join(ldflags, " "))
	default:
		return errors.Configuration("unknown format %q (want json or flags)", infoFormat)
	}
	return nil
}

// loadPublished loads the package-info.json of the package the flags select.
func loadPublished(cmd *cobra.Command, name string, f *targetFlags) (*publish.Metadata, error) {
	entry, err := sess.catalog.Load(cmd.Context(), name)
	if err != nil {
		return nil, err
	}
	r := entry.Recipe
	version, err := f.versionOf(r)
	if err != nil {
		return nil, err
	}
	t, err := f.triple()
	if err != nil {
		return nil, err
	}
	b, err := sess.builder(false)
	if err != nil {
		return nil, err
	}
	m, err := publish.Load(b.PackageDir(r.Name, version, t))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Configuration("%s %s is not built for %s; run pkgsmith build first", r.Name, version, t)
	}
	return m, err
}
