package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/portside-dev/portside/internal/cliutil"
	"github.com/portside-dev/portside/internal/config"
)

func newScanCmd(ctx *context) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Suggest server entries for a project directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			doc, err := ctx.loadManifest()
			if errors.Is(err, config.ErrNotFound) {
				// Scanning is how a manifest gets bootstrapped.
				doc = &cliutil.ManifestDocument{
					Manifest: &config.Manifest{Version: "1"},
					Source:   *ctx.manifestPath,
				}
			} else if err != nil {
				return err
			}

			parts := ctx.getComponents(doc.Manifest.Settings)
			suggestions, err := parts.scanner.Scan(cmd.Context(), root, doc.Manifest)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(suggestions) == 0 {
				fmt.Fprintln(out, "No new servers found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tURL\tCOMMAND")
			for _, s := range suggestions {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.URL, cliutil.RedactSecrets(s.Command))
			}
			w.Flush()

			if !write {
				fmt.Fprintf(out, "\nRun with --write to append these to %s\n", doc.Source)
				return nil
			}

			taken := make(map[string]struct{}, len(doc.Manifest.Servers))
			for _, entry := range doc.Manifest.Servers {
				if entry != nil {
					taken[entry.Name] = struct{}{}
				}
			}
			for _, s := range suggestions {
				s.Name = uniqueName(s.Name, taken)
				taken[s.Name] = struct{}{}
			}

			doc.Manifest.Servers = append(doc.Manifest.Servers, suggestions...)
			if err := doc.Save(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nWrote %d servers to %s\n", len(suggestions), doc.Source)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Append suggestions to the manifest")
	return cmd
}

// uniqueName disambiguates a suggested name against the manifest by
// appending a numeric suffix.
func uniqueName(name string, taken map[string]struct{}) string {
	if _, clash := taken[name]; !clash {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if _, clash := taken[candidate]; !clash {
			return candidate
		}
	}
}
