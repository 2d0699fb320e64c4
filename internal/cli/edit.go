package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portside-dev/portside/internal/config"
)

func newAddCmd(ctx *context) *cobra.Command {
	var (
		group   string
		workdir string
	)

	cmd := &cobra.Command{
		Use:   "add [name] [url] [command]",
		Short: "Add a server entry to the manifest",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			name := args[0]
			if doc.Manifest.Find(name) != nil {
				return fmt.Errorf("server %s already exists in %s", name, doc.Source)
			}
			doc.Manifest.Servers = append(doc.Manifest.Servers, &config.ServerEntry{
				Name:    name,
				URL:     args[1],
				Command: args[2],
				Group:   group,
				Workdir: workdir,
			})
			if err := doc.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", name, doc.Source)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Group label for the sidebar tree")
	cmd.Flags().StringVar(&workdir, "workdir", "", "Working directory for the start command")
	return cmd
}

func newRemoveCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove [server]",
		Aliases: []string{"rm"},
		Short:   "Remove a server entry from the manifest",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			name := args[0]
			kept := doc.Manifest.Servers[:0]
			found := false
			for _, entry := range doc.Manifest.Servers {
				if entry != nil && entry.Name == name {
					found = true
					continue
				}
				kept = append(kept, entry)
			}
			if !found {
				return fmt.Errorf("server %s not found in %s", name, doc.Source)
			}
			doc.Manifest.Servers = kept
			if err := doc.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", name, doc.Source)
			return nil
		},
	}
	return cmd
}
