package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/portside-dev/portside/internal/cliutil"
	"github.com/portside-dev/portside/internal/monitor"
)

func newStatusCmd(ctx *context) *cobra.Command {
	var showDiag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display a summary of servers defined in the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			snapshot := ctx.statusTracker().Snapshot()

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVER\tGROUP\tSTATE\tUP\tRESTARTS\tAGE\tURL\tMESSAGE")
			for _, entry := range doc.Manifest.Servers {
				if entry == nil {
					continue
				}
				state := "-"
				up := "-"
				restarts := 0
				age := "-"
				message := "-"
				if status, ok := snapshot[entry.Name]; ok {
					state = formatStatusState(status.State)
					up = "No"
					if status.Up {
						up = "Yes"
					}
					restarts = status.Restarts
					if !status.FirstSeen.IsZero() {
						ageDur := time.Since(status.FirstSeen)
						if ageDur < 0 {
							ageDur = 0
						}
						age = units.HumanDuration(ageDur)
					}
					if status.Message != "" {
						message = cliutil.RedactSecrets(status.Message)
					}
				}
				group := entry.Group
				if group == "" {
					group = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					entry.Name, group, state, up, restarts, age, entry.URL, message)
			}
			w.Flush()
			fmt.Fprintf(out, "\nManifest: %s (%d servers)\n", doc.Source, len(doc.Manifest.Servers))

			if showDiag {
				lines := ctx.ring.Lines()
				if len(lines) > 0 {
					fmt.Fprintln(out, "\nRecent decisions:")
					for _, line := range lines {
						fmt.Fprintf(out, "  %s\n", cliutil.RedactSecrets(line))
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDiag, "diag", false, "Include recent diagnostic decisions")
	return cmd
}

func formatStatusState(t monitor.EventType) string {
	if t == "" {
		return "-"
	}
	s := string(t)
	if len(s) <= 1 {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
