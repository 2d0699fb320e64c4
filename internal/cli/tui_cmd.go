package cli

import (
	stdcontext "context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/portside-dev/portside/internal/metrics"
	"github.com/portside-dev/portside/internal/monitor"
	"github.com/portside-dev/portside/internal/tui"
)

func newTuiCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive status interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !supportsInteractiveOutput(cmd) {
				return fmt.Errorf("tui requires an interactive terminal")
			}

			doc, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			ctx.getComponents(doc.Manifest.Settings)
			metrics.EmitBuildInfo()

			mon := monitor.New(doc.Manifest, ctx.statusTracker(), ctx.diagLogger())
			ctx.setMonitor(mon)
			defer ctx.setMonitor(nil)

			ui := tui.New(NewControlAPI(ctx), doc.Manifest)

			runCtx, cancel := stdcontext.WithCancel(cmd.Context())
			defer cancel()

			mon.Start(runCtx)
			defer mon.Stop()

			// Bridge monitor events into the UI until it stops.
			go func() {
				defer ui.CloseEvents()
				for {
					select {
					case <-runCtx.Done():
						return
					case <-ui.Done():
						return
					case evt := <-mon.Events():
						select {
						case ui.EventSink() <- evt:
						default:
						}
					}
				}
			}()

			return ui.Run(runCtx)
		},
	}

	return cmd
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}
