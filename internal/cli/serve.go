package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	apihttp "github.com/portside-dev/portside/internal/api/http"
	"github.com/portside-dev/portside/internal/cliutil"
	"github.com/portside-dev/portside/internal/metrics"
	"github.com/portside-dev/portside/internal/monitor"
)

var newAPIServer = apihttp.NewServer

func newServeCmd(ctx *context) *cobra.Command {
	var (
		apiAddr  string
		jsonLogs bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll server health and expose the HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			// Build the shared components up front so the first API request
			// does not pay for shell introspection setup.
			ctx.getComponents(doc.Manifest.Settings)
			metrics.EmitBuildInfo()

			mon := monitor.New(doc.Manifest, ctx.statusTracker(), ctx.diagLogger())
			ctx.setMonitor(mon)
			defer ctx.setMonitor(nil)

			addr := apiAddr
			if addr == "" {
				addr = doc.Manifest.Settings.APIAddr
			}
			control := NewControlAPI(ctx)
			server, err := newAPIServer(apihttp.Config{Addr: addr, Controller: control})
			if err != nil {
				return err
			}

			runCtx, cancel := stdcontext.WithCancel(cmd.Context())
			defer cancel()

			mon.Start(runCtx)
			defer mon.Stop()

			go func() {
				enc := json.NewEncoder(cmd.OutOrStdout())
				for {
					select {
					case <-runCtx.Done():
						return
					case evt := <-mon.Events():
						if jsonLogs {
							cliutil.EncodeLogEvent(enc, cmd.ErrOrStderr(), evt)
						}
					}
				}
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "Control API listening on %s\n", server.Addr())
			return server.Run(runCtx)
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "", "Address for the HTTP control API (defaults to the manifest setting)")
	cmd.Flags().BoolVar(&jsonLogs, "json", false, "Write monitor events to stdout as JSON records")
	return cmd
}
