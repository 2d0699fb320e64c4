package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStartCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [server]",
		Short: "Start the named server's shell command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			control := NewControlAPI(ctx)
			result, err := control.StartServer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s\n", result.Server)
			return nil
		},
	}
	return cmd
}

func newStopCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop [server]",
		Short: "Stop the named server, killing its processes if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			control := NewControlAPI(ctx)
			result, err := control.StopServer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", result.Server)
			return nil
		},
	}
	return cmd
}

func newRestartCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart [server]",
		Short: "Stop the named server if running, then start it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			control := NewControlAPI(ctx)
			result, err := control.RestartServer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restarted %s\n", result.Server)
			return nil
		},
	}
	return cmd
}
