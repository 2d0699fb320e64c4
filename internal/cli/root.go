// Package cli wires the cobra command tree together with the shared
// components: manifest loading, the command resolver, the process
// terminator, the launcher and the health monitor.
package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/portside-dev/portside/internal/cliutil"
	"github.com/portside-dev/portside/internal/config"
	"github.com/portside-dev/portside/internal/diag"
	"github.com/portside-dev/portside/internal/kill"
	"github.com/portside-dev/portside/internal/launch"
	"github.com/portside-dev/portside/internal/monitor"
	"github.com/portside-dev/portside/internal/proc"
	"github.com/portside-dev/portside/internal/resolve"
	"github.com/portside-dev/portside/internal/scan"
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	var (
		manifestPath string
		verbose      bool
	)

	root := &cobra.Command{
		Use:     "portside",
		Short:   "Track, start and stop local dev servers",
		Version: buildVersion(),
	}

	root.PersistentFlags().
		StringVarP(&manifestPath, "file", "f", "servers.yaml", "Path to the server manifest")
	root.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Stream diagnostic decisions to stderr")

	ctx := &context{
		manifestPath: &manifestPath,
		verbose:      &verbose,
		ring:         diag.NewRing(ringSizeFromEnv()),
	}
	root.AddCommand(newStatusCmd(ctx))
	root.AddCommand(newStartCmd(ctx))
	root.AddCommand(newStopCmd(ctx))
	root.AddCommand(newRestartCmd(ctx))
	root.AddCommand(newAddCmd(ctx))
	root.AddCommand(newRemoveCmd(ctx))
	root.AddCommand(newScanCmd(ctx))
	root.AddCommand(newServeCmd(ctx))
	root.AddCommand(newTuiCmd(ctx))
	root.AddCommand(newConfigCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// context carries flag values and lazily built components shared across
// commands and the control API.
type context struct {
	manifestPath *string
	verbose      *bool
	ring         *diag.Ring

	mu         sync.Mutex
	logger     diag.Logger
	components *components
	tracker    *monitor.Tracker
	mon        *monitor.Monitor
}

// components bundles the pieces that depend on manifest settings; they are
// built once per process from the first manifest loaded.
type components struct {
	resolver   *resolve.Resolver
	terminator *kill.Terminator
	launcher   *launch.Launcher
	scanner    *scan.Scanner
}

func (c *context) loadManifest() (*cliutil.ManifestDocument, error) {
	return cliutil.LoadManifest(*c.manifestPath)
}

// diagLogger returns the shared decision log sink. All lines land in the
// ring; with --verbose they are mirrored to stderr.
func (c *context) diagLogger() diag.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logger == nil {
		if c.verbose != nil && *c.verbose {
			c.logger = diag.Fanout(c.ring, diag.Writer(os.Stderr))
		} else {
			c.logger = c.ring
		}
	}
	return c.logger
}

func (c *context) getComponents(settings config.Settings) *components {
	logger := c.diagLogger()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.components == nil {
		resolver := resolve.New(settings.Shell, logger)
		terminator := kill.New(proc.New(), resolver, logger,
			kill.WithContainerStopper(kill.NewDockerStopper(logger)))
		launcher := launch.New(settings.Shell, logger)
		scanner := scan.New(logger, scan.NewAIScanner(os.Getenv("ANTHROPIC_API_KEY"), logger))
		c.components = &components{
			resolver:   resolver,
			terminator: terminator,
			launcher:   launcher,
			scanner:    scanner,
		}
	}
	return c.components
}

func (c *context) statusTracker() *monitor.Tracker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tracker == nil {
		c.tracker = monitor.NewTracker()
	}
	return c.tracker
}

// setMonitor registers the monitor owned by a running serve or tui session
// so the control API can emit lifecycle events through it.
func (c *context) setMonitor(mon *monitor.Monitor) {
	c.mu.Lock()
	c.mon = mon
	c.mu.Unlock()
}

func (c *context) currentMonitor() *monitor.Monitor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mon
}

// emit routes a lifecycle event through the running monitor when one exists,
// falling back to the tracker so one-shot commands still record state.
func (c *context) emit(evt monitor.Event) {
	if mon := c.currentMonitor(); mon != nil {
		mon.Emit(evt)
		return
	}
	c.statusTracker().Apply(evt)
}

func ringSizeFromEnv() int {
	if value := os.Getenv("PORTSIDE_DIAG_RETENTION"); value != "" {
		if size, err := strconv.Atoi(value); err == nil && size > 0 {
			return size
		}
	}
	return 0
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}
