package cli

import (
	stdcontext "context"
	"fmt"
	"time"

	"github.com/portside-dev/portside/internal/api"
	"github.com/portside-dev/portside/internal/cliutil"
	"github.com/portside-dev/portside/internal/config"
	"github.com/portside-dev/portside/internal/metrics"
	"github.com/portside-dev/portside/internal/monitor"
)

// ControlAPI exposes server lifecycle operations for the HTTP control plane
// and the TUI keybindings.
type ControlAPI struct {
	ctx *context
}

// NewControlAPI constructs a ControlAPI wrapper around the shared CLI context.
func NewControlAPI(ctx *context) *ControlAPI {
	if ctx == nil {
		return nil
	}
	return &ControlAPI{ctx: ctx}
}

// Status reports last-known state for every server in the manifest.
func (ctrl *ControlAPI) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	doc, err := ctrl.ctx.loadManifest()
	if err != nil {
		return nil, err
	}
	snapshot := ctrl.ctx.statusTracker().Snapshot()

	servers := make(map[string]api.ServerReport, len(doc.Manifest.Servers))
	for _, entry := range doc.Manifest.Servers {
		if entry == nil {
			continue
		}
		report := api.ServerReport{
			Name:    entry.Name,
			Group:   entry.Group,
			URL:     entry.URL,
			Command: entry.Command,
		}
		if status, ok := snapshot[entry.Name]; ok {
			report.State = status.State
			report.Up = status.Up
			report.Restarts = status.Restarts
			report.FirstSeen = status.FirstSeen
			report.LastEvent = status.LastEvent
			report.Message = status.Message
		}
		servers[entry.Name] = report
	}

	return &api.StatusReport{
		GeneratedAt: time.Now(),
		Servers:     servers,
	}, nil
}

// StartServer launches the named server's start command.
func (ctrl *ControlAPI) StartServer(ctx stdcontext.Context, name string) (*api.ActionResult, error) {
	doc, entry, err := ctrl.lookup(name)
	if err != nil {
		return nil, err
	}
	parts := ctrl.ctx.getComponents(doc.Manifest.Settings)
	if parts.launcher.Owns(name) {
		return nil, fmt.Errorf("%w: %s", api.ErrAlreadyRunning, name)
	}

	if err := parts.launcher.Start(ctx, entry); err != nil {
		return nil, err
	}
	metrics.IncrementStart(name)
	ctrl.ctx.emit(monitor.Event{
		Server:  name,
		Type:    monitor.EventTypeStarting,
		Message: "start requested",
	})

	return &api.ActionResult{
		Server:      name,
		Action:      "start",
		CompletedAt: time.Now(),
	}, nil
}

// StopServer stops the named server: processes launched in this session are
// terminated directly, anything else goes through the terminator's strategy
// chain.
func (ctrl *ControlAPI) StopServer(ctx stdcontext.Context, name string) (*api.ActionResult, error) {
	result, err := ctrl.stop(ctx, name)
	if err != nil {
		return nil, err
	}
	if !result.Killed {
		return nil, fmt.Errorf("%w for %s", api.ErrKillFailed, name)
	}
	return result, nil
}

// RestartServer stops the named server if anything backs it, then starts it
// again. A stop that finds nothing is not an error here; the point is to end
// in a running state.
func (ctrl *ControlAPI) RestartServer(ctx stdcontext.Context, name string) (*api.ActionResult, error) {
	if _, err := ctrl.stop(ctx, name); err != nil {
		return nil, err
	}
	result, err := ctrl.StartServer(ctx, name)
	if err != nil {
		return nil, err
	}
	result.Action = "restart"
	return result, nil
}

// Scan discovers server candidates under root, excluding commands already in
// the manifest.
func (ctrl *ControlAPI) Scan(ctx stdcontext.Context, root string) (*api.ScanResult, error) {
	doc, err := ctrl.ctx.loadManifest()
	if err != nil {
		return nil, err
	}
	parts := ctrl.ctx.getComponents(doc.Manifest.Settings)

	suggestions, err := parts.scanner.Scan(ctx, root, doc.Manifest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrScanFailed, err)
	}

	result := &api.ScanResult{Root: root, Suggestions: make([]api.Suggestion, 0, len(suggestions))}
	for _, s := range suggestions {
		result.Suggestions = append(result.Suggestions, api.Suggestion{
			Name:    s.Name,
			URL:     s.URL,
			Command: s.Command,
			Group:   s.Group,
			Workdir: s.Workdir,
		})
	}
	return result, nil
}

func (ctrl *ControlAPI) stop(ctx stdcontext.Context, name string) (*api.ActionResult, error) {
	doc, entry, err := ctrl.lookup(name)
	if err != nil {
		return nil, err
	}
	parts := ctrl.ctx.getComponents(doc.Manifest.Settings)

	killed := false
	owned, stopErr := parts.launcher.Stop(ctx, name)
	switch {
	case owned && stopErr != nil:
		return nil, fmt.Errorf("stop %s: %w", name, stopErr)
	case owned:
		killed = true
	default:
		killed = parts.terminator.Kill(ctx, entry)
	}

	metrics.IncrementKill(name, killed)
	if killed {
		eventType := monitor.EventTypeStopped
		if !owned {
			eventType = monitor.EventTypeKilled
		}
		ctrl.ctx.emit(monitor.Event{Server: name, Type: eventType})
	}

	return &api.ActionResult{
		Server:      name,
		Action:      "stop",
		Killed:      killed,
		CompletedAt: time.Now(),
	}, nil
}

func (ctrl *ControlAPI) lookup(name string) (*cliutil.ManifestDocument, *config.ServerEntry, error) {
	doc, err := ctrl.ctx.loadManifest()
	if err != nil {
		return nil, nil, err
	}
	entry := doc.Manifest.Find(name)
	if entry == nil {
		return nil, nil, fmt.Errorf("%w: %s", api.ErrUnknownServer, name)
	}
	return doc, entry, nil
}

func ctxErr(ctx stdcontext.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Ensure interface compliance at compile time.
var _ api.Controller = (*ControlAPI)(nil)
