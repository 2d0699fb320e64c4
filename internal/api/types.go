package api

import (
	stdcontext "context"
	"errors"
	"time"

	"github.com/portside-dev/portside/internal/monitor"
)

var (
	ErrUnknownServer  = errors.New("unknown server")
	ErrAlreadyRunning = errors.New("server already running")
	ErrNotRunning     = errors.New("server not running")
	ErrKillFailed     = errors.New("no matching process found")
	ErrScanFailed     = errors.New("scan failed")
)

// ServerReport describes the runtime state for a single server.
type ServerReport struct {
	Name      string            `json:"name"`
	Group     string            `json:"group,omitempty"`
	URL       string            `json:"url"`
	Command   string            `json:"command"`
	State     monitor.EventType `json:"state"`
	Up        bool              `json:"up"`
	Restarts  int               `json:"restarts"`
	FirstSeen time.Time         `json:"first_seen"`
	LastEvent time.Time         `json:"last_event"`
	Message   string            `json:"message,omitempty"`
}

// StatusReport aggregates status for every configured server.
type StatusReport struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Servers     map[string]ServerReport `json:"servers"`
}

// ActionResult captures the outcome of a start, stop or restart operation.
type ActionResult struct {
	Server      string    `json:"server"`
	Action      string    `json:"action"`
	Killed      bool      `json:"killed"`
	CompletedAt time.Time `json:"completed_at"`
}

// Suggestion is a scanner candidate rendered for API consumers.
type Suggestion struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Command string `json:"command"`
	Group   string `json:"group,omitempty"`
	Workdir string `json:"workdir,omitempty"`
}

// ScanResult captures the outcome of a project scan.
type ScanResult struct {
	Root        string       `json:"root"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Controller exposes the server lifecycle operations required by control
// surfaces.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	StartServer(stdcontext.Context, string) (*ActionResult, error)
	StopServer(stdcontext.Context, string) (*ActionResult, error)
	RestartServer(stdcontext.Context, string) (*ActionResult, error)
	Scan(stdcontext.Context, string) (*ScanResult, error)
}
