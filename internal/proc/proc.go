// Package proc exposes the OS process table behind a small capability
// interface so the matching logic in the kill package stays platform free.
// Implementations shell out to (or read procfs instead of) the standard
// inspection utilities, which must be assumed missing or oddly behaved on
// some hosts: every method can fail and callers treat failures as "strategy
// found nothing".
package proc

import (
	"context"
	"errors"
	"os"
)

// ErrUnavailable reports that the platform tool backing a capability is
// missing or unusable on this host.
var ErrUnavailable = errors.New("process inspection tool unavailable")

// Inspector is the capability surface required by the terminator.
type Inspector interface {
	// ListByPattern returns PIDs whose full command line contains the
	// pattern as a substring.
	ListByPattern(ctx context.Context, pattern string) ([]int, error)
	// ListenersOnPort returns PIDs with a listening TCP socket on port.
	ListenersOnPort(ctx context.Context, port int) ([]int, error)
	// ParentPID returns the parent of pid.
	ParentPID(ctx context.Context, pid int) (int, error)
	// ChildPIDs returns the direct children of pid.
	ChildPIDs(ctx context.Context, pid int) ([]int, error)
	// WorkingDir returns the current working directory of pid.
	WorkingDir(ctx context.Context, pid int) (string, error)
	// Terminate signals the given PIDs in one batch.
	Terminate(ctx context.Context, pids []int) error
}

// New returns the inspector for the current platform.
func New() Inspector {
	return newPlatformInspector()
}

// Self returns the tool's own PID.
func Self() int {
	return os.Getpid()
}
