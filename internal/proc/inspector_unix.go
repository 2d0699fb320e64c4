//go:build unix && !linux

package proc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// unixInspector drives the portable BSD-flavoured inspection tools (ps and
// lsof). It serves macOS and the BSDs, where procfs is absent or non-standard.
type unixInspector struct{}

func newPlatformInspector() Inspector {
	return &unixInspector{}
}

func (u *unixInspector) ListByPattern(ctx context.Context, pattern string) ([]int, error) {
	if pattern == "" {
		return nil, nil
	}
	records, err := u.processTable(ctx)
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, rec := range records {
		if strings.Contains(rec.command, pattern) {
			pids = append(pids, rec.pid)
		}
	}
	return pids, nil
}

func (u *unixInspector) ListenersOnPort(ctx context.Context, port int) ([]int, error) {
	out, err := exec.CommandContext(ctx, "lsof",
		"-nP", "-iTCP:"+strconv.Itoa(port), "-sTCP:LISTEN", "-t").Output()
	if err != nil {
		// lsof exits 1 when nothing matches; only surface real failures.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(out) == 0 {
			return nil, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: lsof missing", ErrUnavailable)
		}
		return nil, fmt.Errorf("lsof listeners on %d: %w", port, err)
	}
	return parsePIDLines(string(out)), nil
}

func (u *unixInspector) ParentPID(ctx context.Context, pid int) (int, error) {
	out, err := exec.CommandContext(ctx, "ps", "-o", "ppid=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return 0, fmt.Errorf("ps ppid of %d: %w", pid, err)
	}
	ppid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("ps ppid of %d: %w", pid, err)
	}
	return ppid, nil
}

func (u *unixInspector) ChildPIDs(ctx context.Context, pid int) ([]int, error) {
	records, err := u.processTable(ctx)
	if err != nil {
		return nil, err
	}
	var children []int
	for _, rec := range records {
		if rec.ppid == pid {
			children = append(children, rec.pid)
		}
	}
	return children, nil
}

func (u *unixInspector) WorkingDir(ctx context.Context, pid int) (string, error) {
	out, err := exec.CommandContext(ctx, "lsof",
		"-a", "-p", strconv.Itoa(pid), "-d", "cwd", "-Fn").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: lsof missing", ErrUnavailable)
		}
		return "", fmt.Errorf("lsof cwd of %d: %w", pid, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "n") {
			return strings.TrimSpace(line[1:]), nil
		}
	}
	return "", fmt.Errorf("pid %d: cwd not reported", pid)
}

func (u *unixInspector) Terminate(ctx context.Context, pids []int) error {
	return terminatePIDs(ctx, pids)
}

func (u *unixInspector) processTable(ctx context.Context) ([]record, error) {
	out, err := exec.CommandContext(ctx, "ps", "-axo", "pid=,ppid=,command=").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: ps missing", ErrUnavailable)
		}
		return nil, fmt.Errorf("list processes: %w", err)
	}
	return parsePSTable(string(out)), nil
}
