//go:build windows

package proc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// windowsInspector shells out to wmic, netstat and taskkill. Working
// directories are not inspectable without extra tooling on Windows, so the
// cwd capability reports unavailable and the terminator skips the filter.
type windowsInspector struct{}

func newPlatformInspector() Inspector {
	return &windowsInspector{}
}

func (w *windowsInspector) ListByPattern(ctx context.Context, pattern string) ([]int, error) {
	if pattern == "" {
		return nil, nil
	}
	rows, err := w.processTable(ctx)
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, row := range rows {
		if strings.Contains(row.command, pattern) {
			pids = append(pids, row.pid)
		}
	}
	return pids, nil
}

func (w *windowsInspector) ListenersOnPort(ctx context.Context, port int) ([]int, error) {
	out, err := exec.CommandContext(ctx, "netstat", "-ano").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: netstat missing", ErrUnavailable)
		}
		return nil, fmt.Errorf("netstat: %w", err)
	}
	return parseNetstatListeners(string(out), port), nil
}

func (w *windowsInspector) ParentPID(ctx context.Context, pid int) (int, error) {
	rows, err := w.processTable(ctx)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if row.pid == pid {
			return row.ppid, nil
		}
	}
	return 0, fmt.Errorf("pid %d not found", pid)
}

func (w *windowsInspector) ChildPIDs(ctx context.Context, pid int) ([]int, error) {
	rows, err := w.processTable(ctx)
	if err != nil {
		return nil, err
	}
	var children []int
	for _, row := range rows {
		if row.ppid == pid {
			children = append(children, row.pid)
		}
	}
	return children, nil
}

func (w *windowsInspector) WorkingDir(context.Context, int) (string, error) {
	return "", fmt.Errorf("%w: working directory inspection unsupported on windows", ErrUnavailable)
}

// Terminate uses taskkill /T so each PID's tree dies with it, mirroring the
// process-group semantics of the unix backends.
func (w *windowsInspector) Terminate(ctx context.Context, pids []int) error {
	var failures []string
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pid <= 0 {
			continue
		}
		out, err := exec.CommandContext(ctx, "taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
		if err != nil {
			failures = append(failures, fmt.Sprintf("pid %d: %v (%s)", pid, err, strings.TrimSpace(string(out))))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("taskkill: %s", strings.Join(failures, "; "))
	}
	return nil
}

func (w *windowsInspector) processTable(ctx context.Context) ([]record, error) {
	out, err := exec.CommandContext(ctx, "wmic", "process", "get", "ProcessId,ParentProcessId,CommandLine", "/format:csv").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: wmic missing", ErrUnavailable)
		}
		return nil, fmt.Errorf("wmic: %w", err)
	}
	return parseWmicCSV(string(out)), nil
}

// parseWmicCSV parses `wmic process get ... /format:csv` output. Columns are
// alphabetical: Node,CommandLine,ParentProcessId,ProcessId.
func parseWmicCSV(out string) []record {
	var rows []record
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "Node,") {
			continue
		}
		idx := strings.LastIndex(line, ",")
		if idx < 0 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil {
			continue
		}
		rest := line[:idx]
		idx = strings.LastIndex(rest, ",")
		if idx < 0 {
			continue
		}
		ppid, err := strconv.Atoi(strings.TrimSpace(rest[idx+1:]))
		if err != nil {
			continue
		}
		command := rest[:idx]
		if comma := strings.Index(command, ","); comma >= 0 {
			command = command[comma+1:]
		}
		rows = append(rows, record{pid: pid, ppid: ppid, command: strings.TrimSpace(command)})
	}
	return rows
}
