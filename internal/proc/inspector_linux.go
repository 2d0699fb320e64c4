//go:build linux

package proc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// linuxInspector reads procfs directly, avoiding shell-outs entirely on the
// platform where the kernel exposes everything as files.
type linuxInspector struct{}

func newPlatformInspector() Inspector {
	return &linuxInspector{}
}

func (l *linuxInspector) ListByPattern(ctx context.Context, pattern string) ([]int, error) {
	if pattern == "" {
		return nil, nil
	}
	var pids []int
	err := l.eachProcess(ctx, func(pid int) {
		if strings.Contains(cmdline(pid), pattern) {
			pids = append(pids, pid)
		}
	})
	if err != nil {
		return nil, err
	}
	return pids, nil
}

func (l *linuxInspector) ListenersOnPort(ctx context.Context, port int) ([]int, error) {
	inodes, err := listenerInodes(port)
	if err != nil {
		return nil, err
	}
	if len(inodes) == 0 {
		return nil, nil
	}

	var pids []int
	err = l.eachProcess(ctx, func(pid int) {
		fdDir := filepath.Join("/proc", strconv.Itoa(pid), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			return
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if !strings.HasPrefix(link, "socket:[") {
				continue
			}
			inode := strings.TrimSuffix(strings.TrimPrefix(link, "socket:["), "]")
			if _, ok := inodes[inode]; ok {
				pids = append(pids, pid)
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return dedupeSorted(pids), nil
}

func (l *linuxInspector) ParentPID(_ context.Context, pid int) (int, error) {
	_, ppid, err := readStat(pid)
	return ppid, err
}

func (l *linuxInspector) ChildPIDs(ctx context.Context, pid int) ([]int, error) {
	var children []int
	err := l.eachProcess(ctx, func(candidate int) {
		if _, ppid, err := readStat(candidate); err == nil && ppid == pid {
			children = append(children, candidate)
		}
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

func (l *linuxInspector) WorkingDir(_ context.Context, pid int) (string, error) {
	cwd, err := os.Readlink(filepath.Join("/proc", strconv.Itoa(pid), "cwd"))
	if err != nil {
		return "", fmt.Errorf("read cwd of pid %d: %w", pid, err)
	}
	return cwd, nil
}

func (l *linuxInspector) Terminate(ctx context.Context, pids []int) error {
	return terminatePIDs(ctx, pids)
}

// eachProcess invokes fn for every numeric /proc entry, checking the context
// between entries.
func (l *linuxInspector) eachProcess(ctx context.Context, fn func(pid int)) error {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		fn(pid)
	}
	return nil
}

func cmdline(pid int) string {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\x00", " "))
}

// readStat extracts the command name and parent PID from /proc/pid/stat. The
// command field is parenthesised and may itself contain parentheses, so the
// parse anchors on the last closing paren.
func readStat(pid int) (string, int, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return "", 0, fmt.Errorf("read stat of pid %d: %w", pid, err)
	}
	raw := string(data)
	open := strings.Index(raw, "(")
	close := strings.LastIndex(raw, ")")
	if open < 0 || close < 0 || close+2 > len(raw) {
		return "", 0, fmt.Errorf("pid %d: malformed stat", pid)
	}
	comm := raw[open+1 : close]
	fields := strings.Fields(raw[close+1:])
	if len(fields) < 2 {
		return "", 0, fmt.Errorf("pid %d: malformed stat", pid)
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, fmt.Errorf("pid %d: malformed ppid: %w", pid, err)
	}
	return comm, ppid, nil
}

// listenerInodes collects socket inodes in LISTEN state on the port from
// /proc/net/tcp and tcp6.
func listenerInodes(port int) (map[string]struct{}, error) {
	inodes := make(map[string]struct{})
	targetHex := fmt.Sprintf("%04X", port)
	var readAny bool
	for _, file := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		readAny = true
		lines := strings.Split(string(data), "\n")
		for _, line := range lines[1:] {
			fields := strings.Fields(line)
			if len(fields) < 10 {
				continue
			}
			// fields: sl local_address rem_address st ... inode at index 9
			local := strings.Split(fields[1], ":")
			if len(local) != 2 || local[1] != targetHex {
				continue
			}
			if fields[3] != "0A" { // TCP_LISTEN
				continue
			}
			inodes[fields[9]] = struct{}{}
		}
	}
	if !readAny {
		return nil, fmt.Errorf("%w: /proc/net/tcp unreadable", ErrUnavailable)
	}
	return inodes, nil
}
