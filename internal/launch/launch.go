// Package launch starts server processes from their shell start commands and
// supervises the ones this tool itself launched. Servers started outside the
// tool are out of its hands here; stopping those is the kill package's job.
package launch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/portside-dev/portside/internal/config"
	"github.com/portside-dev/portside/internal/diag"
	"github.com/portside-dev/portside/internal/resolve"
)

// Launcher tracks the processes started during this session, keyed by server
// name. It is not a supervisor: nothing persists across restarts of the tool.
type Launcher struct {
	shell  string
	logger diag.Logger

	mu      sync.Mutex
	running map[string]*instance
}

type instance struct {
	name     string
	cmd      *exec.Cmd
	waitDone chan struct{}
	waitErr  error
}

// New constructs a launcher that runs start commands via the given shell.
func New(shell string, logger diag.Logger) *Launcher {
	if shell == "" {
		shell = defaultShell
	}
	if logger == nil {
		logger = diag.Discard
	}
	return &Launcher{shell: shell, logger: logger, running: make(map[string]*instance)}
}

// Start launches the entry's start command in its working directory. The
// command string is handed to the shell verbatim, so aliases do not resolve
// here; they only work in interactive shells and are the resolver's concern
// on the kill path.
func (l *Launcher) Start(ctx context.Context, entry *config.ServerEntry) error {
	if entry == nil {
		return fmt.Errorf("entry is required")
	}
	l.mu.Lock()
	if _, exists := l.running[entry.Name]; exists {
		l.mu.Unlock()
		return fmt.Errorf("server %s was already started in this session", entry.Name)
	}
	l.mu.Unlock()

	command, workdir := resolve.StripCD(entry.Command)
	if workdir == "" {
		workdir = entry.Workdir
	}

	cmd := buildShellCommand(ctx, l.shell, command)
	if workdir != "" {
		cmd.Dir = workdir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("server %s stdout: %w", entry.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("server %s stderr: %w", entry.Name, err)
	}

	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start server %s: %w", entry.Name, err)
	}
	diag.Logf(l.logger, "launch %s: started pid %d (%s)", entry.Name, cmd.Process.Pid, command)

	inst := &instance{name: entry.Name, cmd: cmd, waitDone: make(chan struct{})}
	l.mu.Lock()
	l.running[entry.Name] = inst
	l.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go l.streamLogs(entry.Name, stdout, "stdout", &wg)
	go l.streamLogs(entry.Name, stderr, "stderr", &wg)

	go func() {
		wg.Wait()
		inst.waitErr = cmd.Wait()
		if inst.waitErr != nil {
			diag.Logf(l.logger, "launch %s: exited: %v", entry.Name, inst.waitErr)
		} else {
			diag.Logf(l.logger, "launch %s: exited cleanly", entry.Name)
		}
		l.mu.Lock()
		if l.running[entry.Name] == inst {
			delete(l.running, entry.Name)
		}
		l.mu.Unlock()
		close(inst.waitDone)
	}()

	return nil
}

// Stop terminates a server started in this session. It reports false when
// the server is not one of ours.
func (l *Launcher) Stop(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	inst := l.running[name]
	l.mu.Unlock()
	if inst == nil {
		return false, nil
	}
	if err := inst.terminate(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Owns reports whether the named server was started in this session and is
// still running.
func (l *Launcher) Owns(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running[name] != nil
}

func (l *Launcher) streamLogs(name string, r io.Reader, source string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		diag.Logf(l.logger, "%s %s: %s", name, source, scanner.Text())
	}
}
