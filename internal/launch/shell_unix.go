//go:build !windows

package launch

import (
	"context"
	"os/exec"
	"syscall"
)

const defaultShell = "/bin/sh"

func buildShellCommand(ctx context.Context, shell, command string) *exec.Cmd {
	return exec.CommandContext(ctx, shell, "-c", command)
}

// configureCmdSysProcAttr puts the child in its own process group so a stop
// can signal the whole group.
func configureCmdSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
