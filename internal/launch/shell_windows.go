//go:build windows

package launch

import (
	"context"
	"os/exec"
)

const defaultShell = "cmd"

func buildShellCommand(ctx context.Context, shell, command string) *exec.Cmd {
	if shell == "cmd" || shell == "" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, shell, "-c", command)
}

func configureCmdSysProcAttr(*exec.Cmd) {}
