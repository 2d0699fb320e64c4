//go:build !windows

package launch

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"
)

const gracefulStopWait = 2 * time.Second

func (i *instance) terminate(ctx context.Context) error {
	if i.cmd.Process == nil {
		return nil
	}

	// Attempt a graceful shutdown first.
	if err := syscall.Kill(-i.cmd.Process.Pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal process group %s: %w", i.name, err)
	}

	select {
	case <-i.waitDone:
		return nil
	case <-time.After(gracefulStopWait):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := syscall.Kill(-i.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process group %s: %w", i.name, err)
	}
	select {
	case <-i.waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
