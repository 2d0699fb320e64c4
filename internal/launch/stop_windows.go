//go:build windows

package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const gracefulStopWait = 2 * time.Second

func (i *instance) terminate(ctx context.Context) error {
	if i.cmd.Process == nil {
		return nil
	}
	// Attempt a graceful shutdown first.
	_ = i.cmd.Process.Signal(os.Interrupt)

	select {
	case <-i.waitDone:
		return nil
	case <-time.After(gracefulStopWait):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := i.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %s: %w", i.name, err)
	}
	select {
	case <-i.waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
