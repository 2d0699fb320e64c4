//go:build unix

package proc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// terminatePIDs sends SIGTERM to each PID in one batch. Processes that are
// already gone (ESRCH) do not count as failures.
func terminatePIDs(ctx context.Context, pids []int) error {
	var failures []string
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pid <= 0 {
			continue
		}
		if err := unix.Kill(pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			failures = append(failures, fmt.Sprintf("pid %d: %v", pid, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("terminate: %s", strings.Join(failures, "; "))
	}
	return nil
}
