package kill

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/portside-dev/portside/internal/diag"
)

var containerPrefixes = []string{
	"docker run", "docker compose", "docker-compose", "podman run", "podman compose",
}

// Containerised reports whether a start command launches a container rather
// than a host process. Such commands rarely show up in the host process table
// with the user's arguments, so the terminator asks the container engine
// instead.
func Containerised(command string) bool {
	trimmed := strings.TrimSpace(command)
	for _, prefix := range containerPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// DockerStopper stops running containers matched by command substring or
// published host port.
type DockerStopper struct {
	logger     diag.Logger
	clientOnce sync.Once
	client     *client.Client
	clientErr  error
}

// NewDockerStopper constructs a stopper backed by the local Docker daemon.
// The client is created lazily so hosts without Docker only pay on use.
func NewDockerStopper(logger diag.Logger) *DockerStopper {
	if logger == nil {
		logger = diag.Discard
	}
	return &DockerStopper{logger: logger}
}

func (d *DockerStopper) getClient() (*client.Client, error) {
	d.clientOnce.Do(func() {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			d.clientErr = fmt.Errorf("create docker client: %w", err)
			return
		}
		d.client = cli
	})
	return d.client, d.clientErr
}

// StopMatching stops every running container whose command contains one of
// the patterns or which publishes the given host port. It reports whether at
// least one container was stopped.
func (d *DockerStopper) StopMatching(ctx context.Context, patterns []string, port int) (bool, error) {
	cli, err := d.getClient()
	if err != nil {
		return false, err
	}
	containers, err := cli.ContainerList(ctx, types.ContainerListOptions{})
	if err != nil {
		return false, fmt.Errorf("list containers: %w", err)
	}

	stopped := false
	for _, ctr := range containers {
		if !d.matches(ctr, patterns, port) {
			continue
		}
		if err := cli.ContainerStop(ctx, ctr.ID, container.StopOptions{}); err != nil {
			diag.Logf(d.logger, "kill: stop container %s failed: %v", shortID(ctr.ID), err)
			continue
		}
		diag.Logf(d.logger, "kill: stopped container %s (%s)", shortID(ctr.ID), ctr.Command)
		stopped = true
	}
	return stopped, nil
}

func (d *DockerStopper) matches(ctr types.Container, patterns []string, port int) bool {
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(ctr.Command, pattern) {
			return true
		}
	}
	if port > 0 && port != 80 && port != 443 {
		for _, binding := range ctr.Ports {
			if int(binding.PublicPort) == port {
				return true
			}
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
