package main

import (
	"github.com/portside-dev/portside/internal/cli"
	"github.com/portside-dev/portside/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
