package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	serverUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "portside",
		Name:      "server_up",
		Help:      "Liveness state of monitored servers (1=up, 0=down).",
	}, []string{"server"})

	kills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portside",
		Name:      "kills_total",
		Help:      "Total kill attempts, labelled by outcome.",
	}, []string{"server", "outcome"})

	starts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portside",
		Name:      "starts_total",
		Help:      "Total start attempts for each server.",
	}, []string{"server"})

	probeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portside",
		Name:      "probe_latency_seconds",
		Help:      "Round-trip latency of health probes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"server"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "portside",
		Name:      "build_info",
		Help:      "Build metadata for the running portside binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(serverUp, kills, starts, probeLatency, buildInfo)
}

// Registry returns the Prometheus registry containing all portside metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetServerUp records the liveness state for the provided server.
func SetServerUp(server string, up bool) {
	if server == "" {
		return
	}
	value := 0.0
	if up {
		value = 1.0
	}
	serverUp.WithLabelValues(server).Set(value)
}

// IncrementKill counts a kill attempt with its outcome.
func IncrementKill(server string, killed bool) {
	if server == "" {
		return
	}
	outcome := "miss"
	if killed {
		outcome = "killed"
	}
	kills.WithLabelValues(server, outcome).Inc()
}

// ObserveProbeLatency records the round-trip time of one health probe.
func ObserveProbeLatency(server string, elapsed time.Duration) {
	if server == "" {
		return
	}
	probeLatency.WithLabelValues(server).Observe(elapsed.Seconds())
}

// IncrementStart counts a start attempt for a server.
func IncrementStart(server string) {
	if server == "" {
		return
	}
	starts.WithLabelValues(server).Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// ResetServer clears the gauges and counters for a server.
func ResetServer(server string) {
	if server == "" {
		return
	}
	serverUp.DeleteLabelValues(server)
	starts.DeleteLabelValues(server)
	probeLatency.DeleteLabelValues(server)
	kills.DeletePartialMatch(prometheus.Labels{"server": server})
}
