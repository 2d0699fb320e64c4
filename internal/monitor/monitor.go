// Package monitor runs the periodic health-polling loop over the configured
// servers. Each server gets its own probe watcher; transitions are folded
// into a tracker and fanned out on a bounded event channel for the TUI, the
// API server and the metrics registry. A kill or start in flight never blocks
// the polling loop.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/portside-dev/portside/internal/config"
	"github.com/portside-dev/portside/internal/diag"
	"github.com/portside-dev/portside/internal/metrics"
	"github.com/portside-dev/portside/internal/probe"
)

// Monitor owns the watchers for a set of server entries.
type Monitor struct {
	entries  []*config.ServerEntry
	settings probe.Settings
	tracker  *Tracker
	logger   diag.Logger

	events chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a monitor for the manifest's servers.
func New(manifest *config.Manifest, tracker *Tracker, logger diag.Logger) *Monitor {
	if logger == nil {
		logger = diag.Discard
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	settings := probe.Settings{
		Interval:         manifest.Settings.PollInterval.Duration,
		Timeout:          manifest.Settings.ProbeTimeout.Duration,
		FailureThreshold: 1,
		SuccessThreshold: 1,
	}
	entries := make([]*config.ServerEntry, 0, len(manifest.Servers))
	for _, entry := range manifest.Servers {
		if entry != nil {
			entries = append(entries, entry.Clone())
		}
	}
	return &Monitor{
		entries:  entries,
		settings: settings,
		tracker:  tracker,
		logger:   logger,
		events:   make(chan Event, 64),
	}
}

// Tracker exposes the status tracker fed by this monitor.
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

// Events exposes the fan-in event channel. Events are dropped rather than
// block the polling loop when the consumer falls behind.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Start launches one watcher per server. It is a no-op if already running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, entry := range m.entries {
		prober, err := probe.NewHTTP(entry.URL)
		if err != nil {
			diag.Logf(m.logger, "monitor %s: unusable url %q: %v", entry.Name, entry.URL, err)
			continue
		}
		transitions := probe.Watch(watchCtx, timedProber{name: entry.Name, prober: prober}, m.settings, nil)
		m.wg.Add(1)
		go m.observe(entry.Name, transitions)
	}
}

// Stop cancels all watchers and waits for them to wind down.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Emit records a lifecycle event originating outside the polling loop, such
// as a start or kill performed by the CLI or API.
func (m *Monitor) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	m.apply(evt)
}

// timedProber feeds each check's round-trip time into the latency histogram.
type timedProber struct {
	name   string
	prober probe.Prober
}

func (p timedProber) Probe(ctx context.Context) error {
	start := time.Now()
	err := p.prober.Probe(ctx)
	metrics.ObserveProbeLatency(p.name, time.Since(start))
	return err
}

func (m *Monitor) observe(name string, transitions <-chan probe.Event) {
	defer m.wg.Done()
	for transition := range transitions {
		evt := Event{
			Timestamp: transition.At,
			Server:    name,
			Err:       transition.Err,
			Message:   transition.Reason,
		}
		switch transition.Status {
		case probe.StatusUp:
			evt.Type = EventTypeUp
		case probe.StatusDown:
			evt.Type = EventTypeDown
		default:
			continue
		}
		m.apply(evt)
	}
}

func (m *Monitor) apply(evt Event) {
	m.tracker.Apply(evt)
	metrics.SetServerUp(evt.Server, evt.Type == EventTypeUp)
	diag.Logf(m.logger, "monitor %s: %s%s", evt.Server, evt.Type, reasonSuffix(evt))
	select {
	case m.events <- evt:
	default:
	}
}

func reasonSuffix(evt Event) string {
	if evt.Message == "" {
		return ""
	}
	return " (" + evt.Message + ")"
}
