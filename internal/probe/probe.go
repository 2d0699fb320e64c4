// Package probe implements up/down health checks against a server's URL and
// the watch loop that turns raw check results into debounced state
// transitions.
package probe

import (
	"context"
	"time"
)

// Status captures the liveness condition surfaced by a probe watcher.
type Status string

const (
	// StatusUnknown is used internally to track transitions and is not
	// emitted on the public channel.
	StatusUnknown Status = "unknown"
	// StatusUp indicates the probe has satisfied the success threshold.
	StatusUp Status = "up"
	// StatusDown indicates the probe has exceeded the failure threshold.
	StatusDown Status = "down"
)

// Event describes a liveness transition emitted by Watch.
type Event struct {
	Status Status
	Reason string
	Err    error
	At     time.Time
}

// Prober performs a single health check.
type Prober interface {
	Probe(ctx context.Context) error
}

// Settings tunes the watch loop.
type Settings struct {
	Interval         time.Duration
	Timeout          time.Duration
	SuccessThreshold int
	FailureThreshold int
}

// Watch continuously executes the prober until the context is cancelled.
// Transitions between up and down are emitted on the returned channel, which
// is closed once the context is cancelled.
func Watch(ctx context.Context, prober Prober, settings Settings, nowFn func() time.Time) <-chan Event {
	events := make(chan Event, 1)
	if ctx == nil || prober == nil {
		close(events)
		return events
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	go func() {
		defer close(events)

		successNeeded := settings.SuccessThreshold
		if successNeeded <= 0 {
			successNeeded = 1
		}
		failureAllowed := settings.FailureThreshold
		if failureAllowed <= 0 {
			failureAllowed = 1
		}

		successes := 0
		failures := 0
		status := StatusUnknown

		for {
			attemptCtx := ctx
			cancel := func() {}
			if settings.Timeout > 0 {
				attemptCtx, cancel = context.WithTimeout(ctx, settings.Timeout)
			}
			err := prober.Probe(attemptCtx)
			cancel()

			if ctx.Err() != nil {
				return
			}

			if err == nil {
				successes++
				failures = 0
				if successes >= successNeeded && status != StatusUp {
					status = StatusUp
					if !sendEvent(ctx, events, Event{Status: StatusUp, At: nowFn()}) {
						return
					}
				}
			} else {
				successes = 0
				failures++
				if failures >= failureAllowed && status != StatusDown {
					status = StatusDown
					event := Event{Status: StatusDown, Reason: err.Error(), Err: err, At: nowFn()}
					if !sendEvent(ctx, events, event) {
						return
					}
				}
			}

			if settings.Interval <= 0 {
				select {
				case <-ctx.Done():
					return
				default:
				}
				continue
			}

			timer := time.NewTimer(settings.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
	return events
}

func sendEvent(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}
