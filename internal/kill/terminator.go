// Package kill locates and terminates the OS processes backing a server
// entry. It is best effort by contract: Kill never returns an error, every
// fallible step degrades to "this strategy found nothing", and every decision
// is logged so a user can reconstruct why a kill did or did not happen.
package kill

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/portside-dev/portside/internal/config"
	"github.com/portside-dev/portside/internal/diag"
	"github.com/portside-dev/portside/internal/proc"
	"github.com/portside-dev/portside/internal/resolve"
)

const (
	// maxAncestorHops bounds the self-exclusion walk so a corrupted parent
	// chain cannot loop forever.
	maxAncestorHops = 20
	// maxDescendantDepth bounds descendant expansion. Real process trees
	// are nowhere near this deep.
	maxDescendantDepth = 32
	// defaultOpTimeout bounds each OS interaction so a hung shell-out
	// cannot stall the caller.
	defaultOpTimeout = 3 * time.Second
)

// containerStopper stops containers whose command or published port matches.
// Implemented by the docker-backed stopper; faked in tests.
type containerStopper interface {
	StopMatching(ctx context.Context, patterns []string, port int) (bool, error)
}

// Terminator finds and signals the processes behind a server entry.
type Terminator struct {
	inspector proc.Inspector
	resolver  *resolve.Resolver
	logger    diag.Logger
	container containerStopper
	selfPID   int
	opTimeout time.Duration
}

// Option configures a Terminator.
type Option func(*Terminator)

// WithContainerStopper enables the container strategy for docker-shaped
// start commands.
func WithContainerStopper(stopper containerStopper) Option {
	return func(t *Terminator) { t.container = stopper }
}

// WithSelfPID overrides the tool's own PID, for tests.
func WithSelfPID(pid int) Option {
	return func(t *Terminator) { t.selfPID = pid }
}

// WithOpTimeout overrides the per-operation timeout.
func WithOpTimeout(d time.Duration) Option {
	return func(t *Terminator) {
		if d > 0 {
			t.opTimeout = d
		}
	}
}

// New constructs a Terminator.
func New(inspector proc.Inspector, resolver *resolve.Resolver, logger diag.Logger, opts ...Option) *Terminator {
	if logger == nil {
		logger = diag.Discard
	}
	t := &Terminator{
		inspector: inspector,
		resolver:  resolver,
		logger:    logger,
		selfPID:   proc.Self(),
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Kill locates and terminates the processes backing the entry, reporting
// whether anything was signalled. Strategies run in a fixed order: command
// pattern first (it honours the working-directory filter and is the more
// specific signal), then containers for docker-shaped commands, then the
// port derived from the URL. Calling Kill when nothing is running is a safe
// no-op returning false.
func (t *Terminator) Kill(ctx context.Context, entry *config.ServerEntry) bool {
	if entry == nil {
		return false
	}
	spec := t.resolver.Resolve(ctx, entry.Command)
	workdir := spec.Workdir
	if workdir == "" {
		workdir = entry.Workdir
	}

	if t.killByPattern(ctx, entry, spec.Patterns, workdir) {
		return true
	}
	if t.killContainer(ctx, entry, spec.Patterns) {
		return true
	}
	if t.killByPort(ctx, entry) {
		return true
	}
	diag.Logf(t.logger, "kill %s: all strategies exhausted, nothing killed", entry.Name)
	return false
}

// killByPattern probes each candidate pattern against the process table and
// stops at the first pattern that yields any match. When a working-directory
// hint is present, matches outside the hint (or its subdirectories) are
// dropped; if that eliminates every match the strategy abandons rather than
// fall back to unfiltered matches, so a same-named process in an unrelated
// directory is never killed.
func (t *Terminator) killByPattern(ctx context.Context, entry *config.ServerEntry, patterns []string, workdir string) bool {
	for _, pattern := range patterns {
		pids, err := t.listByPattern(ctx, pattern)
		if err != nil {
			diag.Logf(t.logger, "kill %s: pattern %q: listing failed: %v", entry.Name, pattern, err)
			return false
		}
		if len(pids) == 0 {
			diag.Logf(t.logger, "kill %s: pattern %q: no match", entry.Name, pattern)
			continue
		}
		diag.Logf(t.logger, "kill %s: pattern %q matched pids %v", entry.Name, pattern, pids)

		if workdir != "" {
			filtered := t.filterByWorkdir(ctx, pids, workdir)
			if len(filtered) == 0 {
				diag.Logf(t.logger, "kill %s: pattern %q: all matches outside %s, abandoning", entry.Name, pattern, workdir)
				return false
			}
			pids = filtered
		}
		return t.safeKill(ctx, entry.Name, pids)
	}
	return false
}

func (t *Terminator) killContainer(ctx context.Context, entry *config.ServerEntry, patterns []string) bool {
	if t.container == nil || !Containerised(entry.Command) {
		return false
	}
	port, _ := entry.Port()
	stopped, err := t.container.StopMatching(ctx, patterns, port)
	if err != nil {
		diag.Logf(t.logger, "kill %s: container strategy failed: %v", entry.Name, err)
		return false
	}
	if stopped {
		diag.Logf(t.logger, "kill %s: stopped matching container", entry.Name)
	}
	return stopped
}

// killByPort resolves the URL to a TCP port and targets its listeners. Ports
// 80 and 443 are always skipped: they usually front a shared reverse proxy,
// and killing the listener there would take down an unrelated process.
func (t *Terminator) killByPort(ctx context.Context, entry *config.ServerEntry) bool {
	port, ok := entry.Port()
	if !ok {
		diag.Logf(t.logger, "kill %s: no port derivable from %q, port strategy skipped", entry.Name, entry.URL)
		return false
	}
	if port == 80 || port == 443 {
		diag.Logf(t.logger, "kill %s: port %d is a shared proxy port, port strategy skipped", entry.Name, port)
		return false
	}
	pids, err := t.listenersOnPort(ctx, port)
	if err != nil {
		diag.Logf(t.logger, "kill %s: port %d: listener lookup failed: %v", entry.Name, port, err)
		return false
	}
	if len(pids) == 0 {
		diag.Logf(t.logger, "kill %s: port %d: no listeners", entry.Name, port)
		return false
	}
	diag.Logf(t.logger, "kill %s: port %d listeners %v", entry.Name, port, pids)
	return t.safeKill(ctx, entry.Name, pids)
}

// safeKill runs candidates through the exclusion and descendant-expansion
// pipeline and signals the survivors in one batch.
func (t *Terminator) safeKill(ctx context.Context, name string, candidates []int) bool {
	excluded := t.ownProcessTree(ctx)

	targets := make(map[int]struct{})
	for _, pid := range candidates {
		if _, own := excluded[pid]; own {
			diag.Logf(t.logger, "kill %s: pid %d is in our own process tree, excluded", name, pid)
			continue
		}
		targets[pid] = struct{}{}
		t.collectDescendants(ctx, pid, excluded, targets, 0)
	}

	if len(targets) == 0 {
		diag.Logf(t.logger, "kill %s: found candidates but every pid was excluded, refusing to kill", name)
		return false
	}

	pids := make([]int, 0, len(targets))
	for pid := range targets {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()
	if err := t.inspector.Terminate(opCtx, pids); err != nil {
		diag.Logf(t.logger, "kill %s: terminate %v failed: %v", name, pids, err)
		return false
	}
	diag.Logf(t.logger, "kill %s: terminated %v", name, pids)
	return true
}

// ownProcessTree returns the tool's own PID plus every ancestor up to, but
// not including, the init process. The walk is bounded so a corrupted parent
// chain still terminates.
func (t *Terminator) ownProcessTree(ctx context.Context) map[int]struct{} {
	excluded := map[int]struct{}{t.selfPID: {}}
	current := t.selfPID
	for hop := 0; hop < maxAncestorHops; hop++ {
		opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
		ppid, err := t.inspector.ParentPID(opCtx, current)
		cancel()
		if err != nil || ppid <= 1 {
			break
		}
		excluded[ppid] = struct{}{}
		current = ppid
	}
	return excluded
}

// collectDescendants transitively adds pid's children to targets, applying
// the exclusion filter at every level.
func (t *Terminator) collectDescendants(ctx context.Context, pid int, excluded map[int]struct{}, targets map[int]struct{}, depth int) {
	if depth >= maxDescendantDepth {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
	children, err := t.inspector.ChildPIDs(opCtx, pid)
	cancel()
	if err != nil {
		return
	}
	for _, child := range children {
		if _, own := excluded[child]; own {
			continue
		}
		if _, seen := targets[child]; seen {
			continue
		}
		targets[child] = struct{}{}
		t.collectDescendants(ctx, child, excluded, targets, depth+1)
	}
}

// filterByWorkdir drops matches running outside the workdir hint. Hosts
// without cwd inspection (windows, unix without lsof) cannot apply the filter
// at all; there the full match set passes through rather than abandoning the
// strategy. Per-pid lookup failures still drop just that pid.
func (t *Terminator) filterByWorkdir(ctx context.Context, pids []int, workdir string) []int {
	var filtered []int
	for _, pid := range pids {
		opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
		cwd, err := t.inspector.WorkingDir(opCtx, pid)
		cancel()
		if errors.Is(err, proc.ErrUnavailable) {
			diag.Logf(t.logger, "kill: cwd inspection unavailable on this host, workdir filter skipped")
			return pids
		}
		if err != nil {
			diag.Logf(t.logger, "kill: pid %d: cwd unknown (%v), dropped by workdir filter", pid, err)
			continue
		}
		if withinDir(cwd, workdir) {
			filtered = append(filtered, pid)
		} else {
			diag.Logf(t.logger, "kill: pid %d cwd %s outside %s, dropped", pid, cwd, workdir)
		}
	}
	return filtered
}

func (t *Terminator) listByPattern(ctx context.Context, pattern string) ([]int, error) {
	opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()
	return t.inspector.ListByPattern(opCtx, pattern)
}

func (t *Terminator) listenersOnPort(ctx context.Context, port int) ([]int, error) {
	opCtx, cancel := context.WithTimeout(ctx, t.opTimeout)
	defer cancel()
	return t.inspector.ListenersOnPort(opCtx, port)
}
