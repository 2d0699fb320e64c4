// Package resolve reduces human-authored start commands to concrete patterns
// that can be matched against live process command lines. Start commands are
// written for a terminal, not for machine parsing: they may carry a cd prefix,
// be a shell alias or function, or chain several commands. Resolution is best
// effort and never fails hard.
package resolve

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/portside-dev/portside/internal/diag"
)

// Spec is the matchable representation of a start command. Patterns are
// ordered by matching priority: the whole working command first, then the
// compound segments in reverse order, since only the last segment of a chain
// is likely to still be running in the foreground.
type Spec struct {
	Patterns []string
	Workdir  string
}

// Resolver derives Specs from raw start commands. A fresh Spec is computed on
// every call; nothing is cached.
type Resolver struct {
	shell   string
	timeout time.Duration
	logger  diag.Logger
	run     runFunc
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

const defaultShellTimeout = 3 * time.Second

// New constructs a resolver that introspects aliases and functions via the
// given interactive shell. An empty shell disables introspection.
func New(shell string, logger diag.Logger) *Resolver {
	if logger == nil {
		logger = diag.Discard
	}
	return &Resolver{
		shell:   shell,
		timeout: defaultShellTimeout,
		logger:  logger,
		run:     runShell,
	}
}

// Resolve derives the match patterns and optional working-directory hint for
// a start command. The pattern list is never empty for a non-empty command.
func (r *Resolver) Resolve(ctx context.Context, startCommand string) Spec {
	raw := strings.TrimSpace(startCommand)
	if raw == "" {
		return Spec{}
	}

	cmd, workdir := StripCD(raw)

	if isBareWord(cmd) {
		if expansion, ok := r.resolveWord(ctx, cmd); ok {
			diag.Logf(r.logger, "resolve: %q expands to %q", cmd, expansion)
			expanded, hint := StripCD(expansion)
			if expanded != "" {
				cmd = expanded
			}
			if hint != "" {
				workdir = hint
			}
		}
	}

	patterns := []string{cmd}
	segments := SplitSegments(cmd)
	if len(segments) > 1 {
		for i := len(segments) - 1; i >= 0; i-- {
			patterns = append(patterns, segments[i])
		}
	}
	return Spec{Patterns: patterns, Workdir: workdir}
}

// cdPrefix matches "cd <path> &&" or "cd <path> ;" with an optionally quoted
// path.
var cdPrefix = regexp.MustCompile(`^cd\s+(?:"([^"]*)"|'([^']*)'|(\S+))\s*(?:&&|;)\s*(.*)$`)

// StripCD removes leading cd-and-continue prefixes from a command, returning
// the working command and the extracted directory hint. Repeated prefixes are
// collapsed; a relative path in a later prefix is joined onto the earlier
// hint the way the shell would.
func StripCD(command string) (string, string) {
	cmd := strings.TrimSpace(command)
	var workdir string
	for {
		m := cdPrefix.FindStringSubmatch(cmd)
		if m == nil {
			break
		}
		dir := m[1]
		if dir == "" {
			dir = m[2]
		}
		if dir == "" {
			dir = m[3]
		}
		rest := strings.TrimSpace(m[4])
		if rest == "" {
			// "cd <path>" alone is not a start command; keep it as-is.
			break
		}
		if workdir != "" && !filepath.IsAbs(dir) {
			workdir = filepath.Join(workdir, dir)
		} else {
			workdir = dir
		}
		cmd = rest
	}
	return cmd, workdir
}

// SplitSegments splits a compound command on && and ; separators, trimming
// each segment and dropping empties.
func SplitSegments(command string) []string {
	parts := strings.FieldsFunc(command, func(r rune) bool { return r == ';' })
	var segments []string
	for _, part := range parts {
		for _, seg := range strings.Split(part, "&&") {
			seg = strings.TrimSpace(seg)
			if seg != "" {
				segments = append(segments, seg)
			}
		}
	}
	return segments
}

func isBareWord(command string) bool {
	return command != "" && !strings.ContainsAny(command, " \t")
}
