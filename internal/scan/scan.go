// Package scan suggests server entries for a project directory. A cheap
// heuristic pass reads the well-known manifest files (package.json,
// Procfile, compose files, Makefile); an optional AI pass asks a language
// model to explore the project and extract anything the heuristics missed.
// Suggestions are deduplicated by command string across both passes.
package scan

import (
	"context"
	"strings"

	"github.com/portside-dev/portside/internal/config"
	"github.com/portside-dev/portside/internal/diag"
)

// Scanner combines the discovery passes.
type Scanner struct {
	logger diag.Logger
	ai     *AIScanner
}

// New constructs a scanner. The AI pass is optional; pass nil to run
// heuristics only.
func New(logger diag.Logger, ai *AIScanner) *Scanner {
	if logger == nil {
		logger = diag.Discard
	}
	return &Scanner{logger: logger, ai: ai}
}

// Scan walks the project root and returns suggested entries. Existing
// commands are excluded so re-scanning a configured project only surfaces
// new servers.
func (s *Scanner) Scan(ctx context.Context, root string, existing *config.Manifest) ([]*config.ServerEntry, error) {
	suggestions, err := Heuristic(ctx, root)
	if err != nil {
		return nil, err
	}
	diag.Logf(s.logger, "scan %s: heuristics found %d candidates", root, len(suggestions))

	if s.ai != nil {
		aiSuggestions, err := s.ai.Scan(ctx, root)
		if err != nil {
			diag.Logf(s.logger, "scan %s: ai pass failed: %v", root, err)
		} else {
			diag.Logf(s.logger, "scan %s: ai pass found %d candidates", root, len(aiSuggestions))
			suggestions = append(suggestions, aiSuggestions...)
		}
	}

	return Dedupe(suggestions, existing), nil
}

// Dedupe drops suggestions whose command already appeared, either earlier in
// the list or in the existing manifest. Comparison is by trimmed command
// string.
func Dedupe(suggestions []*config.ServerEntry, existing *config.Manifest) []*config.ServerEntry {
	seen := make(map[string]struct{})
	if existing != nil {
		for _, entry := range existing.Servers {
			if entry != nil {
				seen[strings.TrimSpace(entry.Command)] = struct{}{}
			}
		}
	}
	var out []*config.ServerEntry
	for _, suggestion := range suggestions {
		if suggestion == nil {
			continue
		}
		key := strings.TrimSpace(suggestion.Command)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, suggestion)
	}
	return out
}
