package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks manifest invariants that the schema cannot express.
func Validate(doc *Manifest) error {
	if doc == nil {
		return fmt.Errorf("manifest is required")
	}
	seen := make(map[string]struct{}, len(doc.Servers))
	for idx, entry := range doc.Servers {
		if entry == nil {
			return fmt.Errorf("servers[%d]: entry is empty", idx)
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return fmt.Errorf("servers[%d]: name is required", idx)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("servers[%d]: duplicate server name %q", idx, name)
		}
		seen[name] = struct{}{}

		if strings.TrimSpace(entry.Command) == "" {
			return fmt.Errorf("server %s: command is required", name)
		}
		if err := validateURL(entry.URL); err != nil {
			return fmt.Errorf("server %s: %w", name, err)
		}
	}
	if doc.Settings.PollInterval.Duration < 0 {
		return fmt.Errorf("settings.pollInterval must not be negative")
	}
	if doc.Settings.ProbeTimeout.Duration < 0 {
		return fmt.Errorf("settings.probeTimeout must not be negative")
	}
	return nil
}

func validateURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}
