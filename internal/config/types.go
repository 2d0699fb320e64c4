package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Manifest mirrors the servers.yaml document structure.
type Manifest struct {
	Version  string         `yaml:"version"`
	Settings Settings       `yaml:"settings"`
	Servers  []*ServerEntry `yaml:"servers"`
}

// Settings captures tool-wide behaviour knobs.
type Settings struct {
	PollInterval Duration `yaml:"pollInterval"`
	ProbeTimeout Duration `yaml:"probeTimeout"`
	APIAddr      string   `yaml:"apiAddr"`
	Shell        string   `yaml:"shell"`
}

// ServerEntry describes one monitored dev server. Entries are authored by the
// user (or suggested by the scanner) and are read-only inputs to the kill and
// monitor paths.
type ServerEntry struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Command string `yaml:"command"`
	Group   string `yaml:"group,omitempty"`
	Workdir string `yaml:"workdir,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e *ServerEntry) Clone() *ServerEntry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// Port derives the TCP port implied by the entry's URL: an explicit port if
// present, otherwise 443 for https and 80 for http. The second return is
// false when no port can be derived.
func (e *ServerEntry) Port() (int, bool) {
	parsed, err := url.Parse(strings.TrimSpace(e.URL))
	if err != nil || parsed.Host == "" {
		return 0, false
	}
	if p := parsed.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return 0, false
		}
		return port, true
	}
	switch parsed.Scheme {
	case "https":
		return 443, true
	case "http":
		return 80, true
	}
	return 0, false
}

// Find returns the entry with the given name, or nil.
func (m *Manifest) Find(name string) *ServerEntry {
	for _, entry := range m.Servers {
		if entry != nil && entry.Name == name {
			return entry
		}
	}
	return nil
}

// Groups returns group labels in first-seen order. Ungrouped entries are
// reported under the empty label.
func (m *Manifest) Groups() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range m.Servers {
		if entry == nil {
			continue
		}
		if _, ok := seen[entry.Group]; ok {
			continue
		}
		seen[entry.Group] = struct{}{}
		out = append(out, entry.Group)
	}
	return out
}
