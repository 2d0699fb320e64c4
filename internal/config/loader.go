package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultProbeTimeout = 3 * time.Second
	defaultAPIAddr      = "127.0.0.1:7663"
)

// ErrNotFound reports a missing manifest file.
var ErrNotFound = errors.New("manifest not found")

// Load reads a server manifest from the provided path.
func Load(path string) (*Manifest, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, absPath)
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	if err := validateAgainstSchema(data); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	var doc Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	applyDefaults(&doc)

	manifestDir := filepath.Dir(absPath)
	for _, entry := range doc.Servers {
		if entry == nil {
			continue
		}
		if entry.Workdir != "" {
			expanded := os.ExpandEnv(entry.Workdir)
			if !filepath.IsAbs(expanded) {
				expanded = filepath.Clean(filepath.Join(manifestDir, expanded))
			}
			entry.Workdir = expanded
		}
	}

	if err := Validate(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &doc, nil
}

// Save writes the manifest atomically next to the destination path.
func Save(path string, doc *Manifest) error {
	if doc == nil {
		return errors.New("manifest is required")
	}
	if err := Validate(doc); err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve manifest path: %w", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(absPath), ".servers-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

func applyDefaults(doc *Manifest) {
	if !doc.Settings.PollInterval.IsSet() {
		doc.Settings.PollInterval.Duration = defaultPollInterval
	}
	if !doc.Settings.ProbeTimeout.IsSet() {
		doc.Settings.ProbeTimeout.Duration = defaultProbeTimeout
	}
	if doc.Settings.APIAddr == "" {
		doc.Settings.APIAddr = defaultAPIAddr
	}
	if doc.Settings.Shell == "" {
		doc.Settings.Shell = os.Getenv("SHELL")
	}
}
