package cliutil

import (
	"github.com/portside-dev/portside/internal/config"
)

// ManifestDocument bundles a parsed manifest with its source path so commands
// can save edits back to the same file.
type ManifestDocument struct {
	Manifest *config.Manifest
	Source   string
}

// LoadManifest parses a servers.yaml file and returns its document.
func LoadManifest(path string) (*ManifestDocument, error) {
	manifest, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return &ManifestDocument{Manifest: manifest, Source: path}, nil
}

// Save writes the manifest back to its source path.
func (d *ManifestDocument) Save() error {
	return config.Save(d.Source, d.Manifest)
}
