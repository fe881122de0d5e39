package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/runyaga/flutter/internal/model"
)

// Manifest holds the subset of pubspec.yaml that the list command shows.
// Every other key is ignored by yaml.v3 during decoding.
type Manifest struct {
	Name        string            `yaml:"name" json:"name"`
	Version     string            `yaml:"version,omitempty" json:"version,omitempty"`
	PublishTo   string            `yaml:"publish_to,omitempty" json:"publishTo,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// SDKConstraint returns the environment.sdk constraint, or "" if none is set.
func (m *Manifest) SDKConstraint() string {
	return m.Environment["sdk"]
}

// IsPrivate reports whether the package opts out of publishing.
func (m *Manifest) IsPrivate() bool {
	return m.PublishTo == "none"
}

// ReadManifest parses <pkgDir>/pubspec.yaml.
func ReadManifest(pkgDir string) (*Manifest, error) {
	path := filepath.Join(pkgDir, model.ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}
