package generator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest declares which registered generators a worker process may
// run, with optional per-generator settings. An empty manifest (or no
// manifest file at all) enables every registered generator.
type Manifest struct {
	Generators []ManifestEntry `yaml:"generators"`
}

// ManifestEntry enables one generator by name.
type ManifestEntry struct {
	Name     string         `yaml:"name"`
	Disabled bool           `yaml:"disabled,omitempty"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// LoadManifest reads and parses a generator manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read generator manifest: %w", err)
	}

	manifest := &Manifest{}
	if err := yaml.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("parse generator manifest: %w", err)
	}

	for i, entry := range manifest.Generators {
		if entry.Name == "" {
			return nil, fmt.Errorf("generator manifest: entry %d has no name", i)
		}
	}

	return manifest, nil
}

// Allows reports whether the manifest permits the named generator.
func (m *Manifest) Allows(name string) bool {
	if m == nil || len(m.Generators) == 0 {
		return true
	}

	for _, entry := range m.Generators {
		if entry.Name == name {
			return !entry.Disabled
		}
	}
	return false
}

// Settings returns the manifest settings for the named generator.
func (m *Manifest) Settings(name string) map[string]any {
	if m == nil {
		return nil
	}
	for _, entry := range m.Generators {
		if entry.Name == name {
			return entry.Settings
		}
	}
	return nil
}
