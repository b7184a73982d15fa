// Package manifest handles kestrel.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a kestrel.toml project configuration.
type Manifest struct {
	Project Project       `toml:"project"`
	Image   ImageConfig   `toml:"image"`
	Runtime RuntimeConfig `toml:"runtime"`
	Profile ProfileConfig `toml:"profile"`

	// Dir is the directory containing the kestrel.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// ImageConfig locates the program image to execute.
type ImageConfig struct {
	Path string `toml:"path"`
}

// RuntimeConfig tunes the virtual machine.
type RuntimeConfig struct {
	// MemorySize is the application domain byte buffer size; values below
	// the VM minimum are raised to it.
	MemorySize int `toml:"memory-size"`
	// Verbosity feeds the logging backend, 0 meaning quiet.
	Verbosity int `toml:"verbosity"`
}

// ProfileConfig controls execution profiling.
type ProfileConfig struct {
	Enabled  bool   `toml:"enabled"`
	Database string `toml:"database"`
}

// Load parses a kestrel.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "kestrel.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Image.Path == "" {
		m.Image.Path = "program.kimg"
	}
	if m.Profile.Enabled && m.Profile.Database == "" {
		m.Profile.Database = "profile.db"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a kestrel.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "kestrel.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ImagePath returns the absolute path of the configured program image.
func (m *Manifest) ImagePath() string {
	if filepath.IsAbs(m.Image.Path) {
		return m.Image.Path
	}
	return filepath.Join(m.Dir, m.Image.Path)
}

// ProfileDBPath returns the absolute path of the profile database, or ""
// when profiling is disabled.
func (m *Manifest) ProfileDBPath() string {
	if !m.Profile.Enabled {
		return ""
	}
	if filepath.IsAbs(m.Profile.Database) {
		return m.Profile.Database
	}
	return filepath.Join(m.Dir, m.Profile.Database)
}
