// Package manifest handles javelin.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "javelin.toml"

// Manifest represents a javelin.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Runtime      Runtime               `toml:"runtime"`
	Classpath    Classpath             `toml:"classpath"`
	Dependencies map[string]Dependency `toml:"dependencies"`
	Log          LogConfig             `toml:"log"`

	// Dir is the directory containing the javelin.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Runtime configures the engine.
type Runtime struct {
	// Main is the binary name of the class whose main method is run.
	Main string `toml:"main"`

	// MaxFrameDepth overrides the engine's call depth limit when positive.
	MaxFrameDepth int `toml:"max-frame-depth"`
}

// Classpath lists class directories, jars and bundles, relative to Dir.
type Classpath struct {
	Entries []string `toml:"entries"`
}

// Dependency is another project, jar or bundle whose classes are appended
// to the classpath.
type Dependency struct {
	Path string `toml:"path"`
}

// LogConfig configures diagnostics.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a javelin.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
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
	if len(m.Classpath.Entries) == 0 {
		m.Classpath.Entries = []string{"classes"}
	}
	if m.Runtime.MaxFrameDepth < 0 {
		return nil, fmt.Errorf("%s: max-frame-depth must not be negative", path)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a javelin.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
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

// EntryPaths returns absolute paths for the configured classpath entries.
func (m *Manifest) EntryPaths() []string {
	var paths []string
	for _, e := range m.Classpath.Entries {
		paths = append(paths, m.resolve(e))
	}
	return paths
}

// LogPath returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
