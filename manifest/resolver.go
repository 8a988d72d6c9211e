package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ResolvedDep is a dependency resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // absolute filesystem path
	Manifest  *Manifest // the dependency's own manifest (nil for a bare jar, bundle or class directory)
}

// Entries returns the classpath entries the dependency contributes.
func (d ResolvedDep) Entries() []string {
	if d.Manifest != nil {
		return d.Manifest.EntryPaths()
	}
	return []string{d.LocalPath}
}

// Resolve resolves all dependencies and returns them in classpath order:
// direct dependencies sorted by name, each followed by its own transitive
// dependencies. A dependency reached twice is kept at its first position.
func (m *Manifest) Resolve() ([]ResolvedDep, error) {
	seen := map[string]bool{m.Dir: true}
	return m.resolveAll(seen)
}

func (m *Manifest) resolveAll(seen map[string]bool) ([]ResolvedDep, error) {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		rd, err := m.resolveOne(name, m.Dependencies[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		if seen[rd.LocalPath] {
			continue
		}
		seen[rd.LocalPath] = true
		order = append(order, *rd)

		if rd.Manifest != nil {
			transitive, err := rd.Manifest.resolveAll(seen)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}
	}
	return order, nil
}

func (m *Manifest) resolveOne(name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path == "" {
		return nil, fmt.Errorf("dependency %q has no path specified", name)
	}
	localPath, err := filepath.Abs(m.resolve(dep.Path))
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("dependency %q not found at %s: %w", name, localPath, err)
	}

	rd := &ResolvedDep{Name: name, LocalPath: localPath}
	if info.IsDir() {
		if _, err := os.Stat(filepath.Join(localPath, FileName)); err == nil {
			if rd.Manifest, err = Load(localPath); err != nil {
				return nil, err
			}
		}
	}
	return rd, nil
}

// ClasspathEntries returns the project's own entries followed by those of
// every resolved dependency.
func (m *Manifest) ClasspathEntries() ([]string, error) {
	deps, err := m.Resolve()
	if err != nil {
		return nil, err
	}
	entries := m.EntryPaths()
	for _, d := range deps {
		entries = append(entries, d.Entries()...)
	}
	return entries, nil
}
