// Package classpath locates class metadata for the engine. A Path is an
// ordered list of sources (class directories, jar archives, CBOR bundles and
// in-memory sets) searched front to back, with the bootstrap runtime library
// as the final fallback.
package classpath

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/chazu/javelin/classfile"
	"github.com/chazu/javelin/rt"
)

// log resolves against whichever backend is configured at call time.
func log() commonlog.Logger { return commonlog.GetLogger("javelin.classpath") }

// Source is one classpath entry.
//
// LoadClass returns an error wrapping classfile.ErrNotFound when the source
// does not hold the class; any other error means the class exists but could
// not be read, and stops the search.
type Source interface {
	LoadClass(name string) (*classfile.Class, error)
	String() string
}

// Lister is implemented by sources that can enumerate their classes.
type Lister interface {
	Names() ([]string, error)
}

// ---------------------------------------------------------------------------
// Path: ordered search over sources
// ---------------------------------------------------------------------------

// Path searches its sources in order and falls back to the runtime library.
type Path struct {
	sources []Source

	// NoRuntime disables the runtime library fallback.
	NoRuntime bool
}

// New creates a path over the given sources.
func New(sources ...Source) *Path {
	return &Path{sources: sources}
}

// Open builds a path from classpath entries. Entries ending in .jar or .zip
// are opened as archives, entries ending in BundleExt are read as bundles,
// and anything else must be a directory of .class files.
func Open(entries []string) (*Path, error) {
	p := New()
	for _, entry := range entries {
		src, err := openEntry(entry)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.Append(src)
	}
	return p, nil
}

// Split splits a classpath string on the host list separator, dropping empty
// entries.
func Split(cp string) []string {
	var entries []string
	for _, e := range filepath.SplitList(cp) {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

func openEntry(entry string) (Source, error) {
	switch strings.ToLower(filepath.Ext(entry)) {
	case ".jar", ".zip":
		return OpenJar(entry)
	case BundleExt:
		return OpenBundle(entry)
	}
	info, err := os.Stat(entry)
	if err != nil {
		return nil, errors.Wrapf(err, "classpath entry %s", entry)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("classpath entry %s: not a directory, jar or bundle", entry)
	}
	return NewDir(entry), nil
}

// Append adds a source after the existing ones.
func (p *Path) Append(src Source) {
	p.sources = append(p.sources, src)
}

// Sources returns the path's sources in search order.
func (p *Path) Sources() []Source {
	return p.sources
}

// LoadClass returns the first definition of name on the path.
func (p *Path) LoadClass(name string) (*classfile.Class, error) {
	for _, src := range p.sources {
		c, err := src.LoadClass(name)
		if err == nil {
			log().Debugf("loaded %s from %s", name, src)
			return c, nil
		}
		if !errors.Is(err, classfile.ErrNotFound) {
			return nil, err
		}
	}
	if p.NoRuntime {
		return nil, errors.Wrap(classfile.ErrNotFound, name)
	}
	return rt.Load(name)
}

// Collect loads every class the path's listable sources hold. A name
// defined by several sources yields only its first definition. Runtime
// library classes are not included.
func (p *Path) Collect() ([]*classfile.Class, error) {
	seen := make(map[string]bool)
	var out []*classfile.Class
	for _, src := range p.sources {
		l, ok := src.(Lister)
		if !ok {
			return nil, errors.Errorf("classpath entry %s cannot list its classes", src)
		}
		names, err := l.Names()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			c, err := src.LoadClass(name)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	sortClasses(out)
	return out, nil
}

// Close releases any archives held open by the path.
func (p *Path) Close() error {
	var first error
	for _, src := range p.sources {
		if c, ok := src.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// String renders the path the way it would be passed to -cp.
func (p *Path) String() string {
	parts := make([]string, len(p.sources))
	for i, src := range p.sources {
		parts[i] = src.String()
	}
	return strings.Join(parts, string(filepath.ListSeparator))
}

// ---------------------------------------------------------------------------
// Dir: a tree of .class files
// ---------------------------------------------------------------------------

// Dir reads name.class files below a root directory.
type Dir struct {
	Root string
}

// NewDir creates a directory source.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// LoadClass implements Source.
func (d *Dir) LoadClass(name string) (*classfile.Class, error) {
	path := filepath.Join(d.Root, filepath.FromSlash(name)+".class")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(classfile.ErrNotFound, name)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	c, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if c.Name != name {
		return nil, errors.Errorf("%s defines %s, want %s", path, c.Name, name)
	}
	return c, nil
}

// Names implements Lister.
func (d *Dir) Names() ([]string, error) {
	var names []string
	err := filepath.WalkDir(d.Root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		rel, err := filepath.Rel(d.Root, path)
		if err != nil {
			return err
		}
		names = append(names, strings.TrimSuffix(filepath.ToSlash(rel), ".class"))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", d.Root)
	}
	sort.Strings(names)
	return names, nil
}

// String implements Source.
func (d *Dir) String() string { return d.Root }

// ---------------------------------------------------------------------------
// Memory: classes held in process
// ---------------------------------------------------------------------------

// Memory serves a fixed set of classes keyed by internal name.
type Memory struct {
	Label   string
	classes map[string]*classfile.Class
}

// NewMemory creates a memory source holding classes.
func NewMemory(label string, classes ...*classfile.Class) *Memory {
	m := &Memory{Label: label, classes: make(map[string]*classfile.Class, len(classes))}
	for _, c := range classes {
		m.Add(c)
	}
	return m
}

// Add registers c, replacing any class of the same name.
func (m *Memory) Add(c *classfile.Class) {
	m.classes[c.Name] = c
}

// Len returns the number of classes held.
func (m *Memory) Len() int { return len(m.classes) }

// Classes returns the held classes sorted by name.
func (m *Memory) Classes() []*classfile.Class {
	out := make([]*classfile.Class, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, c)
	}
	sortClasses(out)
	return out
}

// Names implements Lister.
func (m *Memory) Names() ([]string, error) {
	names := make([]string, 0, len(m.classes))
	for name := range m.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadClass implements Source.
func (m *Memory) LoadClass(name string) (*classfile.Class, error) {
	if c, ok := m.classes[name]; ok {
		return c, nil
	}
	return nil, errors.Wrap(classfile.ErrNotFound, name)
}

// String implements Source.
func (m *Memory) String() string { return m.Label }
