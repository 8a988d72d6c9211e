package classpath

import (
	"archive/zip"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/chazu/javelin/classfile"
)

// Jar serves classes from a zip archive. Entries are indexed when the archive
// is opened and decoded on first request.
type Jar struct {
	path    string
	zr      *zip.ReadCloser
	entries map[string]*zip.File
}

// OpenJar opens the archive at path. The caller must Close it.
func OpenJar(path string) (*Jar, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open jar %s", path)
	}
	j := &Jar{path: path, zr: zr, entries: make(map[string]*zip.File)}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		j.entries[strings.TrimSuffix(f.Name, ".class")] = f
	}
	log().Debugf("indexed %d classes in %s", len(j.entries), path)
	return j, nil
}

// LoadClass implements Source.
func (j *Jar) LoadClass(name string) (*classfile.Class, error) {
	f, ok := j.entries[name]
	if !ok {
		return nil, errors.Wrap(classfile.ErrNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "%s!%s", j.path, f.Name)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "%s!%s", j.path, f.Name)
	}
	c, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s!%s", j.path, f.Name)
	}
	return c, nil
}

// Names implements Lister.
func (j *Jar) Names() ([]string, error) {
	names := make([]string, 0, len(j.entries))
	for name := range j.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Len returns the number of class entries in the archive.
func (j *Jar) Len() int { return len(j.entries) }

// Close closes the archive.
func (j *Jar) Close() error { return j.zr.Close() }

// String implements Source.
func (j *Jar) String() string { return j.path }
