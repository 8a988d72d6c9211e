package classpath

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/chazu/javelin/classfile"
)

// Bundle file layout: magic(4) + version(4, little endian) + CBOR payload.
var BundleMagic = [4]byte{'J', 'V', 'L', 'B'}

const (
	// BundleVersion is the current bundle format version.
	BundleVersion uint32 = 1

	// BundleExt is the file extension recognized on the classpath.
	BundleExt = ".jvb"

	bundleHeaderSize = 8
)

var (
	ErrInvalidBundleMagic = errors.New("invalid bundle magic: expected JVLB")
	ErrBundleVersion      = errors.New("unsupported bundle version")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("classpath: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type bundlePayload struct {
	Classes []*classfile.Class `cbor:"classes"`
}

// WriteBundle writes classes as a bundle. Classes are sorted by name so the
// same set always produces the same bytes.
func WriteBundle(w io.Writer, classes []*classfile.Class) error {
	sorted := append([]*classfile.Class(nil), classes...)
	sortClasses(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return errors.Errorf("bundle: duplicate class %s", sorted[i].Name)
		}
	}

	payload, err := cborEncMode.Marshal(bundlePayload{Classes: sorted})
	if err != nil {
		return errors.Wrap(err, "bundle: encode")
	}

	header := make([]byte, bundleHeaderSize)
	copy(header, BundleMagic[:])
	binary.LittleEndian.PutUint32(header[4:], BundleVersion)
	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "bundle: write header")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "bundle: write payload")
	}
	return nil
}

// ReadBundle decodes a bundle into an in-memory source labelled label.
func ReadBundle(r io.Reader, label string) (*Memory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "bundle %s", label)
	}
	return decodeBundle(data, label)
}

// OpenBundle reads the bundle file at path.
func OpenBundle(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "bundle %s", path)
	}
	m, err := decodeBundle(data, path)
	if err != nil {
		return nil, err
	}
	log().Infof("opened bundle %s with %d classes", path, m.Len())
	return m, nil
}

// SaveBundle writes classes to a bundle file at path.
func SaveBundle(path string, classes []*classfile.Class) error {
	var buf bytes.Buffer
	if err := WriteBundle(&buf, classes); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "bundle %s", path)
	}
	return nil
}

func decodeBundle(data []byte, label string) (*Memory, error) {
	if len(data) < bundleHeaderSize {
		return nil, errors.Errorf("bundle %s: truncated header", label)
	}
	if !bytes.Equal(data[:4], BundleMagic[:]) {
		return nil, errors.Wrapf(ErrInvalidBundleMagic, "bundle %s: got %q", label, data[:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != BundleVersion {
		return nil, errors.Wrapf(ErrBundleVersion, "bundle %s: version %d", label, v)
	}

	var payload bundlePayload
	if err := cbor.Unmarshal(data[bundleHeaderSize:], &payload); err != nil {
		return nil, errors.Wrapf(err, "bundle %s: decode", label)
	}
	m := NewMemory(label)
	for _, c := range payload.Classes {
		if c == nil || c.Name == "" {
			return nil, errors.Errorf("bundle %s: unnamed class", label)
		}
		m.Add(c)
	}
	return m, nil
}

func sortClasses(classes []*classfile.Class) {
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
}
