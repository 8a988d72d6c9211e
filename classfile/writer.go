package classfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// Encoder for the binary class file format
// ---------------------------------------------------------------------------

// byteWriter accumulates big-endian class file data.
type byteWriter struct {
	buf bytes.Buffer
}

func (w *byteWriter) u1(v uint8)  { w.buf.WriteByte(v) }
func (w *byteWriter) u2(v uint16) { w.buf.Write([]byte{byte(v >> 8), byte(v)}) }
func (w *byteWriter) u4(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}
func (w *byteWriter) raw(b []byte) { w.buf.Write(b) }

// encoder owns a private copy of the constant pool so that attribute names
// and class references missing from the source pool can be appended.
type encoder struct {
	pool  []Constant
	utf8  map[string]uint16
	class map[string]uint16
}

func newEncoder(c *Class) *encoder {
	e := &encoder{
		pool:  append([]Constant(nil), c.Pool...),
		utf8:  make(map[string]uint16),
		class: make(map[string]uint16),
	}
	if len(e.pool) == 0 {
		e.pool = []Constant{{}}
	}
	for i, k := range e.pool {
		switch k.Tag {
		case TagUtf8:
			if _, ok := e.utf8[k.Utf8]; !ok {
				e.utf8[k.Utf8] = uint16(i)
			}
		}
	}
	for i, k := range e.pool {
		if k.Tag == TagClass && int(k.Index1) < len(e.pool) {
			name := e.pool[k.Index1].Utf8
			if _, ok := e.class[name]; !ok {
				e.class[name] = uint16(i)
			}
		}
	}
	return e
}

func (e *encoder) utf8Index(s string) uint16 {
	if idx, ok := e.utf8[s]; ok {
		return idx
	}
	idx := uint16(len(e.pool))
	e.pool = append(e.pool, Constant{Tag: TagUtf8, Utf8: s})
	e.utf8[s] = idx
	return idx
}

func (e *encoder) classIndex(name string) uint16 {
	if idx, ok := e.class[name]; ok {
		return idx
	}
	nameIdx := e.utf8Index(name)
	idx := uint16(len(e.pool))
	e.pool = append(e.pool, Constant{Tag: TagClass, Index1: nameIdx})
	e.class[name] = idx
	return idx
}

// Encode serializes c into class file bytes.
func Encode(c *Class) ([]byte, error) {
	e := newEncoder(c)

	// The body is written first because it may grow the pool.
	var body byteWriter
	body.u2(uint16(c.AccessFlags))
	body.u2(e.classIndex(c.Name))
	if c.SuperName == "" {
		body.u2(0)
	} else {
		body.u2(e.classIndex(c.SuperName))
	}
	body.u2(uint16(len(c.Interfaces)))
	for _, iface := range c.Interfaces {
		body.u2(e.classIndex(iface))
	}

	body.u2(uint16(len(c.Fields)))
	for _, f := range c.Fields {
		body.u2(uint16(f.AccessFlags))
		body.u2(e.utf8Index(f.Name))
		body.u2(e.utf8Index(f.Descriptor))
		if f.ConstantValue != 0 {
			body.u2(1)
			body.u2(e.utf8Index("ConstantValue"))
			body.u4(2)
			body.u2(f.ConstantValue)
		} else {
			body.u2(0)
		}
	}

	body.u2(uint16(len(c.Methods)))
	for _, m := range c.Methods {
		body.u2(uint16(m.AccessFlags))
		body.u2(e.utf8Index(m.Name))
		body.u2(e.utf8Index(m.Descriptor))
		count := 0
		if m.Code != nil {
			count++
		}
		if len(m.Exceptions) > 0 {
			count++
		}
		body.u2(uint16(count))
		if m.Code != nil {
			code, err := e.encodeCode(m.Code)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s%s", c.Name, m.Name, m.Descriptor)
			}
			body.u2(e.utf8Index("Code"))
			body.u4(uint32(len(code)))
			body.raw(code)
		}
		if len(m.Exceptions) > 0 {
			body.u2(e.utf8Index("Exceptions"))
			body.u4(uint32(2 + 2*len(m.Exceptions)))
			body.u2(uint16(len(m.Exceptions)))
			for _, name := range m.Exceptions {
				body.u2(e.classIndex(name))
			}
		}
	}

	if c.SourceFile != "" {
		body.u2(1)
		body.u2(e.utf8Index("SourceFile"))
		body.u4(2)
		body.u2(e.utf8Index(c.SourceFile))
	} else {
		body.u2(0)
	}

	if len(e.pool) > math.MaxUint16 {
		return nil, errors.Errorf("%s: constant pool too large (%d entries)", c.Name, len(e.pool))
	}

	var out byteWriter
	out.u4(Magic)
	minor, major := c.MinorVersion, c.MajorVersion
	if major == 0 {
		major, minor = DefaultMajorVersion, DefaultMinorVersion
	}
	out.u2(minor)
	out.u2(major)
	if err := e.writePool(&out); err != nil {
		return nil, errors.Wrap(err, c.Name)
	}
	out.raw(body.buf.Bytes())
	return out.buf.Bytes(), nil
}

// Write encodes c and writes it to w.
func Write(w io.Writer, c *Class) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return errors.Wrap(err, "write class data")
}

func (e *encoder) writePool(w *byteWriter) error {
	w.u2(uint16(len(e.pool)))
	for i := 1; i < len(e.pool); i++ {
		k := e.pool[i]
		w.u1(k.Tag)
		switch k.Tag {
		case TagUtf8:
			data := encodeModifiedUTF8(k.Utf8)
			if len(data) > math.MaxUint16 {
				return errors.Errorf("constant %d: Utf8 too long", i)
			}
			w.u2(uint16(len(data)))
			w.raw(data)
		case TagInteger:
			w.u4(uint32(int32(k.Int)))
		case TagFloat:
			w.u4(math.Float32bits(float32(k.Float)))
		case TagLong:
			w.u4(uint32(uint64(k.Int) >> 32))
			w.u4(uint32(k.Int))
		case TagDouble:
			bits := math.Float64bits(k.Float)
			w.u4(uint32(bits >> 32))
			w.u4(uint32(bits))
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u2(k.Index1)
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			w.u2(k.Index1)
			w.u2(k.Index2)
		case TagMethodHandle:
			w.u1(uint8(k.Index1))
			w.u2(k.Index2)
		default:
			return errors.Errorf("constant %d: cannot encode tag %d", i, k.Tag)
		}
		if k.IsWide() {
			i++
		}
	}
	return nil
}

func (e *encoder) encodeCode(code *Code) ([]byte, error) {
	var w byteWriter
	w.u2(code.MaxStack)
	w.u2(code.MaxLocals)
	w.u4(uint32(len(code.Bytecode)))
	w.raw(code.Bytecode)
	w.u2(uint16(len(code.Handlers)))
	for _, h := range code.Handlers {
		if h.StartPC >= h.EndPC {
			return nil, errors.Errorf("handler [%d, %d) is empty", h.StartPC, h.EndPC)
		}
		w.u2(h.StartPC)
		w.u2(h.EndPC)
		w.u2(h.HandlerPC)
		if h.CatchType == "" {
			w.u2(0)
		} else {
			w.u2(e.classIndex(h.CatchType))
		}
	}
	if len(code.Lines) > 0 {
		w.u2(1)
		w.u2(e.utf8Index("LineNumberTable"))
		w.u4(uint32(2 + 4*len(code.Lines)))
		w.u2(uint16(len(code.Lines)))
		for _, ln := range code.Lines {
			w.u2(ln.StartPC)
			w.u2(ln.Line)
		}
	} else {
		w.u2(0)
	}
	return w.buf.Bytes(), nil
}

// encodeModifiedUTF8 produces the class file string encoding: NUL becomes
// two bytes and supplementary runes become surrogate pairs.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			out = appendUnit(out, uint16(hi))
			out = appendUnit(out, uint16(lo))
			continue
		}
		out = appendUnit(out, uint16(r))
	}
	return out
}

func appendUnit(out []byte, u uint16) []byte {
	switch {
	case u != 0 && u < 0x80:
		return append(out, byte(u))
	case u < 0x800:
		return append(out, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
	default:
		return append(out, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
	}
}
