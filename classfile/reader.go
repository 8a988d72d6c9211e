package classfile

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// Decoder for the binary class file format
// ---------------------------------------------------------------------------

// reader is a big-endian cursor over class file bytes. The first failure is
// sticky: later reads return zero values and err keeps the original cause.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = errors.Errorf("unexpected end of class data at offset %d (need %d bytes)", r.pos, n)
		return false
	}
	return true
}

func (r *reader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}

// Parse decodes a class file from r.
func Parse(r io.Reader) (*Class, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read class data")
	}
	return ParseBytes(data)
}

// ParseBytes decodes a class file held in memory.
func ParseBytes(data []byte) (*Class, error) {
	r := &reader{data: data}
	if magic := r.u4(); r.err == nil && magic != Magic {
		return nil, errors.Errorf("bad magic 0x%08X", magic)
	}

	c := &Class{}
	c.MinorVersion = r.u2()
	c.MajorVersion = r.u2()
	if err := decodePool(r, c); err != nil {
		return nil, err
	}
	c.AccessFlags = AccessFlags(r.u2())
	thisIndex := r.u2()
	superIndex := r.u2()
	if r.err != nil {
		return nil, r.err
	}

	var err error
	if c.Name, err = c.ClassName(thisIndex); err != nil {
		return nil, errors.Wrap(err, "this_class")
	}
	if superIndex != 0 {
		if c.SuperName, err = c.ClassName(superIndex); err != nil {
			return nil, errors.Wrapf(err, "%s: super_class", c.Name)
		}
	}

	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		name, err := c.ClassName(r.u2())
		if err != nil {
			return nil, errors.Wrapf(err, "%s: interface %d", c.Name, i)
		}
		c.Interfaces = append(c.Interfaces, name)
	}

	if err := decodeFields(r, c); err != nil {
		return nil, err
	}
	if err := decodeMethods(r, c); err != nil {
		return nil, err
	}
	if err := decodeClassAttributes(r, c); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, errors.Wrapf(r.err, "%s", c.Name)
	}
	return c, nil
}

func decodePool(r *reader, c *Class) error {
	count := int(r.u2())
	if r.err != nil {
		return r.err
	}
	c.Pool = make([]Constant, count)
	for i := 1; i < count; i++ {
		k := Constant{Tag: r.u1()}
		switch k.Tag {
		case TagUtf8:
			k.Utf8 = decodeModifiedUTF8(r.bytes(int(r.u2())))
		case TagInteger:
			k.Int = int64(int32(r.u4()))
		case TagFloat:
			k.Float = float64(math.Float32frombits(r.u4()))
		case TagLong:
			hi, lo := r.u4(), r.u4()
			k.Int = int64(uint64(hi)<<32 | uint64(lo))
		case TagDouble:
			hi, lo := r.u4(), r.u4()
			k.Float = math.Float64frombits(uint64(hi)<<32 | uint64(lo))
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			k.Index1 = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			k.Index1 = r.u2()
			k.Index2 = r.u2()
		case TagMethodHandle:
			k.Index1 = uint16(r.u1())
			k.Index2 = r.u2()
		default:
			if r.err == nil {
				return errors.Errorf("constant pool entry %d: unknown tag %d", i, k.Tag)
			}
		}
		if r.err != nil {
			return errors.Wrapf(r.err, "constant pool entry %d", i)
		}
		c.Pool[i] = k
		if k.IsWide() {
			i++
		}
	}
	return nil
}

// decodeModifiedUTF8 converts the class file's modified UTF-8 to a Go string.
// Encoded NUL (0xC0 0x80) and surrogate pairs are folded back to runes.
func decodeModifiedUTF8(b []byte) string {
	var units []uint16
	ascii := true
	for _, c := range b {
		if c >= 0x80 || c == 0 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, 0xFFFD)
			i++
		}
	}
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u < 0xDC00 && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] < 0xE000 {
			runes = append(runes, (rune(u)-0xD800)<<10+(rune(units[i+1])-0xDC00)+0x10000)
			i++
			continue
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}

type attribute struct {
	name string
	data []byte
}

func readAttributes(r *reader, c *Class) ([]attribute, error) {
	n := int(r.u2())
	attrs := make([]attribute, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		name, err := c.Utf8(r.u2())
		if err != nil {
			return nil, errors.Wrap(err, "attribute name")
		}
		size := int(r.u4())
		attrs = append(attrs, attribute{name: name, data: r.bytes(size)})
	}
	return attrs, r.err
}

func decodeFields(r *reader, c *Class) error {
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		f := Field{AccessFlags: AccessFlags(r.u2())}
		var err error
		if f.Name, err = c.Utf8(r.u2()); err != nil {
			return errors.Wrapf(err, "%s: field %d name", c.Name, i)
		}
		if f.Descriptor, err = c.Utf8(r.u2()); err != nil {
			return errors.Wrapf(err, "%s.%s: descriptor", c.Name, f.Name)
		}
		attrs, err := readAttributes(r, c)
		if err != nil {
			return errors.Wrapf(err, "%s.%s", c.Name, f.Name)
		}
		for _, a := range attrs {
			if a.name == "ConstantValue" && len(a.data) >= 2 {
				f.ConstantValue = binary.BigEndian.Uint16(a.data)
			}
		}
		c.Fields = append(c.Fields, f)
	}
	return r.err
}

func decodeMethods(r *reader, c *Class) error {
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		m := Method{AccessFlags: AccessFlags(r.u2())}
		var err error
		if m.Name, err = c.Utf8(r.u2()); err != nil {
			return errors.Wrapf(err, "%s: method %d name", c.Name, i)
		}
		if m.Descriptor, err = c.Utf8(r.u2()); err != nil {
			return errors.Wrapf(err, "%s.%s: descriptor", c.Name, m.Name)
		}
		attrs, err := readAttributes(r, c)
		if err != nil {
			return errors.Wrapf(err, "%s.%s", c.Name, m.Name)
		}
		for _, a := range attrs {
			switch a.name {
			case "Code":
				code, err := decodeCode(a.data, c)
				if err != nil {
					return errors.Wrapf(err, "%s.%s%s: Code", c.Name, m.Name, m.Descriptor)
				}
				m.Code = code
			case "Exceptions":
				sub := &reader{data: a.data}
				count := int(sub.u2())
				for j := 0; j < count && sub.err == nil; j++ {
					name, err := c.ClassName(sub.u2())
					if err != nil {
						return errors.Wrapf(err, "%s.%s: Exceptions", c.Name, m.Name)
					}
					m.Exceptions = append(m.Exceptions, name)
				}
			}
		}
		c.Methods = append(c.Methods, m)
	}
	return r.err
}

func decodeCode(data []byte, c *Class) (*Code, error) {
	r := &reader{data: data}
	code := &Code{
		MaxStack:  r.u2(),
		MaxLocals: r.u2(),
	}
	code.Bytecode = r.bytes(int(r.u4()))
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		h := ExceptionHandler{
			StartPC:   r.u2(),
			EndPC:     r.u2(),
			HandlerPC: r.u2(),
		}
		if catchIndex := r.u2(); catchIndex != 0 {
			name, err := c.ClassName(catchIndex)
			if err != nil {
				return nil, errors.Wrapf(err, "exception table entry %d", i)
			}
			h.CatchType = name
		}
		code.Handlers = append(code.Handlers, h)
	}
	attrs, err := readAttributes(r, c)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.name != "LineNumberTable" {
			continue
		}
		sub := &reader{data: a.data}
		count := int(sub.u2())
		for j := 0; j < count && sub.err == nil; j++ {
			code.Lines = append(code.Lines, LineNumber{StartPC: sub.u2(), Line: sub.u2()})
		}
		if sub.err != nil {
			return nil, errors.Wrap(sub.err, "LineNumberTable")
		}
	}
	return code, r.err
}

func decodeClassAttributes(r *reader, c *Class) error {
	attrs, err := readAttributes(r, c)
	if err != nil {
		return errors.Wrapf(err, "%s: class attributes", c.Name)
	}
	for _, a := range attrs {
		if a.name == "SourceFile" && len(a.data) >= 2 {
			if c.SourceFile, err = c.Utf8(binary.BigEndian.Uint16(a.data)); err != nil {
				return errors.Wrapf(err, "%s: SourceFile", c.Name)
			}
		}
	}
	return nil
}
