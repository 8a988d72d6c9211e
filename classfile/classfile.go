// Package classfile models the metadata of a compiled class: its constant
// pool, fields, methods, bytecode and exception tables.
//
// This package contains:
//   - The Class metadata model consumed by the execution engine
//   - A decoder for the binary .class container format
//   - An encoder, used to produce .class files from synthesized classes
//   - A Builder for assembling classes in memory
package classfile

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by class sources that do not hold a requested
// class, so that a chain of sources can move on to the next one.
var ErrNotFound = errors.New("class not found")

// Magic is the four-byte signature opening every class file.
const Magic = 0xCAFEBABE

// Default version written by the encoder (Java 8).
const (
	DefaultMajorVersion = 52
	DefaultMinorVersion = 0
)

// ---------------------------------------------------------------------------
// Access flags
// ---------------------------------------------------------------------------

// AccessFlags is the access_flags bitmask of a class, field or method.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020 // classes only
	AccSynchronized AccessFlags = 0x0020 // methods only
	AccVolatile     AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
)

// Has reports whether every bit of flag is set.
func (f AccessFlags) Has(flag AccessFlags) bool {
	return f&flag == flag
}

func (f AccessFlags) IsPublic() bool    { return f.Has(AccPublic) }
func (f AccessFlags) IsPrivate() bool   { return f.Has(AccPrivate) }
func (f AccessFlags) IsStatic() bool    { return f.Has(AccStatic) }
func (f AccessFlags) IsNative() bool    { return f.Has(AccNative) }
func (f AccessFlags) IsAbstract() bool  { return f.Has(AccAbstract) }
func (f AccessFlags) IsInterface() bool { return f.Has(AccInterface) }

// IsSuper reports the ACC_SUPER marker that enables superclass dispatch for
// invokespecial.
func (f AccessFlags) IsSuper() bool { return f.Has(AccSuper) }

// ---------------------------------------------------------------------------
// Constant pool
// ---------------------------------------------------------------------------

// Constant pool tags.
const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
	TagModule             uint8 = 19
	TagPackage            uint8 = 20
)

// Constant is a single constant pool entry. Only the fields relevant to Tag
// are populated: Utf8 for TagUtf8, Int for TagInteger/TagLong, Float for
// TagFloat/TagDouble, and Index1/Index2 for the reference kinds.
//
// Entry 0 and the slot following a long or double are zero Constants.
type Constant struct {
	Tag    uint8   `cbor:"t"`
	Utf8   string  `cbor:"s,omitempty"`
	Int    int64   `cbor:"i,omitempty"`
	Float  float64 `cbor:"f,omitempty"`
	Index1 uint16  `cbor:"a,omitempty"`
	Index2 uint16  `cbor:"b,omitempty"`
}

// IsWide reports whether the entry occupies two pool slots.
func (c Constant) IsWide() bool {
	return c.Tag == TagLong || c.Tag == TagDouble
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// Field describes a declared field.
type Field struct {
	Name          string      `cbor:"name"`
	Descriptor    string      `cbor:"desc"`
	AccessFlags   AccessFlags `cbor:"flags"`
	ConstantValue uint16      `cbor:"cv,omitempty"` // pool index of ConstantValue, 0 if none
}

// IsStatic reports whether the field lives in class static storage.
func (f *Field) IsStatic() bool { return f.AccessFlags.IsStatic() }

// Method describes a declared method. Code is nil for native and abstract
// methods.
type Method struct {
	Name        string      `cbor:"name"`
	Descriptor  string      `cbor:"desc"`
	AccessFlags AccessFlags `cbor:"flags"`
	Code        *Code       `cbor:"code,omitempty"`
	Exceptions  []string    `cbor:"throws,omitempty"`
}

// IsNative reports whether the method is implemented by the host.
func (m *Method) IsNative() bool { return m.AccessFlags.IsNative() }

// IsStatic reports whether the method has no receiver.
func (m *Method) IsStatic() bool { return m.AccessFlags.IsStatic() }

// Code is the Code attribute of a method.
type Code struct {
	MaxStack  uint16             `cbor:"stack"`
	MaxLocals uint16             `cbor:"locals"`
	Bytecode  []byte             `cbor:"bc"`
	Handlers  []ExceptionHandler `cbor:"handlers,omitempty"`
	Lines     []LineNumber       `cbor:"lines,omitempty"`
}

// ExceptionHandler is one exception table entry covering [StartPC, EndPC).
// An empty CatchType catches everything.
type ExceptionHandler struct {
	StartPC   uint16 `cbor:"start"`
	EndPC     uint16 `cbor:"end"`
	HandlerPC uint16 `cbor:"handler"`
	CatchType string `cbor:"catch,omitempty"`
}

// Covers reports whether pc lies inside the protected range.
func (h ExceptionHandler) Covers(pc int) bool {
	return pc >= int(h.StartPC) && pc < int(h.EndPC)
}

// LineNumber maps the bytecode offset StartPC to a source line.
type LineNumber struct {
	StartPC uint16 `cbor:"pc"`
	Line    uint16 `cbor:"line"`
}

// LineFor returns the source line for the instruction at pc, or 0 when no
// line table is present.
func (c *Code) LineFor(pc int) int {
	line := 0
	for _, ln := range c.Lines {
		if int(ln.StartPC) > pc {
			break
		}
		line = int(ln.Line)
	}
	return line
}

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

// Class is the metadata of one compiled class or interface. Names are
// internal names (java/lang/Object); SuperName is empty only for
// java/lang/Object itself.
type Class struct {
	MinorVersion uint16      `cbor:"minor"`
	MajorVersion uint16      `cbor:"major"`
	Pool         []Constant  `cbor:"pool"`
	AccessFlags  AccessFlags `cbor:"flags"`
	Name         string      `cbor:"name"`
	SuperName    string      `cbor:"super,omitempty"`
	Interfaces   []string    `cbor:"interfaces,omitempty"`
	Fields       []Field     `cbor:"fields,omitempty"`
	Methods      []Method    `cbor:"methods,omitempty"`
	SourceFile   string      `cbor:"source,omitempty"`
}

// Method returns the method declared with exactly this name and descriptor.
func (c *Class) Method(name, descriptor string) *Method {
	for i := range c.Methods {
		m := &c.Methods[i]
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	return nil
}

// Field returns the field declared with this name.
func (c *Class) Field(name string) *Field {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// Constant returns the pool entry at index.
func (c *Class) Constant(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(c.Pool) {
		return Constant{}, fmt.Errorf("%s: constant pool index %d out of range", c.Name, index)
	}
	return c.Pool[index], nil
}

// Utf8 returns the string held by the Utf8 entry at index.
func (c *Class) Utf8(index uint16) (string, error) {
	k, err := c.Constant(index)
	if err != nil {
		return "", err
	}
	if k.Tag != TagUtf8 {
		return "", fmt.Errorf("%s: constant %d is tag %d, want Utf8", c.Name, index, k.Tag)
	}
	return k.Utf8, nil
}

// ClassName returns the internal name referenced by the Class entry at index.
func (c *Class) ClassName(index uint16) (string, error) {
	k, err := c.Constant(index)
	if err != nil {
		return "", err
	}
	if k.Tag != TagClass {
		return "", fmt.Errorf("%s: constant %d is tag %d, want Class", c.Name, index, k.Tag)
	}
	return c.Utf8(k.Index1)
}

// StringValue returns the text of the String entry at index.
func (c *Class) StringValue(index uint16) (string, error) {
	k, err := c.Constant(index)
	if err != nil {
		return "", err
	}
	if k.Tag != TagString {
		return "", fmt.Errorf("%s: constant %d is tag %d, want String", c.Name, index, k.Tag)
	}
	return c.Utf8(k.Index1)
}

// NameAndType returns the name and descriptor of the NameAndType entry at index.
func (c *Class) NameAndType(index uint16) (name, descriptor string, err error) {
	k, err := c.Constant(index)
	if err != nil {
		return "", "", err
	}
	if k.Tag != TagNameAndType {
		return "", "", fmt.Errorf("%s: constant %d is tag %d, want NameAndType", c.Name, index, k.Tag)
	}
	if name, err = c.Utf8(k.Index1); err != nil {
		return "", "", err
	}
	descriptor, err = c.Utf8(k.Index2)
	return name, descriptor, err
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref entry to
// its owning class, member name and member type.
func (c *Class) MemberRef(index uint16) (owner, name, descriptor string, err error) {
	k, err := c.Constant(index)
	if err != nil {
		return "", "", "", err
	}
	switch k.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return "", "", "", fmt.Errorf("%s: constant %d is tag %d, want member reference", c.Name, index, k.Tag)
	}
	if owner, err = c.ClassName(k.Index1); err != nil {
		return "", "", "", err
	}
	name, descriptor, err = c.NameAndType(k.Index2)
	return owner, name, descriptor, err
}

// String implements the Stringer interface.
func (c *Class) String() string {
	return c.Name
}
