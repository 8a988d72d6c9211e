package classfile

import "math"

// ---------------------------------------------------------------------------
// Builder: in-memory class assembly
// ---------------------------------------------------------------------------

// Builder assembles a Class, interning constant pool entries as they are
// requested. It is used for the bootstrap runtime library and by tests that
// need hand-written classes.
type Builder struct {
	class *Class
	index map[Constant]uint16
}

// NewBuilder starts a class with the given internal name, superclass and
// access flags. super may be empty only for java/lang/Object.
func NewBuilder(name, super string, flags AccessFlags) *Builder {
	b := &Builder{
		class: &Class{
			MinorVersion: DefaultMinorVersion,
			MajorVersion: DefaultMajorVersion,
			Pool:         []Constant{{}},
			AccessFlags:  flags,
			Name:         name,
			SuperName:    super,
		},
		index: make(map[Constant]uint16),
	}
	b.ClassRef(name)
	if super != "" {
		b.ClassRef(super)
	}
	return b
}

// Name returns the internal name of the class under construction.
func (b *Builder) Name() string { return b.class.Name }

// Implements appends interfaces to the class.
func (b *Builder) Implements(names ...string) *Builder {
	for _, n := range names {
		b.ClassRef(n)
		b.class.Interfaces = append(b.class.Interfaces, n)
	}
	return b
}

// SourceFile records the SourceFile attribute.
func (b *Builder) SourceFile(name string) *Builder {
	b.class.SourceFile = name
	return b
}

func (b *Builder) intern(k Constant) uint16 {
	if idx, ok := b.index[k]; ok {
		return idx
	}
	idx := uint16(len(b.class.Pool))
	b.class.Pool = append(b.class.Pool, k)
	if k.IsWide() {
		b.class.Pool = append(b.class.Pool, Constant{})
	}
	b.index[k] = idx
	return idx
}

// Utf8 interns a Utf8 entry.
func (b *Builder) Utf8(s string) uint16 {
	return b.intern(Constant{Tag: TagUtf8, Utf8: s})
}

// ClassRef interns a Class entry naming an internal class name or array
// descriptor.
func (b *Builder) ClassRef(name string) uint16 {
	return b.intern(Constant{Tag: TagClass, Index1: b.Utf8(name)})
}

// StringConst interns a String entry.
func (b *Builder) StringConst(s string) uint16 {
	return b.intern(Constant{Tag: TagString, Index1: b.Utf8(s)})
}

// IntConst interns an Integer entry.
func (b *Builder) IntConst(v int32) uint16 {
	return b.intern(Constant{Tag: TagInteger, Int: int64(v)})
}

// FloatConst interns a Float entry.
func (b *Builder) FloatConst(v float32) uint16 {
	return b.intern(Constant{Tag: TagFloat, Float: float64(v)})
}

// LongConst interns a Long entry.
func (b *Builder) LongConst(v int64) uint16 {
	return b.intern(Constant{Tag: TagLong, Int: v})
}

// DoubleConst interns a Double entry. NaN values are never shared.
func (b *Builder) DoubleConst(v float64) uint16 {
	if math.IsNaN(v) {
		idx := uint16(len(b.class.Pool))
		b.class.Pool = append(b.class.Pool, Constant{Tag: TagDouble, Float: v}, Constant{})
		return idx
	}
	return b.intern(Constant{Tag: TagDouble, Float: v})
}

// NameAndType interns a NameAndType entry.
func (b *Builder) NameAndType(name, descriptor string) uint16 {
	return b.intern(Constant{Tag: TagNameAndType, Index1: b.Utf8(name), Index2: b.Utf8(descriptor)})
}

// FieldRef interns a Fieldref entry.
func (b *Builder) FieldRef(owner, name, descriptor string) uint16 {
	return b.intern(Constant{Tag: TagFieldref, Index1: b.ClassRef(owner), Index2: b.NameAndType(name, descriptor)})
}

// MethodRef interns a Methodref entry.
func (b *Builder) MethodRef(owner, name, descriptor string) uint16 {
	return b.intern(Constant{Tag: TagMethodref, Index1: b.ClassRef(owner), Index2: b.NameAndType(name, descriptor)})
}

// InterfaceMethodRef interns an InterfaceMethodref entry.
func (b *Builder) InterfaceMethodRef(owner, name, descriptor string) uint16 {
	return b.intern(Constant{Tag: TagInterfaceMethodref, Index1: b.ClassRef(owner), Index2: b.NameAndType(name, descriptor)})
}

// AddField declares a field.
func (b *Builder) AddField(flags AccessFlags, name, descriptor string) *Builder {
	b.Utf8(name)
	b.Utf8(descriptor)
	b.class.Fields = append(b.class.Fields, Field{Name: name, Descriptor: descriptor, AccessFlags: flags})
	return b
}

// AddConstantField declares a static field initialised from the pool entry
// at valueIndex.
func (b *Builder) AddConstantField(flags AccessFlags, name, descriptor string, valueIndex uint16) *Builder {
	b.AddField(flags|AccStatic, name, descriptor)
	b.class.Fields[len(b.class.Fields)-1].ConstantValue = valueIndex
	return b
}

// AddMethod declares a method with a body.
func (b *Builder) AddMethod(flags AccessFlags, name, descriptor string, code *Code) *Builder {
	b.Utf8(name)
	b.Utf8(descriptor)
	b.class.Methods = append(b.class.Methods, Method{
		Name:        name,
		Descriptor:  descriptor,
		AccessFlags: flags,
		Code:        code,
	})
	return b
}

// AddNativeMethod declares a method implemented by the host.
func (b *Builder) AddNativeMethod(flags AccessFlags, name, descriptor string) *Builder {
	return b.AddMethod(flags|AccNative, name, descriptor, nil)
}

// AddAbstractMethod declares a method without a body.
func (b *Builder) AddAbstractMethod(flags AccessFlags, name, descriptor string) *Builder {
	return b.AddMethod(flags|AccAbstract, name, descriptor, nil)
}

// Build returns the assembled class. The builder must not be used afterwards.
func (b *Builder) Build() *Class {
	c := b.class
	b.class = nil
	b.index = nil
	return c
}
