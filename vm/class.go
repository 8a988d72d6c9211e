package vm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/javelin/classfile"
)

// Internal names of classes the engine itself depends on.
const (
	ObjectClass           = "java/lang/Object"
	StringClass           = "java/lang/String"
	ClassClass            = "java/lang/Class"
	ThrowableClass        = "java/lang/Throwable"
	StackTraceElementName = "java/lang/StackTraceElement"
	CloneableClass        = "java/lang/Cloneable"
	SerializableClass     = "java/io/Serializable"

	ArithmeticException             = "java/lang/ArithmeticException"
	NullPointerException            = "java/lang/NullPointerException"
	ArrayIndexOutOfBoundsException  = "java/lang/ArrayIndexOutOfBoundsException"
	ClassCastException              = "java/lang/ClassCastException"
	NegativeArraySizeException      = "java/lang/NegativeArraySizeException"
	StackOverflowError              = "java/lang/StackOverflowError"
	NumberFormatException           = "java/lang/NumberFormatException"
	ArrayStoreException             = "java/lang/ArrayStoreException"
	StringIndexOutOfBoundsException = "java/lang/StringIndexOutOfBoundsException"
	CloneNotSupportedException      = "java/lang/CloneNotSupportedException"
	NoClassDefFoundError            = "java/lang/NoClassDefFoundError"
)

// ---------------------------------------------------------------------------
// Class: runtime record for one type
// ---------------------------------------------------------------------------

// Class is the runtime record of one type descriptor. Exactly one exists per
// descriptor for the life of a VM. Arrays and primitives have no File.
type Class struct {
	Descriptor TypeDescriptor
	Name       string
	SuperName  string
	Interfaces []string
	Flags      classfile.AccessFlags
	File       *classfile.Class

	// Super is linked before any initializer runs.
	Super *Class

	// Statics holds static field storage.
	Statics *Object

	fields   map[string]*classfile.Field
	methods  map[methodKey]*Method
	resolved map[MemberRef]*Class
	mirror   *Object

	state   classState
	failure error
}

// classState tracks a class through linking and initialization.
type classState uint8

const (
	classLinking classState = iota
	classLinked
	classInitializing
	classInitialized
	classFailed
)

// Initialized reports whether the static initializer has completed.
func (c *Class) Initialized() bool { return c.state == classInitialized }

type methodKey struct {
	name, descriptor string
}

// Method is a method bound to its declaring class.
type Method struct {
	Class      *Class
	Name       string
	Descriptor string
	Flags      classfile.AccessFlags
	Code       *classfile.Code
	Type       *MethodDescriptor
}

// IsStatic reports whether the method has no receiver.
func (m *Method) IsStatic() bool { return m.Flags.IsStatic() }

// IsNative reports whether the method is implemented by the host.
func (m *Method) IsNative() bool { return m.Flags.IsNative() }

// String implements the Stringer interface.
func (m *Method) String() string {
	return m.Class.Name + "." + m.Name + m.Descriptor
}

// newClass builds the runtime record for descriptor. file is nil for array
// and primitive types.
func newClass(desc TypeDescriptor, file *classfile.Class) (*Class, error) {
	c := &Class{
		Descriptor: desc,
		Name:       desc.ClassName(),
		fields:     make(map[string]*classfile.Field),
		methods:    make(map[methodKey]*Method),
		resolved:   make(map[MemberRef]*Class),
	}
	if desc.IsArray() {
		c.SuperName = ObjectClass
		c.Flags = classfile.AccPublic | classfile.AccFinal
	}
	if file == nil {
		return c, nil
	}

	c.File = file
	c.SuperName = file.SuperName
	c.Interfaces = file.Interfaces
	c.Flags = file.AccessFlags
	for i := range file.Fields {
		f := &file.Fields[i]
		if _, err := ParseType(f.Descriptor); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Name, f.Name, err)
		}
		c.fields[f.Name] = f
	}
	for i := range file.Methods {
		fm := &file.Methods[i]
		md, err := ParseMethod(fm.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Name, fm.Name, err)
		}
		c.methods[methodKey{fm.Name, fm.Descriptor}] = &Method{
			Class:      c,
			Name:       fm.Name,
			Descriptor: fm.Descriptor,
			Flags:      fm.AccessFlags,
			Code:       fm.Code,
			Type:       md,
		}
	}
	return c, nil
}

// IsArray reports whether the class is an array type.
func (c *Class) IsArray() bool { return c.Descriptor.IsArray() }

// IsPrimitive reports whether the class stands for a primitive type.
func (c *Class) IsPrimitive() bool { return c.Descriptor.IsPrimitive() }

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool { return c.File != nil && c.Flags.IsInterface() }

// DeclaredField returns the field declared by this class, or nil.
func (c *Class) DeclaredField(name string) *classfile.Field {
	return c.fields[name]
}

// DeclaredMethod returns the method declared by this class with exactly this
// name and descriptor, or nil.
func (c *Class) DeclaredMethod(name, descriptor string) *Method {
	return c.methods[methodKey{name, descriptor}]
}

// Methods returns the declared methods sorted by name and descriptor.
func (c *Class) Methods() []*Method {
	out := make([]*Method, 0, len(c.methods))
	for _, m := range c.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Descriptor < out[j].Descriptor
	})
	return out
}

// SourceFile returns the recorded source file name, or "".
func (c *Class) SourceFile() string {
	if c.File == nil {
		return ""
	}
	return c.File.SourceFile
}

// ResolutionCacheLen returns the number of cached resolutions started at c.
func (c *Class) ResolutionCacheLen() int { return len(c.resolved) }

// String implements the Stringer interface.
func (c *Class) String() string { return c.Name }

// ---------------------------------------------------------------------------
// ClassTable: class runtime arena
// ---------------------------------------------------------------------------

// ClassTable holds every Class of a VM keyed by descriptor. The map is
// guarded so that tooling may inspect a table between runs; the classes it
// holds belong to one VM and follow its single-goroutine rule.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[TypeDescriptor]*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[TypeDescriptor]*Class),
	}
}

// Register installs a class. An existing entry for the same descriptor is
// kept and returned instead.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if old, ok := ct.classes[c.Descriptor]; ok {
		return old
	}
	ct.classes[c.Descriptor] = c
	return c
}

// Lookup finds a class by descriptor.
func (ct *ClassTable) Lookup(desc TypeDescriptor) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[desc]
}

// LookupName finds a class by internal name.
func (ct *ClassTable) LookupName(name string) *Class {
	return ct.Lookup(FromInternal(name))
}

// All returns all registered classes sorted by descriptor.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Descriptor < result[j].Descriptor })
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}
