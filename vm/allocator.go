package vm

import (
	"fmt"
	"maps"
	"slices"

	"github.com/chazu/javelin/classfile"
)

// ---------------------------------------------------------------------------
// Class loading and initialization
// ---------------------------------------------------------------------------

// LoadClass returns the runtime record for an internal class name or array
// descriptor, loading and initializing it on first use.
func (vm *VM) LoadClass(name string) (*Class, error) {
	return vm.ClassFor(FromInternal(name))
}

// ClassFor returns the runtime record for desc, linking and initializing
// it on first use.
//
// Loading happens in two phases. Linking installs the record in the class
// table with default statics and links the whole superclass chain without
// running any code. Initialization then runs superclass initializers before
// the class's own <clinit>. A reference reached from an initializer that is
// still running sees the fully linked but partially initialized class.
func (vm *VM) ClassFor(desc TypeDescriptor) (*Class, error) {
	c, err := vm.link(desc)
	if err != nil {
		return nil, err
	}
	if err := vm.initialize(c); err != nil {
		return nil, err
	}
	return c, nil
}

// link returns the linked record for desc, creating it and its superclass
// chain when needed.
func (vm *VM) link(desc TypeDescriptor) (*Class, error) {
	if c := vm.Classes.Lookup(desc); c != nil {
		switch {
		case c.state == classFailed && c.failure != nil:
			return nil, c.failure
		case c.state == classLinking:
			return nil, &UnresolvedSymbolError{Kind: "class", Symbol: c.Name,
				Cause: fmt.Errorf("class circularity")}
		}
		return c, nil
	}

	switch {
	case desc.IsPrimitive():
		c, _ := newClass(desc, nil)
		c.state = classLinked
		return vm.Classes.Register(c), nil

	case desc.IsArray():
		if _, err := ParseType(string(desc)); err != nil {
			return nil, &UnresolvedSymbolError{Kind: "class", Symbol: string(desc), Cause: err}
		}
		c, _ := newClass(desc, nil)
		c = vm.Classes.Register(c)
		return c, vm.linkSuper(c)

	case desc.IsReference():
		return vm.linkInstanceClass(desc)
	}
	return nil, &UnresolvedSymbolError{Kind: "class", Symbol: string(desc)}
}

func (vm *VM) linkInstanceClass(desc TypeDescriptor) (*Class, error) {
	name := desc.ClassName()
	if vm.provider == nil {
		return nil, &UnresolvedSymbolError{Kind: "class", Symbol: name, Cause: fmt.Errorf("no class provider")}
	}
	file, err := vm.provider.LoadClass(name)
	if err != nil {
		return nil, &UnresolvedSymbolError{Kind: "class", Symbol: name, Cause: err}
	}
	if file.Name != name {
		return nil, &UnresolvedSymbolError{Kind: "class", Symbol: name,
			Cause: fmt.Errorf("provider returned class %s", file.Name)}
	}
	c, err := newClass(desc, file)
	if err != nil {
		return nil, &UnresolvedSymbolError{Kind: "class", Symbol: name, Cause: err}
	}
	c = vm.Classes.Register(c)
	vm.loaderLog.Debugf("loaded %s", name)

	c.Statics = &Object{Class: c, hash: vm.identityHash()}
	for i := range file.Fields {
		f := &file.Fields[i]
		if f.IsStatic() {
			c.Statics.SetField(c.Name, f.Name, TypeDescriptor(f.Descriptor).DefaultValue())
		}
	}
	return c, vm.linkSuper(c)
}

// linkSuper links c's superclass and marks c linked. On failure c stays in
// the table in the failed state and later uses report the same error.
func (vm *VM) linkSuper(c *Class) error {
	if c.SuperName != "" {
		super, err := vm.link(FromInternal(c.SuperName))
		if err != nil {
			c.state, c.failure = classFailed, err
			return err
		}
		c.Super = super
	}
	c.state = classLinked
	return nil
}

// initialize runs the initializers of c and its superclasses that have not
// run yet. A class whose initializer failed is never initialized again;
// later uses throw NoClassDefFoundError.
func (vm *VM) initialize(c *Class) error {
	switch c.state {
	case classInitializing, classInitialized:
		return nil
	case classFailed:
		if c.failure != nil {
			return c.failure
		}
		return vm.throwNew(NoClassDefFoundError, "Could not initialize class "+c.Descriptor.JavaName())
	}

	c.state = classInitializing
	if err := vm.runInitializers(c); err != nil {
		c.state = classFailed
		vm.loaderLog.Debugf("initialization of %s failed: %v", c.Name, err)
		return err
	}
	c.state = classInitialized
	return nil
}

func (vm *VM) runInitializers(c *Class) error {
	if c.Super != nil {
		if err := vm.initialize(c.Super); err != nil {
			return err
		}
	}
	if c.File == nil {
		return nil
	}
	if err := vm.applyConstantValues(c); err != nil {
		return err
	}
	if clinit := c.DeclaredMethod("<clinit>", "()V"); clinit != nil {
		vm.loaderLog.Debugf("initializing %s", c.Name)
		if _, err := vm.InvokeMethod(clinit); err != nil {
			return err
		}
	}
	return nil
}

// applyConstantValues stores ConstantValue attributes of static fields.
func (vm *VM) applyConstantValues(c *Class) error {
	for i := range c.File.Fields {
		f := &c.File.Fields[i]
		if !f.IsStatic() || f.ConstantValue == 0 {
			continue
		}
		k, err := c.File.Constant(f.ConstantValue)
		if err != nil {
			return &MalformedCodeError{Method: c.Name + "." + f.Name, Cause: err}
		}
		var v Value
		switch k.Tag {
		case classfile.TagInteger:
			v = coerce(TypeDescriptor(f.Descriptor), int32(k.Int))
		case classfile.TagLong:
			v = k.Int
		case classfile.TagFloat:
			v = float32(k.Float)
		case classfile.TagDouble:
			v = k.Float
		case classfile.TagString:
			s, err := c.File.StringValue(f.ConstantValue)
			if err != nil {
				return &MalformedCodeError{Method: c.Name + "." + f.Name, Cause: err}
			}
			obj, err := vm.NewString(s)
			if err != nil {
				return err
			}
			if v, err = vm.Intern(obj); err != nil {
				return err
			}
		default:
			return &MalformedCodeError{Method: c.Name + "." + f.Name,
				Reason: fmt.Sprintf("unsupported ConstantValue tag %d", k.Tag)}
		}
		c.Statics.SetField(c.Name, f.Name, v)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Instance allocation
// ---------------------------------------------------------------------------

// NewObject allocates an instance of c with every instance field, declared
// or inherited, set to its default. No constructor runs.
func (vm *VM) NewObject(c *Class) *Object {
	obj := &Object{Class: c, hash: vm.identityHash()}
	for k := c; k != nil; k = k.Super {
		if k.File == nil {
			continue
		}
		for i := range k.File.Fields {
			f := &k.File.Fields[i]
			if !f.IsStatic() {
				obj.SetField(k.Name, f.Name, TypeDescriptor(f.Descriptor).DefaultValue())
			}
		}
	}
	return obj
}

// Clone returns a shallow copy of obj. Arrays are always cloneable; other
// objects must implement java/lang/Cloneable or CloneNotSupportedException
// is thrown.
func (vm *VM) Clone(obj *Object) (*Object, error) {
	if !obj.IsArray() {
		ok, err := vm.instanceOf(obj, CloneableClass)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, vm.throwNew(CloneNotSupportedException, obj.Class.Descriptor.JavaName())
		}
	}
	return &Object{
		Class:  obj.Class,
		Fields: maps.Clone(obj.Fields),
		Values: slices.Clone(obj.Values),
		Native: obj.Native,
		hash:   vm.identityHash(),
	}, nil
}

// NewObjectWithConstructor allocates an instance of c and runs the
// constructor with the given descriptor on it.
func (vm *VM) NewObjectWithConstructor(c *Class, descriptor string, args ...Value) (*Object, error) {
	ctor := c.DeclaredMethod("<init>", descriptor)
	if ctor == nil {
		return nil, &UnresolvedSymbolError{Kind: "method", Symbol: c.Name + ".<init>" + descriptor}
	}
	obj := vm.NewObject(c)
	if _, err := vm.InvokeMethod(ctor, append([]Value{obj}, args...)...); err != nil {
		return nil, err
	}
	return obj, nil
}

// NewArray allocates an array of class c with one count per dimension.
// Inner arrays are allocated independently; leaf elements take the
// element type's default value.
func (vm *VM) NewArray(c *Class, counts ...int32) (*Object, error) {
	if !c.IsArray() {
		return nil, fmt.Errorf("new array: %s is not an array class", c.Name)
	}
	if len(counts) != c.Descriptor.Dimensions() {
		return nil, fmt.Errorf("new array: %s has %d dimensions, got %d counts",
			c.Name, c.Descriptor.Dimensions(), len(counts))
	}
	return vm.allocArray(c, counts)
}

// allocArray builds the outer len(counts) dimensions of c. Dimensions
// beyond counts are left null, as multianewarray and anewarray require.
func (vm *VM) allocArray(c *Class, counts []int32) (*Object, error) {
	for _, n := range counts {
		if n < 0 {
			return nil, vm.throwNew(NegativeArraySizeException, fmt.Sprint(n))
		}
	}
	return vm.buildArray(c, counts)
}

func (vm *VM) buildArray(c *Class, counts []int32) (*Object, error) {
	arr := &Object{Class: c, hash: vm.identityHash(), Values: make([]Value, counts[0])}
	component := c.Descriptor.ComponentType()
	if len(counts) > 1 {
		inner, err := vm.ClassFor(component)
		if err != nil {
			return nil, err
		}
		for i := range arr.Values {
			sub, err := vm.buildArray(inner, counts[1:])
			if err != nil {
				return nil, err
			}
			arr.Values[i] = sub
		}
		return arr, nil
	}
	if def := component.DefaultValue(); def != nil {
		for i := range arr.Values {
			arr.Values[i] = def
		}
	}
	return arr, nil
}

// NewArrayOf allocates a one-dimensional array with the given element type
// and contents.
func (vm *VM) NewArrayOf(elem TypeDescriptor, values []Value) (*Object, error) {
	c, err := vm.ClassFor(elem.ArrayOf())
	if err != nil {
		return nil, err
	}
	arr := &Object{Class: c, hash: vm.identityHash(), Values: make([]Value, len(values))}
	for i, v := range values {
		arr.Values[i] = coerce(elem, v)
	}
	return arr, nil
}
