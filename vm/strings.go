package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Host/guest string bridging
// ---------------------------------------------------------------------------

// NewString creates a guest String holding the UTF-8 bytes of s. The byte
// array is handed to String.<init>([B)V, so construction runs guest code.
func (vm *VM) NewString(s string) (*Object, error) {
	bytes := make([]Value, len(s))
	for i := 0; i < len(s); i++ {
		bytes[i] = int32(int8(s[i]))
	}
	arr, err := vm.NewArrayOf(TypeByte, bytes)
	if err != nil {
		return nil, err
	}
	class, err := vm.LoadClass(StringClass)
	if err != nil {
		return nil, err
	}
	return vm.NewObjectWithConstructor(class, "([B)V", arr)
}

// GoString converts a guest String to a host string by calling its
// getBytes()[B method. A null reference converts to "null".
func (vm *VM) GoString(v Value) (string, error) {
	obj := asObject(v)
	if obj == nil {
		return "null", nil
	}
	result, err := vm.Invoke(obj.Class.Name, "getBytes", "()[B", obj)
	if err != nil {
		return "", err
	}
	arr := asObject(result)
	if arr == nil {
		return "", fmt.Errorf("%s.getBytes returned null", obj.Class.Name)
	}
	return string(arr.Bytes()), nil
}

// Intern returns the canonical String with the same contents as str.
func (vm *VM) Intern(str *Object) (*Object, error) {
	s, err := vm.GoString(str)
	if err != nil {
		return nil, err
	}
	if canon, ok := vm.interned[s]; ok {
		return canon, nil
	}
	vm.interned[s] = str
	return str, nil
}

// InternString returns the canonical guest String for a host string.
func (vm *VM) InternString(s string) (*Object, error) {
	if canon, ok := vm.interned[s]; ok {
		return canon, nil
	}
	str, err := vm.NewString(s)
	if err != nil {
		return nil, err
	}
	vm.interned[s] = str
	return str, nil
}

// StringArray builds a guest String[] from host strings.
func (vm *VM) StringArray(values []string) (*Object, error) {
	elems := make([]Value, len(values))
	for i, s := range values {
		str, err := vm.NewString(s)
		if err != nil {
			return nil, err
		}
		elems[i] = str
	}
	return vm.NewArrayOf(TypeString, elems)
}

// ClassMirror returns the java/lang/Class object describing c, built once
// through Class.<init>(Ljava/lang/String;)V with the reflective name.
func (vm *VM) ClassMirror(c *Class) (*Object, error) {
	if c.mirror != nil {
		return c.mirror, nil
	}
	classClass, err := vm.LoadClass(ClassClass)
	if err != nil {
		return nil, err
	}
	name, err := vm.NewString(reflectName(c.Descriptor))
	if err != nil {
		return nil, err
	}
	mirror, err := vm.NewObjectWithConstructor(classClass, "(Ljava/lang/String;)V", name)
	if err != nil {
		return nil, err
	}
	mirror.Native = c
	c.mirror = mirror
	return mirror, nil
}

// mirroredClass returns the class described by a java/lang/Class object.
func (vm *VM) mirroredClass(mirror *Object) (*Class, error) {
	if c, ok := mirror.Native.(*Class); ok {
		return c, nil
	}
	name, err := vm.Invoke(ClassClass, "getName", "()Ljava/lang/String;", mirror)
	if err != nil {
		return nil, err
	}
	text, err := vm.GoString(name)
	if err != nil {
		return nil, err
	}
	return vm.ClassFor(fromReflectName(text))
}

var primitiveNames = map[string]TypeDescriptor{
	"boolean": TypeBoolean, "byte": TypeByte, "char": TypeChar, "short": TypeShort,
	"int": TypeInt, "long": TypeLong, "float": TypeFloat, "double": TypeDouble, "void": TypeVoid,
}

// reflectName spells a type the way Class.getName does: java.lang.String,
// int, [Ljava.lang.String;.
func reflectName(t TypeDescriptor) string {
	if t.IsArray() {
		return strings.ReplaceAll(string(t), "/", ".")
	}
	return t.JavaName()
}

func fromReflectName(name string) TypeDescriptor {
	if t, ok := primitiveNames[name]; ok {
		return t
	}
	return FromInternal(strings.ReplaceAll(name, ".", "/"))
}
