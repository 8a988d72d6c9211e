package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Object: instances, arrays and static storage
// ---------------------------------------------------------------------------

// FieldKey identifies a field slot by its declaring class and name, so a
// subclass field that shadows an inherited one gets separate storage.
type FieldKey struct {
	Owner string
	Name  string
}

// Object is a guest object. Arrays keep their elements in Values; plain
// instances and static storage use Fields.
type Object struct {
	Class  *Class
	Fields map[FieldKey]Value
	Values []Value

	// Native holds host-side state for classes implemented by natives.
	Native any

	hash int32
}

// IsArray reports whether the object is an array instance.
func (o *Object) IsArray() bool {
	return o.Class != nil && o.Class.IsArray()
}

// Len returns the array length.
func (o *Object) Len() int { return len(o.Values) }

// HashCode returns the per-engine identity hash.
func (o *Object) HashCode() int32 { return o.hash }

// GetField reads the slot declared by owner. Missing slots read as nil.
func (o *Object) GetField(owner, name string) Value {
	return o.Fields[FieldKey{owner, name}]
}

// SetField writes the slot declared by owner.
func (o *Object) SetField(owner, name string, v Value) {
	if o.Fields == nil {
		o.Fields = make(map[FieldKey]Value)
	}
	o.Fields[FieldKey{owner, name}] = v
}

// Bytes returns the contents of a byte array as host bytes.
func (o *Object) Bytes() []byte {
	b := make([]byte, len(o.Values))
	for i, v := range o.Values {
		if x, ok := v.(int32); ok {
			b[i] = byte(x)
		}
	}
	return b
}

// String implements the Stringer interface.
func (o *Object) String() string {
	if o == nil {
		return "null"
	}
	name := "?"
	if o.Class != nil {
		name = o.Class.Descriptor.JavaName()
	}
	if o.IsArray() {
		return fmt.Sprintf("%s[%d]@%x", strings.TrimSuffix(name, "[]"), len(o.Values), uint32(o.hash))
	}
	return fmt.Sprintf("%s@%x", name, uint32(o.hash))
}
