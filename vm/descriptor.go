package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// TypeDescriptor: field and element types
// ---------------------------------------------------------------------------

// TypeDescriptor is a field type in descriptor form: a primitive letter
// (I, J, ...), an object type (Ljava/lang/String;) or an array ([I, [[Ljava/lang/Object;).
// V is accepted as a return type only.
type TypeDescriptor string

// Well-known descriptors.
const (
	TypeBoolean TypeDescriptor = "Z"
	TypeByte    TypeDescriptor = "B"
	TypeChar    TypeDescriptor = "C"
	TypeShort   TypeDescriptor = "S"
	TypeInt     TypeDescriptor = "I"
	TypeLong    TypeDescriptor = "J"
	TypeFloat   TypeDescriptor = "F"
	TypeDouble  TypeDescriptor = "D"
	TypeVoid    TypeDescriptor = "V"

	TypeObject TypeDescriptor = "Ljava/lang/Object;"
	TypeString TypeDescriptor = "Ljava/lang/String;"
)

// ParseType validates s as a single complete field descriptor.
func ParseType(s string) (TypeDescriptor, error) {
	t, n, err := parseTypeAt(s, 0)
	if err != nil {
		return "", err
	}
	if n != len(s) {
		return "", fmt.Errorf("descriptor %q: trailing characters after %q", s, t)
	}
	if t == TypeVoid {
		return "", fmt.Errorf("descriptor %q: void is not a field type", s)
	}
	return t, nil
}

func parseTypeAt(s string, i int) (TypeDescriptor, int, error) {
	start := i
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return "", 0, fmt.Errorf("descriptor %q: unexpected end at %d", s, i)
	}
	switch s[i] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		i++
	case 'V':
		if i != start {
			return "", 0, fmt.Errorf("descriptor %q: array of void", s)
		}
		i++
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end <= 1 {
			return "", 0, fmt.Errorf("descriptor %q: unterminated class name at %d", s, i)
		}
		i += end + 1
	default:
		return "", 0, fmt.Errorf("descriptor %q: invalid type character %q at %d", s, s[i], i)
	}
	return TypeDescriptor(s[start:i]), i, nil
}

// FromInternal converts an internal class name (java/lang/String) to its
// descriptor. Array names are already descriptors and are returned as-is.
func FromInternal(name string) TypeDescriptor {
	if strings.HasPrefix(name, "[") {
		return TypeDescriptor(name)
	}
	if len(name) == 1 && strings.ContainsAny(name, "ZBCSIJFDV") {
		return TypeDescriptor(name)
	}
	return TypeDescriptor("L" + name + ";")
}

// IsPrimitive reports whether t is one of the eight primitive types.
func (t TypeDescriptor) IsPrimitive() bool {
	return len(t) == 1 && t != TypeVoid
}

// IsWide reports whether values of t occupy two local variable slots.
func (t TypeDescriptor) IsWide() bool {
	return t == TypeLong || t == TypeDouble
}

// IsVoid reports whether t is the void return type.
func (t TypeDescriptor) IsVoid() bool { return t == TypeVoid }

// IsArray reports whether t is an array type.
func (t TypeDescriptor) IsArray() bool {
	return len(t) > 0 && t[0] == '['
}

// IsReference reports whether values of t are object references.
func (t TypeDescriptor) IsReference() bool {
	return len(t) > 0 && (t[0] == 'L' || t[0] == '[')
}

// Dimensions returns the array depth of t, 0 for non-arrays.
func (t TypeDescriptor) Dimensions() int {
	n := 0
	for n < len(t) && t[n] == '[' {
		n++
	}
	return n
}

// ElementType strips every array dimension.
func (t TypeDescriptor) ElementType() TypeDescriptor {
	return t[t.Dimensions():]
}

// ComponentType strips one array dimension.
func (t TypeDescriptor) ComponentType() TypeDescriptor {
	if !t.IsArray() {
		return t
	}
	return t[1:]
}

// ArrayOf returns the descriptor of an array whose components are t.
func (t TypeDescriptor) ArrayOf() TypeDescriptor {
	return "[" + t
}

// ClassName returns the internal name used to look the type up: the class
// name for object types, and the descriptor itself for arrays and primitives.
func (t TypeDescriptor) ClassName() string {
	if len(t) > 2 && t[0] == 'L' {
		return string(t[1 : len(t)-1])
	}
	return string(t)
}

// JavaName returns the source-level spelling used in diagnostics
// (java.lang.String, int[]).
func (t TypeDescriptor) JavaName() string {
	dims := t.Dimensions()
	var base string
	switch elem := t.ElementType(); elem {
	case TypeBoolean:
		base = "boolean"
	case TypeByte:
		base = "byte"
	case TypeChar:
		base = "char"
	case TypeShort:
		base = "short"
	case TypeInt:
		base = "int"
	case TypeLong:
		base = "long"
	case TypeFloat:
		base = "float"
	case TypeDouble:
		base = "double"
	case TypeVoid:
		base = "void"
	default:
		base = strings.ReplaceAll(elem.ClassName(), "/", ".")
	}
	return base + strings.Repeat("[]", dims)
}

// DefaultValue returns the zero value stored in fields and array elements
// of type t.
func (t TypeDescriptor) DefaultValue() Value {
	switch t {
	case TypeBoolean, TypeByte, TypeChar, TypeShort, TypeInt:
		return int32(0)
	case TypeLong:
		return int64(0)
	case TypeFloat:
		return float32(0)
	case TypeDouble:
		return float64(0)
	}
	return nil
}

// String implements the Stringer interface.
func (t TypeDescriptor) String() string { return string(t) }

// ---------------------------------------------------------------------------
// MethodDescriptor
// ---------------------------------------------------------------------------

// MethodDescriptor is a parsed method signature such as (I[Ljava/lang/String;)V.
type MethodDescriptor struct {
	Args   []TypeDescriptor
	Return TypeDescriptor
	raw    string
}

// ParseMethod parses a method descriptor.
func ParseMethod(sig string) (*MethodDescriptor, error) {
	if len(sig) < 3 || sig[0] != '(' {
		return nil, fmt.Errorf("method descriptor %q: missing argument list", sig)
	}
	md := &MethodDescriptor{raw: sig}
	i := 1
	for i < len(sig) && sig[i] != ')' {
		t, next, err := parseTypeAt(sig, i)
		if err != nil {
			return nil, err
		}
		if t == TypeVoid {
			return nil, fmt.Errorf("method descriptor %q: void argument", sig)
		}
		md.Args = append(md.Args, t)
		i = next
	}
	if i >= len(sig) {
		return nil, fmt.Errorf("method descriptor %q: unterminated argument list", sig)
	}
	ret, next, err := parseTypeAt(sig, i+1)
	if err != nil {
		return nil, err
	}
	if next != len(sig) {
		return nil, fmt.Errorf("method descriptor %q: trailing characters", sig)
	}
	md.Return = ret
	return md, nil
}

// ArgSlots returns the number of local slots the arguments occupy, wide
// types counting twice. The receiver is not included.
func (md *MethodDescriptor) ArgSlots() int {
	n := 0
	for _, a := range md.Args {
		n++
		if a.IsWide() {
			n++
		}
	}
	return n
}

// ReturnsValue reports whether the method produces a result.
func (md *MethodDescriptor) ReturnsValue() bool {
	return md.Return != TypeVoid
}

// String returns the descriptor text.
func (md *MethodDescriptor) String() string { return md.raw }
