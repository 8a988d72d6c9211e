package vm

import "fmt"

// ---------------------------------------------------------------------------
// Value: operand stack and local variable contents
// ---------------------------------------------------------------------------

// Value is a guest value. The dynamic type determines the category:
//
//	int32    boolean, byte, char, short, int
//	int64    long
//	float32  float
//	float64  double
//	*Object  non-null reference
//	nil      null reference
//
// Each value occupies one operand stack entry regardless of category.
type Value any

// isWideValue reports whether v is a long or double (a category 2 value).
func isWideValue(v Value) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// Bool converts a host boolean to the guest representation.
func Bool(b bool) Value {
	if b {
		return int32(1)
	}
	return int32(0)
}

// asObject returns the reference held in v, or nil for null. Non-reference
// values panic and surface as malformed code.
func asObject(v Value) *Object {
	if v == nil {
		return nil
	}
	obj, ok := v.(*Object)
	if !ok {
		panic(fmt.Errorf("expected reference, found %T", v))
	}
	return obj
}

// coerce narrows v to the storage representation of t. Stores into
// byte/char/short/boolean arrays and fields truncate the int.
func coerce(t TypeDescriptor, v Value) Value {
	i, ok := v.(int32)
	if !ok {
		return v
	}
	switch t {
	case TypeByte:
		return int32(int8(i))
	case TypeChar:
		return int32(uint16(i))
	case TypeShort:
		return int32(int16(i))
	case TypeBoolean:
		return i & 1
	}
	return v
}

// formatValue renders v for diagnostics.
func formatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case *Object:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
