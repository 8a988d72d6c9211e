package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ---------------------------------------------------------------------------
// Value formatting shared by String, StringBuilder and PrintStream
// ---------------------------------------------------------------------------

// javaText renders v, of declared type t, the way String.valueOf does.
func (vm *VM) javaText(t TypeDescriptor, v Value) (string, error) {
	switch t {
	case TypeBoolean:
		if asInt(v) != 0 {
			return "true", nil
		}
		return "false", nil
	case TypeChar:
		return string(utf16.Decode([]uint16{uint16(asInt(v))})), nil
	case TypeByte, TypeShort, TypeInt:
		return strconv.FormatInt(int64(asInt(v)), 10), nil
	case TypeLong:
		return strconv.FormatInt(v.(int64), 10), nil
	case TypeFloat:
		return formatFloating(float64(v.(float32)), 32), nil
	case TypeDouble:
		return formatFloating(v.(float64), 64), nil
	}
	obj := asObject(v)
	if obj == nil {
		return "null", nil
	}
	if obj.Class.Name == StringClass {
		return vm.GoString(obj)
	}
	str, err := vm.Invoke(obj.Class.Name, "toString", "()Ljava/lang/String;", obj)
	if err != nil {
		return "", err
	}
	return vm.GoString(str)
}

// formatFloating follows Double.toString: plain decimal with at least one
// fractional digit for magnitudes in [1e-3, 1e7), otherwise scientific
// notation such as 1.0E10.
func formatFloating(x float64, bits int) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	case x == 0:
		if math.Signbit(x) {
			return "-0.0"
		}
		return "0.0"
	}
	abs := math.Abs(x)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(x, 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(x, 'E', -1, bits)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	e, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(e)
}

// valueOfDescriptors lists the String.valueOf and append overloads.
var valueOfDescriptors = []TypeDescriptor{
	TypeBoolean, TypeChar, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeObject, TypeString,
}

// ---------------------------------------------------------------------------
// java/lang/String
// ---------------------------------------------------------------------------

func registerStringNatives(t *NativeTable) {
	t.Register(StringClass, "intern", "()Ljava/lang/String;", func(vm *VM, locals []Value) (Value, error) {
		canon, err := vm.Intern(asObject(locals[0]))
		if err != nil {
			return nil, err
		}
		return canon, nil
	})
	t.Register(StringClass, "equals", "(Ljava/lang/Object;)Z", func(vm *VM, locals []Value) (Value, error) {
		self, other := asObject(locals[0]), asObject(locals[1])
		if self == other {
			return Bool(true), nil
		}
		if other == nil || other.Class != self.Class {
			return Bool(false), nil
		}
		a, err := vm.GoString(self)
		if err != nil {
			return nil, err
		}
		b, err := vm.GoString(other)
		if err != nil {
			return nil, err
		}
		return Bool(a == b), nil
	})
	t.Register(StringClass, "hashCode", "()I", func(vm *VM, locals []Value) (Value, error) {
		s, err := vm.GoString(locals[0])
		if err != nil {
			return nil, err
		}
		return StringHash(s), nil
	})
	t.Register(StringClass, "length", "()I", func(vm *VM, locals []Value) (Value, error) {
		s, err := vm.GoString(locals[0])
		if err != nil {
			return nil, err
		}
		return int32(len(utf16.Encode([]rune(s)))), nil
	})
	t.Register(StringClass, "isEmpty", "()Z", func(vm *VM, locals []Value) (Value, error) {
		s, err := vm.GoString(locals[0])
		if err != nil {
			return nil, err
		}
		return Bool(s == ""), nil
	})
	t.Register(StringClass, "charAt", "(I)C", func(vm *VM, locals []Value) (Value, error) {
		s, err := vm.GoString(locals[0])
		if err != nil {
			return nil, err
		}
		units := utf16.Encode([]rune(s))
		i := asInt(locals[1])
		if i < 0 || int(i) >= len(units) {
			return nil, vm.throwNew(StringIndexOutOfBoundsException,
				fmt.Sprintf("Index %d out of bounds for length %d", i, len(units)))
		}
		return int32(units[i]), nil
	})
	t.Register(StringClass, "concat", "(Ljava/lang/String;)Ljava/lang/String;", func(vm *VM, locals []Value) (Value, error) {
		if locals[1] == nil {
			return nil, vm.throwNew(NullPointerException, "concat of null")
		}
		a, err := vm.GoString(locals[0])
		if err != nil {
			return nil, err
		}
		b, err := vm.GoString(locals[1])
		if err != nil {
			return nil, err
		}
		return returnString(vm, a+b)
	})
	for _, td := range valueOfDescriptors {
		td := td
		if td == TypeString {
			continue
		}
		t.Register(StringClass, "valueOf", "("+string(td)+")Ljava/lang/String;", func(vm *VM, locals []Value) (Value, error) {
			text, err := vm.javaText(td, locals[0])
			if err != nil {
				return nil, err
			}
			return returnString(vm, text)
		})
	}
}

// StringHash computes String.hashCode over the UTF-16 code units of s.
func StringHash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return h
}

// ---------------------------------------------------------------------------
// java/lang/StringBuilder
// ---------------------------------------------------------------------------

const stringBuilderClass = "java/lang/StringBuilder"

func builderOf(obj *Object) *strings.Builder {
	b, ok := obj.Native.(*strings.Builder)
	if !ok {
		b = &strings.Builder{}
		obj.Native = b
	}
	return b
}

func registerStringBuilderNatives(t *NativeTable) {
	t.Register(stringBuilderClass, "<init>", "()V", func(vm *VM, locals []Value) (Value, error) {
		builderOf(asObject(locals[0]))
		return nil, nil
	})
	t.Register(stringBuilderClass, "<init>", "(Ljava/lang/String;)V", func(vm *VM, locals []Value) (Value, error) {
		s, err := vm.GoString(locals[1])
		if err != nil {
			return nil, err
		}
		builderOf(asObject(locals[0])).WriteString(s)
		return nil, nil
	})
	for _, td := range valueOfDescriptors {
		td := td
		t.Register(stringBuilderClass, "append", "("+string(td)+")Ljava/lang/StringBuilder;", func(vm *VM, locals []Value) (Value, error) {
			self := asObject(locals[0])
			text, err := vm.javaText(td, locals[1])
			if err != nil {
				return nil, err
			}
			builderOf(self).WriteString(text)
			return self, nil
		})
	}
	t.Register(stringBuilderClass, "length", "()I", func(vm *VM, locals []Value) (Value, error) {
		s := builderOf(asObject(locals[0])).String()
		return int32(len(utf16.Encode([]rune(s)))), nil
	})
	t.Register(stringBuilderClass, "toString", "()Ljava/lang/String;", func(vm *VM, locals []Value) (Value, error) {
		return returnString(vm, builderOf(asObject(locals[0])).String())
	})
}
