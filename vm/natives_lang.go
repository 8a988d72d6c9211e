package vm

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
)

// registerBuiltinNatives installs the host side of the bootstrap runtime
// library.
func registerBuiltinNatives(t *NativeTable) {
	registerObjectNatives(t)
	registerSystemNatives(t)
	registerClassNatives(t)
	registerThrowableNatives(t)
	registerIntegerNatives(t)
	registerMathNatives(t)
	registerStringNatives(t)
	registerStringBuilderNatives(t)
	registerPrintStreamNatives(t)
}

// returnString converts a host string result into a guest String.
func returnString(vm *VM, s string) (Value, error) {
	str, err := vm.NewString(s)
	if err != nil {
		return nil, err
	}
	return str, nil
}

// ---------------------------------------------------------------------------
// java/lang/Object
// ---------------------------------------------------------------------------

func registerObjectNatives(t *NativeTable) {
	t.Register(ObjectClass, "hashCode", "()I", func(vm *VM, locals []Value) (Value, error) {
		return asObject(locals[0]).HashCode(), nil
	})
	t.Register(ObjectClass, "getClass", "()Ljava/lang/Class;", func(vm *VM, locals []Value) (Value, error) {
		mirror, err := vm.ClassMirror(asObject(locals[0]).Class)
		if err != nil {
			return nil, err
		}
		return mirror, nil
	})
	t.Register(ObjectClass, "clone", "()Ljava/lang/Object;", func(vm *VM, locals []Value) (Value, error) {
		dup, err := vm.Clone(asObject(locals[0]))
		if err != nil {
			return nil, err
		}
		return dup, nil
	})
	t.Register(ObjectClass, "toString", "()Ljava/lang/String;", func(vm *VM, locals []Value) (Value, error) {
		obj := asObject(locals[0])
		hash, err := vm.Invoke(obj.Class.Name, "hashCode", "()I", obj)
		if err != nil {
			return nil, err
		}
		return returnString(vm, fmt.Sprintf("%s@%x", reflectName(obj.Class.Descriptor), uint32(asInt(hash))))
	})
}

// ---------------------------------------------------------------------------
// java/lang/System
// ---------------------------------------------------------------------------

// System natives are bound through their mangled names.
func registerSystemNatives(t *NativeTable) {
	t.RegisterMangled(MangleNativeName("java/lang/System", "arraycopy"), arraycopy)
	t.RegisterMangled(MangleNativeName("java/lang/System", "currentTimeMillis"), func(vm *VM, locals []Value) (Value, error) {
		return time.Now().UnixMilli(), nil
	})
	t.RegisterMangled(MangleNativeName("java/lang/System", "nanoTime"), func(vm *VM, locals []Value) (Value, error) {
		return int64(time.Since(vm.started)), nil
	})
	t.RegisterMangled(MangleNativeName("java/lang/System", "identityHashCode"), func(vm *VM, locals []Value) (Value, error) {
		obj := asObject(locals[0])
		if obj == nil {
			return int32(0), nil
		}
		return obj.HashCode(), nil
	})
}

// arraycopy implements System.arraycopy(Object, int, Object, int, int).
// Overlapping ranges within one array copy as if through a temporary.
func arraycopy(vm *VM, locals []Value) (Value, error) {
	src, srcPos := asObject(locals[0]), asInt(locals[1])
	dst, dstPos := asObject(locals[2]), asInt(locals[3])
	length := asInt(locals[4])
	if src == nil || dst == nil {
		return nil, vm.throwNew(NullPointerException, "arraycopy of null array")
	}
	if !src.IsArray() || !dst.IsArray() {
		return nil, vm.throwNew(ArrayStoreException, "arraycopy: argument is not an array")
	}
	se, de := src.Class.Descriptor.ComponentType(), dst.Class.Descriptor.ComponentType()
	if (se.IsPrimitive() || de.IsPrimitive()) && se != de {
		return nil, vm.throwNew(ArrayStoreException, fmt.Sprintf("arraycopy: type mismatch: can not copy %s into %s",
			reflectName(src.Class.Descriptor), reflectName(dst.Class.Descriptor)))
	}
	if srcPos < 0 || dstPos < 0 || length < 0 ||
		int64(srcPos)+int64(length) > int64(src.Len()) || int64(dstPos)+int64(length) > int64(dst.Len()) {
		return nil, vm.throwNew(ArrayIndexOutOfBoundsException, fmt.Sprintf(
			"arraycopy: range [%d, %d) -> [%d, %d) out of bounds for lengths %d and %d",
			srcPos, int64(srcPos)+int64(length), dstPos, int64(dstPos)+int64(length), src.Len(), dst.Len()))
	}
	if !de.IsPrimitive() && src.Class != dst.Class {
		// elements before a rejected one stay copied
		for k, v := range slices.Clone(src.Values[srcPos : srcPos+length]) {
			if err := vm.checkArrayStore(de, asObject(v)); err != nil {
				return nil, err
			}
			dst.Values[dstPos+int32(k)] = v
		}
		return nil, nil
	}
	copy(dst.Values[dstPos:dstPos+length], src.Values[srcPos:srcPos+length])
	return nil, nil
}

// ---------------------------------------------------------------------------
// java/lang/Class
// ---------------------------------------------------------------------------

func registerClassNatives(t *NativeTable) {
	t.Register(ClassClass, "isInterface", "()Z", func(vm *VM, locals []Value) (Value, error) {
		c, err := vm.mirroredClass(asObject(locals[0]))
		if err != nil {
			return nil, err
		}
		return Bool(c.IsInterface()), nil
	})
	t.Register(ClassClass, "isArray", "()Z", func(vm *VM, locals []Value) (Value, error) {
		c, err := vm.mirroredClass(asObject(locals[0]))
		if err != nil {
			return nil, err
		}
		return Bool(c.IsArray()), nil
	})
	t.Register(ClassClass, "toString", "()Ljava/lang/String;", func(vm *VM, locals []Value) (Value, error) {
		c, err := vm.mirroredClass(asObject(locals[0]))
		if err != nil {
			return nil, err
		}
		name := reflectName(c.Descriptor)
		switch {
		case c.IsPrimitive():
			return returnString(vm, name)
		case c.IsInterface():
			return returnString(vm, "interface "+name)
		}
		return returnString(vm, "class "+name)
	})
}

// ---------------------------------------------------------------------------
// java/lang/Throwable
// ---------------------------------------------------------------------------

func registerThrowableNatives(t *NativeTable) {
	t.Register(ThrowableClass, "fillInStackTrace", "()Ljava/lang/Throwable;", fillInStackTrace)
	t.Register(ThrowableClass, "printStackTrace", "()V", printStackTrace)
	t.Register(ThrowableClass, "toString", "()Ljava/lang/String;", func(vm *VM, locals []Value) (Value, error) {
		text, err := vm.describeThrowable(asObject(locals[0]))
		if err != nil {
			return nil, err
		}
		return returnString(vm, text)
	})
}

// describeThrowable renders "class: message", or just the class when the
// message is null.
func (vm *VM) describeThrowable(throwable *Object) (string, error) {
	name := throwable.Class.Descriptor.JavaName()
	msg, err := vm.Invoke(throwable.Class.Name, "getMessage", "()Ljava/lang/String;", throwable)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return name, nil
	}
	text, err := vm.GoString(msg)
	if err != nil {
		return "", err
	}
	return name + ": " + text, nil
}

// ---------------------------------------------------------------------------
// java/lang/Integer
// ---------------------------------------------------------------------------

const integerClass = "java/lang/Integer"

func registerIntegerNatives(t *NativeTable) {
	t.Register(integerClass, "parseInt", "(Ljava/lang/String;)I", func(vm *VM, locals []Value) (Value, error) {
		if locals[0] == nil {
			return nil, vm.throwNew(NumberFormatException, "Cannot parse null string: null")
		}
		s, err := vm.GoString(locals[0])
		if err != nil {
			return nil, err
		}
		n, perr := strconv.ParseInt(s, 10, 32)
		if perr != nil {
			return nil, vm.throwNew(NumberFormatException, fmt.Sprintf("For input string: %q", s))
		}
		return int32(n), nil
	})
	t.Register(integerClass, "toString", "(I)Ljava/lang/String;", func(vm *VM, locals []Value) (Value, error) {
		return returnString(vm, strconv.FormatInt(int64(asInt(locals[0])), 10))
	})
}

// ---------------------------------------------------------------------------
// java/lang/Math
// ---------------------------------------------------------------------------

const mathClass = "java/lang/Math"

func registerMathNatives(t *NativeTable) {
	// long and double arguments occupy two locals each
	t.Register(mathClass, "abs", "(I)I", func(vm *VM, locals []Value) (Value, error) {
		x := asInt(locals[0])
		if x < 0 {
			return -x, nil
		}
		return x, nil
	})
	t.Register(mathClass, "abs", "(J)J", func(vm *VM, locals []Value) (Value, error) {
		x := locals[0].(int64)
		if x < 0 {
			return -x, nil
		}
		return x, nil
	})
	t.Register(mathClass, "abs", "(D)D", func(vm *VM, locals []Value) (Value, error) {
		return math.Abs(locals[0].(float64)), nil
	})
	t.Register(mathClass, "max", "(II)I", func(vm *VM, locals []Value) (Value, error) {
		return max(asInt(locals[0]), asInt(locals[1])), nil
	})
	t.Register(mathClass, "min", "(II)I", func(vm *VM, locals []Value) (Value, error) {
		return min(asInt(locals[0]), asInt(locals[1])), nil
	})
	t.Register(mathClass, "max", "(JJ)J", func(vm *VM, locals []Value) (Value, error) {
		return max(locals[0].(int64), locals[2].(int64)), nil
	})
	t.Register(mathClass, "min", "(JJ)J", func(vm *VM, locals []Value) (Value, error) {
		return min(locals[0].(int64), locals[2].(int64)), nil
	})
	t.Register(mathClass, "max", "(DD)D", func(vm *VM, locals []Value) (Value, error) {
		return math.Max(locals[0].(float64), locals[2].(float64)), nil
	})
	t.Register(mathClass, "min", "(DD)D", func(vm *VM, locals []Value) (Value, error) {
		return math.Min(locals[0].(float64), locals[2].(float64)), nil
	})
	t.Register(mathClass, "sqrt", "(D)D", func(vm *VM, locals []Value) (Value, error) {
		return math.Sqrt(locals[0].(float64)), nil
	})
	t.Register(mathClass, "pow", "(DD)D", func(vm *VM, locals []Value) (Value, error) {
		return math.Pow(locals[0].(float64), locals[2].(float64)), nil
	})
}
