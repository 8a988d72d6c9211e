package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
)

// ---------------------------------------------------------------------------
// Constant pool operands
// ---------------------------------------------------------------------------

func (f *Frame) malformed(err error) error {
	var mc *MalformedCodeError
	if errors.As(err, &mc) && mc.Method == "" {
		mc.Method = f.Method.String()
		mc.PC = f.opPC
		return mc
	}
	return &MalformedCodeError{Method: f.Method.String(), PC: f.opPC, Cause: err}
}

// memberRef reads a two-byte pool index naming a field or method.
func (f *Frame) memberRef() (MemberRef, error) {
	ref, err := memberRefAt(f.Method.Class.File, f.u2())
	if err != nil {
		return MemberRef{}, f.malformed(err)
	}
	return ref, nil
}

// classRef reads a two-byte pool index naming a class.
func (f *Frame) classRef() (string, error) {
	name, err := f.Method.Class.File.ClassName(f.u2())
	if err != nil {
		return "", f.malformed(err)
	}
	return name, nil
}

// loadConstant pushes the pool entry at index. Strings are materialized
// through String construction and interned; class entries push the
// java/lang/Class mirror.
func (vm *VM) loadConstant(f *Frame, index uint16) error {
	cf := f.Method.Class.File
	k, err := cf.Constant(index)
	if err != nil {
		return f.malformed(err)
	}
	switch k.Tag {
	case classfile.TagInteger:
		f.push(int32(k.Int))
	case classfile.TagFloat:
		f.push(float32(k.Float))
	case classfile.TagLong:
		f.push(k.Int)
	case classfile.TagDouble:
		f.push(k.Float)
	case classfile.TagString:
		s, err := cf.StringValue(index)
		if err != nil {
			return f.malformed(err)
		}
		str, err := vm.InternString(s)
		if err != nil {
			return err
		}
		f.push(str)
	case classfile.TagClass:
		name, err := cf.ClassName(index)
		if err != nil {
			return f.malformed(err)
		}
		c, err := vm.LoadClass(name)
		if err != nil {
			return err
		}
		mirror, err := vm.ClassMirror(c)
		if err != nil {
			return err
		}
		f.push(mirror)
	default:
		return &MalformedCodeError{Method: f.Method.String(), PC: f.opPC,
			Reason: fmt.Sprintf("ldc of unsupported constant tag %d", k.Tag)}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Field access
// ---------------------------------------------------------------------------

func (vm *VM) staticField(f *Frame, op bytecode.Opcode) error {
	ref, err := f.memberRef()
	if err != nil {
		return err
	}
	c, err := vm.LoadClass(ref.Class)
	if err != nil {
		return err
	}
	owner, err := vm.ResolveField(c, ref)
	if err != nil {
		return err
	}
	if op == bytecode.OpGetstatic {
		f.push(owner.Statics.GetField(owner.Name, ref.Name))
		return nil
	}
	owner.Statics.SetField(owner.Name, ref.Name, coerce(TypeDescriptor(ref.Descriptor), f.pop()))
	return nil
}

func (vm *VM) instanceField(f *Frame, op bytecode.Opcode) error {
	ref, err := f.memberRef()
	if err != nil {
		return err
	}
	var value Value
	if op == bytecode.OpPutfield {
		value = f.pop()
	}
	obj := f.popRef()
	if obj == nil {
		return vm.throwNew(NullPointerException, fmt.Sprintf("cannot access field %q of null", ref.Name))
	}
	c, err := vm.LoadClass(ref.Class)
	if err != nil {
		return err
	}
	owner, err := vm.ResolveField(c, ref)
	if err != nil {
		return err
	}
	if op == bytecode.OpGetfield {
		f.push(obj.GetField(owner.Name, ref.Name))
		return nil
	}
	obj.SetField(owner.Name, ref.Name, coerce(TypeDescriptor(ref.Descriptor), value))
	return nil
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// call runs m with args popped from f and pushes a non-void result.
func (vm *VM) call(f *Frame, m *Method, args []Value) error {
	result, err := vm.invoke(f, m, args)
	if err != nil {
		return err
	}
	if m.Type.ReturnsValue() {
		f.push(result)
	}
	return nil
}

func (vm *VM) invokeStatic(f *Frame) error {
	ref, err := f.memberRef()
	if err != nil {
		return err
	}
	c, err := vm.LoadClass(ref.Class)
	if err != nil {
		return err
	}
	m, err := vm.ResolveMethod(c, ref)
	if err != nil {
		return err
	}
	if !m.IsStatic() {
		return &MalformedCodeError{Method: f.Method.String(), PC: f.opPC, Reason: "invokestatic of instance method " + m.String()}
	}
	return vm.call(f, m, f.popN(len(m.Type.Args)))
}

// invokeVirtual serves invokevirtual and invokeinterface: the method is
// looked up from the receiver's runtime class.
func (vm *VM) invokeVirtual(f *Frame) error {
	op := bytecode.Opcode(f.code()[f.opPC])
	ref, err := f.memberRef()
	if err != nil {
		return err
	}
	if op == bytecode.OpInvokeinterface {
		f.u1()
		f.u1()
	}
	args, err := f.popCall(ref)
	if err != nil {
		return err
	}
	recv := asObject(args[0])
	if recv == nil {
		return vm.throwNew(NullPointerException, fmt.Sprintf("cannot invoke %s on null", ref))
	}
	m, err := vm.ResolveMethod(recv.Class, ref)
	if err != nil {
		return err
	}
	return vm.call(f, m, args)
}

func (vm *VM) invokeSpecial(f *Frame) error {
	ref, err := f.memberRef()
	if err != nil {
		return err
	}
	args, err := f.popCall(ref)
	if err != nil {
		return err
	}
	if asObject(args[0]) == nil {
		return vm.throwNew(NullPointerException, fmt.Sprintf("cannot invoke %s on null", ref))
	}
	m, err := vm.ResolveSpecial(f.Method.Class, ref)
	if err != nil {
		return err
	}
	return vm.call(f, m, args)
}

// popCall pops the receiver and arguments of an instance call.
func (f *Frame) popCall(ref MemberRef) ([]Value, error) {
	md, err := ParseMethod(ref.Descriptor)
	if err != nil {
		return nil, f.malformed(err)
	}
	return f.popN(len(md.Args) + 1), nil
}

// ---------------------------------------------------------------------------
// Object and array creation
// ---------------------------------------------------------------------------

func (vm *VM) newInstance(f *Frame) error {
	name, err := f.classRef()
	if err != nil {
		return err
	}
	c, err := vm.LoadClass(name)
	if err != nil {
		return err
	}
	if c.IsArray() || c.IsInterface() || c.Flags.IsAbstract() {
		return &MalformedCodeError{Method: f.Method.String(), PC: f.opPC, Reason: "cannot instantiate " + name}
	}
	f.push(vm.NewObject(c))
	return nil
}

func (vm *VM) newPrimitiveArray(f *Frame) error {
	code := f.u1()
	elem, ok := bytecode.ArrayTypeDescriptor(code)
	if !ok {
		return &MalformedCodeError{Method: f.Method.String(), PC: f.opPC, Reason: fmt.Sprintf("bad newarray type %d", code)}
	}
	c, err := vm.ClassFor(TypeDescriptor(elem).ArrayOf())
	if err != nil {
		return err
	}
	arr, err := vm.allocArray(c, []int32{f.popInt()})
	if err != nil {
		return err
	}
	f.push(arr)
	return nil
}

func (vm *VM) newReferenceArray(f *Frame) error {
	name, err := f.classRef()
	if err != nil {
		return err
	}
	c, err := vm.ClassFor(FromInternal(name).ArrayOf())
	if err != nil {
		return err
	}
	arr, err := vm.allocArray(c, []int32{f.popInt()})
	if err != nil {
		return err
	}
	f.push(arr)
	return nil
}

func (vm *VM) newMultiArray(f *Frame) error {
	name, err := f.classRef()
	if err != nil {
		return err
	}
	dims := int(f.u1())
	c, err := vm.LoadClass(name)
	if err != nil {
		return err
	}
	if dims < 1 || dims > c.Descriptor.Dimensions() {
		return &MalformedCodeError{Method: f.Method.String(), PC: f.opPC,
			Reason: fmt.Sprintf("multianewarray of %s with %d dimensions", name, dims)}
	}
	counts := make([]int32, dims)
	for i, v := range f.popN(dims) {
		counts[i] = asInt(v)
	}
	arr, err := vm.allocArray(c, counts)
	if err != nil {
		return err
	}
	f.push(arr)
	return nil
}

// ---------------------------------------------------------------------------
// Array elements
// ---------------------------------------------------------------------------

// arrayIndex pops an index and an array reference and checks both.
func (vm *VM) arrayIndex(f *Frame) (*Object, int, error) {
	index := f.popInt()
	arr := f.popRef()
	if arr == nil {
		return nil, 0, vm.throwNew(NullPointerException, "cannot access element of null array")
	}
	if !arr.IsArray() {
		panic(fmt.Errorf("expected array, found %s", arr))
	}
	if index < 0 || int(index) >= arr.Len() {
		return nil, 0, vm.throwNew(ArrayIndexOutOfBoundsException,
			fmt.Sprintf("Index %d out of bounds for length %d", index, arr.Len()))
	}
	return arr, int(index), nil
}

func (vm *VM) arrayLoad(f *Frame) error {
	arr, i, err := vm.arrayIndex(f)
	if err != nil {
		return err
	}
	f.push(arr.Values[i])
	return nil
}

func (vm *VM) arrayStore(f *Frame) error {
	value := f.pop()
	arr, i, err := vm.arrayIndex(f)
	if err != nil {
		return err
	}
	component := arr.Class.Descriptor.ComponentType()
	if !component.IsPrimitive() {
		if err := vm.checkArrayStore(component, asObject(value)); err != nil {
			return err
		}
	}
	arr.Values[i] = coerce(component, value)
	return nil
}

// checkArrayStore throws ArrayStoreException unless obj may be stored in an
// array with the given reference component type.
func (vm *VM) checkArrayStore(component TypeDescriptor, obj *Object) error {
	if obj == nil {
		return nil
	}
	target, err := vm.link(component)
	if err != nil {
		return err
	}
	ok, err := vm.IsAssignable(obj.Class, target)
	if err != nil || ok {
		return err
	}
	return vm.throwNew(ArrayStoreException, obj.Class.Descriptor.JavaName())
}

// ---------------------------------------------------------------------------
// Type checks
// ---------------------------------------------------------------------------

func (vm *VM) checkcast(f *Frame) error {
	name, err := f.classRef()
	if err != nil {
		return err
	}
	obj := asObject(f.peek())
	if obj == nil {
		return nil
	}
	ok, err := vm.instanceOf(obj, name)
	if err != nil {
		return err
	}
	if !ok {
		target := FromInternal(name)
		return vm.throwNew(ClassCastException, fmt.Sprintf("class %s cannot be cast to class %s",
			reflectName(obj.Class.Descriptor), reflectName(target)))
	}
	return nil
}

func (vm *VM) instanceofOp(f *Frame) error {
	name, err := f.classRef()
	if err != nil {
		return err
	}
	obj := f.popRef()
	if obj == nil {
		f.push(int32(0))
		return nil
	}
	ok, err := vm.instanceOf(obj, name)
	if err != nil {
		return err
	}
	f.push(Bool(ok))
	return nil
}
