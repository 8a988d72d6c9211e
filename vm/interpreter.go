package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/javelin/bytecode"
)

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// Invoke resolves name/desc starting at the named class and runs it. For
// instance methods args[0] is the receiver.
func (vm *VM) Invoke(className, name, desc string, args ...Value) (Value, error) {
	c, err := vm.LoadClass(className)
	if err != nil {
		return nil, err
	}
	m, err := vm.ResolveMethod(c, MemberRef{Class: className, Name: name, Descriptor: desc})
	if err != nil {
		return nil, err
	}
	return vm.InvokeMethod(m, args...)
}

// InvokeMethod runs m on top of the current frame. For instance methods
// args[0] is the receiver; the remaining args follow the declared order.
// The call may be made from host code or from inside a native method.
func (vm *VM) InvokeMethod(m *Method, args ...Value) (Value, error) {
	return vm.invoke(vm.current, m, args)
}

func (vm *VM) invoke(caller *Frame, m *Method, args []Value) (Value, error) {
	if m.Flags.IsAbstract() {
		return nil, &UnresolvedSymbolError{Kind: "method", Symbol: m.String(), Cause: errors.New("abstract method invoked")}
	}
	depth := 1
	if caller != nil {
		depth = caller.depth + 1
	}
	if depth > vm.MaxFrameDepth && !vm.handlingOverflow {
		return nil, vm.stackOverflow()
	}

	locals, err := layoutLocals(m, args)
	if err != nil {
		return nil, err
	}
	f := newFrame(caller, m, locals)

	prev := vm.current
	vm.current = f
	defer func() { vm.current = prev }()

	if vm.log.AllowLevel(commonlog.Debug) {
		vm.log.Debugf("enter %s depth=%d", m, f.depth)
	}
	if vm.Profiler != nil {
		vm.Profiler.RecordInvocation(m)
	}
	if m.IsNative() {
		return vm.invokeNative(f)
	}
	if m.Code == nil || len(m.Code.Bytecode) == 0 {
		return nil, &MalformedCodeError{Method: m.String(), Reason: "method has no code"}
	}
	return vm.execute(f)
}

// layoutLocals places the receiver (if any) in slot 0, then the arguments
// in declared order, wide values taking two slots.
func layoutLocals(m *Method, args []Value) ([]Value, error) {
	want := len(m.Type.Args)
	size := m.Type.ArgSlots()
	if !m.IsStatic() {
		want++
		size++
	}
	if len(args) != want {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", m, want, len(args))
	}
	if m.Code != nil && int(m.Code.MaxLocals) > size {
		size = int(m.Code.MaxLocals)
	}
	locals := make([]Value, size)
	slot, i := 0, 0
	if !m.IsStatic() {
		locals[0] = args[0]
		slot, i = 1, 1
	}
	for _, t := range m.Type.Args {
		v := coerce(t, args[i])
		i++
		locals[slot] = v
		slot++
		if t.IsWide() {
			locals[slot] = v
			slot++
		}
	}
	return locals, nil
}

// stackOverflow builds the guest StackOverflowError with the depth guard
// lifted so its constructor can run.
func (vm *VM) stackOverflow() error {
	vm.handlingOverflow = true
	defer func() { vm.handlingOverflow = false }()
	vm.log.Warningf("frame depth limit %d reached", vm.MaxFrameDepth)
	return vm.throwNew(StackOverflowError, "")
}

// ---------------------------------------------------------------------------
// Program entry
// ---------------------------------------------------------------------------

// RunMain loads className (dotted or internal form) and runs its
// main(String[]) method. An uncaught guest exception is reported through
// its printStackTrace() method and returned as a *GuestException.
func (vm *VM) RunMain(className string, args []string) error {
	err := vm.runMain(strings.ReplaceAll(className, ".", "/"), args)
	var gx *GuestException
	if errors.As(err, &gx) {
		vm.log.Errorf("uncaught %s", gx)
		if _, perr := vm.Invoke(gx.ClassName(), "printStackTrace", "()V", gx.Object); perr != nil {
			vm.log.Errorf("printStackTrace failed: %s", perr)
		}
		return gx
	}
	return err
}

func (vm *VM) runMain(name string, args []string) error {
	c, err := vm.LoadClass(name)
	if err != nil {
		return err
	}
	m := c.DeclaredMethod("main", "([Ljava/lang/String;)V")
	if m == nil || !m.IsStatic() {
		return &UnresolvedSymbolError{Kind: "method", Symbol: name + ".main([Ljava/lang/String;)V"}
	}
	argv, err := vm.StringArray(args)
	if err != nil {
		return err
	}
	vm.log.Infof("running %s.main with %d arguments", name, len(args))
	_, err = vm.InvokeMethod(m, argv)
	return err
}

// ---------------------------------------------------------------------------
// Execution loop
// ---------------------------------------------------------------------------

// execute runs f until a return instruction or an exception no handler in
// f covers. Operand stack misuse panics inside the instruction helpers and
// is reported here as malformed code.
func (vm *VM) execute(f *Frame) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			result, err = nil, &MalformedCodeError{Method: f.Method.String(), PC: f.opPC, Cause: cause}
		}
	}()

	code := f.code()
	for {
		if f.PC >= len(code) {
			return nil, &MalformedCodeError{Method: f.Method.String(), PC: f.PC, Reason: "execution ran past end of code"}
		}
		f.opPC = f.PC
		op := bytecode.Opcode(code[f.PC])
		f.PC++

		ret, done, err := vm.step(f, op)
		if err != nil {
			var gx *GuestException
			if !errors.As(err, &gx) {
				return nil, err
			}
			caught, herr := vm.handle(f, gx)
			if herr != nil {
				return nil, herr
			}
			if !caught {
				return nil, gx
			}
			continue
		}
		if done {
			return ret, nil
		}
	}
}

// handle looks for the first handler of f covering the faulting
// instruction whose catch type accepts gx. On a match the operand stack is
// replaced by the exception object and control moves to the handler.
func (vm *VM) handle(f *Frame, gx *GuestException) (bool, error) {
	for _, h := range f.Method.Code.Handlers {
		if !h.Covers(f.opPC) {
			continue
		}
		if h.CatchType != "" {
			catch, err := vm.LoadClass(h.CatchType)
			if err != nil {
				return false, err
			}
			ok, err := vm.IsAssignable(gx.Object.Class, catch)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
		}
		vm.log.Debugf("%s at pc %d caught by handler at %d", gx, f.opPC, h.HandlerPC)
		for i := range f.Stack {
			f.Stack[i] = nil
		}
		f.Stack = append(f.Stack[:0], gx.Object)
		f.PC = int(h.HandlerPC)
		return true, nil
	}
	return false, nil
}

// step executes one instruction. done is set by the return family.
func (vm *VM) step(f *Frame, op bytecode.Opcode) (ret Value, done bool, err error) {
	switch op {

	// Constants

	case bytecode.OpNop:
	case bytecode.OpAconstNull:
		f.push(nil)
	case bytecode.OpIconstM1, bytecode.OpIconst0, bytecode.OpIconst1, bytecode.OpIconst2,
		bytecode.OpIconst3, bytecode.OpIconst4, bytecode.OpIconst5:
		f.push(int32(op) - int32(bytecode.OpIconst0))
	case bytecode.OpLconst0, bytecode.OpLconst1:
		f.push(int64(op - bytecode.OpLconst0))
	case bytecode.OpFconst0, bytecode.OpFconst1, bytecode.OpFconst2:
		f.push(float32(op - bytecode.OpFconst0))
	case bytecode.OpDconst0, bytecode.OpDconst1:
		f.push(float64(op - bytecode.OpDconst0))
	case bytecode.OpBipush:
		f.push(int32(f.s1()))
	case bytecode.OpSipush:
		f.push(int32(f.s2()))
	case bytecode.OpLdc:
		err = vm.loadConstant(f, uint16(f.u1()))
	case bytecode.OpLdcW, bytecode.OpLdc2W:
		err = vm.loadConstant(f, f.u2())

	// Loads and stores

	case bytecode.OpIload, bytecode.OpLload, bytecode.OpFload, bytecode.OpDload, bytecode.OpAload:
		f.push(f.load(int(f.u1())))
	case bytecode.OpIload0, bytecode.OpIload1, bytecode.OpIload2, bytecode.OpIload3,
		bytecode.OpLload0, bytecode.OpLload1, bytecode.OpLload2, bytecode.OpLload3,
		bytecode.OpFload0, bytecode.OpFload1, bytecode.OpFload2, bytecode.OpFload3,
		bytecode.OpDload0, bytecode.OpDload1, bytecode.OpDload2, bytecode.OpDload3,
		bytecode.OpAload0, bytecode.OpAload1, bytecode.OpAload2, bytecode.OpAload3:
		f.push(f.load(int(op-bytecode.OpIload0) % 4))
	case bytecode.OpIstore, bytecode.OpLstore, bytecode.OpFstore, bytecode.OpDstore, bytecode.OpAstore:
		slot := int(f.u1())
		f.store(slot, f.pop())
	case bytecode.OpIstore0, bytecode.OpIstore1, bytecode.OpIstore2, bytecode.OpIstore3,
		bytecode.OpLstore0, bytecode.OpLstore1, bytecode.OpLstore2, bytecode.OpLstore3,
		bytecode.OpFstore0, bytecode.OpFstore1, bytecode.OpFstore2, bytecode.OpFstore3,
		bytecode.OpDstore0, bytecode.OpDstore1, bytecode.OpDstore2, bytecode.OpDstore3,
		bytecode.OpAstore0, bytecode.OpAstore1, bytecode.OpAstore2, bytecode.OpAstore3:
		f.store(int(op-bytecode.OpIstore0)%4, f.pop())
	case bytecode.OpIaload, bytecode.OpLaload, bytecode.OpFaload, bytecode.OpDaload,
		bytecode.OpAaload, bytecode.OpBaload, bytecode.OpCaload, bytecode.OpSaload:
		err = vm.arrayLoad(f)
	case bytecode.OpIastore, bytecode.OpLastore, bytecode.OpFastore, bytecode.OpDastore,
		bytecode.OpAastore, bytecode.OpBastore, bytecode.OpCastore, bytecode.OpSastore:
		err = vm.arrayStore(f)
	case bytecode.OpWide:
		wide(f)
	case bytecode.OpIinc:
		slot := int(f.u1())
		delta := int32(f.s1())
		f.store(slot, asInt(f.load(slot))+delta)

	// Stack

	case bytecode.OpPop, bytecode.OpPop2, bytecode.OpDup, bytecode.OpDupX1, bytecode.OpDupX2,
		bytecode.OpDup2, bytecode.OpDup2X1, bytecode.OpDup2X2, bytecode.OpSwap:
		stackOp(f, op)

	// Arithmetic, conversions and comparisons

	case bytecode.OpIadd, bytecode.OpIsub, bytecode.OpImul, bytecode.OpIdiv, bytecode.OpIrem,
		bytecode.OpIshl, bytecode.OpIshr, bytecode.OpIushr, bytecode.OpIand, bytecode.OpIor, bytecode.OpIxor:
		err = vm.intOp(f, op)
	case bytecode.OpLadd, bytecode.OpLsub, bytecode.OpLmul, bytecode.OpLdiv, bytecode.OpLrem,
		bytecode.OpLshl, bytecode.OpLshr, bytecode.OpLushr, bytecode.OpLand, bytecode.OpLor, bytecode.OpLxor:
		err = vm.longOp(f, op)
	case bytecode.OpFadd, bytecode.OpFsub, bytecode.OpFmul, bytecode.OpFdiv, bytecode.OpFrem:
		floatOp(f, op)
	case bytecode.OpDadd, bytecode.OpDsub, bytecode.OpDmul, bytecode.OpDdiv, bytecode.OpDrem:
		doubleOp(f, op)
	case bytecode.OpIneg:
		f.push(-f.popInt())
	case bytecode.OpLneg:
		f.push(-f.popLong())
	case bytecode.OpFneg:
		f.push(-f.popFloat())
	case bytecode.OpDneg:
		f.push(-f.popDouble())
	case bytecode.OpI2l, bytecode.OpI2f, bytecode.OpI2d, bytecode.OpL2i, bytecode.OpL2f, bytecode.OpL2d,
		bytecode.OpF2i, bytecode.OpF2l, bytecode.OpF2d, bytecode.OpD2i, bytecode.OpD2l, bytecode.OpD2f,
		bytecode.OpI2b, bytecode.OpI2c, bytecode.OpI2s:
		convert(f, op)
	case bytecode.OpLcmp, bytecode.OpFcmpl, bytecode.OpFcmpg, bytecode.OpDcmpl, bytecode.OpDcmpg:
		compare(f, op)

	// Control transfer

	case bytecode.OpIfeq, bytecode.OpIfne, bytecode.OpIflt, bytecode.OpIfge, bytecode.OpIfgt, bytecode.OpIfle:
		offset := f.s2()
		if intCondition(op-bytecode.OpIfeq, f.popInt(), 0) {
			f.PC = f.opPC + int(offset)
		}
	case bytecode.OpIfIcmpeq, bytecode.OpIfIcmpne, bytecode.OpIfIcmplt,
		bytecode.OpIfIcmpge, bytecode.OpIfIcmpgt, bytecode.OpIfIcmple:
		offset := f.s2()
		b := f.popInt()
		a := f.popInt()
		if intCondition(op-bytecode.OpIfIcmpeq, a, b) {
			f.PC = f.opPC + int(offset)
		}
	case bytecode.OpIfAcmpeq, bytecode.OpIfAcmpne:
		offset := f.s2()
		b := f.popRef()
		a := f.popRef()
		if (a == b) == (op == bytecode.OpIfAcmpeq) {
			f.PC = f.opPC + int(offset)
		}
	case bytecode.OpIfnull, bytecode.OpIfnonnull:
		offset := f.s2()
		if (f.popRef() == nil) == (op == bytecode.OpIfnull) {
			f.PC = f.opPC + int(offset)
		}
	case bytecode.OpGoto:
		f.PC = f.opPC + int(f.s2())
	case bytecode.OpGotoW:
		f.PC = f.opPC + int(f.s4())
	case bytecode.OpTableswitch:
		tableswitch(f)
	case bytecode.OpLookupswitch:
		lookupswitch(f)

	// Returns

	case bytecode.OpIreturn, bytecode.OpLreturn, bytecode.OpFreturn, bytecode.OpDreturn, bytecode.OpAreturn:
		return f.pop(), true, nil
	case bytecode.OpReturn:
		return nil, true, nil

	// Fields and invocation

	case bytecode.OpGetstatic, bytecode.OpPutstatic:
		err = vm.staticField(f, op)
	case bytecode.OpGetfield, bytecode.OpPutfield:
		err = vm.instanceField(f, op)
	case bytecode.OpInvokestatic:
		err = vm.invokeStatic(f)
	case bytecode.OpInvokevirtual:
		err = vm.invokeVirtual(f)
	case bytecode.OpInvokeinterface:
		err = vm.invokeVirtual(f)
	case bytecode.OpInvokespecial:
		err = vm.invokeSpecial(f)

	// Objects and arrays

	case bytecode.OpNew:
		err = vm.newInstance(f)
	case bytecode.OpNewarray:
		err = vm.newPrimitiveArray(f)
	case bytecode.OpAnewarray:
		err = vm.newReferenceArray(f)
	case bytecode.OpMultianewarray:
		err = vm.newMultiArray(f)
	case bytecode.OpArraylength:
		arr := f.popRef()
		if arr == nil {
			return nil, false, vm.throwNew(NullPointerException, "cannot read the array length of null")
		}
		f.push(int32(arr.Len()))
	case bytecode.OpAthrow:
		obj := f.popRef()
		if obj == nil {
			return nil, false, vm.throwNew(NullPointerException, "cannot throw null")
		}
		return nil, false, &GuestException{Object: obj}
	case bytecode.OpCheckcast:
		err = vm.checkcast(f)
	case bytecode.OpInstanceof:
		err = vm.instanceofOp(f)
	case bytecode.OpMonitorenter, bytecode.OpMonitorexit:
		if f.popRef() == nil {
			return nil, false, vm.throwNew(NullPointerException, "cannot synchronize on null")
		}

	default:
		return nil, false, &MalformedCodeError{Method: f.Method.String(), PC: f.opPC,
			Reason: fmt.Sprintf("unsupported instruction %s", op)}
	}
	return nil, false, err
}

// wide executes the wide-prefixed form of a local variable instruction.
func wide(f *Frame) {
	op := bytecode.Opcode(f.u1())
	slot := int(f.u2())
	switch op {
	case bytecode.OpIload, bytecode.OpLload, bytecode.OpFload, bytecode.OpDload, bytecode.OpAload:
		f.push(f.load(slot))
	case bytecode.OpIstore, bytecode.OpLstore, bytecode.OpFstore, bytecode.OpDstore, bytecode.OpAstore:
		f.store(slot, f.pop())
	case bytecode.OpIinc:
		delta := int32(f.s2())
		f.store(slot, asInt(f.load(slot))+delta)
	default:
		panic(fmt.Errorf("wide cannot modify %s", op))
	}
}

func asInt(v Value) int32 {
	i, ok := v.(int32)
	if !ok {
		panic(fmt.Errorf("expected int, found %T", v))
	}
	return i
}

// stackOp implements the category-aware stack manipulation instructions.
func stackOp(f *Frame, op bytecode.Opcode) {
	switch op {
	case bytecode.OpPop:
		f.pop()
	case bytecode.OpPop2:
		if !isWideValue(f.pop()) {
			f.pop()
		}
	case bytecode.OpDup:
		f.push(f.peek())
	case bytecode.OpDupX1:
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)
		f.push(v1)
	case bytecode.OpDupX2:
		v1, v2 := f.pop(), f.pop()
		if isWideValue(v2) {
			pushAll(f, v1, v2, v1)
			return
		}
		v3 := f.pop()
		pushAll(f, v1, v3, v2, v1)
	case bytecode.OpDup2:
		v1 := f.pop()
		if isWideValue(v1) {
			pushAll(f, v1, v1)
			return
		}
		v2 := f.pop()
		pushAll(f, v2, v1, v2, v1)
	case bytecode.OpDup2X1:
		v1 := f.pop()
		if isWideValue(v1) {
			v2 := f.pop()
			pushAll(f, v1, v2, v1)
			return
		}
		v2, v3 := f.pop(), f.pop()
		pushAll(f, v2, v1, v3, v2, v1)
	case bytecode.OpDup2X2:
		v1 := f.pop()
		if isWideValue(v1) {
			v2 := f.pop()
			if isWideValue(v2) {
				pushAll(f, v1, v2, v1)
				return
			}
			v3 := f.pop()
			pushAll(f, v1, v3, v2, v1)
			return
		}
		v2, v3 := f.pop(), f.pop()
		if isWideValue(v3) {
			pushAll(f, v2, v1, v3, v2, v1)
			return
		}
		v4 := f.pop()
		pushAll(f, v2, v1, v4, v3, v2, v1)
	case bytecode.OpSwap:
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)
	}
}

func pushAll(f *Frame, values ...Value) {
	for _, v := range values {
		f.push(v)
	}
}

// intCondition evaluates the comparison selected by cond, the offset of
// the opcode within its eq/ne/lt/ge/gt/le group.
func intCondition(cond bytecode.Opcode, a, b int32) bool {
	switch cond {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	default:
		return a <= b
	}
}

// align skips the padding that puts switch operands on a four-byte
// boundary from the start of the method's code.
func align(f *Frame) {
	for f.PC%4 != 0 {
		f.PC++
	}
}

func tableswitch(f *Frame) {
	align(f)
	def := f.s4()
	low := f.s4()
	high := f.s4()
	if high < low {
		panic(fmt.Errorf("tableswitch high %d below low %d", high, low))
	}
	key := f.popInt()
	if key < low || key > high {
		f.PC = f.opPC + int(def)
		return
	}
	f.PC += 4 * int(key-low)
	f.PC = f.opPC + int(f.s4())
}

func lookupswitch(f *Frame) {
	align(f)
	def := f.s4()
	npairs := f.s4()
	if npairs < 0 {
		panic(fmt.Errorf("lookupswitch with %d pairs", npairs))
	}
	key := f.popInt()
	for i := int32(0); i < npairs; i++ {
		match := f.s4()
		offset := f.s4()
		if match == key {
			f.PC = f.opPC + int(offset)
			return
		}
	}
	f.PC = f.opPC + int(def)
}
