package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Frame: one method activation
// ---------------------------------------------------------------------------

// Frame is the execution state of one method activation. The call stack is
// the chain of Caller links; native frames have a nil Stack and use Locals
// as their argument list.
type Frame struct {
	Method *Method
	Stack  []Value
	Locals []Value
	PC     int
	Caller *Frame

	// opPC is the address of the instruction being executed, used for
	// handler lookup, line numbers and branch targets.
	opPC  int
	depth int
}

func newFrame(caller *Frame, m *Method, locals []Value) *Frame {
	f := &Frame{Method: m, Locals: locals, Caller: caller, depth: 1}
	if caller != nil {
		f.depth = caller.depth + 1
	}
	if !m.IsNative() && m.Code != nil {
		f.Stack = make([]Value, 0, m.Code.MaxStack)
	}
	return f
}

// Depth returns the number of frames on the chain, this one included.
func (f *Frame) Depth() int { return f.depth }

// IsNative reports whether the frame belongs to a host-implemented method.
func (f *Frame) IsNative() bool { return f.Method.IsNative() }

// LineNumber returns the source line of the current instruction, or 0.
func (f *Frame) LineNumber() int {
	if f.Method.Code == nil {
		return 0
	}
	return f.Method.Code.LineFor(f.opPC)
}

// String implements the Stringer interface.
func (f *Frame) String() string {
	if f.IsNative() {
		return fmt.Sprintf("%s (native)", f.Method)
	}
	return fmt.Sprintf("%s pc=%d", f.Method, f.opPC)
}

// ---------------------------------------------------------------------------
// Operand stack helpers
// ---------------------------------------------------------------------------

func (f *Frame) push(v Value) {
	f.Stack = append(f.Stack, v)
}

func (f *Frame) pop() Value {
	n := len(f.Stack)
	if n == 0 {
		panic(ErrStackUnderflow)
	}
	v := f.Stack[n-1]
	f.Stack[n-1] = nil
	f.Stack = f.Stack[:n-1]
	return v
}

func (f *Frame) peek() Value {
	if len(f.Stack) == 0 {
		panic(ErrStackUnderflow)
	}
	return f.Stack[len(f.Stack)-1]
}

// popN pops n values and returns them in push order.
func (f *Frame) popN(n int) []Value {
	if len(f.Stack) < n {
		panic(ErrStackUnderflow)
	}
	out := make([]Value, n)
	copy(out, f.Stack[len(f.Stack)-n:])
	for i := len(f.Stack) - n; i < len(f.Stack); i++ {
		f.Stack[i] = nil
	}
	f.Stack = f.Stack[:len(f.Stack)-n]
	return out
}

func (f *Frame) popInt() int32 {
	v := f.pop()
	i, ok := v.(int32)
	if !ok {
		panic(fmt.Errorf("expected int, found %T", v))
	}
	return i
}

func (f *Frame) popLong() int64 {
	v := f.pop()
	i, ok := v.(int64)
	if !ok {
		panic(fmt.Errorf("expected long, found %T", v))
	}
	return i
}

func (f *Frame) popFloat() float32 {
	v := f.pop()
	x, ok := v.(float32)
	if !ok {
		panic(fmt.Errorf("expected float, found %T", v))
	}
	return x
}

func (f *Frame) popDouble() float64 {
	v := f.pop()
	x, ok := v.(float64)
	if !ok {
		panic(fmt.Errorf("expected double, found %T", v))
	}
	return x
}

func (f *Frame) popRef() *Object { return asObject(f.pop()) }

// ---------------------------------------------------------------------------
// Locals and operand decoding
// ---------------------------------------------------------------------------

func (f *Frame) load(slot int) Value {
	if slot < 0 || slot >= len(f.Locals) {
		panic(fmt.Errorf("local %d out of range (%d locals)", slot, len(f.Locals)))
	}
	return f.Locals[slot]
}

// store writes v to slot; wide values fill slot and slot+1 with the same
// value.
func (f *Frame) store(slot int, v Value) {
	n := 1
	if isWideValue(v) {
		n = 2
	}
	if slot < 0 || slot+n > len(f.Locals) {
		panic(fmt.Errorf("local %d out of range (%d locals)", slot, len(f.Locals)))
	}
	f.Locals[slot] = v
	if n == 2 {
		f.Locals[slot+1] = v
	}
}

func (f *Frame) code() []byte { return f.Method.Code.Bytecode }

func (f *Frame) u1() uint8 {
	code := f.code()
	if f.PC >= len(code) {
		panic(fmt.Errorf("truncated operand"))
	}
	b := code[f.PC]
	f.PC++
	return b
}

func (f *Frame) s1() int8 { return int8(f.u1()) }

func (f *Frame) u2() uint16 {
	hi := uint16(f.u1())
	return hi<<8 | uint16(f.u1())
}

func (f *Frame) s2() int16 { return int16(f.u2()) }

func (f *Frame) s4() int32 {
	hi := uint32(f.u2())
	return int32(hi<<16 | uint32(f.u2()))
}
