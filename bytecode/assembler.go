package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/javelin/classfile"
)

// ---------------------------------------------------------------------------
// Assembler: helper for constructing method bodies
// ---------------------------------------------------------------------------

// Assembler builds the Code attribute of a single method. When created with
// a classfile.Builder, the symbolic helpers (Invoke, Field, LoadString, ...)
// intern their constant pool entries through it.
type Assembler struct {
	pool     *classfile.Builder
	bytes    []byte
	handlers []pendingHandler
	lines    []classfile.LineNumber
}

// NewAssembler creates an assembler. pool may be nil when only raw
// instructions are emitted.
func NewAssembler(pool *classfile.Builder) *Assembler {
	return &Assembler{pool: pool, bytes: make([]byte, 0, 64)}
}

// Bytes returns the bytecode emitted so far.
func (a *Assembler) Bytes() []byte { return a.bytes }

// Len returns the current length, which is also the pc of the next
// instruction.
func (a *Assembler) Len() int { return len(a.bytes) }

// Emit appends an opcode with no operands.
func (a *Assembler) Emit(ops ...Opcode) *Assembler {
	for _, op := range ops {
		a.bytes = append(a.bytes, byte(op))
	}
	return a
}

// EmitRaw appends raw bytes.
func (a *Assembler) EmitRaw(data ...byte) *Assembler {
	a.bytes = append(a.bytes, data...)
	return a
}

// EmitU1 appends an opcode with a one-byte operand.
func (a *Assembler) EmitU1(op Opcode, operand uint8) *Assembler {
	a.bytes = append(a.bytes, byte(op), operand)
	return a
}

// EmitU2 appends an opcode with a big-endian 16-bit operand.
func (a *Assembler) EmitU2(op Opcode, operand uint16) *Assembler {
	a.bytes = append(a.bytes, byte(op), byte(operand>>8), byte(operand))
	return a
}

func (a *Assembler) u4(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	a.bytes = append(a.bytes, buf[:]...)
}

// PushInt pushes an int constant using the shortest encoding.
func (a *Assembler) PushInt(v int32) *Assembler {
	switch {
	case v >= -1 && v <= 5:
		return a.Emit(OpIconst0 + Opcode(v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return a.EmitU1(OpBipush, uint8(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return a.EmitU2(OpSipush, uint16(int16(v)))
	}
	return a.ldc(a.mustPool().IntConst(v))
}

// PushLong pushes a long constant.
func (a *Assembler) PushLong(v int64) *Assembler {
	if v == 0 || v == 1 {
		return a.Emit(OpLconst0 + Opcode(v))
	}
	return a.EmitU2(OpLdc2W, a.mustPool().LongConst(v))
}

// PushDouble pushes a double constant.
func (a *Assembler) PushDouble(v float64) *Assembler {
	if v == 0 && !math.Signbit(v) {
		return a.Emit(OpDconst0)
	}
	if v == 1 {
		return a.Emit(OpDconst1)
	}
	return a.EmitU2(OpLdc2W, a.mustPool().DoubleConst(v))
}

// LoadString pushes a string literal.
func (a *Assembler) LoadString(s string) *Assembler {
	return a.ldc(a.mustPool().StringConst(s))
}

// LoadClass pushes the mirror of a class.
func (a *Assembler) LoadClass(name string) *Assembler {
	return a.ldc(a.mustPool().ClassRef(name))
}

func (a *Assembler) ldc(index uint16) *Assembler {
	if index <= math.MaxUint8 {
		return a.EmitU1(OpLdc, uint8(index))
	}
	return a.EmitU2(OpLdcW, index)
}

// Load emits a local variable load. base is one of OpIload, OpLload, OpFload,
// OpDload or OpAload; slots 0-3 use the compact forms.
func (a *Assembler) Load(base Opcode, slot int) *Assembler {
	return a.local(base, OpIload0+Opcode(int(base-OpIload)*4), slot)
}

// Store emits a local variable store. base is one of OpIstore, OpLstore,
// OpFstore, OpDstore or OpAstore.
func (a *Assembler) Store(base Opcode, slot int) *Assembler {
	return a.local(base, OpIstore0+Opcode(int(base-OpIstore)*4), slot)
}

func (a *Assembler) local(base, compact Opcode, slot int) *Assembler {
	switch {
	case slot < 4:
		return a.Emit(compact + Opcode(slot))
	case slot <= math.MaxUint8:
		return a.EmitU1(base, uint8(slot))
	}
	a.bytes = append(a.bytes, byte(OpWide), byte(base), byte(slot>>8), byte(slot))
	return a
}

// Iinc increments an int local by delta.
func (a *Assembler) Iinc(slot int, delta int) *Assembler {
	if slot <= math.MaxUint8 && delta >= math.MinInt8 && delta <= math.MaxInt8 {
		a.bytes = append(a.bytes, byte(OpIinc), byte(slot), byte(int8(delta)))
		return a
	}
	a.bytes = append(a.bytes, byte(OpWide), byte(OpIinc), byte(slot>>8), byte(slot),
		byte(uint16(int16(delta))>>8), byte(int16(delta)))
	return a
}

// Invoke emits invokevirtual, invokespecial or invokestatic against a
// Methodref, or invokeinterface against an InterfaceMethodref.
func (a *Assembler) Invoke(op Opcode, owner, name, descriptor string) *Assembler {
	p := a.mustPool()
	if op == OpInvokeinterface {
		idx := p.InterfaceMethodRef(owner, name, descriptor)
		a.EmitU2(op, idx)
		// count operand is informational; the engine derives it from the descriptor
		a.bytes = append(a.bytes, 1, 0)
		return a
	}
	return a.EmitU2(op, p.MethodRef(owner, name, descriptor))
}

// Field emits getfield, putfield, getstatic or putstatic.
func (a *Assembler) Field(op Opcode, owner, name, descriptor string) *Assembler {
	return a.EmitU2(op, a.mustPool().FieldRef(owner, name, descriptor))
}

// TypeOp emits new, anewarray, checkcast or instanceof for a class name.
func (a *Assembler) TypeOp(op Opcode, class string) *Assembler {
	return a.EmitU2(op, a.mustPool().ClassRef(class))
}

// Multianewarray allocates a multi-dimensional array of the given array
// descriptor, consuming dims counts.
func (a *Assembler) Multianewarray(descriptor string, dims uint8) *Assembler {
	a.EmitU2(OpMultianewarray, a.mustPool().ClassRef(descriptor))
	a.bytes = append(a.bytes, dims)
	return a
}

// Line records that instructions from the current pc on belong to line.
func (a *Assembler) Line(line int) *Assembler {
	a.lines = append(a.lines, classfile.LineNumber{StartPC: uint16(len(a.bytes)), Line: uint16(line)})
	return a
}

func (a *Assembler) mustPool() *classfile.Builder {
	if a.pool == nil {
		panic("bytecode: assembler has no constant pool")
	}
	return a.pool
}

// ---------------------------------------------------------------------------
// Label management for branches
// ---------------------------------------------------------------------------

// Label is a branch target, possibly referenced before it is marked.
type Label struct {
	resolved bool
	position int
	refs     []labelRef
}

type labelRef struct {
	at   int // offset of the operand to patch
	base int // address of the branching instruction
	wide bool
}

// NewLabel creates an unresolved label.
func (a *Assembler) NewLabel() *Label {
	return &Label{refs: make([]labelRef, 0, 2)}
}

// Mark resolves a label to the current position.
func (a *Assembler) Mark(label *Label) *Assembler {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(a.bytes)
	for _, ref := range label.refs {
		a.patch(ref, label.position)
	}
	label.refs = nil
	return a
}

func (a *Assembler) patch(ref labelRef, target int) {
	offset := target - ref.base
	if ref.wide {
		binary.BigEndian.PutUint32(a.bytes[ref.at:], uint32(int32(offset)))
		return
	}
	if offset < math.MinInt16 || offset > math.MaxInt16 {
		panic(fmt.Sprintf("branch offset %d out of range", offset))
	}
	binary.BigEndian.PutUint16(a.bytes[ref.at:], uint16(int16(offset)))
}

func (a *Assembler) reference(label *Label, base int, wide bool) {
	ref := labelRef{at: len(a.bytes), base: base, wide: wide}
	if wide {
		a.bytes = append(a.bytes, 0, 0, 0, 0)
	} else {
		a.bytes = append(a.bytes, 0, 0)
	}
	if label.resolved {
		a.patch(ref, label.position)
	} else {
		label.refs = append(label.refs, ref)
	}
}

// EmitJump emits a branch instruction targeting label. goto_w and jsr_w
// take a 32-bit offset; all other branches take 16 bits.
func (a *Assembler) EmitJump(op Opcode, label *Label) *Assembler {
	base := len(a.bytes)
	a.bytes = append(a.bytes, byte(op))
	a.reference(label, base, op == OpGotoW || op == OpJsrW)
	return a
}

// Goto emits an unconditional branch.
func (a *Assembler) Goto(label *Label) *Assembler { return a.EmitJump(OpGoto, label) }

func (a *Assembler) pad() {
	for len(a.bytes)%4 != 0 {
		a.bytes = append(a.bytes, 0)
	}
}

// Tableswitch emits a tableswitch over [low, low+len(targets)-1].
func (a *Assembler) Tableswitch(low int32, def *Label, targets ...*Label) *Assembler {
	base := len(a.bytes)
	a.bytes = append(a.bytes, byte(OpTableswitch))
	a.pad()
	a.reference(def, base, true)
	a.u4(uint32(low))
	a.u4(uint32(low + int32(len(targets)) - 1))
	for _, t := range targets {
		a.reference(t, base, true)
	}
	return a
}

// Lookupswitch emits a lookupswitch. keys must be sorted ascending and
// parallel to targets.
func (a *Assembler) Lookupswitch(def *Label, keys []int32, targets []*Label) *Assembler {
	if len(keys) != len(targets) {
		panic("lookupswitch: keys and targets differ in length")
	}
	base := len(a.bytes)
	a.bytes = append(a.bytes, byte(OpLookupswitch))
	a.pad()
	a.reference(def, base, true)
	a.u4(uint32(len(keys)))
	for i, k := range keys {
		a.u4(uint32(k))
		a.reference(targets[i], base, true)
	}
	return a
}

// ---------------------------------------------------------------------------
// Exception table
// ---------------------------------------------------------------------------

type pendingHandler struct {
	start, end, handler *Label
	catchType           string
}

// Handler registers an exception table entry covering [start, end) that
// transfers to handler. An empty catchType catches every exception.
// Entries are kept in registration order, which is search order.
func (a *Assembler) Handler(start, end, handler *Label, catchType string) *Assembler {
	if catchType != "" && a.pool != nil {
		a.pool.ClassRef(catchType)
	}
	a.handlers = append(a.handlers, pendingHandler{start, end, handler, catchType})
	return a
}

// Code finishes the method body. Every referenced label must be marked.
func (a *Assembler) Code(maxStack, maxLocals int) *classfile.Code {
	code := &classfile.Code{
		MaxStack:  uint16(maxStack),
		MaxLocals: uint16(maxLocals),
		Bytecode:  a.bytes,
		Lines:     a.lines,
	}
	for _, h := range a.handlers {
		if !h.start.resolved || !h.end.resolved || !h.handler.resolved {
			panic("exception handler references an unmarked label")
		}
		code.Handlers = append(code.Handlers, classfile.ExceptionHandler{
			StartPC:   uint16(h.start.position),
			EndPC:     uint16(h.end.position),
			HandlerPC: uint16(h.handler.position),
			CatchType: h.catchType,
		})
	}
	return code
}
