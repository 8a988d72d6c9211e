package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/javelin/classfile"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op           Opcode
		name         string
		operandBytes int
	}{
		{OpNop, "nop", 0},
		{OpAconstNull, "aconst_null", 0},
		{OpBipush, "bipush", 1},
		{OpSipush, "sipush", 2},
		{OpLdc, "ldc", 1},
		{OpLdc2W, "ldc2_w", 2},
		{OpIinc, "iinc", 2},
		{OpIfIcmplt, "if_icmplt", 2},
		{OpGotoW, "goto_w", 4},
		{OpInvokeinterface, "invokeinterface", 4},
		{OpMultianewarray, "multianewarray", 3},
		{OpTableswitch, "tableswitch", Variable},
		{OpReturn, "return", 0},
	}
	for _, tt := range tests {
		info := tt.op.Info()
		if info.Name != tt.name {
			t.Errorf("%02x: Name = %q, want %q", byte(tt.op), info.Name, tt.name)
		}
		if info.OperandBytes != tt.operandBytes {
			t.Errorf("%s: OperandBytes = %d, want %d", tt.op, info.OperandBytes, tt.operandBytes)
		}
	}
}

func TestOpcodeTableComplete(t *testing.T) {
	for op := OpNop; op <= OpJsrW; op++ {
		if !op.Valid() {
			t.Errorf("opcode 0x%02x missing from table", byte(op))
		}
	}
	if Opcode(0xfe).Valid() {
		t.Error("0xfe should not be a valid opcode")
	}
	if !strings.HasPrefix(Opcode(0xfe).Name(), "unknown_") {
		t.Errorf("unknown opcode name = %q", Opcode(0xfe).Name())
	}
}

func TestIsReturn(t *testing.T) {
	for _, op := range []Opcode{OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn, OpReturn} {
		if !op.IsReturn() {
			t.Errorf("%s.IsReturn() = false", op)
		}
	}
	if OpAthrow.IsReturn() {
		t.Error("athrow is not a return")
	}
}

// ---------------------------------------------------------------------------
// Assembler tests
// ---------------------------------------------------------------------------

func TestPushIntEncodings(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{-1, []byte{byte(OpIconstM1)}},
		{0, []byte{byte(OpIconst0)}},
		{5, []byte{byte(OpIconst5)}},
		{-2, []byte{byte(OpBipush), 0xfe}},
		{127, []byte{byte(OpBipush), 0x7f}},
		{300, []byte{byte(OpSipush), 0x01, 0x2c}},
		{-300, []byte{byte(OpSipush), 0xfe, 0xd4}},
	}
	for _, tt := range tests {
		a := NewAssembler(nil)
		a.PushInt(tt.v)
		if !bytes.Equal(a.Bytes(), tt.want) {
			t.Errorf("PushInt(%d) = %x, want %x", tt.v, a.Bytes(), tt.want)
		}
	}
}

func TestPushIntUsesPoolForLargeValues(t *testing.T) {
	b := classfile.NewBuilder("T", "java/lang/Object", 0)
	a := NewAssembler(b)
	a.PushInt(100000)
	code := a.Bytes()
	if Opcode(code[0]) != OpLdc {
		t.Fatalf("opcode = %s, want ldc", Opcode(code[0]))
	}
	c := b.Build()
	k, err := c.Constant(uint16(code[1]))
	if err != nil || k.Tag != classfile.TagInteger || k.Int != 100000 {
		t.Errorf("constant = %+v (%v)", k, err)
	}
}

func TestLoadStoreForms(t *testing.T) {
	a := NewAssembler(nil)
	a.Load(OpIload, 0).Load(OpAload, 3).Load(OpLload, 7).Store(OpDstore, 2).Store(OpAstore, 300)
	want := []byte{
		byte(OpIload0),
		byte(OpAload3),
		byte(OpLload), 7,
		byte(OpDstore2),
		byte(OpWide), byte(OpAstore), 0x01, 0x2c,
	}
	if !bytes.Equal(a.Bytes(), want) {
		t.Errorf("bytes = %x, want %x", a.Bytes(), want)
	}
}

func TestLabelsForwardAndBackward(t *testing.T) {
	a := NewAssembler(nil)
	top := a.NewLabel()
	end := a.NewLabel()
	a.Mark(top)
	a.Emit(OpIconst0)
	a.EmitJump(OpIfeq, end) // pc 1
	a.Goto(top)             // pc 4
	a.Mark(end)
	a.Emit(OpReturn)

	code := a.Bytes()
	if off := int16(uint16(code[2])<<8 | uint16(code[3])); off != 6 {
		t.Errorf("forward offset = %d, want 6", off)
	}
	if off := int16(uint16(code[5])<<8 | uint16(code[6])); off != -4 {
		t.Errorf("backward offset = %d, want -4", off)
	}
}

func TestMarkTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on second Mark")
		}
	}()
	a := NewAssembler(nil)
	l := a.NewLabel()
	a.Mark(l)
	a.Mark(l)
}

func TestTableswitchLayout(t *testing.T) {
	a := NewAssembler(nil)
	def, one, two := a.NewLabel(), a.NewLabel(), a.NewLabel()
	a.Emit(OpIconst1)
	a.Tableswitch(1, def, one, two)
	a.Mark(one).Emit(OpReturn)
	a.Mark(two).Emit(OpReturn)
	a.Mark(def).Emit(OpReturn)

	code := a.Bytes()
	n, err := Length(code, 1)
	if err != nil {
		t.Fatalf("Length: %v", err)
	}
	// opcode at 1, padding to 4, then default/low/high and two targets
	if n != 3+12+8 {
		t.Errorf("tableswitch length = %d, want %d", n, 3+12+8)
	}
	text := Disassemble(code, nil)
	if !strings.Contains(text, "tableswitch 1..2") {
		t.Errorf("disassembly missing range:\n%s", text)
	}
}

func TestLookupswitchLength(t *testing.T) {
	a := NewAssembler(nil)
	def, x := a.NewLabel(), a.NewLabel()
	a.Lookupswitch(def, []int32{10}, []*Label{x})
	a.Mark(x).Mark(def).Emit(OpReturn)
	n, err := Length(a.Bytes(), 0)
	if err != nil {
		t.Fatalf("Length: %v", err)
	}
	if n != 4+8+8 {
		t.Errorf("lookupswitch length = %d, want %d", n, 4+8+8)
	}
}

func TestHandlersInRegistrationOrder(t *testing.T) {
	b := classfile.NewBuilder("T", "java/lang/Object", 0)
	a := NewAssembler(b)
	start, end, h1, h2 := a.NewLabel(), a.NewLabel(), a.NewLabel(), a.NewLabel()
	a.Mark(start).Emit(OpNop).Mark(end)
	a.Mark(h1).Emit(OpReturn)
	a.Mark(h2).Emit(OpReturn)
	a.Handler(start, end, h1, "java/lang/ArithmeticException")
	a.Handler(start, end, h2, "")
	code := a.Code(1, 1)
	if len(code.Handlers) != 2 {
		t.Fatalf("handlers = %d, want 2", len(code.Handlers))
	}
	if code.Handlers[0].CatchType != "java/lang/ArithmeticException" || code.Handlers[1].CatchType != "" {
		t.Errorf("handlers out of order: %+v", code.Handlers)
	}
	if code.Handlers[0].StartPC != 0 || code.Handlers[0].EndPC != 1 || code.Handlers[1].HandlerPC != 2 {
		t.Errorf("handler ranges = %+v", code.Handlers)
	}
}

// ---------------------------------------------------------------------------
// Disassembler tests
// ---------------------------------------------------------------------------

func TestDisassembleSymbolic(t *testing.T) {
	b := classfile.NewBuilder("demo/Hello", "java/lang/Object", 0)
	a := NewAssembler(b)
	a.Field(OpGetstatic, "java/lang/System", "out", "Ljava/io/PrintStream;")
	a.LoadString("hi")
	a.Invoke(OpInvokevirtual, "java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	a.Emit(OpReturn)
	code := a.Bytes()
	text := Disassemble(code, b.Build())

	for _, want := range []string{
		"getstatic java/lang/System.out:Ljava/io/PrintStream;",
		`ldc "hi"`,
		"invokevirtual java/io/PrintStream.println(Ljava/lang/String;)V",
		"return",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("disassembly missing %q:\n%s", want, text)
		}
	}
}

func TestLengthErrors(t *testing.T) {
	if _, err := Length([]byte{0xfe}, 0); err == nil {
		t.Error("unknown opcode should fail")
	}
	if _, err := Length([]byte{byte(OpSipush), 1}, 0); err == nil {
		t.Error("truncated sipush should fail")
	}
	if _, err := Length(nil, 0); err == nil {
		t.Error("empty code should fail")
	}
}
