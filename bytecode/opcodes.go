// Package bytecode defines the instruction set executed by the engine, an
// assembler for producing method bodies, and a disassembler.
//
// Instructions are one opcode byte followed by big-endian operands. Branch
// offsets are signed and relative to the address of the branching opcode.
package bytecode

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is a single instruction byte.
type Opcode byte

// Constants
const (
	OpNop        Opcode = 0x00
	OpAconstNull Opcode = 0x01
	OpIconstM1   Opcode = 0x02
	OpIconst0    Opcode = 0x03
	OpIconst1    Opcode = 0x04
	OpIconst2    Opcode = 0x05
	OpIconst3    Opcode = 0x06
	OpIconst4    Opcode = 0x07
	OpIconst5    Opcode = 0x08
	OpLconst0    Opcode = 0x09
	OpLconst1    Opcode = 0x0a
	OpFconst0    Opcode = 0x0b
	OpFconst1    Opcode = 0x0c
	OpFconst2    Opcode = 0x0d
	OpDconst0    Opcode = 0x0e
	OpDconst1    Opcode = 0x0f
	OpBipush     Opcode = 0x10
	OpSipush     Opcode = 0x11
	OpLdc        Opcode = 0x12
	OpLdcW       Opcode = 0x13
	OpLdc2W      Opcode = 0x14
)

// Loads
const (
	OpIload   Opcode = 0x15
	OpLload   Opcode = 0x16
	OpFload   Opcode = 0x17
	OpDload   Opcode = 0x18
	OpAload   Opcode = 0x19
	OpIload0  Opcode = 0x1a
	OpIload1  Opcode = 0x1b
	OpIload2  Opcode = 0x1c
	OpIload3  Opcode = 0x1d
	OpLload0  Opcode = 0x1e
	OpLload1  Opcode = 0x1f
	OpLload2  Opcode = 0x20
	OpLload3  Opcode = 0x21
	OpFload0  Opcode = 0x22
	OpFload1  Opcode = 0x23
	OpFload2  Opcode = 0x24
	OpFload3  Opcode = 0x25
	OpDload0  Opcode = 0x26
	OpDload1  Opcode = 0x27
	OpDload2  Opcode = 0x28
	OpDload3  Opcode = 0x29
	OpAload0  Opcode = 0x2a
	OpAload1  Opcode = 0x2b
	OpAload2  Opcode = 0x2c
	OpAload3  Opcode = 0x2d
	OpIaload  Opcode = 0x2e
	OpLaload  Opcode = 0x2f
	OpFaload  Opcode = 0x30
	OpDaload  Opcode = 0x31
	OpAaload  Opcode = 0x32
	OpBaload  Opcode = 0x33
	OpCaload  Opcode = 0x34
	OpSaload  Opcode = 0x35
)

// Stores
const (
	OpIstore  Opcode = 0x36
	OpLstore  Opcode = 0x37
	OpFstore  Opcode = 0x38
	OpDstore  Opcode = 0x39
	OpAstore  Opcode = 0x3a
	OpIstore0 Opcode = 0x3b
	OpIstore1 Opcode = 0x3c
	OpIstore2 Opcode = 0x3d
	OpIstore3 Opcode = 0x3e
	OpLstore0 Opcode = 0x3f
	OpLstore1 Opcode = 0x40
	OpLstore2 Opcode = 0x41
	OpLstore3 Opcode = 0x42
	OpFstore0 Opcode = 0x43
	OpFstore1 Opcode = 0x44
	OpFstore2 Opcode = 0x45
	OpFstore3 Opcode = 0x46
	OpDstore0 Opcode = 0x47
	OpDstore1 Opcode = 0x48
	OpDstore2 Opcode = 0x49
	OpDstore3 Opcode = 0x4a
	OpAstore0 Opcode = 0x4b
	OpAstore1 Opcode = 0x4c
	OpAstore2 Opcode = 0x4d
	OpAstore3 Opcode = 0x4e
	OpIastore Opcode = 0x4f
	OpLastore Opcode = 0x50
	OpFastore Opcode = 0x51
	OpDastore Opcode = 0x52
	OpAastore Opcode = 0x53
	OpBastore Opcode = 0x54
	OpCastore Opcode = 0x55
	OpSastore Opcode = 0x56
)

// Stack
const (
	OpPop    Opcode = 0x57
	OpPop2   Opcode = 0x58
	OpDup    Opcode = 0x59
	OpDupX1  Opcode = 0x5a
	OpDupX2  Opcode = 0x5b
	OpDup2   Opcode = 0x5c
	OpDup2X1 Opcode = 0x5d
	OpDup2X2 Opcode = 0x5e
	OpSwap   Opcode = 0x5f
)

// Math
const (
	OpIadd  Opcode = 0x60
	OpLadd  Opcode = 0x61
	OpFadd  Opcode = 0x62
	OpDadd  Opcode = 0x63
	OpIsub  Opcode = 0x64
	OpLsub  Opcode = 0x65
	OpFsub  Opcode = 0x66
	OpDsub  Opcode = 0x67
	OpImul  Opcode = 0x68
	OpLmul  Opcode = 0x69
	OpFmul  Opcode = 0x6a
	OpDmul  Opcode = 0x6b
	OpIdiv  Opcode = 0x6c
	OpLdiv  Opcode = 0x6d
	OpFdiv  Opcode = 0x6e
	OpDdiv  Opcode = 0x6f
	OpIrem  Opcode = 0x70
	OpLrem  Opcode = 0x71
	OpFrem  Opcode = 0x72
	OpDrem  Opcode = 0x73
	OpIneg  Opcode = 0x74
	OpLneg  Opcode = 0x75
	OpFneg  Opcode = 0x76
	OpDneg  Opcode = 0x77
	OpIshl  Opcode = 0x78
	OpLshl  Opcode = 0x79
	OpIshr  Opcode = 0x7a
	OpLshr  Opcode = 0x7b
	OpIushr Opcode = 0x7c
	OpLushr Opcode = 0x7d
	OpIand  Opcode = 0x7e
	OpLand  Opcode = 0x7f
	OpIor   Opcode = 0x80
	OpLor   Opcode = 0x81
	OpIxor  Opcode = 0x82
	OpLxor  Opcode = 0x83
	OpIinc  Opcode = 0x84
)

// Conversions
const (
	OpI2l Opcode = 0x85
	OpI2f Opcode = 0x86
	OpI2d Opcode = 0x87
	OpL2i Opcode = 0x88
	OpL2f Opcode = 0x89
	OpL2d Opcode = 0x8a
	OpF2i Opcode = 0x8b
	OpF2l Opcode = 0x8c
	OpF2d Opcode = 0x8d
	OpD2i Opcode = 0x8e
	OpD2l Opcode = 0x8f
	OpD2f Opcode = 0x90
	OpI2b Opcode = 0x91
	OpI2c Opcode = 0x92
	OpI2s Opcode = 0x93
)

// Comparisons
const (
	OpLcmp     Opcode = 0x94
	OpFcmpl    Opcode = 0x95
	OpFcmpg    Opcode = 0x96
	OpDcmpl    Opcode = 0x97
	OpDcmpg    Opcode = 0x98
	OpIfeq     Opcode = 0x99
	OpIfne     Opcode = 0x9a
	OpIflt     Opcode = 0x9b
	OpIfge     Opcode = 0x9c
	OpIfgt     Opcode = 0x9d
	OpIfle     Opcode = 0x9e
	OpIfIcmpeq Opcode = 0x9f
	OpIfIcmpne Opcode = 0xa0
	OpIfIcmplt Opcode = 0xa1
	OpIfIcmpge Opcode = 0xa2
	OpIfIcmpgt Opcode = 0xa3
	OpIfIcmple Opcode = 0xa4
	OpIfAcmpeq Opcode = 0xa5
	OpIfAcmpne Opcode = 0xa6
)

// Control
const (
	OpGoto         Opcode = 0xa7
	OpJsr          Opcode = 0xa8
	OpRet          Opcode = 0xa9
	OpTableswitch  Opcode = 0xaa
	OpLookupswitch Opcode = 0xab
	OpIreturn      Opcode = 0xac
	OpLreturn      Opcode = 0xad
	OpFreturn      Opcode = 0xae
	OpDreturn      Opcode = 0xaf
	OpAreturn      Opcode = 0xb0
	OpReturn       Opcode = 0xb1
)

// References
const (
	OpGetstatic       Opcode = 0xb2
	OpPutstatic       Opcode = 0xb3
	OpGetfield        Opcode = 0xb4
	OpPutfield        Opcode = 0xb5
	OpInvokevirtual   Opcode = 0xb6
	OpInvokespecial   Opcode = 0xb7
	OpInvokestatic    Opcode = 0xb8
	OpInvokeinterface Opcode = 0xb9
	OpInvokedynamic   Opcode = 0xba
	OpNew             Opcode = 0xbb
	OpNewarray        Opcode = 0xbc
	OpAnewarray       Opcode = 0xbd
	OpArraylength     Opcode = 0xbe
	OpAthrow          Opcode = 0xbf
	OpCheckcast       Opcode = 0xc0
	OpInstanceof      Opcode = 0xc1
	OpMonitorenter    Opcode = 0xc2
	OpMonitorexit     Opcode = 0xc3
)

// Extended
const (
	OpWide           Opcode = 0xc4
	OpMultianewarray Opcode = 0xc5
	OpIfnull         Opcode = 0xc6
	OpIfnonnull      Opcode = 0xc7
	OpGotoW          Opcode = 0xc8
	OpJsrW           Opcode = 0xc9
)

// Array type codes for newarray.
const (
	TBoolean = 4
	TChar    = 5
	TFloat   = 6
	TDouble  = 7
	TByte    = 8
	TShort   = 9
	TInt     = 10
	TLong    = 11
)

// ArrayTypeDescriptor maps a newarray type code to its element descriptor.
func ArrayTypeDescriptor(code byte) (string, bool) {
	switch code {
	case TBoolean:
		return "Z", true
	case TChar:
		return "C", true
	case TFloat:
		return "F", true
	case TDouble:
		return "D", true
	case TByte:
		return "B", true
	case TShort:
		return "S", true
	case TInt:
		return "I", true
	case TLong:
		return "J", true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// Operand layouts. Variable covers the switches and wide, whose length
// depends on alignment or the modified instruction.
const (
	Variable = -1
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // mnemonic
	OperandBytes int    // fixed operand length, or Variable
	Branch       bool   // operand is a relative branch offset
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop: {"nop", 0, false}, OpAconstNull: {"aconst_null", 0, false},
	OpIconstM1: {"iconst_m1", 0, false}, OpIconst0: {"iconst_0", 0, false},
	OpIconst1: {"iconst_1", 0, false}, OpIconst2: {"iconst_2", 0, false},
	OpIconst3: {"iconst_3", 0, false}, OpIconst4: {"iconst_4", 0, false},
	OpIconst5: {"iconst_5", 0, false}, OpLconst0: {"lconst_0", 0, false},
	OpLconst1: {"lconst_1", 0, false}, OpFconst0: {"fconst_0", 0, false},
	OpFconst1: {"fconst_1", 0, false}, OpFconst2: {"fconst_2", 0, false},
	OpDconst0: {"dconst_0", 0, false}, OpDconst1: {"dconst_1", 0, false},
	OpBipush: {"bipush", 1, false}, OpSipush: {"sipush", 2, false},
	OpLdc: {"ldc", 1, false}, OpLdcW: {"ldc_w", 2, false}, OpLdc2W: {"ldc2_w", 2, false},

	OpIload: {"iload", 1, false}, OpLload: {"lload", 1, false}, OpFload: {"fload", 1, false},
	OpDload: {"dload", 1, false}, OpAload: {"aload", 1, false},
	OpIload0: {"iload_0", 0, false}, OpIload1: {"iload_1", 0, false},
	OpIload2: {"iload_2", 0, false}, OpIload3: {"iload_3", 0, false},
	OpLload0: {"lload_0", 0, false}, OpLload1: {"lload_1", 0, false},
	OpLload2: {"lload_2", 0, false}, OpLload3: {"lload_3", 0, false},
	OpFload0: {"fload_0", 0, false}, OpFload1: {"fload_1", 0, false},
	OpFload2: {"fload_2", 0, false}, OpFload3: {"fload_3", 0, false},
	OpDload0: {"dload_0", 0, false}, OpDload1: {"dload_1", 0, false},
	OpDload2: {"dload_2", 0, false}, OpDload3: {"dload_3", 0, false},
	OpAload0: {"aload_0", 0, false}, OpAload1: {"aload_1", 0, false},
	OpAload2: {"aload_2", 0, false}, OpAload3: {"aload_3", 0, false},
	OpIaload: {"iaload", 0, false}, OpLaload: {"laload", 0, false},
	OpFaload: {"faload", 0, false}, OpDaload: {"daload", 0, false},
	OpAaload: {"aaload", 0, false}, OpBaload: {"baload", 0, false},
	OpCaload: {"caload", 0, false}, OpSaload: {"saload", 0, false},

	OpIstore: {"istore", 1, false}, OpLstore: {"lstore", 1, false}, OpFstore: {"fstore", 1, false},
	OpDstore: {"dstore", 1, false}, OpAstore: {"astore", 1, false},
	OpIstore0: {"istore_0", 0, false}, OpIstore1: {"istore_1", 0, false},
	OpIstore2: {"istore_2", 0, false}, OpIstore3: {"istore_3", 0, false},
	OpLstore0: {"lstore_0", 0, false}, OpLstore1: {"lstore_1", 0, false},
	OpLstore2: {"lstore_2", 0, false}, OpLstore3: {"lstore_3", 0, false},
	OpFstore0: {"fstore_0", 0, false}, OpFstore1: {"fstore_1", 0, false},
	OpFstore2: {"fstore_2", 0, false}, OpFstore3: {"fstore_3", 0, false},
	OpDstore0: {"dstore_0", 0, false}, OpDstore1: {"dstore_1", 0, false},
	OpDstore2: {"dstore_2", 0, false}, OpDstore3: {"dstore_3", 0, false},
	OpAstore0: {"astore_0", 0, false}, OpAstore1: {"astore_1", 0, false},
	OpAstore2: {"astore_2", 0, false}, OpAstore3: {"astore_3", 0, false},
	OpIastore: {"iastore", 0, false}, OpLastore: {"lastore", 0, false},
	OpFastore: {"fastore", 0, false}, OpDastore: {"dastore", 0, false},
	OpAastore: {"aastore", 0, false}, OpBastore: {"bastore", 0, false},
	OpCastore: {"castore", 0, false}, OpSastore: {"sastore", 0, false},

	OpPop: {"pop", 0, false}, OpPop2: {"pop2", 0, false}, OpDup: {"dup", 0, false},
	OpDupX1: {"dup_x1", 0, false}, OpDupX2: {"dup_x2", 0, false}, OpDup2: {"dup2", 0, false},
	OpDup2X1: {"dup2_x1", 0, false}, OpDup2X2: {"dup2_x2", 0, false}, OpSwap: {"swap", 0, false},

	OpIadd: {"iadd", 0, false}, OpLadd: {"ladd", 0, false}, OpFadd: {"fadd", 0, false}, OpDadd: {"dadd", 0, false},
	OpIsub: {"isub", 0, false}, OpLsub: {"lsub", 0, false}, OpFsub: {"fsub", 0, false}, OpDsub: {"dsub", 0, false},
	OpImul: {"imul", 0, false}, OpLmul: {"lmul", 0, false}, OpFmul: {"fmul", 0, false}, OpDmul: {"dmul", 0, false},
	OpIdiv: {"idiv", 0, false}, OpLdiv: {"ldiv", 0, false}, OpFdiv: {"fdiv", 0, false}, OpDdiv: {"ddiv", 0, false},
	OpIrem: {"irem", 0, false}, OpLrem: {"lrem", 0, false}, OpFrem: {"frem", 0, false}, OpDrem: {"drem", 0, false},
	OpIneg: {"ineg", 0, false}, OpLneg: {"lneg", 0, false}, OpFneg: {"fneg", 0, false}, OpDneg: {"dneg", 0, false},
	OpIshl: {"ishl", 0, false}, OpLshl: {"lshl", 0, false}, OpIshr: {"ishr", 0, false}, OpLshr: {"lshr", 0, false},
	OpIushr: {"iushr", 0, false}, OpLushr: {"lushr", 0, false},
	OpIand: {"iand", 0, false}, OpLand: {"land", 0, false}, OpIor: {"ior", 0, false}, OpLor: {"lor", 0, false},
	OpIxor: {"ixor", 0, false}, OpLxor: {"lxor", 0, false}, OpIinc: {"iinc", 2, false},

	OpI2l: {"i2l", 0, false}, OpI2f: {"i2f", 0, false}, OpI2d: {"i2d", 0, false},
	OpL2i: {"l2i", 0, false}, OpL2f: {"l2f", 0, false}, OpL2d: {"l2d", 0, false},
	OpF2i: {"f2i", 0, false}, OpF2l: {"f2l", 0, false}, OpF2d: {"f2d", 0, false},
	OpD2i: {"d2i", 0, false}, OpD2l: {"d2l", 0, false}, OpD2f: {"d2f", 0, false},
	OpI2b: {"i2b", 0, false}, OpI2c: {"i2c", 0, false}, OpI2s: {"i2s", 0, false},

	OpLcmp: {"lcmp", 0, false}, OpFcmpl: {"fcmpl", 0, false}, OpFcmpg: {"fcmpg", 0, false},
	OpDcmpl: {"dcmpl", 0, false}, OpDcmpg: {"dcmpg", 0, false},
	OpIfeq: {"ifeq", 2, true}, OpIfne: {"ifne", 2, true}, OpIflt: {"iflt", 2, true},
	OpIfge: {"ifge", 2, true}, OpIfgt: {"ifgt", 2, true}, OpIfle: {"ifle", 2, true},
	OpIfIcmpeq: {"if_icmpeq", 2, true}, OpIfIcmpne: {"if_icmpne", 2, true},
	OpIfIcmplt: {"if_icmplt", 2, true}, OpIfIcmpge: {"if_icmpge", 2, true},
	OpIfIcmpgt: {"if_icmpgt", 2, true}, OpIfIcmple: {"if_icmple", 2, true},
	OpIfAcmpeq: {"if_acmpeq", 2, true}, OpIfAcmpne: {"if_acmpne", 2, true},

	OpGoto: {"goto", 2, true}, OpJsr: {"jsr", 2, true}, OpRet: {"ret", 1, false},
	OpTableswitch: {"tableswitch", Variable, false}, OpLookupswitch: {"lookupswitch", Variable, false},
	OpIreturn: {"ireturn", 0, false}, OpLreturn: {"lreturn", 0, false}, OpFreturn: {"freturn", 0, false},
	OpDreturn: {"dreturn", 0, false}, OpAreturn: {"areturn", 0, false}, OpReturn: {"return", 0, false},

	OpGetstatic: {"getstatic", 2, false}, OpPutstatic: {"putstatic", 2, false},
	OpGetfield: {"getfield", 2, false}, OpPutfield: {"putfield", 2, false},
	OpInvokevirtual: {"invokevirtual", 2, false}, OpInvokespecial: {"invokespecial", 2, false},
	OpInvokestatic: {"invokestatic", 2, false}, OpInvokeinterface: {"invokeinterface", 4, false},
	OpInvokedynamic: {"invokedynamic", 4, false},
	OpNew: {"new", 2, false}, OpNewarray: {"newarray", 1, false}, OpAnewarray: {"anewarray", 2, false},
	OpArraylength: {"arraylength", 0, false}, OpAthrow: {"athrow", 0, false},
	OpCheckcast: {"checkcast", 2, false}, OpInstanceof: {"instanceof", 2, false},
	OpMonitorenter: {"monitorenter", 0, false}, OpMonitorexit: {"monitorexit", 0, false},

	OpWide: {"wide", Variable, false}, OpMultianewarray: {"multianewarray", 3, false},
	OpIfnull: {"ifnull", 2, true}, OpIfnonnull: {"ifnonnull", 2, true},
	OpGotoW: {"goto_w", 4, true}, OpJsrW: {"jsr_w", 4, true},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("unknown_%02x", byte(op))}
}

// Valid reports whether op is a defined instruction.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the mnemonic.
func (op Opcode) Name() string { return op.Info().Name }

// OperandBytes returns the fixed operand length or Variable.
func (op Opcode) OperandBytes() int { return op.Info().OperandBytes }

// String implements the Stringer interface.
func (op Opcode) String() string { return op.Name() }

// IsReturn reports whether op leaves the current frame normally.
func (op Opcode) IsReturn() bool {
	return op >= OpIreturn && op <= OpReturn
}
