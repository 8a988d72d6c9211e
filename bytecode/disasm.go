package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/chazu/javelin/classfile"
)

// ---------------------------------------------------------------------------
// Instruction decoding and disassembly
// ---------------------------------------------------------------------------

// Length returns the size in bytes of the instruction at pc, operands and
// switch padding included.
func Length(code []byte, pc int) (int, error) {
	if pc < 0 || pc >= len(code) {
		return 0, fmt.Errorf("pc %d outside code of length %d", pc, len(code))
	}
	op := Opcode(code[pc])
	info, ok := opcodeTable[op]
	if !ok {
		return 0, fmt.Errorf("unknown opcode 0x%02x at pc %d", byte(op), pc)
	}
	n := 1 + info.OperandBytes
	switch op {
	case OpWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("truncated wide at pc %d", pc)
		}
		if Opcode(code[pc+1]) == OpIinc {
			n = 6
		} else {
			n = 4
		}
	case OpTableswitch:
		p := align(pc + 1)
		if p+12 > len(code) {
			return 0, fmt.Errorf("truncated tableswitch at pc %d", pc)
		}
		low := int32(binary.BigEndian.Uint32(code[p+4:]))
		high := int32(binary.BigEndian.Uint32(code[p+8:]))
		if high < low {
			return 0, fmt.Errorf("tableswitch at pc %d: high %d < low %d", pc, high, low)
		}
		n = p + 12 + 4*int(int64(high)-int64(low)+1) - pc
	case OpLookupswitch:
		p := align(pc + 1)
		if p+8 > len(code) {
			return 0, fmt.Errorf("truncated lookupswitch at pc %d", pc)
		}
		npairs := int(int32(binary.BigEndian.Uint32(code[p+4:])))
		if npairs < 0 {
			return 0, fmt.Errorf("lookupswitch at pc %d: negative pair count", pc)
		}
		n = p + 8 + 8*npairs - pc
	}
	if pc+n > len(code) {
		return 0, fmt.Errorf("truncated %s at pc %d", op, pc)
	}
	return n, nil
}

func align(p int) int {
	return (p + 3) &^ 3
}

// Disassemble renders code one instruction per line. When class is non-nil,
// constant pool operands are shown symbolically.
func Disassemble(code []byte, class *classfile.Class) string {
	var sb strings.Builder
	for pc := 0; pc < len(code); {
		n, err := Length(code, pc)
		if err != nil {
			fmt.Fprintf(&sb, "%04d  <%v>\n", pc, err)
			break
		}
		sb.WriteString(DisassembleInstruction(code, pc, class))
		sb.WriteByte('\n')
		pc += n
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// DisassembleInstruction renders the single instruction at pc.
func DisassembleInstruction(code []byte, pc int, class *classfile.Class) string {
	op := Opcode(code[pc])
	info := op.Info()
	u1 := func(i int) int { return int(code[pc+i]) }
	u2 := func(i int) int { return int(binary.BigEndian.Uint16(code[pc+i:])) }
	s2 := func(i int) int { return int(int16(binary.BigEndian.Uint16(code[pc+i:]))) }
	s4 := func(i int) int { return int(int32(binary.BigEndian.Uint32(code[pc+i:]))) }

	switch {
	case info.Branch && info.OperandBytes == 4:
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, pc+s4(1))
	case info.Branch:
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, pc+s2(1))
	}

	switch op {
	case OpBipush:
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, int8(code[pc+1]))
	case OpSipush:
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, s2(1))
	case OpLdc:
		return fmt.Sprintf("%04d  %s %s", pc, info.Name, poolOperand(class, uint16(u1(1))))
	case OpLdcW, OpLdc2W, OpGetstatic, OpPutstatic, OpGetfield, OpPutfield,
		OpInvokevirtual, OpInvokespecial, OpInvokestatic, OpInvokeinterface, OpInvokedynamic,
		OpNew, OpAnewarray, OpCheckcast, OpInstanceof:
		return fmt.Sprintf("%04d  %s %s", pc, info.Name, poolOperand(class, uint16(u2(1))))
	case OpMultianewarray:
		return fmt.Sprintf("%04d  %s %s %d", pc, info.Name, poolOperand(class, uint16(u2(1))), u1(3))
	case OpNewarray:
		desc, _ := ArrayTypeDescriptor(code[pc+1])
		return fmt.Sprintf("%04d  %s %s", pc, info.Name, desc)
	case OpIinc:
		return fmt.Sprintf("%04d  %s %d %d", pc, info.Name, u1(1), int8(code[pc+2]))
	case OpWide:
		inner := Opcode(code[pc+1])
		if inner == OpIinc {
			return fmt.Sprintf("%04d  wide %s %d %d", pc, inner, u2(2), s2(4))
		}
		return fmt.Sprintf("%04d  wide %s %d", pc, inner, u2(2))
	case OpTableswitch:
		p := align(pc+1) - pc
		low, high := s4(p+4), s4(p+8)
		var sb strings.Builder
		fmt.Fprintf(&sb, "%04d  %s %d..%d default=%d", pc, info.Name, low, high, pc+s4(p))
		for i := 0; i <= high-low; i++ {
			fmt.Fprintf(&sb, " %d:%d", low+i, pc+s4(p+12+4*i))
		}
		return sb.String()
	case OpLookupswitch:
		p := align(pc+1) - pc
		npairs := s4(p + 4)
		var sb strings.Builder
		fmt.Fprintf(&sb, "%04d  %s default=%d", pc, info.Name, pc+s4(p))
		for i := 0; i < npairs; i++ {
			fmt.Fprintf(&sb, " %d:%d", s4(p+8+8*i), pc+s4(p+12+8*i))
		}
		return sb.String()
	}

	if info.OperandBytes == 1 {
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, u1(1))
	}
	return fmt.Sprintf("%04d  %s", pc, info.Name)
}

func poolOperand(class *classfile.Class, index uint16) string {
	if class == nil {
		return fmt.Sprintf("#%d", index)
	}
	k, err := class.Constant(index)
	if err != nil {
		return fmt.Sprintf("#%d", index)
	}
	switch k.Tag {
	case classfile.TagClass:
		name, _ := class.ClassName(index)
		return name
	case classfile.TagString:
		s, _ := class.StringValue(index)
		return fmt.Sprintf("%q", s)
	case classfile.TagInteger, classfile.TagLong:
		return fmt.Sprint(k.Int)
	case classfile.TagFloat, classfile.TagDouble:
		return fmt.Sprint(k.Float)
	case classfile.TagFieldref, classfile.TagMethodref, classfile.TagInterfaceMethodref:
		owner, name, desc, err := class.MemberRef(index)
		if err != nil {
			return fmt.Sprintf("#%d", index)
		}
		if k.Tag == classfile.TagFieldref {
			return fmt.Sprintf("%s.%s:%s", owner, name, desc)
		}
		return fmt.Sprintf("%s.%s%s", owner, name, desc)
	}
	return fmt.Sprintf("#%d", index)
}
