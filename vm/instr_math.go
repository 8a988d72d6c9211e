package vm

import (
	"math"

	"github.com/chazu/javelin/bytecode"
)

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// Binary operators pop the right operand first; the value pushed earlier is
// the left operand. int arithmetic wraps at 32 bits and long at 64 bits.

func (vm *VM) intOp(f *Frame, op bytecode.Opcode) error {
	b := f.popInt()
	a := f.popInt()
	var r int32
	switch op {
	case bytecode.OpIadd:
		r = a + b
	case bytecode.OpIsub:
		r = a - b
	case bytecode.OpImul:
		r = a * b
	case bytecode.OpIdiv, bytecode.OpIrem:
		if b == 0 {
			return vm.throwNew(ArithmeticException, "/ by zero")
		}
		// MinInt32 / -1 overflows back to MinInt32
		if b == -1 {
			if op == bytecode.OpIdiv {
				r = -a
			}
			break
		}
		if op == bytecode.OpIdiv {
			r = a / b
		} else {
			r = a % b
		}
	case bytecode.OpIshl:
		r = a << (uint32(b) & 0x1f)
	case bytecode.OpIshr:
		r = a >> (uint32(b) & 0x1f)
	case bytecode.OpIushr:
		r = int32(uint32(a) >> (uint32(b) & 0x1f))
	case bytecode.OpIand:
		r = a & b
	case bytecode.OpIor:
		r = a | b
	case bytecode.OpIxor:
		r = a ^ b
	}
	f.push(r)
	return nil
}

func (vm *VM) longOp(f *Frame, op bytecode.Opcode) error {
	// shift distances are ints
	switch op {
	case bytecode.OpLshl, bytecode.OpLshr, bytecode.OpLushr:
		s := uint64(f.popInt()) & 0x3f
		a := f.popLong()
		switch op {
		case bytecode.OpLshl:
			f.push(a << s)
		case bytecode.OpLshr:
			f.push(a >> s)
		default:
			f.push(int64(uint64(a) >> s))
		}
		return nil
	}

	b := f.popLong()
	a := f.popLong()
	var r int64
	switch op {
	case bytecode.OpLadd:
		r = a + b
	case bytecode.OpLsub:
		r = a - b
	case bytecode.OpLmul:
		r = a * b
	case bytecode.OpLdiv, bytecode.OpLrem:
		if b == 0 {
			return vm.throwNew(ArithmeticException, "/ by zero")
		}
		if b == -1 {
			if op == bytecode.OpLdiv {
				r = -a
			}
			break
		}
		if op == bytecode.OpLdiv {
			r = a / b
		} else {
			r = a % b
		}
	case bytecode.OpLand:
		r = a & b
	case bytecode.OpLor:
		r = a | b
	case bytecode.OpLxor:
		r = a ^ b
	}
	f.push(r)
	return nil
}

func floatOp(f *Frame, op bytecode.Opcode) {
	b := f.popFloat()
	a := f.popFloat()
	switch op {
	case bytecode.OpFadd:
		f.push(a + b)
	case bytecode.OpFsub:
		f.push(a - b)
	case bytecode.OpFmul:
		f.push(a * b)
	case bytecode.OpFdiv:
		f.push(a / b)
	case bytecode.OpFrem:
		f.push(float32(math.Mod(float64(a), float64(b))))
	}
}

func doubleOp(f *Frame, op bytecode.Opcode) {
	b := f.popDouble()
	a := f.popDouble()
	switch op {
	case bytecode.OpDadd:
		f.push(a + b)
	case bytecode.OpDsub:
		f.push(a - b)
	case bytecode.OpDmul:
		f.push(a * b)
	case bytecode.OpDdiv:
		f.push(a / b)
	case bytecode.OpDrem:
		f.push(math.Mod(a, b))
	}
}

// ---------------------------------------------------------------------------
// Conversions and comparisons
// ---------------------------------------------------------------------------

func convert(f *Frame, op bytecode.Opcode) {
	switch op {
	case bytecode.OpI2l:
		f.push(int64(f.popInt()))
	case bytecode.OpI2f:
		f.push(float32(f.popInt()))
	case bytecode.OpI2d:
		f.push(float64(f.popInt()))
	case bytecode.OpL2i:
		f.push(int32(f.popLong()))
	case bytecode.OpL2f:
		f.push(float32(f.popLong()))
	case bytecode.OpL2d:
		f.push(float64(f.popLong()))
	case bytecode.OpF2i:
		f.push(toInt32(float64(f.popFloat())))
	case bytecode.OpF2l:
		f.push(toInt64(float64(f.popFloat())))
	case bytecode.OpF2d:
		f.push(float64(f.popFloat()))
	case bytecode.OpD2i:
		f.push(toInt32(f.popDouble()))
	case bytecode.OpD2l:
		f.push(toInt64(f.popDouble()))
	case bytecode.OpD2f:
		f.push(float32(f.popDouble()))
	case bytecode.OpI2b:
		f.push(int32(int8(f.popInt())))
	case bytecode.OpI2c:
		f.push(int32(uint16(f.popInt())))
	case bytecode.OpI2s:
		f.push(int32(int16(f.popInt())))
	}
}

// toInt32 converts with NaN to zero and saturation at the int range.
func toInt32(x float64) int32 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt32:
		return math.MaxInt32
	case x <= math.MinInt32:
		return math.MinInt32
	}
	return int32(x)
}

func toInt64(x float64) int64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt64:
		return math.MaxInt64
	case x <= math.MinInt64:
		return math.MinInt64
	}
	return int64(x)
}

func compare(f *Frame, op bytecode.Opcode) {
	switch op {
	case bytecode.OpLcmp:
		b := f.popLong()
		a := f.popLong()
		f.push(threeWay(a < b, a > b))
	case bytecode.OpFcmpl, bytecode.OpFcmpg:
		b := float64(f.popFloat())
		a := float64(f.popFloat())
		f.push(floatCompare(a, b, op == bytecode.OpFcmpg))
	case bytecode.OpDcmpl, bytecode.OpDcmpg:
		b := f.popDouble()
		a := f.popDouble()
		f.push(floatCompare(a, b, op == bytecode.OpDcmpg))
	}
}

func threeWay(less, greater bool) int32 {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// floatCompare orders a and b; NaN yields 1 for the g variants and -1 for
// the l variants.
func floatCompare(a, b float64, nanGreater bool) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if nanGreater {
			return 1
		}
		return -1
	}
	return threeWay(a < b, a > b)
}
