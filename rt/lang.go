package rt

import (
	"math"

	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
)

const (
	objectName = "java/lang/Object"
	stringName = "java/lang/String"
	classDesc  = "Ljava/lang/Class;"
	stringDesc = "Ljava/lang/String;"
	objectDesc = "Ljava/lang/Object;"
)

// valueOfTypes are the argument types of the String.valueOf,
// StringBuilder.append and PrintStream.print overload families.
var valueOfTypes = []string{"Z", "C", "I", "J", "F", "D", objectDesc}

func langClasses() []*classfile.Class {
	return []*classfile.Class{
		objectClass(),
		markerInterface("java/lang/Cloneable"),
		charSequence(),
		stringClass(),
		classClass(),
		systemClass(),
		integerClass(),
		stringBuilderClass(),
		mathClass(),
	}
}

func objectClass() *classfile.Class {
	b := newClass(objectName, "", publicClass)
	method(b, public, "<init>", "()V", 0, 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpReturn)
	})
	method(b, public, "equals", "("+objectDesc+")Z", 2, 2, func(a *bytecode.Assembler) {
		differ := a.NewLabel()
		a.Emit(bytecode.OpAload0, bytecode.OpAload1).EmitJump(bytecode.OpIfAcmpne, differ)
		a.Emit(bytecode.OpIconst1, bytecode.OpIreturn)
		a.Mark(differ).Emit(bytecode.OpIconst0, bytecode.OpIreturn)
	})
	b.AddNativeMethod(public, "hashCode", "()I")
	b.AddNativeMethod(public|classfile.AccFinal, "getClass", "()"+classDesc)
	b.AddNativeMethod(public, "toString", "()"+stringDesc)
	b.AddNativeMethod(classfile.AccProtected, "clone", "()"+objectDesc)
	return b.Build()
}

// markerInterface declares an interface without members.
func markerInterface(name string) *classfile.Class {
	return newClass(name, objectName, classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract).Build()
}

func charSequence() *classfile.Class {
	b := newClass("java/lang/CharSequence", objectName, classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract)
	b.AddAbstractMethod(public, "length", "()I")
	b.AddAbstractMethod(public, "charAt", "(I)C")
	return b.Build()
}

// String keeps its contents as UTF-8 bytes in the value field. The
// constructor copies its argument so later writes to the array do not
// change the string.
func stringClass() *classfile.Class {
	b := newClass(stringName, objectName, finalClass).Implements("java/lang/CharSequence")
	b.AddField(private|classfile.AccFinal, "value", "[B")
	method(b, public, "<init>", "([B)V", 5, 3, func(a *bytecode.Assembler) {
		superInit(a, objectName)
		a.Emit(bytecode.OpAload1, bytecode.OpArraylength).EmitU1(bytecode.OpNewarray, bytecode.TByte).Emit(bytecode.OpAstore2)
		a.Emit(bytecode.OpAload1, bytecode.OpIconst0, bytecode.OpAload2, bytecode.OpIconst0, bytecode.OpAload2, bytecode.OpArraylength)
		a.Invoke(bytecode.OpInvokestatic, "java/lang/System", "arraycopy", "("+objectDesc+"I"+objectDesc+"II)V")
		a.Emit(bytecode.OpAload0, bytecode.OpAload2).Field(bytecode.OpPutfield, stringName, "value", "[B")
		a.Emit(bytecode.OpReturn)
	})
	getter(b, "getBytes", "value", "[B", bytecode.OpAreturn)
	method(b, public, "toString", "()"+stringDesc, 1, 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0, bytecode.OpAreturn)
	})
	b.AddNativeMethod(public, "intern", "()"+stringDesc)
	b.AddNativeMethod(public, "equals", "("+objectDesc+")Z")
	b.AddNativeMethod(public, "hashCode", "()I")
	b.AddNativeMethod(public, "length", "()I")
	b.AddNativeMethod(public, "isEmpty", "()Z")
	b.AddNativeMethod(public, "charAt", "(I)C")
	b.AddNativeMethod(public, "concat", "("+stringDesc+")"+stringDesc)
	for _, t := range valueOfTypes {
		b.AddNativeMethod(publicStatic, "valueOf", "("+t+")"+stringDesc)
	}
	return b.Build()
}

// Class mirrors carry the reflective name; the engine keeps the runtime
// record on the host side.
func classClass() *classfile.Class {
	b := newClass("java/lang/Class", objectName, finalClass)
	b.AddField(private|classfile.AccFinal, "name", stringDesc)
	method(b, public, "<init>", "("+stringDesc+")V", 2, 2, func(a *bytecode.Assembler) {
		superInit(a, objectName)
		a.Emit(bytecode.OpAload0, bytecode.OpAload1).Field(bytecode.OpPutfield, "java/lang/Class", "name", stringDesc)
		a.Emit(bytecode.OpReturn)
	})
	getter(b, "getName", "name", stringDesc, bytecode.OpAreturn)
	b.AddNativeMethod(public, "isInterface", "()Z")
	b.AddNativeMethod(public, "isArray", "()Z")
	b.AddNativeMethod(public, "toString", "()"+stringDesc)
	return b.Build()
}

func systemClass() *classfile.Class {
	const name = "java/lang/System"
	b := newClass(name, objectName, finalClass)
	b.AddField(constant, "out", printStreamDesc)
	b.AddField(constant, "err", printStreamDesc)
	method(b, classfile.AccStatic, "<clinit>", "()V", 3, 0, func(a *bytecode.Assembler) {
		for _, s := range []struct {
			field string
			fd    int32
		}{{"out", 1}, {"err", 2}} {
			a.TypeOp(bytecode.OpNew, printStreamName).Emit(bytecode.OpDup).PushInt(s.fd)
			a.Invoke(bytecode.OpInvokespecial, printStreamName, "<init>", "(I)V")
			a.Field(bytecode.OpPutstatic, name, s.field, printStreamDesc)
		}
		a.Emit(bytecode.OpReturn)
	})
	b.AddNativeMethod(publicStatic, "arraycopy", "("+objectDesc+"I"+objectDesc+"II)V")
	b.AddNativeMethod(publicStatic, "currentTimeMillis", "()J")
	b.AddNativeMethod(publicStatic, "nanoTime", "()J")
	b.AddNativeMethod(publicStatic, "identityHashCode", "("+objectDesc+")I")
	return b.Build()
}

func integerClass() *classfile.Class {
	const name = "java/lang/Integer"
	b := newClass(name, objectName, finalClass)
	b.AddConstantField(constant, "MAX_VALUE", "I", b.IntConst(math.MaxInt32))
	b.AddConstantField(constant, "MIN_VALUE", "I", b.IntConst(math.MinInt32))
	b.AddField(private|classfile.AccFinal, "value", "I")
	method(b, public, "<init>", "(I)V", 2, 2, func(a *bytecode.Assembler) {
		superInit(a, objectName)
		a.Emit(bytecode.OpAload0, bytecode.OpIload1).Field(bytecode.OpPutfield, name, "value", "I")
		a.Emit(bytecode.OpReturn)
	})
	method(b, publicStatic, "valueOf", "(I)L"+name+";", 3, 1, func(a *bytecode.Assembler) {
		a.TypeOp(bytecode.OpNew, name).Emit(bytecode.OpDup, bytecode.OpIload0)
		a.Invoke(bytecode.OpInvokespecial, name, "<init>", "(I)V").Emit(bytecode.OpAreturn)
	})
	getter(b, "intValue", "value", "I", bytecode.OpIreturn)
	getter(b, "hashCode", "value", "I", bytecode.OpIreturn)
	method(b, public, "equals", "("+objectDesc+")Z", 2, 2, func(a *bytecode.Assembler) {
		no := a.NewLabel()
		a.Emit(bytecode.OpAload1).TypeOp(bytecode.OpInstanceof, name).EmitJump(bytecode.OpIfeq, no)
		a.Emit(bytecode.OpAload0).Field(bytecode.OpGetfield, name, "value", "I")
		a.Emit(bytecode.OpAload1).TypeOp(bytecode.OpCheckcast, name).Field(bytecode.OpGetfield, name, "value", "I")
		a.EmitJump(bytecode.OpIfIcmpne, no)
		a.Emit(bytecode.OpIconst1, bytecode.OpIreturn)
		a.Mark(no).Emit(bytecode.OpIconst0, bytecode.OpIreturn)
	})
	method(b, public, "toString", "()"+stringDesc, 1, 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0).Field(bytecode.OpGetfield, name, "value", "I")
		a.Invoke(bytecode.OpInvokestatic, name, "toString", "(I)"+stringDesc).Emit(bytecode.OpAreturn)
	})
	b.AddNativeMethod(publicStatic, "parseInt", "("+stringDesc+")I")
	b.AddNativeMethod(publicStatic, "toString", "(I)"+stringDesc)
	return b.Build()
}

// StringBuilder keeps its buffer on the host side of the object.
func stringBuilderClass() *classfile.Class {
	const name = "java/lang/StringBuilder"
	b := newClass(name, objectName, finalClass).Implements("java/lang/CharSequence")
	b.AddNativeMethod(public, "<init>", "()V")
	b.AddNativeMethod(public, "<init>", "("+stringDesc+")V")
	for _, t := range append(valueOfTypes, stringDesc) {
		b.AddNativeMethod(public, "append", "("+t+")L"+name+";")
	}
	b.AddNativeMethod(public, "length", "()I")
	method(b, public, "charAt", "(I)C", 2, 2, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0).Invoke(bytecode.OpInvokevirtual, name, "toString", "()"+stringDesc)
		a.Emit(bytecode.OpIload1).Invoke(bytecode.OpInvokevirtual, stringName, "charAt", "(I)C")
		a.Emit(bytecode.OpIreturn)
	})
	b.AddNativeMethod(public, "toString", "()"+stringDesc)
	return b.Build()
}

func mathClass() *classfile.Class {
	b := newClass("java/lang/Math", objectName, finalClass)
	b.AddConstantField(constant, "PI", "D", b.DoubleConst(math.Pi))
	b.AddConstantField(constant, "E", "D", b.DoubleConst(math.E))
	for _, sig := range []struct{ name, desc string }{
		{"abs", "(I)I"}, {"abs", "(J)J"}, {"abs", "(D)D"},
		{"max", "(II)I"}, {"max", "(JJ)J"}, {"max", "(DD)D"},
		{"min", "(II)I"}, {"min", "(JJ)J"}, {"min", "(DD)D"},
		{"sqrt", "(D)D"}, {"pow", "(DD)D"},
	} {
		b.AddNativeMethod(publicStatic, sig.name, sig.desc)
	}
	return b.Build()
}
