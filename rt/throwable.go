package rt

import (
	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
)

const (
	throwableName  = "java/lang/Throwable"
	traceName      = "java/lang/StackTraceElement"
	traceArrayDesc = "[Ljava/lang/StackTraceElement;"
)

// exceptionHierarchy lists each exception class after its superclass.
var exceptionHierarchy = []struct{ name, super string }{
	{"java/lang/Exception", throwableName},
	{"java/lang/Error", throwableName},
	{"java/lang/RuntimeException", "java/lang/Exception"},
	{"java/lang/CloneNotSupportedException", "java/lang/Exception"},
	{"java/lang/ArithmeticException", "java/lang/RuntimeException"},
	{"java/lang/NullPointerException", "java/lang/RuntimeException"},
	{"java/lang/ClassCastException", "java/lang/RuntimeException"},
	{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
	{"java/lang/ArrayStoreException", "java/lang/RuntimeException"},
	{"java/lang/IllegalStateException", "java/lang/RuntimeException"},
	{"java/lang/UnsupportedOperationException", "java/lang/RuntimeException"},
	{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
	{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
	{"java/lang/StringIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
	{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
	{"java/lang/NumberFormatException", "java/lang/IllegalArgumentException"},
	{"java/lang/LinkageError", "java/lang/Error"},
	{"java/lang/NoClassDefFoundError", "java/lang/LinkageError"},
	{"java/lang/VirtualMachineError", "java/lang/Error"},
	{"java/lang/StackOverflowError", "java/lang/VirtualMachineError"},
}

func throwableClasses() []*classfile.Class {
	out := []*classfile.Class{throwableClass(), stackTraceElementClass()}
	for _, e := range exceptionHierarchy {
		out = append(out, exceptionClass(e.name, e.super))
	}
	return out
}

// Both Throwable constructors record the stack trace of the allocation
// site through fillInStackTrace.
func throwableClass() *classfile.Class {
	b := newClass(throwableName, objectName, publicClass)
	b.AddField(private, "message", stringDesc)
	b.AddField(private, "stackTrace", traceArrayDesc)

	method(b, public, "<init>", "()V", 1, 1, func(a *bytecode.Assembler) {
		superInit(a, objectName)
		a.Emit(bytecode.OpAload0).Invoke(bytecode.OpInvokevirtual, throwableName, "fillInStackTrace", "()L"+throwableName+";")
		a.Emit(bytecode.OpPop, bytecode.OpReturn)
	})
	method(b, public, "<init>", "("+stringDesc+")V", 2, 2, func(a *bytecode.Assembler) {
		superInit(a, objectName)
		a.Emit(bytecode.OpAload0, bytecode.OpAload1).Field(bytecode.OpPutfield, throwableName, "message", stringDesc)
		a.Emit(bytecode.OpAload0).Invoke(bytecode.OpInvokevirtual, throwableName, "fillInStackTrace", "()L"+throwableName+";")
		a.Emit(bytecode.OpPop, bytecode.OpReturn)
	})
	getter(b, "getMessage", "message", stringDesc, bytecode.OpAreturn)
	getter(b, "getStackTrace", "stackTrace", traceArrayDesc, bytecode.OpAreturn)
	method(b, public, "setStackTrace", "("+traceArrayDesc+")V", 2, 2, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0, bytecode.OpAload1).Field(bytecode.OpPutfield, throwableName, "stackTrace", traceArrayDesc)
		a.Emit(bytecode.OpReturn)
	})
	b.AddNativeMethod(public, "fillInStackTrace", "()L"+throwableName+";")
	b.AddNativeMethod(public, "printStackTrace", "()V")
	b.AddNativeMethod(public, "toString", "()"+stringDesc)
	return b.Build()
}

func exceptionClass(name, super string) *classfile.Class {
	b := newClass(name, super, publicClass)
	method(b, public, "<init>", "()V", 1, 1, func(a *bytecode.Assembler) {
		superInit(a, super)
		a.Emit(bytecode.OpReturn)
	})
	method(b, public, "<init>", "("+stringDesc+")V", 2, 2, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0, bytecode.OpAload1).Invoke(bytecode.OpInvokespecial, super, "<init>", "("+stringDesc+")V")
		a.Emit(bytecode.OpReturn)
	})
	return b.Build()
}

func stackTraceElementClass() *classfile.Class {
	b := newClass(traceName, objectName, finalClass)
	fields := []struct{ name, desc string }{
		{"declaringClass", stringDesc},
		{"methodName", stringDesc},
		{"fileName", stringDesc},
		{"lineNumber", "I"},
	}
	for _, f := range fields {
		b.AddField(private|classfile.AccFinal, f.name, f.desc)
	}
	method(b, public, "<init>", "("+stringDesc+stringDesc+stringDesc+"I)V", 2, 5, func(a *bytecode.Assembler) {
		superInit(a, objectName)
		for i, f := range fields {
			load := bytecode.OpAload
			if f.desc == "I" {
				load = bytecode.OpIload
			}
			a.Emit(bytecode.OpAload0).Load(load, i+1).Field(bytecode.OpPutfield, traceName, f.name, f.desc)
		}
		a.Emit(bytecode.OpReturn)
	})
	getter(b, "getClassName", "declaringClass", stringDesc, bytecode.OpAreturn)
	getter(b, "getMethodName", "methodName", stringDesc, bytecode.OpAreturn)
	getter(b, "getFileName", "fileName", stringDesc, bytecode.OpAreturn)
	getter(b, "getLineNumber", "lineNumber", "I", bytecode.OpIreturn)
	return b.Build()
}
