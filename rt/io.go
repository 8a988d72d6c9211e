package rt

import (
	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
)

const (
	printStreamName = "java/io/PrintStream"
	printStreamDesc = "L" + printStreamName + ";"
)

func ioClasses() []*classfile.Class {
	return []*classfile.Class{printStreamClass(), markerInterface("java/io/Serializable")}
}

// PrintStream writes to the engine's stdout (fd 1) or stderr (fd 2).
func printStreamClass() *classfile.Class {
	b := newClass(printStreamName, objectName, publicClass)
	b.AddField(private|classfile.AccFinal, "fd", "I")
	method(b, public, "<init>", "(I)V", 2, 2, func(a *bytecode.Assembler) {
		superInit(a, objectName)
		a.Emit(bytecode.OpAload0, bytecode.OpIload1).Field(bytecode.OpPutfield, printStreamName, "fd", "I")
		a.Emit(bytecode.OpReturn)
	})
	for _, t := range append(valueOfTypes, stringDesc) {
		b.AddNativeMethod(public, "print", "("+t+")V")
		b.AddNativeMethod(public, "println", "("+t+")V")
	}
	b.AddNativeMethod(public, "println", "()V")
	b.AddNativeMethod(public, "write", "(I)V")
	b.AddNativeMethod(public, "flush", "()V")
	return b.Build()
}
