package vm

import (
	"io"
)

// ---------------------------------------------------------------------------
// java/io/PrintStream
// ---------------------------------------------------------------------------

const printStreamClass = "java/io/PrintStream"

// stream maps a PrintStream's file descriptor to the engine's writers.
func (vm *VM) stream(ps *Object) io.Writer {
	if fd, _ := ps.GetField(printStreamClass, "fd").(int32); fd == 2 {
		return vm.Stderr
	}
	return vm.Stdout
}

func registerPrintStreamNatives(t *NativeTable) {
	for _, td := range valueOfDescriptors {
		t.Register(printStreamClass, "print", "("+string(td)+")V", printer(td, false))
		t.Register(printStreamClass, "println", "("+string(td)+")V", printer(td, true))
	}
	t.Register(printStreamClass, "println", "()V", func(vm *VM, locals []Value) (Value, error) {
		_, err := io.WriteString(vm.stream(asObject(locals[0])), "\n")
		return nil, err
	})
	t.Register(printStreamClass, "write", "(I)V", func(vm *VM, locals []Value) (Value, error) {
		_, err := vm.stream(asObject(locals[0])).Write([]byte{byte(asInt(locals[1]))})
		return nil, err
	})
	t.Register(printStreamClass, "flush", "()V", func(vm *VM, locals []Value) (Value, error) {
		return nil, nil
	})
}

func printer(td TypeDescriptor, newline bool) NativeFunc {
	return func(vm *VM, locals []Value) (Value, error) {
		text, err := vm.javaText(td, locals[1])
		if err != nil {
			return nil, err
		}
		if newline {
			text += "\n"
		}
		_, err = io.WriteString(vm.stream(asObject(locals[0])), text)
		return nil, err
	}
}
