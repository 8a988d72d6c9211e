package vm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
	"github.com/chazu/javelin/rt"
)

// testVM creates an engine serving the given classes in front of the
// runtime library, with captured output streams.
func testVM(t *testing.T, classes ...*classfile.Class) (*VM, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	user := make(map[string]*classfile.Class)
	for _, c := range classes {
		user[c.Name] = c
	}
	vm := New(ProviderFunc(func(name string) (*classfile.Class, error) {
		if c, ok := user[name]; ok {
			return c, nil
		}
		return rt.Load(name)
	}))
	var stdout, stderr bytes.Buffer
	vm.Stdout = &stdout
	vm.Stderr = &stderr
	return vm, &stdout, &stderr
}

// buildClass starts a public class with ACC_SUPER and a SourceFile.
func buildClass(name, super string) *classfile.Builder {
	return classfile.NewBuilder(name, super, classfile.AccPublic|classfile.AccSuper).SourceFile(name + ".java")
}

func addMethod(b *classfile.Builder, flags classfile.AccessFlags, name, desc string, stack, locals int, body func(a *bytecode.Assembler)) {
	a := bytecode.NewAssembler(b)
	body(a)
	b.AddMethod(flags, name, desc, a.Code(stack, locals))
}

// addDefaultInit adds a no-argument constructor delegating to super.
func addDefaultInit(b *classfile.Builder, super string) {
	addMethod(b, classfile.AccPublic, "<init>", "()V", 1, 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0).Invoke(bytecode.OpInvokespecial, super, "<init>", "()V").Emit(bytecode.OpReturn)
	})
}

const publicStatic = classfile.AccPublic | classfile.AccStatic

func mustLoad(t *testing.T, vm *VM, name string) *Class {
	t.Helper()
	c, err := vm.LoadClass(name)
	if err != nil {
		t.Fatalf("LoadClass(%q) error: %v", name, err)
	}
	return c
}

func mustInvoke(t *testing.T, vm *VM, class, name, desc string, args ...Value) Value {
	t.Helper()
	v, err := vm.Invoke(class, name, desc, args...)
	if err != nil {
		t.Fatalf("Invoke(%s.%s%s) error: %v", class, name, desc, err)
	}
	return v
}

func mustString(t *testing.T, vm *VM, s string) *Object {
	t.Helper()
	str, err := vm.NewString(s)
	if err != nil {
		t.Fatalf("NewString(%q) error: %v", s, err)
	}
	return str
}

// guestException extracts the guest throwable from err, failing the test
// when err carries none.
func guestException(t *testing.T, err error) *GuestException {
	t.Helper()
	var gx *GuestException
	if !errors.As(err, &gx) {
		t.Fatalf("error = %v, want *GuestException", err)
	}
	return gx
}
