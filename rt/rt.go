// Package rt is the bootstrap runtime library: the java/lang and java/io
// classes the engine itself depends on, synthesized in memory with
// classfile.Builder and bytecode.Assembler.
//
// Methods that need host services are declared ACC_NATIVE and implemented
// by the vm package's built-in natives; everything else is real bytecode
// run by the interpreter.
package rt

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
)

var (
	once    sync.Once
	classes map[string]*classfile.Class
)

func library() map[string]*classfile.Class {
	once.Do(func() {
		classes = make(map[string]*classfile.Class)
		for _, define := range []func() []*classfile.Class{
			langClasses,
			throwableClasses,
			ioClasses,
		} {
			for _, c := range define() {
				classes[c.Name] = c
			}
		}
	})
	return classes
}

// Load returns the library class with the given internal name. The result
// is shared and must not be modified.
func Load(name string) (*classfile.Class, error) {
	if c, ok := library()[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%s: %w", name, classfile.ErrNotFound)
}

// Names returns the internal names of every library class, sorted.
func Names() []string {
	lib := library()
	names := make([]string, 0, len(lib))
	for name := range lib {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider serves the library as a class source.
type Provider struct{}

// LoadClass implements vm.ClassProvider.
func (Provider) LoadClass(name string) (*classfile.Class, error) { return Load(name) }

// ---------------------------------------------------------------------------
// Assembly helpers
// ---------------------------------------------------------------------------

const (
	public       = classfile.AccPublic
	publicClass  = classfile.AccPublic | classfile.AccSuper
	finalClass   = classfile.AccPublic | classfile.AccSuper | classfile.AccFinal
	publicStatic = classfile.AccPublic | classfile.AccStatic
	private      = classfile.AccPrivate
	constant     = classfile.AccPublic | classfile.AccStatic | classfile.AccFinal
)

func newClass(name, super string, flags classfile.AccessFlags) *classfile.Builder {
	simple := name[strings.LastIndexByte(name, '/')+1:]
	return classfile.NewBuilder(name, super, flags).SourceFile(simple + ".java")
}

// method assembles a bytecode method body.
func method(b *classfile.Builder, flags classfile.AccessFlags, name, desc string, stack, locals int, body func(a *bytecode.Assembler)) {
	a := bytecode.NewAssembler(b)
	body(a)
	b.AddMethod(flags, name, desc, a.Code(stack, locals))
}

// superInit emits this.<init>() against super.
func superInit(a *bytecode.Assembler, super string) {
	a.Emit(bytecode.OpAload0).Invoke(bytecode.OpInvokespecial, super, "<init>", "()V")
}

// getter emits a method returning one instance field.
func getter(b *classfile.Builder, name, field, desc string, ret bytecode.Opcode) {
	method(b, public, name, "()"+desc, 1, 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0).Field(bytecode.OpGetfield, b.Name(), field, desc).Emit(ret)
	})
}
