package vm

import (
	"errors"
	"testing"

	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
)

func TestVirtualDispatchAndInheritedFields(t *testing.T) {
	calls := buildClass("Calls", ObjectClass)
	addMethod(calls, publicStatic, "get", "(LBase;)I", 1, 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0).Invoke(bytecode.OpInvokevirtual, "Base", "get", "()I").Emit(bytecode.OpIreturn)
	})
	addMethod(calls, publicStatic, "readX", "(LDerived;)I", 1, 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0).Field(bytecode.OpGetfield, "Derived", "x", "I").Emit(bytecode.OpIreturn)
	})
	addMethod(calls, publicStatic, "newDerived", "()LBase;", 2, 0, func(a *bytecode.Assembler) {
		a.TypeOp(bytecode.OpNew, "Derived").Emit(bytecode.OpDup)
		a.Invoke(bytecode.OpInvokespecial, "Derived", "<init>", "()V").Emit(bytecode.OpAreturn)
	})
	vm, _, _ := testVM(t, append(hierarchy(), calls.Build())...)

	obj := mustInvoke(t, vm, "Calls", "newDerived", "()LBase;")
	derived, ok := obj.(*Object)
	if !ok || derived.Class.Name != "Derived" {
		t.Fatalf("newDerived() = %v, want a Derived", obj)
	}
	if got := mustInvoke(t, vm, "Calls", "get", "(LBase;)I", derived); got != Value(int32(2)) {
		t.Errorf("get(Derived as Base) = %v, want 2", got)
	}
	if got := mustInvoke(t, vm, "Calls", "readX", "(LDerived;)I", derived); got != Value(int32(1)) {
		t.Errorf("readX(Derived) = %v, want 1", got)
	}
	if _, ok := derived.Fields[FieldKey{"Base", "x"}]; !ok {
		t.Errorf("inherited field not keyed by its declaring class: %v", derived.Fields)
	}
}

func TestShadowedFieldsAreDistinct(t *testing.T) {
	shadow := buildClass("Shadow", "Base")
	shadow.AddField(classfile.AccPublic, "x", "I")
	addDefaultInit(shadow, "Base")
	vm, _, _ := testVM(t, append(hierarchy(), shadow.Build())...)

	obj := vm.NewObject(mustLoad(t, vm, "Shadow"))
	if len(obj.Fields) != 2 {
		t.Fatalf("Shadow has %d field slots, want 2", len(obj.Fields))
	}
	obj.SetField("Shadow", "x", int32(9))
	if got := obj.GetField("Base", "x"); got != Value(int32(0)) {
		t.Errorf("Base.x = %v after writing Shadow.x, want 0", got)
	}
}

func TestNewObjectDefaults(t *testing.T) {
	b := buildClass("Defaults", ObjectClass)
	for _, f := range []struct{ name, desc string }{
		{"i", "I"}, {"j", "J"}, {"f", "F"}, {"d", "D"}, {"z", "Z"}, {"s", "Ljava/lang/String;"}, {"a", "[I"},
	} {
		b.AddField(classfile.AccPrivate, f.name, f.desc)
	}
	vm, _, _ := testVM(t, b.Build())
	obj := vm.NewObject(mustLoad(t, vm, "Defaults"))

	tests := map[string]Value{
		"i": int32(0), "j": int64(0), "f": float32(0), "d": float64(0), "z": int32(0), "s": nil, "a": nil,
	}
	for name, want := range tests {
		if got := obj.GetField("Defaults", name); got != want {
			t.Errorf("field %s = %#v, want %#v", name, got, want)
		}
	}
}

func TestNewMultiArray(t *testing.T) {
	vm, _, _ := testVM(t)
	arr, err := vm.NewArray(mustLoad(t, vm, "[[I"), 2, 3)
	if err != nil {
		t.Fatalf("NewArray error: %v", err)
	}
	if arr.Len() != 2 {
		t.Fatalf("outer length = %d, want 2", arr.Len())
	}
	first, second := arr.Values[0].(*Object), arr.Values[1].(*Object)
	if first == second {
		t.Fatalf("inner arrays share storage")
	}
	if first.Class.Name != "[I" || first.Len() != 3 {
		t.Errorf("inner array = %s[%d], want [I[3]", first.Class.Name, first.Len())
	}
	first.Values[0] = int32(7)
	if second.Values[0] != Value(int32(0)) {
		t.Errorf("write to one inner array visible in the other")
	}
}

func TestNewArrayErrors(t *testing.T) {
	vm, _, _ := testVM(t)
	if _, err := vm.NewArray(mustLoad(t, vm, "[[I"), 2); err == nil {
		t.Errorf("NewArray with too few counts succeeded")
	}
	if _, err := vm.NewArray(mustLoad(t, vm, StringClass), 2); err == nil {
		t.Errorf("NewArray on a non-array class succeeded")
	}

	_, err := vm.NewArray(mustLoad(t, vm, "[I"), -1)
	gx := guestException(t, err)
	if gx.Error() != "java.lang.NegativeArraySizeException: -1" {
		t.Errorf("error = %q", gx.Error())
	}
}

func TestStaticInitializerRunsOnce(t *testing.T) {
	b := buildClass("Counter", ObjectClass)
	b.AddField(publicStatic, "value", "I")
	b.AddField(publicStatic, "inits", "I")
	addMethod(b, classfile.AccStatic, "<clinit>", "()V", 2, 0, func(a *bytecode.Assembler) {
		a.PushInt(42).Field(bytecode.OpPutstatic, "Counter", "value", "I")
		a.Field(bytecode.OpGetstatic, "Counter", "inits", "I").Emit(bytecode.OpIconst1, bytecode.OpIadd)
		a.Field(bytecode.OpPutstatic, "Counter", "inits", "I")
		a.Emit(bytecode.OpReturn)
	})
	for _, name := range []string{"value", "inits"} {
		addMethod(b, publicStatic, name, "()I", 1, 0, func(a *bytecode.Assembler) {
			a.Field(bytecode.OpGetstatic, "Counter", name, "I").Emit(bytecode.OpIreturn)
		})
	}
	vm, _, _ := testVM(t, b.Build())

	for i := 0; i < 2; i++ {
		if got := mustInvoke(t, vm, "Counter", "value", "()I"); got != Value(int32(42)) {
			t.Errorf("value() = %v, want 42", got)
		}
	}
	if got := mustInvoke(t, vm, "Counter", "inits", "()I"); got != Value(int32(1)) {
		t.Errorf("inits() = %v, want 1", got)
	}
}

func TestConstantValueFields(t *testing.T) {
	vm, _, _ := testVM(t)
	integer := mustLoad(t, vm, "java/lang/Integer")
	if got := integer.Statics.GetField(integer.Name, "MAX_VALUE"); got != Value(int32(2147483647)) {
		t.Errorf("Integer.MAX_VALUE = %v", got)
	}
	if got := integer.Statics.GetField(integer.Name, "MIN_VALUE"); got != Value(int32(-2147483648)) {
		t.Errorf("Integer.MIN_VALUE = %v", got)
	}
}

func TestLoadClassErrors(t *testing.T) {
	vm, _, _ := testVM(t)
	_, err := vm.LoadClass("com/example/Missing")
	var unresolved *UnresolvedSymbolError
	if !errors.As(err, &unresolved) || unresolved.Kind != "class" {
		t.Fatalf("error = %v, want unresolved class", err)
	}
	if !errors.Is(err, classfile.ErrNotFound) {
		t.Errorf("error does not wrap ErrNotFound: %v", err)
	}
}

func TestClassIdentity(t *testing.T) {
	vm, _, _ := testVM(t)
	a := mustLoad(t, vm, "[Ljava/lang/String;")
	b, err := vm.ClassFor(FromInternal(StringClass).ArrayOf())
	if err != nil {
		t.Fatalf("ClassFor error: %v", err)
	}
	if a != b {
		t.Errorf("one descriptor produced two class records")
	}
	if a.Super == nil || a.Super.Name != ObjectClass {
		t.Errorf("array superclass = %v, want %s", a.Super, ObjectClass)
	}
}

func TestStringRoundTrip(t *testing.T) {
	vm, _, _ := testVM(t)
	for _, s := range []string{"", "hello", "héllo wörld"} {
		str := mustString(t, vm, s)
		if str.Class.Name != StringClass {
			t.Errorf("NewString(%q) class = %s", s, str.Class.Name)
		}
		got, err := vm.GoString(str)
		if err != nil {
			t.Fatalf("GoString error: %v", err)
		}
		if got != s {
			t.Errorf("GoString(NewString(%q)) = %q", s, got)
		}
	}
	if got, _ := vm.GoString(nil); got != "null" {
		t.Errorf("GoString(nil) = %q, want null", got)
	}
}

func TestIntern(t *testing.T) {
	vm, _, _ := testVM(t)
	a := mustString(t, vm, "same")
	b := mustString(t, vm, "same")
	if a == b {
		t.Fatalf("NewString returned a shared object")
	}
	ia, err := vm.Intern(a)
	if err != nil {
		t.Fatalf("Intern error: %v", err)
	}
	ib, _ := vm.Intern(b)
	if ia != ib || ia != a {
		t.Errorf("Intern did not canonicalize to the first string")
	}
	lit, _ := vm.InternString("same")
	if lit != a {
		t.Errorf("InternString did not return the canonical string")
	}
}

// reentrantHierarchy builds Base and Derived where Base's initializer
// allocates a Derived and calls a method Derived inherits.
func reentrantHierarchy() []*classfile.Class {
	base := buildClass("RBase", ObjectClass)
	base.AddField(classfile.AccPublic, "x", "I")
	base.AddField(publicStatic, "DEFAULT", "LRBase;")
	base.AddField(publicStatic, "seen", "I")
	addDefaultInit(base, ObjectClass)
	returnsInt(base, "get", 7)
	// DEFAULT = new RDerived(); seen = DEFAULT.get();
	addMethod(base, classfile.AccStatic, "<clinit>", "()V", 3, 0, func(a *bytecode.Assembler) {
		a.TypeOp(bytecode.OpNew, "RDerived").Emit(bytecode.OpDup)
		a.Invoke(bytecode.OpInvokespecial, "RDerived", "<init>", "()V")
		a.Emit(bytecode.OpDup).Invoke(bytecode.OpInvokevirtual, "RDerived", "get", "()I")
		a.Field(bytecode.OpPutstatic, "RBase", "seen", "I")
		a.Field(bytecode.OpPutstatic, "RBase", "DEFAULT", "LRBase;")
		a.Emit(bytecode.OpReturn)
	})
	addMethod(base, publicStatic, "readX", "()I", 1, 0, func(a *bytecode.Assembler) {
		a.Field(bytecode.OpGetstatic, "RBase", "DEFAULT", "LRBase;")
		a.Field(bytecode.OpGetfield, "RBase", "x", "I").Emit(bytecode.OpIreturn)
	})
	addMethod(base, publicStatic, "seen", "()I", 1, 0, func(a *bytecode.Assembler) {
		a.Field(bytecode.OpGetstatic, "RBase", "seen", "I").Emit(bytecode.OpIreturn)
	})

	derived := buildClass("RDerived", "RBase")
	addDefaultInit(derived, "RBase")
	return []*classfile.Class{base.Build(), derived.Build()}
}

func TestSuperclassInitializerSeesLinkedSubclass(t *testing.T) {
	vm, _, _ := testVM(t, reentrantHierarchy()...)

	derived := mustLoad(t, vm, "RDerived")
	if derived.Super == nil || derived.Super.Name != "RBase" {
		t.Fatalf("RDerived superclass = %v, want RBase", derived.Super)
	}
	for _, c := range []*Class{derived, derived.Super} {
		if !c.Initialized() {
			t.Errorf("%s not initialized", c)
		}
	}
	if got := mustInvoke(t, vm, "RBase", "readX", "()I"); got != Value(int32(0)) {
		t.Errorf("readX() = %#v, want inherited field default 0", got)
	}
	if got := mustInvoke(t, vm, "RBase", "seen", "()I"); got != Value(int32(7)) {
		t.Errorf("seen() = %v, want 7 from the inherited get()", got)
	}
}

func TestFailedInitializerNotRetried(t *testing.T) {
	bad := buildClass("Bad", ObjectClass)
	addMethod(bad, classfile.AccStatic, "<clinit>", "()V", 2, 0, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpIconst1, bytecode.OpIconst0, bytecode.OpIdiv, bytecode.OpPop, bytecode.OpReturn)
	})
	addMethod(bad, publicStatic, "pong", "()I", 1, 0, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpIconst1, bytecode.OpIreturn)
	})
	child := buildClass("BadChild", "Bad")
	vm, _, _ := testVM(t, bad.Build(), child.Build())

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"first use", func() error {
			_, err := vm.Invoke("Bad", "pong", "()I")
			return err
		}, "java.lang.ArithmeticException: / by zero"},
		{"second use", func() error {
			_, err := vm.Invoke("Bad", "pong", "()I")
			return err
		}, "java.lang.NoClassDefFoundError: Could not initialize class Bad"},
		{"subclass", func() error {
			_, err := vm.LoadClass("BadChild")
			return err
		}, "java.lang.NoClassDefFoundError: Could not initialize class Bad"},
	}
	for _, tt := range tests {
		gx := guestException(t, tt.call())
		if gx.Error() != tt.want {
			t.Errorf("%s: error = %q, want %q", tt.name, gx.Error(), tt.want)
		}
	}
}

func TestClassCircularity(t *testing.T) {
	vm, _, _ := testVM(t, buildClass("Ping", "Pong").Build(), buildClass("Pong", "Ping").Build())
	for i := 0; i < 2; i++ {
		_, err := vm.LoadClass("Ping")
		var unresolved *UnresolvedSymbolError
		if !errors.As(err, &unresolved) || unresolved.Kind != "class" {
			t.Errorf("attempt %d: error = %v, want unresolved class", i+1, err)
		}
	}
}

func TestClone(t *testing.T) {
	pair := buildClass("Pair", ObjectClass).Implements(CloneableClass)
	pair.AddField(classfile.AccPublic, "x", "I")
	addDefaultInit(pair, ObjectClass)
	addMethod(pair, classfile.AccPublic, "copy", "()Ljava/lang/Object;", 1, 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpAload0).Invoke(bytecode.OpInvokespecial, ObjectClass, "clone", "()Ljava/lang/Object;")
		a.Emit(bytecode.OpAreturn)
	})
	vm, _, _ := testVM(t, pair.Build(), buildClass("Plain", ObjectClass).Build())

	orig := vm.NewObject(mustLoad(t, vm, "Pair"))
	orig.SetField("Pair", "x", int32(5))
	dup, ok := mustInvoke(t, vm, "Pair", "copy", "()Ljava/lang/Object;", orig).(*Object)
	if !ok || dup == orig || dup.Class != orig.Class {
		t.Fatalf("copy() = %v, want a distinct Pair", dup)
	}
	dup.SetField("Pair", "x", int32(6))
	if got := orig.GetField("Pair", "x"); got != Value(int32(5)) {
		t.Errorf("original x = %v after writing the clone, want 5", got)
	}
	if dup.HashCode() == orig.HashCode() {
		t.Errorf("clone shares the identity hash of the original")
	}

	_, err := vm.Clone(vm.NewObject(mustLoad(t, vm, "Plain")))
	gx := guestException(t, err)
	if gx.Error() != "java.lang.CloneNotSupportedException: Plain" {
		t.Errorf("clone of Plain error = %q", gx.Error())
	}
}
