package vm

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/chazu/javelin/bytecode"
	"github.com/chazu/javelin/classfile"
	"github.com/chazu/javelin/rt"
)

func TestEveryLibraryNativeBound(t *testing.T) {
	vm, _, _ := testVM(t)
	for _, name := range rt.Names() {
		c, err := rt.Load(name)
		if err != nil {
			t.Fatalf("rt.Load(%s): %v", name, err)
		}
		for _, m := range c.Methods {
			if !m.AccessFlags.IsNative() {
				continue
			}
			if _, ok := vm.Natives.Lookup(c.Name, m.Name, m.Descriptor); !ok {
				t.Errorf("no native bound for %s.%s%s", c.Name, m.Name, m.Descriptor)
			}
		}
	}
}

func TestPrintln(t *testing.T) {
	out := func(a *bytecode.Assembler) {
		a.Field(bytecode.OpGetstatic, "java/lang/System", "out", "Ljava/io/PrintStream;")
	}
	printLine := func(a *bytecode.Assembler, desc string) {
		a.Invoke(bytecode.OpInvokevirtual, "java/io/PrintStream", "println", "("+desc+")V")
	}
	main := mainClass(func(b *classfile.Builder) {
		addMethod(b, publicStatic, "main", "([Ljava/lang/String;)V", 3, 1, func(a *bytecode.Assembler) {
			out(a)
			a.LoadString("hello")
			printLine(a, "Ljava/lang/String;")
			out(a)
			a.PushInt(42)
			printLine(a, "I")
			out(a)
			a.PushLong(1 << 40)
			printLine(a, "J")
			out(a)
			a.PushDouble(1)
			printLine(a, "D")
			out(a)
			a.PushDouble(1e10)
			printLine(a, "D")
			out(a)
			a.Emit(bytecode.OpIconst1)
			printLine(a, "Z")
			out(a)
			a.PushInt('A')
			printLine(a, "C")
			out(a)
			a.Emit(bytecode.OpAconstNull)
			printLine(a, "Ljava/lang/String;")
			out(a)
			a.Invoke(bytecode.OpInvokevirtual, "java/io/PrintStream", "println", "()V")
			a.Field(bytecode.OpGetstatic, "java/lang/System", "err", "Ljava/io/PrintStream;")
			a.LoadString("oops")
			a.Invoke(bytecode.OpInvokevirtual, "java/io/PrintStream", "print", "(Ljava/lang/String;)V")
			a.Emit(bytecode.OpReturn)
		})
	})
	vm, stdout, stderr := testVM(t, main)
	if err := vm.RunMain("Main", nil); err != nil {
		t.Fatalf("RunMain error: %v", err)
	}
	want := "hello\n42\n1099511627776\n1.0\n1.0E10\ntrue\nA\nnull\n\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
	if stderr.String() != "oops" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "oops")
	}
}

func TestStringBuilderConcat(t *testing.T) {
	const sb = "java/lang/StringBuilder"
	b := buildClass("T", ObjectClass)
	addMethod(b, publicStatic, "run", "()Ljava/lang/String;", 4, 0, func(a *bytecode.Assembler) {
		appendOp := func(desc string) {
			a.Invoke(bytecode.OpInvokevirtual, sb, "append", "("+desc+")Ljava/lang/StringBuilder;")
		}
		a.TypeOp(bytecode.OpNew, sb).Emit(bytecode.OpDup).Invoke(bytecode.OpInvokespecial, sb, "<init>", "()V")
		a.LoadString("a")
		appendOp("Ljava/lang/String;")
		a.Emit(bytecode.OpIconst5)
		appendOp("I")
		a.PushDouble(1.5)
		appendOp("D")
		a.Emit(bytecode.OpIconst0)
		appendOp("Z")
		a.Emit(bytecode.OpAconstNull)
		appendOp("Ljava/lang/Object;")
		a.Invoke(bytecode.OpInvokevirtual, sb, "toString", "()Ljava/lang/String;").Emit(bytecode.OpAreturn)
	})
	vm, _, _ := testVM(t, b.Build())
	got, err := vm.GoString(mustInvoke(t, vm, "T", "run", "()Ljava/lang/String;"))
	if err != nil {
		t.Fatalf("GoString error: %v", err)
	}
	if got != "a51.5falsenull" {
		t.Errorf("concatenation = %q, want %q", got, "a51.5falsenull")
	}
}

func TestStringNatives(t *testing.T) {
	vm, _, _ := testVM(t)
	hello := mustString(t, vm, "hello")

	if got := mustInvoke(t, vm, StringClass, "hashCode", "()I", hello); got != Value(int32(99162322)) {
		t.Errorf("hashCode() = %v, want 99162322", got)
	}
	if got := mustInvoke(t, vm, StringClass, "length", "()I", mustString(t, vm, "héllo")); got != Value(int32(5)) {
		t.Errorf("length() = %v, want 5", got)
	}
	if got := mustInvoke(t, vm, StringClass, "charAt", "(I)C", mustString(t, vm, "héllo"), int32(1)); got != Value(int32('é')) {
		t.Errorf("charAt(1) = %v, want %d", got, 'é')
	}
	if got := mustInvoke(t, vm, StringClass, "equals", "(Ljava/lang/Object;)Z", hello, mustString(t, vm, "hello")); got != Value(int32(1)) {
		t.Errorf("equals(equal text) = %v, want 1", got)
	}
	if got := mustInvoke(t, vm, StringClass, "equals", "(Ljava/lang/Object;)Z", hello, nil); got != Value(int32(0)) {
		t.Errorf("equals(null) = %v, want 0", got)
	}
	if got := mustInvoke(t, vm, StringClass, "isEmpty", "()Z", mustString(t, vm, "")); got != Value(int32(1)) {
		t.Errorf("isEmpty(\"\") = %v, want 1", got)
	}

	cat := mustInvoke(t, vm, StringClass, "concat", "(Ljava/lang/String;)Ljava/lang/String;", hello, mustString(t, vm, " world"))
	if s, _ := vm.GoString(cat); s != "hello world" {
		t.Errorf("concat = %q", s)
	}

	_, err := vm.Invoke(StringClass, "charAt", "(I)C", hello, int32(5))
	if gx := guestException(t, err); gx.ClassName() != StringIndexOutOfBoundsException {
		t.Errorf("charAt(5) threw %s", gx.ClassName())
	}
}

func TestStringValueOf(t *testing.T) {
	vm, _, _ := testVM(t)
	tests := []struct {
		desc string
		in   Value
		want string
	}{
		{"I", int32(-42), "-42"},
		{"J", int64(1) << 40, "1099511627776"},
		{"Z", int32(1), "true"},
		{"C", int32('x'), "x"},
		{"F", float32(0.1), "0.1"},
		{"D", 1e-4, "1.0E-4"},
		{"D", 123.456, "123.456"},
		{"Ljava/lang/Object;", nil, "null"},
	}
	for _, tt := range tests {
		v := mustInvoke(t, vm, StringClass, "valueOf", "("+tt.desc+")Ljava/lang/String;", tt.in)
		if got, _ := vm.GoString(v); got != tt.want {
			t.Errorf("valueOf(%s %v) = %q, want %q", tt.desc, tt.in, got, tt.want)
		}
	}
}

func TestFormatFloating(t *testing.T) {
	tests := []struct {
		x    float64
		bits int
		want string
	}{
		{1, 64, "1.0"},
		{-2.5, 64, "-2.5"},
		{1e7, 64, "1.0E7"},
		{1234567, 64, "1234567.0"},
		{1e10, 64, "1.0E10"},
		{0.001, 64, "0.001"},
		{1.5e-5, 64, "1.5E-5"},
		{math.Copysign(0, -1), 64, "-0.0"},
		{math.NaN(), 64, "NaN"},
		{math.Inf(-1), 64, "-Infinity"},
		{float64(float32(0.1)), 32, "0.1"},
	}
	for _, tt := range tests {
		if got := formatFloating(tt.x, tt.bits); got != tt.want {
			t.Errorf("formatFloating(%g, %d) = %q, want %q", tt.x, tt.bits, got, tt.want)
		}
	}
}

func TestIntegerNatives(t *testing.T) {
	vm, _, _ := testVM(t)
	if got := mustInvoke(t, vm, "java/lang/Integer", "parseInt", "(Ljava/lang/String;)I", mustString(t, vm, "-42")); got != Value(int32(-42)) {
		t.Errorf("parseInt(-42) = %v", got)
	}
	tests := []struct {
		in   Value
		want string
	}{
		{mustString(t, vm, "12a"), "java.lang.NumberFormatException: For input string: \"12a\""},
		{mustString(t, vm, "2147483648"), "java.lang.NumberFormatException: For input string: \"2147483648\""},
		{nil, "java.lang.NumberFormatException: Cannot parse null string: null"},
	}
	for _, tt := range tests {
		_, err := vm.Invoke("java/lang/Integer", "parseInt", "(Ljava/lang/String;)I", tt.in)
		if gx := guestException(t, err); gx.Error() != tt.want {
			t.Errorf("parseInt error = %q, want %q", gx.Error(), tt.want)
		}
	}

	boxed := mustInvoke(t, vm, "java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", int32(7))
	if got := mustInvoke(t, vm, "java/lang/Integer", "intValue", "()I", boxed); got != Value(int32(7)) {
		t.Errorf("valueOf(7).intValue() = %v", got)
	}
	text := mustInvoke(t, vm, "java/lang/Integer", "toString", "()Ljava/lang/String;", boxed)
	if s, _ := vm.GoString(text); s != "7" {
		t.Errorf("Integer.toString() = %q, want 7", s)
	}
}

func TestMathNatives(t *testing.T) {
	vm, _, _ := testVM(t)
	tests := []struct {
		name, desc string
		args       []Value
		want       Value
	}{
		{"abs", "(I)I", []Value{int32(-5)}, int32(5)},
		{"abs", "(J)J", []Value{int64(-5)}, int64(5)},
		{"max", "(II)I", []Value{int32(3), int32(9)}, int32(9)},
		{"min", "(JJ)J", []Value{int64(3), int64(9)}, int64(3)},
		{"max", "(DD)D", []Value{2.5, -1.0}, 2.5},
		{"sqrt", "(D)D", []Value{16.0}, 4.0},
		{"pow", "(DD)D", []Value{2.0, 10.0}, 1024.0},
	}
	for _, tt := range tests {
		if got := mustInvoke(t, vm, "java/lang/Math", tt.name, tt.desc, tt.args...); got != tt.want {
			t.Errorf("Math.%s%s = %#v, want %#v", tt.name, tt.desc, got, tt.want)
		}
	}
	pi := mustLoad(t, vm, "java/lang/Math").Statics.GetField("java/lang/Math", "PI")
	if pi != Value(math.Pi) {
		t.Errorf("Math.PI = %v", pi)
	}
}

func TestArraycopy(t *testing.T) {
	vm, _, _ := testVM(t)
	const desc = "(Ljava/lang/Object;ILjava/lang/Object;II)V"
	ints := func(values ...int32) *Object {
		elems := make([]Value, len(values))
		for i, v := range values {
			elems[i] = v
		}
		arr, err := vm.NewArrayOf(TypeInt, elems)
		if err != nil {
			t.Fatalf("NewArrayOf error: %v", err)
		}
		return arr
	}

	src := ints(1, 2, 3, 4, 5)
	mustInvoke(t, vm, "java/lang/System", "arraycopy", desc, src, int32(0), src, int32(1), int32(4))
	if got := fmt.Sprint(src.Values); got != "[1 1 2 3 4]" {
		t.Errorf("overlapping copy = %s, want [1 1 2 3 4]", got)
	}

	longs, _ := vm.NewArrayOf(TypeLong, []Value{int64(1)})
	tests := []struct {
		name string
		args []Value
		want string
	}{
		{"null", []Value{nil, int32(0), src, int32(0), int32(1)}, NullPointerException},
		{"range", []Value{src, int32(3), ints(0, 0, 0), int32(0), int32(3)}, ArrayIndexOutOfBoundsException},
		{"negative", []Value{src, int32(0), src, int32(0), int32(-1)}, ArrayIndexOutOfBoundsException},
		{"types", []Value{src, int32(0), longs, int32(0), int32(1)}, ArrayStoreException},
	}
	for _, tt := range tests {
		_, err := vm.Invoke("java/lang/System", "arraycopy", desc, tt.args...)
		if gx := guestException(t, err); gx.ClassName() != tt.want {
			t.Errorf("%s: threw %s, want %s", tt.name, gx.ClassName(), tt.want)
		}
	}

	integer, err := vm.NewObjectWithConstructor(mustLoad(t, vm, "java/lang/Integer"), "(I)V", int32(1))
	if err != nil {
		t.Fatalf("new Integer: %v", err)
	}
	word := mustString(t, vm, "a")
	objects, _ := vm.NewArrayOf(FromInternal(ObjectClass), []Value{word, integer})
	strs, _ := vm.NewArrayOf(FromInternal(StringClass), []Value{nil, nil})
	_, err = vm.Invoke("java/lang/System", "arraycopy", desc, objects, int32(0), strs, int32(0), int32(2))
	if gx := guestException(t, err); gx.ClassName() != ArrayStoreException {
		t.Errorf("mixed copy threw %s, want %s", gx.ClassName(), ArrayStoreException)
	}
	if strs.Values[0] != Value(word) || strs.Values[1] != nil {
		t.Errorf("after rejected element: %v, want [a null]", strs.Values)
	}
}

func TestObjectNatives(t *testing.T) {
	vm, _, _ := testVM(t, buildClass("Thing", ObjectClass).Build())
	obj := vm.NewObject(mustLoad(t, vm, "Thing"))

	if got := mustInvoke(t, vm, ObjectClass, "hashCode", "()I", obj); got != Value(obj.HashCode()) {
		t.Errorf("hashCode() = %v, want %d", got, obj.HashCode())
	}
	text := mustInvoke(t, vm, ObjectClass, "toString", "()Ljava/lang/String;", obj)
	if s, _ := vm.GoString(text); s != fmt.Sprintf("Thing@%x", obj.HashCode()) {
		t.Errorf("toString() = %q", s)
	}
	if got := mustInvoke(t, vm, ObjectClass, "equals", "(Ljava/lang/Object;)Z", obj, obj); got != Value(int32(1)) {
		t.Errorf("equals(self) = %v, want 1", got)
	}

	mirror := mustInvoke(t, vm, ObjectClass, "getClass", "()Ljava/lang/Class;", mustString(t, vm, "s"))
	if again := mustInvoke(t, vm, ObjectClass, "getClass", "()Ljava/lang/Class;", mustString(t, vm, "t")); again != mirror {
		t.Errorf("getClass returned distinct mirrors for one class")
	}
	for _, tt := range []struct {
		class, want string
	}{
		{StringClass, "class java.lang.String"},
		{"java/lang/CharSequence", "interface java.lang.CharSequence"},
		{"[I", "class [I"},
	} {
		m, err := vm.ClassMirror(mustLoad(t, vm, tt.class))
		if err != nil {
			t.Fatalf("ClassMirror error: %v", err)
		}
		s, _ := vm.GoString(mustInvoke(t, vm, ClassClass, "toString", "()Ljava/lang/String;", m))
		if s != tt.want {
			t.Errorf("mirror of %s toString() = %q, want %q", tt.class, s, tt.want)
		}
	}
}

// hostClass declares natives that the tests bind by hand.
func hostClass() *classfile.Class {
	b := buildClass("demo/Host", ObjectClass)
	b.AddNativeMethod(publicStatic, "answer", "()I")
	b.AddNativeMethod(publicStatic, "small", "()B")
	b.AddNativeMethod(publicStatic, "callback", "(I)I")
	b.AddNativeMethod(publicStatic, "unbound", "()V")
	addMethod(b, publicStatic, "twice", "(I)I", 2, 1, func(a *bytecode.Assembler) {
		a.Emit(bytecode.OpIload0, bytecode.OpIconst2, bytecode.OpImul, bytecode.OpIreturn)
	})
	return b.Build()
}

func TestHostNatives(t *testing.T) {
	vm, _, _ := testVM(t, hostClass())
	vm.Natives.RegisterMangled(MangleNativeName("demo/Host", "answer"), func(vm *VM, locals []Value) (Value, error) {
		return int32(99), nil
	})
	vm.Natives.Register("demo/Host", "small", "()B", func(vm *VM, locals []Value) (Value, error) {
		return int32(300), nil
	})
	vm.Natives.Register("demo/Host", "callback", "(I)I", func(vm *VM, locals []Value) (Value, error) {
		return vm.Invoke("demo/Host", "twice", "(I)I", locals[0])
	})

	if got := mustInvoke(t, vm, "demo/Host", "answer", "()I"); got != Value(int32(99)) {
		t.Errorf("answer() = %v, want 99", got)
	}
	if got := mustInvoke(t, vm, "demo/Host", "small", "()B"); got != Value(int32(44)) {
		t.Errorf("small() = %v, want 44 after byte narrowing", got)
	}
	if got := mustInvoke(t, vm, "demo/Host", "callback", "(I)I", int32(21)); got != Value(int32(42)) {
		t.Errorf("callback(21) = %v, want 42", got)
	}

	_, err := vm.Invoke("demo/Host", "unbound", "()V")
	var unresolved *UnresolvedSymbolError
	if !errors.As(err, &unresolved) || unresolved.Kind != "native" {
		t.Errorf("unbound native: error = %v, want unresolved native", err)
	}
}

func TestNativeTableLookupOrder(t *testing.T) {
	table := NewNativeTable()
	exact := func(vm *VM, locals []Value) (Value, error) { return int32(1), nil }
	mangled := func(vm *VM, locals []Value) (Value, error) { return int32(2), nil }
	table.RegisterMangled(MangleNativeName("demo/Host", "f"), mangled)
	table.Register("demo/Host", "f", "(I)I", exact)

	fn, ok := table.Lookup("demo/Host", "f", "(I)I")
	if !ok {
		t.Fatalf("Lookup found nothing")
	}
	if v, _ := fn(nil, nil); v != Value(int32(1)) {
		t.Errorf("exact binding not preferred")
	}
	fn, ok = table.Lookup("demo/Host", "f", "(J)I")
	if !ok {
		t.Fatalf("mangled fallback not found")
	}
	if v, _ := fn(nil, nil); v != Value(int32(2)) {
		t.Errorf("fallback returned %v, want the mangled binding", v)
	}
	if _, ok := table.Lookup("demo/Host", "g", "()V"); ok {
		t.Errorf("Lookup of unregistered native succeeded")
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
}
