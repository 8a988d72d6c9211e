package vm

import (
	"strings"
	"sync"
	"unicode"
)

// ---------------------------------------------------------------------------
// Native bridge
// ---------------------------------------------------------------------------

// NativeFunc implements a native method. locals holds the receiver (for
// instance methods) followed by the arguments, laid out like a frame's
// locals. A void method returns nil.
type NativeFunc func(vm *VM, locals []Value) (Value, error)

type nativeKey struct {
	class, name, descriptor string
}

// NativeTable maps native methods to host functions. Exact registrations
// by (class, method, descriptor) win; mangled names keyed by (class, method)
// are consulted after.
type NativeTable struct {
	mu      sync.RWMutex
	exact   map[nativeKey]NativeFunc
	mangled map[string]NativeFunc
}

// NewNativeTable creates an empty table.
func NewNativeTable() *NativeTable {
	return &NativeTable{
		exact:   make(map[nativeKey]NativeFunc),
		mangled: make(map[string]NativeFunc),
	}
}

// Register binds fn to one exact method.
func (t *NativeTable) Register(class, name, descriptor string, fn NativeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exact[nativeKey{class, name, descriptor}] = fn
}

// RegisterMangled binds fn to a mangled name such as
// Java_lang_jni_System_arraycopy. It serves every overload of the method.
func (t *NativeTable) RegisterMangled(symbol string, fn NativeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mangled[symbol] = fn
}

// Lookup finds the host function for a native method.
func (t *NativeTable) Lookup(class, name, descriptor string) (NativeFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if fn, ok := t.exact[nativeKey{class, name, descriptor}]; ok {
		return fn, true
	}
	fn, ok := t.mangled[MangleNativeName(class, name)]
	return fn, ok
}

// Len returns the number of registrations of both kinds.
func (t *NativeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.exact) + len(t.mangled)
}

// MangleNativeName derives the host symbol of a native method. Package
// separators become underscores, "jni_" is inserted before the simple class
// name, inner-class separators become underscores, the first letter is
// upper-cased and the method name is appended:
//
//	java/lang/System     arraycopy  ->  Java_lang_jni_System_arraycopy
//	java/lang/System$1   write      ->  Java_lang_jni_System_1_write
//	Main                 hello      ->  Jni_Main_hello
func MangleNativeName(class, method string) string {
	var b strings.Builder
	if i := strings.LastIndexByte(class, '/'); i >= 0 {
		b.WriteString(strings.ReplaceAll(class[:i], "/", "_"))
		b.WriteString("_jni_")
		b.WriteString(class[i+1:])
	} else {
		b.WriteString("jni_")
		b.WriteString(class)
	}
	s := strings.ReplaceAll(b.String(), "$", "_")
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r) + "_" + method
}

// invokeNative runs a native method in its own frame.
func (vm *VM) invokeNative(f *Frame) (Value, error) {
	m := f.Method
	fn, ok := vm.Natives.Lookup(m.Class.Name, m.Name, m.Descriptor)
	if !ok {
		return nil, &UnresolvedSymbolError{Kind: "native", Symbol: m.String() + " (" + MangleNativeName(m.Class.Name, m.Name) + ")"}
	}
	vm.nativeLog.Debugf("native %s", m)
	result, err := fn(vm, f.Locals)
	if err != nil {
		return nil, err
	}
	if m.Type.Return.IsVoid() {
		return nil, nil
	}
	return coerce(m.Type.Return, result), nil
}
