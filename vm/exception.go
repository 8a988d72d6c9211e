package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Guest exceptions raised by the engine
// ---------------------------------------------------------------------------

// throwNew constructs an exception of the named class through its
// (Ljava/lang/String;)V constructor, or ()V when msg is empty and the class
// declares one, and returns it as a *GuestException. Failures while
// constructing the exception are returned in its place.
func (vm *VM) throwNew(className, msg string) error {
	c, err := vm.LoadClass(className)
	if err != nil {
		return err
	}
	var obj *Object
	if msg == "" && c.DeclaredMethod("<init>", "()V") != nil {
		obj, err = vm.NewObjectWithConstructor(c, "()V")
	} else {
		var text Value
		if msg != "" {
			if text, err = vm.NewString(msg); err != nil {
				return err
			}
		}
		obj, err = vm.NewObjectWithConstructor(c, "(Ljava/lang/String;)V", text)
	}
	if err != nil {
		return err
	}
	return &GuestException{Object: obj}
}

// ---------------------------------------------------------------------------
// Stack traces
// ---------------------------------------------------------------------------

// traceFrames returns the frames a stack trace for throwable should list:
// the active chain minus fillInStackTrace and the throwable's own
// constructors.
func (vm *VM) traceFrames(throwable *Object) []*Frame {
	f := vm.current
	for f != nil && hiddenFromTrace(f, throwable) {
		f = f.Caller
	}
	var frames []*Frame
	for ; f != nil; f = f.Caller {
		frames = append(frames, f)
	}
	return frames
}

func hiddenFromTrace(f *Frame, throwable *Object) bool {
	switch f.Method.Name {
	case "fillInStackTrace":
		return true
	case "<init>":
		return len(f.Locals) > 0 && f.Locals[0] == Value(throwable)
	}
	return false
}

// fillInStackTrace records the active call chain on the receiver as an
// array of StackTraceElement and returns the receiver.
func fillInStackTrace(vm *VM, locals []Value) (Value, error) {
	throwable := asObject(locals[0])
	frames := vm.traceFrames(throwable)

	elemClass, err := vm.LoadClass(StackTraceElementName)
	if err != nil {
		return nil, err
	}
	elems := make([]Value, len(frames))
	for i, f := range frames {
		cls, err := vm.NewString(f.Method.Class.Descriptor.JavaName())
		if err != nil {
			return nil, err
		}
		method, err := vm.NewString(f.Method.Name)
		if err != nil {
			return nil, err
		}
		var file Value
		if src := f.Method.Class.SourceFile(); src != "" {
			if file, err = vm.NewString(src); err != nil {
				return nil, err
			}
		}
		line := int32(f.LineNumber())
		if f.IsNative() {
			line = -2
		}
		elem, err := vm.NewObjectWithConstructor(elemClass,
			"(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;I)V", cls, method, file, line)
		if err != nil {
			return nil, err
		}
		elems[i] = elem
	}
	trace, err := vm.NewArrayOf(FromInternal(StackTraceElementName), elems)
	if err != nil {
		return nil, err
	}
	if _, err := vm.Invoke(throwable.Class.Name, "setStackTrace", "([Ljava/lang/StackTraceElement;)V", throwable, trace); err != nil {
		return nil, err
	}
	return throwable, nil
}

// printStackTrace writes the receiver's description and recorded trace to
// the guest error stream.
func printStackTrace(vm *VM, locals []Value) (Value, error) {
	throwable := asObject(locals[0])
	var b strings.Builder
	b.WriteString(throwable.Class.Descriptor.JavaName())
	msg, err := vm.Invoke(throwable.Class.Name, "getMessage", "()Ljava/lang/String;", throwable)
	if err != nil {
		return nil, err
	}
	if msg != nil {
		text, err := vm.GoString(msg)
		if err != nil {
			return nil, err
		}
		b.WriteString(": ")
		b.WriteString(text)
	}
	b.WriteByte('\n')

	trace, err := vm.Invoke(throwable.Class.Name, "getStackTrace", "()[Ljava/lang/StackTraceElement;", throwable)
	if err != nil {
		return nil, err
	}
	if arr := asObject(trace); arr != nil {
		for _, v := range arr.Values {
			line, err := vm.formatTraceElement(asObject(v))
			if err != nil {
				return nil, err
			}
			b.WriteString("\tat ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	_, err = fmt.Fprint(vm.Stderr, b.String())
	return nil, err
}

// formatTraceElement renders cls.method(File.java:12).
func (vm *VM) formatTraceElement(elem *Object) (string, error) {
	if elem == nil {
		return "null", nil
	}
	field := func(name string) (string, error) {
		v := elem.GetField(StackTraceElementName, name)
		if v == nil {
			return "", nil
		}
		return vm.GoString(v)
	}
	cls, err := field("declaringClass")
	if err != nil {
		return "", err
	}
	method, err := field("methodName")
	if err != nil {
		return "", err
	}
	file, err := field("fileName")
	if err != nil {
		return "", err
	}
	line, _ := elem.GetField(StackTraceElementName, "lineNumber").(int32)

	var where string
	switch {
	case line == -2:
		where = "Native Method"
	case file == "":
		where = "Unknown Source"
	case line > 0:
		where = fmt.Sprintf("%s:%d", file, line)
	default:
		where = file
	}
	return fmt.Sprintf("%s.%s(%s)", cls, method, where), nil
}
