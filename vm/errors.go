package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Engine errors
// ---------------------------------------------------------------------------

// ErrStackUnderflow is reported when an instruction pops an empty operand stack.
var ErrStackUnderflow = errors.New("operand stack underflow")

// UnresolvedSymbolError reports a class, field, method or native that cannot
// be bound. It is fatal and never visible to guest handlers.
type UnresolvedSymbolError struct {
	Kind   string // "class", "field", "method" or "native"
	Symbol string
	Cause  error
}

func (e *UnresolvedSymbolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unresolved %s %s: %v", e.Kind, e.Symbol, e.Cause)
	}
	return fmt.Sprintf("unresolved %s %s", e.Kind, e.Symbol)
}

func (e *UnresolvedSymbolError) Unwrap() error { return e.Cause }

// MalformedCodeError reports bytecode the engine cannot execute: unknown or
// unsupported opcodes, truncated operands, type confusion on the stack.
type MalformedCodeError struct {
	Method string
	PC     int
	Reason string
	Cause  error
}

func (e *MalformedCodeError) Error() string {
	msg := e.Reason
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg += ": " + e.Cause.Error()
		}
	}
	if e.Method == "" {
		return "malformed code: " + msg
	}
	return fmt.Sprintf("malformed code in %s at pc %d: %s", e.Method, e.PC, msg)
}

func (e *MalformedCodeError) Unwrap() error { return e.Cause }

// GuestException is a guest throwable in flight. It is the only error kind
// matched against exception tables.
type GuestException struct {
	Object *Object
}

func (e *GuestException) Error() string {
	if e.Object == nil || e.Object.Class == nil {
		return "guest exception"
	}
	name := e.Object.Class.Descriptor.JavaName()
	if msg, ok := rawString(e.Object.GetField(ThrowableClass, "message")); ok {
		return name + ": " + msg
	}
	return name
}

// ClassName returns the internal name of the thrown object's class.
func (e *GuestException) ClassName() string {
	return e.Object.Class.Name
}

// rawString reads a guest String's bytes without running guest code. It is
// used only where running the interpreter is not possible (error text).
func rawString(v Value) (string, bool) {
	obj, ok := v.(*Object)
	if !ok || obj == nil {
		return "", false
	}
	arr, ok := obj.GetField(StringClass, "value").(*Object)
	if !ok || arr == nil {
		return "", false
	}
	return string(arr.Bytes()), true
}

// IsGuestException reports whether err carries a guest throwable.
func IsGuestException(err error) bool {
	var gx *GuestException
	return errors.As(err, &gx)
}
