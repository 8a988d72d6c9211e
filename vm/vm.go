// Package vm is the execution engine: class runtime records, symbol
// resolution, object allocation, the bytecode interpreter and the native
// method bridge.
//
// A VM is a single-threaded engine context. Every cache it owns (classes,
// resolutions, interned strings) is mutated in place during execution, so a
// VM must not be shared between goroutines while it runs guest code.
package vm

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/javelin/classfile"
)

// DefaultMaxFrameDepth bounds guest call depth before StackOverflowError.
const DefaultMaxFrameDepth = 2048

// ClassProvider supplies class metadata by internal name.
type ClassProvider interface {
	LoadClass(name string) (*classfile.Class, error)
}

// ProviderFunc adapts a function to ClassProvider.
type ProviderFunc func(name string) (*classfile.Class, error)

// LoadClass implements ClassProvider.
func (f ProviderFunc) LoadClass(name string) (*classfile.Class, error) { return f(name) }

// ---------------------------------------------------------------------------
// VM: engine context
// ---------------------------------------------------------------------------

// VM bundles the class arena, native table, interned strings and
// diagnostics of one engine instance.
type VM struct {
	// ID distinguishes engines in log output.
	ID string

	Classes *ClassTable
	Natives *NativeTable

	// Guest standard output and error streams.
	Stdout io.Writer
	Stderr io.Writer

	// MaxFrameDepth is the deepest permitted call chain.
	MaxFrameDepth int

	// Profiler, when set, counts every method invocation.
	Profiler *Profiler

	provider ClassProvider
	current  *Frame
	interned map[string]*Object
	nextHash int32
	started  time.Time

	// handlingOverflow is set while a StackOverflowError is being built so
	// its constructor can run past the depth limit.
	handlingOverflow bool

	log       commonlog.Logger
	loaderLog commonlog.Logger
	nativeLog commonlog.Logger
}

// New creates an engine that loads classes from provider. Built-in natives
// are registered; nothing is loaded until first use.
func New(provider ClassProvider) *VM {
	id := uuid.New().String()
	vm := &VM{
		ID:            id,
		Classes:       NewClassTable(),
		Natives:       NewNativeTable(),
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		MaxFrameDepth: DefaultMaxFrameDepth,
		provider:      provider,
		interned:      make(map[string]*Object),
		started:       time.Now(),
		log:           commonlog.NewKeyValueLogger(commonlog.GetLogger("javelin.interpreter"), "engine", id),
		loaderLog:     commonlog.NewKeyValueLogger(commonlog.GetLogger("javelin.loader"), "engine", id),
		nativeLog:     commonlog.NewKeyValueLogger(commonlog.GetLogger("javelin.native"), "engine", id),
	}
	registerBuiltinNatives(vm.Natives)
	return vm
}

// CurrentFrame returns the innermost active frame, or nil when idle.
func (vm *VM) CurrentFrame() *Frame { return vm.current }

// identityHash hands out per-engine identity hashes.
func (vm *VM) identityHash() int32 {
	vm.nextHash++
	return vm.nextHash
}
