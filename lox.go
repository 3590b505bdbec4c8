// Package lox is the embedding API for the compiler and VM: construct
// a VM, feed it source, register native functions, and read results
// back out. Everything below this layer (internal/heap,
// internal/compiler, internal/vm) is not exported, the same way the
// runtime internals of an embedded scripting language normally aren't.
package lox

import (
	"io"
	"os"

	"github.com/loxlang/golox/internal/disasm"
	"github.com/loxlang/golox/internal/heap"
	"github.com/loxlang/golox/internal/vm"
)

// Value is a host-facing view of a runtime Value: enough to inspect
// results from the top level without exposing the heap package.
type Value struct{ v heap.Value }

func (v Value) IsNil() bool    { return v.v.IsNil() }
func (v Value) IsBool() bool   { return v.v.IsBool() }
func (v Value) IsNumber() bool { return v.v.IsNumber() }
func (v Value) Bool() bool     { return v.v.Bool }
func (v Value) Number() float64 { return v.v.Number }
func (v Value) String() string { return disasm.ValueString(v.v) }

// FrameTrace mirrors vm.FrameInfo for callers who don't want to import
// the internal vm package's error type directly.
type FrameTrace struct {
	Line     int
	FuncName string
}

// RuntimeError is returned by Interpret/InterpretFile when the program
// compiles but fails at runtime.
type RuntimeError struct {
	Message string
	Trace   []FrameTrace
}

func (e *RuntimeError) Error() string { return e.Message }

// TraceHook receives every runtime error's trace as it happens, in
// addition to whatever error Interpret returns; a REPL uses this to
// render a report immediately even when it discards the returned error.
type TraceHook func(*RuntimeError)

// NativeFunc is a host callable exposed to Lox code via DefineNative.
type NativeFunc func(args []Value) (Value, error)

// VM wraps the interpreter with the narrower surface an embedder needs:
// no reflection-based marshaling, no VM duplication or async calls —
// this system has no module system or persistent artifacts to hang
// those features off of.
type VM struct {
	inner *vm.VM
}

// NewVM constructs a VM with stdout/stderr wired to os.Stdout/os.Stderr
// by default; override with SetOutput/SetError before Interpret.
func NewVM() *VM {
	inner := vm.New()
	inner.Stdout = os.Stdout
	inner.Stderr = os.Stderr
	return &VM{inner: inner}
}

// SetOutput redirects PRINT statement output.
func (m *VM) SetOutput(w io.Writer) { m.inner.Stdout = w }

// SetError redirects compile/runtime error text.
func (m *VM) SetError(w io.Writer) { m.inner.Stderr = w }

// SetStressGC forces a collection on every allocation; for tests that
// exercise GC root-marking correctness under adversarial conditions.
func (m *VM) SetStressGC(on bool) { m.inner.Heap().StressGC = on }

// SetGCLog installs a sink for one line per GC lifecycle event.
func (m *VM) SetGCLog(fn func(string)) { m.inner.Heap().LogGC = fn }

// OnRuntimeError installs hook as the VM's trace hook.
func (m *VM) OnRuntimeError(hook TraceHook) {
	if hook == nil {
		m.inner.OnRuntimeError = nil
		return
	}
	m.inner.OnRuntimeError = func(e *vm.RuntimeError) {
		trace := make([]FrameTrace, len(e.Trace))
		for i, fi := range e.Trace {
			trace[i] = FrameTrace{Line: fi.Line, FuncName: fi.FuncName}
		}
		hook(&RuntimeError{Message: e.Message, Trace: trace})
	}
}

// DefineNative registers a host function reachable from Lox as a
// global with the given arity.
func (m *VM) DefineNative(name string, arity int, fn NativeFunc) {
	m.inner.DefineNative(name, arity, func(args []heap.Value) (heap.Value, error) {
		wrapped := make([]Value, len(args))
		for i, a := range args {
			wrapped[i] = Value{v: a}
		}
		result, err := fn(wrapped)
		return result.v, err
	})
}

// Global reads a top-level global's current value.
func (m *VM) Global(name string) (Value, bool) {
	v, ok := m.inner.Global(name)
	return Value{v: v}, ok
}

// Interpret compiles and runs source as a fresh top-level program.
func (m *VM) Interpret(source string) error {
	_, err := m.inner.Interpret(source)
	if err == nil {
		return nil
	}
	if rerr, ok := err.(*vm.RuntimeError); ok {
		trace := make([]FrameTrace, len(rerr.Trace))
		for i, fi := range rerr.Trace {
			trace[i] = FrameTrace{Line: fi.Line, FuncName: fi.FuncName}
		}
		return &RuntimeError{Message: rerr.Message, Trace: trace}
	}
	return err
}

// InterpretFile reads path and interprets its contents.
func (m *VM) InterpretFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.Interpret(string(src))
}
