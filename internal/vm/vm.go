// Package vm implements the stack-based bytecode interpreter: the
// evaluation stack, call frames, dispatch loop, and the runtime
// counterparts of the compiler's static decisions (upvalue capture,
// method binding, global lookup).
package vm

import (
	"fmt"
	"io"

	"github.com/loxlang/golox/internal/compiler"
	"github.com/loxlang/golox/internal/heap"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// frame is one activation record: the closure being executed, the
// instruction cursor into its chunk, and the window of the shared
// evaluation stack that belongs to it (receiver/callee at slots[0]).
type frame struct {
	closure *heap.ObjClosure
	ip      int
	slots   int // base index into vm.stack
}

// InterpretResult classifies how a top-level Interpret call ended.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// FrameInfo describes one line of a runtime error's stack trace.
type FrameInfo struct {
	Line     int
	FuncName string
}

// RuntimeError is returned by Interpret when the program raises an
// error at runtime (as opposed to failing to compile). It carries the
// same frame-by-frame trace the VM prints to its error sink.
type RuntimeError struct {
	Message string
	Trace   []FrameInfo
}

func (e *RuntimeError) Error() string { return e.Message }

// TraceHook, when installed, receives every runtime error's trace in
// addition to the VM's own error sink; the REPL uses it to render a
// prettier report without duplicating trace-formatting logic.
type TraceHook func(err *RuntimeError)

// VM owns one heap and one evaluation stack; it is never shared
// between goroutines and never reused for a second, unrelated program.
type VM struct {
	stack    [stackMax]heap.Value
	stackTop int

	frames     [framesMax]frame
	frameCount int

	openUpvalues *heap.ObjUpvalue

	globals *heap.Table
	heap    *heap.Heap

	activeCompiler heap.RootSource

	// Stderr receives compile and runtime error text, matching the
	// host program's own diagnostic stream. Stdout receives PRINT
	// statement output. Neither is buffered by the VM itself.
	Stdout io.Writer
	Stderr io.Writer

	OnRuntimeError TraceHook
}

// New constructs a VM with its own heap and globals table, and
// registers the built-in `clock` native.
func New() *VM {
	vm := &VM{
		globals: heap.NewTable(),
		heap:    heap.New(),
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	vm.heap.SetRoots(vm)
	vm.DefineNative("clock", 0, nativeClock)
	return vm
}

// Heap exposes the VM's heap so an embedder can tune StressGC/LogGC.
func (vm *VM) Heap() *heap.Heap { return vm.heap }

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v heap.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() heap.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) heap.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// DefineNative registers a host function under name in the global
// table, wrapping it in an ObjNative the same way any Lox-defined
// global would be reachable.
func (vm *VM) DefineNative(name string, arity int, fn heap.NativeFn) {
	native := vm.heap.NewNative(name, arity, fn)
	vm.globals.Set(vm.heap.InternString(name), heap.ObjVal(&native.Obj))
}

// Global reads a global variable's current value, for embedders that
// want to pull a result back out after Interpret returns.
func (vm *VM) Global(name string) (heap.Value, bool) {
	return vm.globals.Get(vm.heap.InternString(name))
}

// Interpret compiles and runs source as a fresh top-level program.
func (vm *VM) Interpret(source string) (InterpretResult, error) {
	p := compiler.NewParser(source, vm.heap)
	vm.activeCompiler = p
	fn, err := p.Compile()
	vm.activeCompiler = nil
	if err != nil {
		fmt.Fprintln(vm.Stderr, err.Error())
		return InterpretCompileError, err
	}

	vm.push(heap.ObjVal(&fn.Obj))
	closure := vm.heap.NewClosure(fn)
	vm.pop()
	vm.push(heap.ObjVal(&closure.Obj))
	if err := vm.callClosure(closure, 0); err != nil {
		return InterpretRuntimeError, err
	}

	if rerr := vm.run(); rerr != nil {
		return InterpretRuntimeError, rerr
	}
	return InterpretOK, nil
}

// MarkRoots implements heap.RootSource: every live stack slot, every
// frame's closure, the open-upvalue list, the globals table, and (via
// activeCompiler) any in-progress compile.
func (vm *VM) MarkRoots(h *heap.Heap) {
	for i := 0; i < vm.stackTop; i++ {
		h.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		h.MarkObject(&vm.frames[i].closure.Obj)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		h.MarkObject(&uv.Obj)
	}
	vm.globals.Mark(h)
	if vm.activeCompiler != nil {
		vm.activeCompiler.MarkRoots(h)
	}
}

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)

	trace := make([]FrameInfo, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		fn := f.closure.Function
		line := fn.Chunk.Lines[f.ip-1]
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		trace = append(trace, FrameInfo{Line: line, FuncName: name})
	}

	fmt.Fprintln(vm.Stderr, message)
	for _, fi := range trace {
		if fi.FuncName == "script" {
			fmt.Fprintf(vm.Stderr, "[line %d] in script\n", fi.Line)
		} else {
			fmt.Fprintf(vm.Stderr, "[line %d] in %s\n", fi.Line, fi.FuncName)
		}
	}

	rerr := &RuntimeError{Message: message, Trace: trace}
	if vm.OnRuntimeError != nil {
		vm.OnRuntimeError(rerr)
	}
	vm.resetStack()
	return rerr
}

