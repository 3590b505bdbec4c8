package compiler

import (
	"testing"

	"github.com/loxlang/golox/internal/heap"
)

func compileSource(t *testing.T, src string) *heap.ObjFunction {
	t.Helper()
	h := heap.New()
	p := NewParser(src, h)
	fn, err := p.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return fn
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	fn := compileSource(t, "1 + 2 * 3;")
	want := []byte{
		heap.OpConstant, 0,
		heap.OpConstant, 1,
		heap.OpConstant, 2,
		heap.OpMultiply,
		heap.OpAdd,
		heap.OpPop,
		heap.OpNil,
		heap.OpReturn,
	}
	assertCode(t, fn.Chunk.Code, want)
}

func TestCompileVarDeclarationAndGlobalGet(t *testing.T) {
	fn := compileSource(t, "var a = 1; print a;")
	want := []byte{
		heap.OpConstant, 1, // 1
		heap.OpDefineGlobal, 0, // "a"
		heap.OpGetGlobal, 2, // "a" (re-added constant)
		heap.OpPrint,
		heap.OpNil,
		heap.OpReturn,
	}
	assertCode(t, fn.Chunk.Code, want)
}

func TestCompileLocalsUseSlotsNotGlobals(t *testing.T) {
	fn := compileSource(t, "{ var a = 1; a = 2; }")
	want := []byte{
		heap.OpConstant, 0, // 1, initializes local "a" (script's own slot 0 is reserved)
		heap.OpConstant, 1, // 2
		heap.OpSetLocal, 1,
		heap.OpPop,
		heap.OpPop,
		heap.OpNil,
		heap.OpReturn,
	}
	assertCode(t, fn.Chunk.Code, want)
}

func TestCompileFunctionEmitsClosure(t *testing.T) {
	fn := compileSource(t, "fun add(a, b) { return a + b; }")
	// top level: CLOSURE idx (no upvalues) then DEFINE_GLOBAL
	if fn.Chunk.Code[0] != heap.OpClosure {
		t.Fatalf("expected first op to be OP_CLOSURE, got %s", heap.OpName(fn.Chunk.Code[0]))
	}
	proto, ok := fn.Chunk.Constants[fn.Chunk.Code[1]].AsFunction()
	if !ok {
		t.Fatalf("expected constant to be a function prototype")
	}
	if proto.Arity != 2 {
		t.Fatalf("expected arity 2, got %d", proto.Arity)
	}
	// endCompiler always appends an implicit return, even after an
	// explicit one; the tail is unreachable but present, matching
	// clox's compiler exactly.
	wantBody := []byte{
		heap.OpGetLocal, 1,
		heap.OpGetLocal, 2,
		heap.OpAdd,
		heap.OpReturn,
		heap.OpNil,
		heap.OpReturn,
	}
	assertCode(t, proto.Chunk.Code, wantBody)
}

func TestCompileClassWithMethodAndInheritance(t *testing.T) {
	fn := compileSource(t, `
class A {
  greet() { return "hi"; }
}
class B < A {}
`)
	found := false
	for _, b := range fn.Chunk.Code {
		if b == heap.OpInherit {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected OP_INHERIT to be emitted, code=%v", fn.Chunk.Code)
	}
}

func TestCompileReportsSyntaxError(t *testing.T) {
	h := heap.New()
	p := NewParser("var ;", h)
	if _, err := p.Compile(); err == nil {
		t.Fatalf("expected a compile error for malformed var declaration")
	}
}

func assertCode(t *testing.T, got, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d bytes, got %d\nwant=%v\ngot =%v", len(want), len(got), want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: expected %s(%d), got %s(%d)", i, heap.OpName(want[i]), want[i], heap.OpName(got[i]), got[i])
		}
	}
}
