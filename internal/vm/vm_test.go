package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/loxlang/golox/internal/heap"
)

func newTestVM() (*VM, *bytes.Buffer, *bytes.Buffer) {
	var out, errBuf bytes.Buffer
	m := New()
	m.Stdout = &out
	m.Stderr = &errBuf
	return m, &out, &errBuf
}

func TestInterpretArithmeticAndComparison(t *testing.T) {
	m, out, _ := newTestVM()
	if _, err := m.Interpret(`print (1 + 2) * 3 == 9;`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "true" {
		t.Fatalf("expected true, got %q", out.String())
	}
}

func TestInterpretStringConcatKeepsOperandsUntilInterned(t *testing.T) {
	m, out, _ := newTestVM()
	m.Heap().StressGC = true
	if _, err := m.Interpret(`print "a" + "b" + "c";`); err != nil {
		t.Fatalf("unexpected error under stress GC: %v", err)
	}
	if strings.TrimSpace(out.String()) != "abc" {
		t.Fatalf("expected abc, got %q", out.String())
	}
}

func TestInterpretClosuresShareUpvalue(t *testing.T) {
	m, out, _ := newTestVM()
	src := `
fun pair() {
  var shared = 0;
  fun inc() { shared = shared + 1; }
  fun read() { return shared; }
  inc();
  inc();
  return read();
}
print pair();
`
	if _, err := m.Interpret(src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "2" {
		t.Fatalf("expected 2, got %q", out.String())
	}
}

func TestInterpretClassAndSuperInvoke(t *testing.T) {
	m, out, _ := newTestVM()
	src := `
class Base {
  greet() { return "base"; }
}
class Derived < Base {
  greet() { return super.greet() + "+derived"; }
}
print Derived().greet();
`
	if _, err := m.Interpret(src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "base+derived" {
		t.Fatalf("expected base+derived, got %q", out.String())
	}
}

func TestInterpretUndefinedVariableProducesTrace(t *testing.T) {
	m, _, errBuf := newTestVM()
	_, err := m.Interpret(`
fun outer() {
  print missing;
}
outer();
`)
	if err == nil {
		t.Fatalf("expected a runtime error")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
	if len(rerr.Trace) < 2 {
		t.Fatalf("expected at least 2 frames in trace, got %d: %v", len(rerr.Trace), rerr.Trace)
	}
	if rerr.Trace[0].FuncName != "outer()" {
		t.Fatalf("expected innermost frame to be outer(), got %s", rerr.Trace[0].FuncName)
	}
	if rerr.Trace[len(rerr.Trace)-1].FuncName != "script" {
		t.Fatalf("expected outermost frame to be script, got %s", rerr.Trace[len(rerr.Trace)-1].FuncName)
	}
	if !strings.Contains(errBuf.String(), "[line") {
		t.Fatalf("expected stderr to contain a formatted trace, got %q", errBuf.String())
	}
}

func TestInterpretStackResetsAfterRuntimeError(t *testing.T) {
	m, _, _ := newTestVM()
	if _, err := m.Interpret(`print oops;`); err == nil {
		t.Fatalf("expected an error")
	}
	if m.stackTop != 0 || m.frameCount != 0 {
		t.Fatalf("expected stack/frames reset after error, stackTop=%d frameCount=%d", m.stackTop, m.frameCount)
	}
}

func TestClockNativeIsRegistered(t *testing.T) {
	m, _, _ := newTestVM()
	v, ok := m.Global("clock")
	if !ok {
		t.Fatalf("expected clock to be a registered global")
	}
	if !v.IsObjType(heap.ObjTypeNative) {
		t.Fatalf("expected clock to be a native function value")
	}
}
