package disasm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/loxlang/golox/internal/compiler"
	"github.com/loxlang/golox/internal/heap"
)

func mustCompile(t *testing.T, src string) *heap.ObjFunction {
	t.Helper()
	h := heap.New()
	p := compiler.NewParser(src, h)
	fn, err := p.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return fn
}

func TestDisasmRoundTripsEveryByte(t *testing.T) {
	fn := mustCompile(t, `
fun add(a, b) {
  var total = a + b;
  if (total > 10) {
    return total;
  } else {
    return 0;
  }
}
`)
	c := &fn.Chunk

	// Walking Instruction() repeatedly, always starting exactly where
	// the previous call said the next instruction begins, must land on
	// len(c.Code) with no gap or overlap: this is the byte-offset
	// round-trip invariant.
	var buf bytes.Buffer
	offset := 0
	count := 0
	for offset < len(c.Code) {
		next := Instruction(&buf, c, offset)
		if next <= offset {
			t.Fatalf("instruction at %d did not advance (got next=%d)", offset, next)
		}
		offset = next
		count++
		if count > len(c.Code) {
			t.Fatalf("disassembly did not converge, stuck walking %d bytes", len(c.Code))
		}
	}
	if offset != len(c.Code) {
		t.Fatalf("expected to land exactly on %d, got %d", len(c.Code), offset)
	}
}

func TestDisasmConstantInstructionShowsValue(t *testing.T) {
	fn := mustCompile(t, `print "hello";`)
	var buf bytes.Buffer
	Chunk(&buf, &fn.Chunk, "test")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected disassembly to render the string constant, got:\n%s", buf.String())
	}
}

func TestDisasmJumpInstructionsShowTargets(t *testing.T) {
	fn := mustCompile(t, `if (true) { print 1; } else { print 2; }`)
	var buf bytes.Buffer
	Chunk(&buf, &fn.Chunk, "test")
	if !strings.Contains(buf.String(), "->") {
		t.Fatalf("expected a jump instruction with a target arrow, got:\n%s", buf.String())
	}
}
