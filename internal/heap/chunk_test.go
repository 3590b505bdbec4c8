package heap

import "testing"

func TestChunkWriteByteKeepsLinesParallel(t *testing.T) {
	h := New()
	c := newChunk(h)
	c.WriteByte(OpNil, 1)
	c.WriteByte(OpNil, 1)
	c.WriteByte(OpReturn, 2)

	if len(c.Code) != len(c.Lines) {
		t.Fatalf("code/lines length mismatch: %d vs %d", len(c.Code), len(c.Lines))
	}
	if c.Lines[0] != 1 || c.Lines[1] != 1 || c.Lines[2] != 2 {
		t.Fatalf("unexpected line assignment: %v", c.Lines)
	}
}

func TestChunkAddConstantGrows(t *testing.T) {
	h := New()
	c := newChunk(h)
	var last int
	for i := 0; i < 20; i++ {
		last = c.AddConstant(NumberVal(float64(i)))
	}
	if last != 19 {
		t.Fatalf("expected last index 19, got %d", last)
	}
	if len(c.Constants) != 20 {
		t.Fatalf("expected 20 constants, got %d", len(c.Constants))
	}
	if c.Constants[5].Number != 5 {
		t.Fatalf("expected constant 5 to be 5, got %v", c.Constants[5].Number)
	}
}
