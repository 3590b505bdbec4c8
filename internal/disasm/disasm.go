// Package disasm renders a Chunk's bytecode as human-readable text, one
// instruction per line, annotated with source line numbers. It exists
// for debugging and for the tests that walk instruction boundaries.
package disasm

import (
	"fmt"
	"io"

	"github.com/loxlang/golox/internal/heap"
)

// Chunk disassembles every instruction in c to w, prefixed by name.
func Chunk(w io.Writer, c *heap.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = Instruction(w, c, offset)
	}
}

// Instruction disassembles the single instruction at offset and
// returns the offset of the next one. Every opcode advances offset by
// exactly its own encoded width (1 + operand bytes), which is what
// lets repeated calls walk a Chunk exactly and is what the round-trip
// byte-offset invariant checks.
func Instruction(w io.Writer, c *heap.Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.Lines[offset])
	}

	op := c.Code[offset]
	switch op {
	case heap.OpConstant:
		return constantInstruction(w, c, offset)
	case heap.OpGetLocal, heap.OpSetLocal, heap.OpCall,
		heap.OpGetUpvalue, heap.OpSetUpvalue:
		return byteInstruction(w, c, offset)
	case heap.OpGetGlobal, heap.OpDefineGlobal, heap.OpSetGlobal,
		heap.OpGetProperty, heap.OpSetProperty, heap.OpGetSuper,
		heap.OpClass, heap.OpMethod:
		return constantInstruction(w, c, offset)
	case heap.OpInvoke, heap.OpSuperInvoke:
		return invokeInstruction(w, c, offset)
	case heap.OpJump, heap.OpJumpIfFalse:
		return jumpInstruction(w, c, offset, 1)
	case heap.OpLoop:
		return jumpInstruction(w, c, offset, -1)
	case heap.OpClosure:
		return closureInstruction(w, c, offset)
	default:
		return simple(w, op, offset)
	}
}

func simple(w io.Writer, op heap.OpCode, offset int) int {
	fmt.Fprintln(w, heap.OpName(op))
	return offset + 1
}

func constantInstruction(w io.Writer, c *heap.Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", heap.OpName(c.Code[offset]), idx, ValueString(c.Constants[idx]))
	return offset + 2
}

func byteInstruction(w io.Writer, c *heap.Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", heap.OpName(c.Code[offset]), slot)
	return offset + 2
}

func jumpInstruction(w io.Writer, c *heap.Chunk, offset int, sign int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	target := offset + 3 + sign*jump
	fmt.Fprintf(w, "%-16s %4d -> %d\n", heap.OpName(c.Code[offset]), offset, target)
	return offset + 3
}

func invokeInstruction(w io.Writer, c *heap.Chunk, offset int) int {
	constant := c.Code[offset+1]
	argCount := c.Code[offset+2]
	fmt.Fprintf(w, "%-16s (%d args) %4d '%s'\n", heap.OpName(c.Code[offset]), argCount, constant, ValueString(c.Constants[constant]))
	return offset + 3
}

func closureInstruction(w io.Writer, c *heap.Chunk, offset int) int {
	offset++
	constant := c.Code[offset]
	offset++
	fmt.Fprintf(w, "%-16s %4d '%s'\n", "OP_CLOSURE", constant, ValueString(c.Constants[constant]))

	if v := c.Constants[constant]; v.IsObjType(heap.ObjTypeFunction) {
		f, _ := v.AsFunction()
		for i := 0; i < f.UpvalueCount; i++ {
			isLocal := c.Code[offset]
			offset++
			index := c.Code[offset]
			offset++
			kind := "upvalue"
			if isLocal == 1 {
				kind = "local"
			}
			fmt.Fprintf(w, "%04d      |                     %s %d\n", offset-2, kind, index)
		}
	}
	return offset
}

// ValueString renders a Value the way the print statement does,
// without requiring an *heap.Heap or *VM: numbers use Go's default
// float formatting trimmed the way strconv.FormatFloat('g') does,
// strings render bare (no quotes), objects render via their Stringer
// when they have one.
func ValueString(v heap.Value) string {
	switch v.Type {
	case heap.ValNil:
		return "nil"
	case heap.ValBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case heap.ValNumber:
		return formatNumber(v.Number)
	case heap.ValObj:
		return objectString(v)
	default:
		return "?"
	}
}

func objectString(v heap.Value) string {
	if s, ok := v.AsString(); ok {
		return s.Chars
	}
	if f, ok := v.AsFunction(); ok {
		return f.String()
	}
	if c, ok := v.AsClosure(); ok {
		return c.Function.String()
	}
	if n, ok := v.AsNative(); ok {
		return fmt.Sprintf("<native fn %s>", n.Name)
	}
	if cl, ok := v.AsClass(); ok {
		return cl.Name.Chars
	}
	if inst, ok := v.AsInstance(); ok {
		return fmt.Sprintf("%s instance", inst.Class.Name.Chars)
	}
	if b, ok := v.AsBoundMethod(); ok {
		return b.Method.Function.String()
	}
	return "<object>"
}

func formatNumber(n float64) string {
	return fmt.Sprintf("%g", n)
}
