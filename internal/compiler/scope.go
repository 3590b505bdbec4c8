package compiler

import "github.com/loxlang/golox/internal/heap"

// FunctionType distinguishes the four contexts a Compiler can be
// compiling into; it controls the implicit return and the reserved
// slot-zero binding (`this` for methods and initializers, the callee
// slot otherwise).
type FunctionType int

const (
	TypeFunction FunctionType = iota
	TypeInitializer
	TypeMethod
	TypeScript
)

// Local tracks one declared local variable's name (for shadowing and
// resolution errors), its scope depth, and whether any nested closure
// captures it as an upvalue.
type Local struct {
	Name       string
	Depth      int
	IsCaptured bool
}

// Upvalue records how a compiled function reaches a variable captured
// from an enclosing function: either directly off the enclosing
// function's stack frame (IsLocal) or by forwarding the enclosing
// function's own upvalue at Index.
type Upvalue struct {
	Index   byte
	IsLocal bool
}

// Compiler is the per-function compilation frame. Frames form a chain
// through enclosing, mirroring the runtime call chain that will
// eventually execute the closures being compiled here; the chain is
// also how GC root marking reaches every ObjFunction under
// construction mid-compile (see Parser.MarkRoots).
type Compiler struct {
	enclosing *Compiler
	function  *heap.ObjFunction
	fnType    FunctionType

	locals     []Local
	upvalues   []Upvalue
	scopeDepth int
}

func newCompiler(enclosing *Compiler, fn *heap.ObjFunction, fnType FunctionType) *Compiler {
	c := &Compiler{enclosing: enclosing, function: fn, fnType: fnType}
	// Slot zero is always reserved: the receiver for methods and
	// initializers, an unnamed placeholder (the closure itself) for
	// plain functions and the top-level script.
	name := ""
	if fnType == TypeMethod || fnType == TypeInitializer {
		name = "this"
	}
	c.locals = append(c.locals, Local{Name: name, Depth: 0})
	return c
}

// ClassCompiler tracks the class currently being compiled, so nested
// method bodies know whether `super` is in scope. It forms its own
// chain, independent of Compiler, since classes can nest lexically
// without one being the other's enclosing function.
type ClassCompiler struct {
	enclosing     *ClassCompiler
	hasSuperclass bool
}

func (c *Compiler) addLocal(name string) error {
	if len(c.locals) >= 256 {
		return errCompile("Too many local variables in function.")
	}
	c.locals = append(c.locals, Local{Name: name, Depth: -1})
	return nil
}

// markInitialized marks the most recently declared local as usable,
// setting its depth to the current scope. At the top level (depth 0
// function-level scope, i.e. a global) there is no local to mark.
func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].Depth = c.scopeDepth
}

// resolveLocal finds name among this compiler's own locals, searching
// from the innermost declaration outward so shadowing resolves to the
// most recent one. depth == -1 marks a local whose initializer has not
// finished running yet (`var a = a;` must fail to resolve to itself).
func (c *Compiler) resolveLocal(name string) (int, bool, error) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			if c.locals[i].Depth == -1 {
				return 0, false, errInitializerSelfReference
			}
			return i, true, nil
		}
	}
	return 0, false, nil
}

var errInitializerSelfReference = errCompile("Can't read local variable in its own initializer.")

// resolveUpvalue resolves name against enclosing compilers, adding an
// upvalue entry (deduplicated by addUpvalue) to every compiler on the
// path from the defining frame down to c.
func (c *Compiler) resolveUpvalue(name string) (int, bool, error) {
	if c.enclosing == nil {
		return 0, false, nil
	}
	if local, ok, err := c.enclosing.resolveLocal(name); err != nil {
		return 0, false, err
	} else if ok {
		c.enclosing.locals[local].IsCaptured = true
		idx, err := c.addUpvalue(byte(local), true)
		return idx, true, err
	}
	if up, ok, err := c.enclosing.resolveUpvalue(name); err != nil {
		return 0, false, err
	} else if ok {
		idx, err := c.addUpvalue(byte(up), false)
		return idx, true, err
	}
	return 0, false, nil
}

func (c *Compiler) addUpvalue(index byte, isLocal bool) (int, error) {
	for i, uv := range c.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i, nil
		}
	}
	if len(c.upvalues) >= 255 {
		return 0, errCompile("Too many closure variables in function.")
	}
	c.upvalues = append(c.upvalues, Upvalue{Index: index, IsLocal: isLocal})
	c.function.UpvalueCount = len(c.upvalues)
	return len(c.upvalues) - 1, nil
}
