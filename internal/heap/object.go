package heap

import "fmt"

// ObjType tags the heap object variants.
type ObjType int

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeNative
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeString:
		return "string"
	case ObjTypeFunction:
		return "function"
	case ObjTypeNative:
		return "native function"
	case ObjTypeClosure:
		return "function"
	case ObjTypeUpvalue:
		return "upvalue"
	case ObjTypeClass:
		return "class"
	case ObjTypeInstance:
		return "instance"
	case ObjTypeBoundMethod:
		return "function"
	default:
		return "object"
	}
}

// Obj is the common header embedded in every heap object variant. It
// carries the type tag, the GC mark bit, and the Next link that threads
// every allocation onto the heap's intrusive all-objects list, which is
// the sole owner of heap objects and the only thing sweep ever deletes
// from.
//
// self holds a pointer back to the concrete variant (e.g. *ObjString)
// so that generic traversal of the *Obj chain (mark, sweep) can recover
// the concrete type without unsafe pointer casts.
type Obj struct {
	Type   ObjType
	Marked bool
	Size   int
	Next   *Obj
	self   interface{}
}

// ObjString is a heap string: a byte sequence plus a precomputed hash,
// canonicalized through the intern table so that two strings with equal
// content are always the same object.
type ObjString struct {
	Obj
	Chars string
	Hash  uint32
}

// ObjFunction is a compiled function prototype: its arity, its upvalue
// count, and the Chunk of bytecode+constants the compiler emitted for
// it. The top-level script is itself an ObjFunction with Name == nil.
type ObjFunction struct {
	Obj
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString
}

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// NativeFn is a host-provided callable: (args) -> (result, error).
// A non-nil error is surfaced to the VM as a runtime error.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a host function so it can be called like any other
// Lox callable.
type ObjNative struct {
	Obj
	Arity int
	Fn    NativeFn
	Name  string
}

// ObjUpvalue proxies access to a variable captured from an enclosing
// scope. While Location is non-nil it points into a live VM stack slot
// ("open"); once that slot is about to leave scope, closeUpvalues copies
// the value into Closed and nils out Location ("closed"). NextOpen
// threads the VM's open-upvalue list, kept sorted by descending stack
// address so captureUpvalue and closeUpvalues can walk it in one pass.
type ObjUpvalue struct {
	Obj
	Location *Value
	Closed   Value
	NextOpen *ObjUpvalue
}

func (u *ObjUpvalue) Get() Value {
	if u.Location != nil {
		return *u.Location
	}
	return u.Closed
}

func (u *ObjUpvalue) Set(v Value) {
	if u.Location != nil {
		*u.Location = v
		return
	}
	u.Closed = v
}

func (u *ObjUpvalue) Close() {
	if u.Location != nil {
		u.Closed = *u.Location
		u.Location = nil
	}
}

// ObjClosure pairs a Function with the array of upvalues it captured at
// creation time; it is the only directly callable user-defined value.
type ObjClosure struct {
	Obj
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

// ObjClass is a class: a name and a method table shared by every
// instance. Methods are inherited by copying the superclass's method
// table into the subclass's at INHERIT time (spec semantics: not a
// live delegation chain).
type ObjClass struct {
	Obj
	Name    *ObjString
	Methods *Table
}

// ObjInstance is an instance of a class: a per-instance field table plus
// a reference to the class that provides its methods.
type ObjInstance struct {
	Obj
	Class  *ObjClass
	Fields *Table
}

// ObjBoundMethod pairs a receiver with the closure that implements a
// method looked up on it, so that calling the bound method later still
// has access to `this`.
type ObjBoundMethod struct {
	Obj
	Receiver Value
	Method   *ObjClosure
}

// approximate per-object accounting sizes used to drive the allocation
// byte counter that decides when to collect. These do not need to be
// exact word-for-word C struct sizes; they only need to be stable and
// roughly proportional, since nextGC is a geometric heuristic anyway.
const (
	sizeObjString      = 32
	sizeObjFunction    = 96
	sizeObjNative      = 48
	sizeObjClosure     = 40
	sizeObjUpvalue     = 40
	sizeObjClass       = 48
	sizeObjInstance    = 48
	sizeObjBoundMethod = 40
)
