package heap

import "fmt"

const (
	initialNextGC    = 1024 * 1024
	gcHeapGrowFactor = 2
)

// RootSource is implemented by whatever currently owns a Heap (the VM)
// so the collector can find every reachable value. It is consulted on
// every collection, including ones triggered mid-compile, which is why
// the VM's implementation also walks its currently active Compiler (if
// any) — see spec.md §4.7's "every in-progress Compiler's function
// chain" root.
type RootSource interface {
	MarkRoots(h *Heap)
}

// Heap owns every heap-allocated object reachable by one VM: the
// intrusive all-objects list, the weakly-referenced string-intern
// table, and the byte-counter/threshold state that drives collection.
// A Heap is never shared between VMs; there is no process-wide
// allocator state.
type Heap struct {
	objects        *Obj
	strings        *Table
	bytesAllocated int
	nextGC         int
	gray           []*Obj
	roots          RootSource

	// StressGC forces a collection on every allocation; used by tests
	// exercising root-marking correctness.
	StressGC bool
	// LogGC, when non-nil, receives one line per GC lifecycle event.
	// The heap never writes to stderr itself; GC log lines go only to
	// this sink.
	LogGC func(string)
}

// New constructs an empty heap with its own intern table.
func New() *Heap {
	return &Heap{
		strings: NewTable(),
		nextGC:  initialNextGC,
	}
}

// SetRoots installs the root source consulted by every collection. The
// VM calls this once, at construction, with itself.
func (h *Heap) SetRoots(rs RootSource) {
	h.roots = rs
}

// BytesAllocated reports current accounted heap usage (for tests and
// diagnostics, not part of the language surface).
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

func (h *Heap) log(msg string) {
	if h.LogGC != nil {
		h.LogGC(msg)
	}
}

// accountBytes is the memory allocator shim's single entry point: every
// heap allocation (objects, chunk buffers, constant pools, table
// growth) reports its delta here. When growing and the threshold is
// exceeded, a collection runs before the caller proceeds to use the
// freshly accounted memory.
func (h *Heap) accountBytes(delta int) {
	h.bytesAllocated += delta
	if delta > 0 && (h.StressGC || h.bytesAllocated > h.nextGC) {
		h.Collect()
	}
}

func (h *Heap) link(o *Obj, size int, self interface{}) {
	o.Next = h.objects
	o.self = self
	o.Size = size
	h.objects = o
}

// InternString returns the canonical ObjString for s, allocating and
// interning a fresh one only if no equal-content string is already
// known. This is the sole path by which ObjString values come into
// being, so "two strings, one identity" holds everywhere.
func (h *Heap) InternString(s string) *ObjString {
	hash := hashString(s)
	if existing := h.strings.FindString(s, hash); existing != nil {
		return existing
	}
	h.accountBytes(sizeObjString)
	str := &ObjString{Chars: s, Hash: hash}
	str.Obj.Type = ObjTypeString
	h.link(&str.Obj, sizeObjString, str)
	// The string must be reachable across the table's own possible
	// growth-triggered collection, but Set never allocates objects
	// that could collect str itself (only entries slices), so no
	// extra stack protection is needed here; the caller is
	// responsible for keeping the *content* reachable before this
	// call returns if it was itself freshly built (see vm concat).
	h.strings.Set(str, Nil())
	return str
}

func hashString(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

func (h *Heap) NewFunction() *ObjFunction {
	h.accountBytes(sizeObjFunction)
	fn := &ObjFunction{}
	fn.Obj.Type = ObjTypeFunction
	fn.Chunk = *newChunk(h)
	h.link(&fn.Obj, sizeObjFunction, fn)
	return fn
}

func (h *Heap) NewNative(name string, arity int, fn NativeFn) *ObjNative {
	h.accountBytes(sizeObjNative)
	n := &ObjNative{Name: name, Arity: arity, Fn: fn}
	n.Obj.Type = ObjTypeNative
	h.link(&n.Obj, sizeObjNative, n)
	return n
}

func (h *Heap) NewClosure(fn *ObjFunction) *ObjClosure {
	h.accountBytes(sizeObjClosure)
	c := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	c.Obj.Type = ObjTypeClosure
	h.link(&c.Obj, sizeObjClosure, c)
	return c
}

func (h *Heap) NewUpvalue(slot *Value) *ObjUpvalue {
	h.accountBytes(sizeObjUpvalue)
	u := &ObjUpvalue{Location: slot}
	u.Obj.Type = ObjTypeUpvalue
	h.link(&u.Obj, sizeObjUpvalue, u)
	return u
}

func (h *Heap) NewClass(name *ObjString) *ObjClass {
	h.accountBytes(sizeObjClass)
	c := &ObjClass{Name: name, Methods: NewTable()}
	c.Obj.Type = ObjTypeClass
	h.link(&c.Obj, sizeObjClass, c)
	return c
}

func (h *Heap) NewInstance(class *ObjClass) *ObjInstance {
	h.accountBytes(sizeObjInstance)
	i := &ObjInstance{Class: class, Fields: NewTable()}
	i.Obj.Type = ObjTypeInstance
	h.link(&i.Obj, sizeObjInstance, i)
	return i
}

func (h *Heap) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	h.accountBytes(sizeObjBoundMethod)
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	b.Obj.Type = ObjTypeBoundMethod
	h.link(&b.Obj, sizeObjBoundMethod, b)
	return b
}

// MarkValue marks v's underlying object, if it has one.
func (h *Heap) MarkValue(v Value) {
	if v.Type == ValObj {
		h.MarkObject(v.Obj)
	}
}

// MarkObject marks obj grey (adds it to the worklist) unless it is
// already marked. Idempotent, so cyclic structures terminate.
func (h *Heap) MarkObject(obj *Obj) {
	if obj == nil || obj.Marked {
		return
	}
	obj.Marked = true
	h.gray = append(h.gray, obj)
}

// Collect runs one full mark-sweep cycle: mark roots, trace to
// fixpoint, weak-clear the intern table, sweep unreached objects, reset
// surviving marks, and grow the next threshold geometrically.
func (h *Heap) Collect() {
	h.log("gc begin")
	before := h.bytesAllocated

	if h.roots != nil {
		h.roots.MarkRoots(h)
	}
	h.trace()
	RemoveWhite(h.strings)
	h.sweep()

	h.nextGC = h.bytesAllocated * gcHeapGrowFactor
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}
	h.log(fmt.Sprintf("gc end   collected %d bytes (%d -> %d) next at %d",
		before-h.bytesAllocated, before, h.bytesAllocated, h.nextGC))
}

func (h *Heap) trace() {
	for len(h.gray) > 0 {
		obj := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(obj)
	}
}

func (h *Heap) blacken(obj *Obj) {
	switch v := obj.self.(type) {
	case *ObjString, *ObjNative:
		// no outgoing references
	case *ObjFunction:
		if v.Name != nil {
			h.MarkObject(&v.Name.Obj)
		}
		for _, c := range v.Chunk.Constants {
			h.MarkValue(c)
		}
	case *ObjClosure:
		h.MarkObject(&v.Function.Obj)
		for _, uv := range v.Upvalues {
			if uv != nil {
				h.MarkObject(&uv.Obj)
			}
		}
	case *ObjUpvalue:
		h.MarkValue(v.Closed)
	case *ObjClass:
		h.MarkObject(&v.Name.Obj)
		v.Methods.Mark(h)
	case *ObjInstance:
		h.MarkObject(&v.Class.Obj)
		v.Fields.Mark(h)
	case *ObjBoundMethod:
		h.MarkValue(v.Receiver)
		h.MarkObject(&v.Method.Obj)
	}
}

// sweep walks the intrusive all-objects list, unlinking and discarding
// every object whose mark bit is still clear, and clears the mark bit
// on every survivor so the next cycle starts clean.
func (h *Heap) sweep() {
	var prev *Obj
	obj := h.objects
	for obj != nil {
		if obj.Marked {
			obj.Marked = false
			prev = obj
			obj = obj.Next
			continue
		}
		unreached := obj
		obj = obj.Next
		if prev == nil {
			h.objects = obj
		} else {
			prev.Next = obj
		}
		h.bytesAllocated -= unreached.Size
	}
}
