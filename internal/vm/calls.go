package vm

import (
	"unsafe"

	"github.com/loxlang/golox/internal/heap"
)

func (vm *VM) callValue(callee heap.Value, argCount int) error {
	if callee.IsObj() {
		switch callee.Obj.Type {
		case heap.ObjTypeClosure:
			closure, _ := callee.AsClosure()
			return vm.callClosure(closure, argCount)
		case heap.ObjTypeNative:
			native, _ := callee.AsNative()
			return vm.callNative(native, argCount)
		case heap.ObjTypeClass:
			return vm.callClass(callee, argCount)
		case heap.ObjTypeBoundMethod:
			bound, _ := callee.AsBoundMethod()
			vm.stack[vm.stackTop-argCount-1] = bound.Receiver
			return vm.callClosure(bound.Method, argCount)
		}
	}
	return vm.runtimeError("Can only call functions and classes.")
}

func (vm *VM) callClosure(closure *heap.ObjClosure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	f := &vm.frames[vm.frameCount]
	f.closure = closure
	f.ip = 0
	f.slots = vm.stackTop - argCount - 1
	vm.frameCount++
	return nil
}

func (vm *VM) callNative(native *heap.ObjNative, argCount int) error {
	if argCount != native.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", native.Arity, argCount)
	}
	args := vm.stack[vm.stackTop-argCount : vm.stackTop]
	result, err := native.Fn(args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.stackTop -= argCount + 1
	vm.push(result)
	return nil
}

func (vm *VM) callClass(callee heap.Value, argCount int) error {
	class, _ := callee.AsClass()
	instance := vm.heap.NewInstance(class)
	vm.stack[vm.stackTop-argCount-1] = heap.ObjVal(&instance.Obj)
	if initializer, ok := class.Methods.Get(vm.heap.InternString("init")); ok {
		closure, _ := initializer.AsClosure()
		return vm.callClosure(closure, argCount)
	}
	if argCount != 0 {
		return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
	}
	return nil
}

func (vm *VM) invoke(name *heap.ObjString, argCount int) error {
	receiver := vm.peek(argCount)
	instance, ok := receiver.AsInstance()
	if !ok {
		return vm.runtimeError("Only instances have methods.")
	}
	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *heap.ObjClass, name *heap.ObjString, argCount int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	closure, _ := method.AsClosure()
	return vm.callClosure(closure, argCount)
}

func (vm *VM) bindMethod(class *heap.ObjClass, name *heap.ObjString) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars)
	}
	closure, _ := method.AsClosure()
	bound := vm.heap.NewBoundMethod(vm.peek(0), closure)
	vm.pop()
	vm.push(heap.ObjVal(&bound.Obj))
	return nil
}

// slotOf recovers the stack index a *Value pointer refers to. Upvalues
// hold a raw pointer into vm.stack the same way clox's Upvalue holds a
// raw Value*; comparing two pointers into the same array for order
// needs address arithmetic, which Go only exposes via unsafe.Pointer.
func (vm *VM) slotOf(p *heap.Value) int {
	base := uintptr(unsafe.Pointer(&vm.stack[0]))
	off := uintptr(unsafe.Pointer(p))
	return int((off - base) / unsafe.Sizeof(heap.Value{}))
}

// captureUpvalue returns the open upvalue for the stack slot at index,
// reusing an existing node if the open list already has one for that
// exact slot (so two closures capturing the same local share state).
// The open list stays sorted by descending stack address, matching the
// invariant closeUpvalues relies on to stop early.
func (vm *VM) captureUpvalue(index int) *heap.ObjUpvalue {
	var prev *heap.ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil && vm.slotOf(uv.Location) > index {
		prev = uv
		uv = uv.NextOpen
	}
	if uv != nil && vm.slotOf(uv.Location) == index {
		return uv
	}

	created := vm.heap.NewUpvalue(&vm.stack[index])
	created.NextOpen = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the stack slot
// last, copying the current value into the upvalue itself and
// unlinking it from the open list.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.slotOf(vm.openUpvalues.Location) >= last {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.NextOpen
	}
}
