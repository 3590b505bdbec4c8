package vm

import (
	"github.com/loxlang/golox/internal/heap"
)

func (vm *VM) currentFrame() *frame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) readByte(f *frame) byte {
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readShort(f *frame) int {
	hi := vm.readByte(f)
	lo := vm.readByte(f)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(f *frame) heap.Value {
	return f.closure.Function.Chunk.Constants[vm.readByte(f)]
}

func (vm *VM) readString(f *frame) *heap.ObjString {
	s, _ := vm.readConstant(f).AsString()
	return s
}

// run executes the dispatch loop until the outermost frame returns
// (returns nil) or a runtime error occurs (returns the error). The
// local frame variable is re-read from vm.frames after any instruction
// that can push or pop a frame, per the current-frame-pointer refresh
// rule.
func (vm *VM) run() error {
	f := vm.currentFrame()

	for {
		op := vm.readByte(f)
		switch op {
		case heap.OpConstant:
			vm.push(vm.readConstant(f))

		case heap.OpNil:
			vm.push(heap.Nil())
		case heap.OpTrue:
			vm.push(heap.BoolVal(true))
		case heap.OpFalse:
			vm.push(heap.BoolVal(false))
		case heap.OpPop:
			vm.pop()

		case heap.OpGetLocal:
			slot := vm.readByte(f)
			vm.push(vm.stack[f.slots+int(slot)])
		case heap.OpSetLocal:
			slot := vm.readByte(f)
			vm.stack[f.slots+int(slot)] = vm.peek(0)

		case heap.OpGetGlobal:
			name := vm.readString(f)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case heap.OpDefineGlobal:
			name := vm.readString(f)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case heap.OpSetGlobal:
			name := vm.readString(f)
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case heap.OpGetUpvalue:
			slot := vm.readByte(f)
			vm.push(f.closure.Upvalues[slot].Get())
		case heap.OpSetUpvalue:
			slot := vm.readByte(f)
			f.closure.Upvalues[slot].Set(vm.peek(0))

		case heap.OpGetProperty:
			if err := vm.getProperty(f); err != nil {
				return err
			}
		case heap.OpSetProperty:
			if err := vm.setProperty(); err != nil {
				return err
			}
		case heap.OpGetSuper:
			name := vm.readString(f)
			superclass, _ := vm.pop().AsClass()
			if err := vm.bindMethod(superclass, name); err != nil {
				return err
			}

		case heap.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(heap.BoolVal(heap.Equal(a, b)))
		case heap.OpGreater:
			if err := vm.numericBinary(func(a, b float64) heap.Value { return heap.BoolVal(a > b) }); err != nil {
				return err
			}
		case heap.OpLess:
			if err := vm.numericBinary(func(a, b float64) heap.Value { return heap.BoolVal(a < b) }); err != nil {
				return err
			}
		case heap.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case heap.OpSubtract:
			if err := vm.numericBinary(func(a, b float64) heap.Value { return heap.NumberVal(a - b) }); err != nil {
				return err
			}
		case heap.OpMultiply:
			if err := vm.numericBinary(func(a, b float64) heap.Value { return heap.NumberVal(a * b) }); err != nil {
				return err
			}
		case heap.OpDivide:
			if err := vm.numericBinary(func(a, b float64) heap.Value { return heap.NumberVal(a / b) }); err != nil {
				return err
			}
		case heap.OpNot:
			vm.push(heap.BoolVal(!heap.Truthy(vm.pop())))
		case heap.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(heap.NumberVal(-vm.pop().Number))

		case heap.OpPrint:
			printValue(vm, vm.pop())

		case heap.OpJump:
			offset := vm.readShort(f)
			f.ip += offset
		case heap.OpJumpIfFalse:
			offset := vm.readShort(f)
			if !heap.Truthy(vm.peek(0)) {
				f.ip += offset
			}
		case heap.OpLoop:
			offset := vm.readShort(f)
			f.ip -= offset

		case heap.OpCall:
			argCount := int(vm.readByte(f))
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}
			f = vm.currentFrame()

		case heap.OpInvoke:
			name := vm.readString(f)
			argCount := int(vm.readByte(f))
			if err := vm.invoke(name, argCount); err != nil {
				return err
			}
			f = vm.currentFrame()

		case heap.OpSuperInvoke:
			name := vm.readString(f)
			argCount := int(vm.readByte(f))
			superclass, _ := vm.pop().AsClass()
			if err := vm.invokeFromClass(superclass, name, argCount); err != nil {
				return err
			}
			f = vm.currentFrame()

		case heap.OpClosure:
			fn, _ := vm.readConstant(f).AsFunction()
			closure := vm.heap.NewClosure(fn)
			vm.push(heap.ObjVal(&closure.Obj))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(f)
				index := vm.readByte(f)
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(f.slots + int(index))
				} else {
					closure.Upvalues[i] = f.closure.Upvalues[index]
				}
			}

		case heap.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case heap.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(f.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.stackTop = f.slots
			vm.push(result)
			f = vm.currentFrame()

		case heap.OpClass:
			name := vm.readString(f)
			class := vm.heap.NewClass(name)
			vm.push(heap.ObjVal(&class.Obj))

		case heap.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := superVal.AsClass()
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass, _ := vm.peek(0).AsClass()
			heap.AddAll(superclass.Methods, subclass.Methods)
			vm.pop() // subclass

		case heap.OpMethod:
			vm.defineMethod(vm.readString(f))

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

func (vm *VM) numericBinary(op func(a, b float64) heap.Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()
	vm.push(op(a.Number, b.Number))
	return nil
}

// add implements ADD's dual dispatch: numeric addition, or string
// concatenation with the operands peeked (not popped) until the new
// string is safely interned, so a collection triggered by the
// allocation cannot reclaim either operand.
func (vm *VM) add() error {
	if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
		b := vm.pop()
		a := vm.pop()
		vm.push(heap.NumberVal(a.Number + b.Number))
		return nil
	}
	bs, bok := vm.peek(0).AsString()
	as, aok := vm.peek(1).AsString()
	if !aok || !bok {
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
	result := vm.heap.InternString(as.Chars + bs.Chars)
	vm.pop()
	vm.pop()
	vm.push(heap.StringVal(result))
	return nil
}

func (vm *VM) getProperty(f *frame) error {
	instance, ok := vm.peek(0).AsInstance()
	if !ok {
		return vm.runtimeError("Only instances have properties.")
	}
	name := vm.readString(f)
	if v, ok := instance.Fields.Get(name); ok {
		vm.pop()
		vm.push(v)
		return nil
	}
	return vm.bindMethod(instance.Class, name)
}

func (vm *VM) setProperty() error {
	instance, ok := vm.peek(1).AsInstance()
	if !ok {
		return vm.runtimeError("Only instances have fields.")
	}
	f := vm.currentFrame()
	name := vm.readString(f)
	instance.Fields.Set(name, vm.peek(0))
	value := vm.pop()
	vm.pop()
	vm.push(value)
	return nil
}

func (vm *VM) defineMethod(name *heap.ObjString) {
	method := vm.peek(0)
	class, _ := vm.peek(1).AsClass()
	class.Methods.Set(name, method)
	vm.pop()
}
