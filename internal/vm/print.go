package vm

import (
	"fmt"

	"github.com/loxlang/golox/internal/disasm"
	"github.com/loxlang/golox/internal/heap"
)

func printValue(vm *VM, v heap.Value) {
	fmt.Fprintln(vm.Stdout, disasm.ValueString(v))
}
