package vm

import (
	"time"

	"github.com/loxlang/golox/internal/heap"
)

func nativeClock(args []heap.Value) (heap.Value, error) {
	return heap.NumberVal(float64(time.Now().UnixNano()) / 1e9), nil
}
