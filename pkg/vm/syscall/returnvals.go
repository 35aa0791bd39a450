package syscall

import (
	"math"

	"github.com/cobaltchain/cobalt-fvm/pkg/vm/kernel"
)

// NoReturnValue is the value ReturnSize and ReturnPop yield when the
// return stack is empty. It is an explicit non-error outcome, and is
// unambiguous because return values are bounded well below it.
const NoReturnValue = uint64(math.MaxUint64)

// ReturnSize reports the size in bytes of the topmost pending return
// value, or NoReturnValue when nothing is pending. Guests call this to
// size the buffer they pass to ReturnPop.
func ReturnSize(ctx *Context) (uint64, error) {
	size, ok := ctx.Kernel.ReturnPeekSize()
	if !ok {
		return NoReturnValue, nil
	}
	return size, nil
}

// ReturnPop pops the topmost pending return value into the guest
// buffer, which must be declared at exactly the value's size, and
// returns the number of bytes written. An empty stack yields
// NoReturnValue without popping anything.
func ReturnPop(ctx *Context, obufOff, obufLen uint32) (uint64, error) {
	size, ok := ctx.Kernel.ReturnPeekSize()
	if !ok {
		return NoReturnValue, nil
	}
	if uint64(obufLen) != size {
		return 0, NewTrap(kernel.ErrIllegalArgument)
	}
	data, _ := ctx.Kernel.ReturnPop()
	if err := ctx.WriteExact(obufOff, obufLen, data); err != nil {
		return 0, err
	}
	return size, nil
}
