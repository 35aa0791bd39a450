// Package syscall implements the host-function bridge between
// sandboxed guest code and the kernel's capability operations.
//
// Arguments arrive as (offset, length) pairs into the guest's linear
// memory. Every syscall follows the same protocol: validate the memory
// regions, decode the arguments into owned values, dispatch to the
// kernel, and write results back. Any failure converts into a Trap
// that unwinds the guest call; nothing is silently swallowed. The
// bridge itself never charges gas; the kernel does that when it
// executes the operation.
package syscall

import (
	"errors"
	"fmt"
)

// ErrIllegalMemoryAccess is returned when a guest (offset, length)
// pair falls outside the guest's linear memory. It is always fatal to
// the current call: a guest-supplied offset is never dereferenced
// before it has been bounds-checked.
var ErrIllegalMemoryAccess = errors.New("illegal memory access")

// Memory is a bounds-checked view of guest linear memory, valid for
// the duration of a single syscall. Syscall implementations never see
// raw, unchecked guest memory.
type Memory interface {
	// Slice returns the region [off, off+length) or
	// ErrIllegalMemoryAccess when any part is out of bounds. The
	// returned slice aliases guest memory; callers that keep data past
	// the borrow must copy it first.
	Slice(off, length uint32) ([]byte, error)

	// Size returns the current byte size of the guest memory.
	Size() uint32
}

// ByteMemory is a Memory backed by a plain byte slice, used by the VM
// embedder and throughout the bridge tests.
type ByteMemory []byte

// Slice implements Memory.
func (m ByteMemory) Slice(off, length uint32) ([]byte, error) {
	end := uint64(off) + uint64(length)
	if end > uint64(len(m)) {
		return nil, fmt.Errorf("%w: region [%d, %d) outside memory of %d bytes",
			ErrIllegalMemoryAccess, off, end, len(m))
	}
	return m[off:end], nil
}

// Size implements Memory.
func (m ByteMemory) Size() uint32 {
	return uint32(len(m))
}
