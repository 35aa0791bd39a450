package syscall

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/cobaltchain/cobalt-fvm/internal/types"
	"github.com/cobaltchain/cobalt-fvm/pkg/vm/kernel"
)

// Trap is the single guest-visible abort signal. Every fatal syscall
// condition, whatever its cause, converts into a Trap that halts the
// guest call stack up to the nearest catching frame. The cause remains
// inspectable through errors.Is/As for billing and diagnostics.
type Trap struct {
	cause error
}

// NewTrap wraps a fatal condition into a Trap. Wrapping an existing
// Trap returns it unchanged.
func NewTrap(cause error) *Trap {
	var t *Trap
	if errors.As(cause, &t) {
		return t
	}
	return &Trap{cause: cause}
}

// Error implements error.
func (t *Trap) Error() string {
	return fmt.Sprintf("guest trap: %v", t.cause)
}

// Unwrap exposes the cause.
func (t *Trap) Unwrap() error {
	return t.cause
}

// Context binds one syscall invocation to its kernel and the guest's
// memory. It lives only for that invocation.
type Context struct {
	Kernel kernel.Kernel
	Memory Memory
}

// ReadSlice copies the given guest region into an owned buffer. All
// reads complete into owned form before the kernel is invoked, so no
// kernel operation ever holds a view into guest memory.
func (c *Context) ReadSlice(off, length uint32) ([]byte, error) {
	view, err := c.Memory.Slice(off, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// ReadCBOR bounds-checks the given region and decodes it into out. A
// malformed encoding fails with an illegal-argument error and leaves
// out untouched.
func (c *Context) ReadCBOR(out interface{ UnmarshalCBOR(io.Reader) error }, off, length uint32) error {
	view, err := c.Memory.Slice(off, length)
	if err != nil {
		return err
	}
	if err := out.UnmarshalCBOR(bytes.NewReader(view)); err != nil {
		return fmt.Errorf("%w: %v", kernel.ErrIllegalArgument, err)
	}
	return nil
}

// ReadAddress decodes a raw (non-CBOR) address from guest memory.
func (c *Context) ReadAddress(off, length uint32) (types.Address, error) {
	view, err := c.Memory.Slice(off, length)
	if err != nil {
		return types.Address{}, err
	}
	addr, err := types.AddressFromBytes(view)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: %v", kernel.ErrIllegalArgument, err)
	}
	return addr, nil
}

// WriteExact writes data into the guest output buffer at off, whose
// declared length must match len(data) exactly. A host result that
// does not fill the guest's buffer is an internal contract violation,
// not a recoverable condition: the write aborts rather than truncating
// or zero-padding.
func (c *Context) WriteExact(off, declaredLen uint32, data []byte) error {
	if uint64(len(data)) != uint64(declaredLen) {
		return fmt.Errorf("%w: output of %d bytes does not fill declared buffer of %d bytes",
			kernel.ErrFatal, len(data), declaredLen)
	}
	view, err := c.Memory.Slice(off, declaredLen)
	if err != nil {
		return err
	}
	copy(view, data)
	return nil
}
