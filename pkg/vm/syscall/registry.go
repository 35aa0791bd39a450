package syscall

import (
	"fmt"

	"github.com/cobaltchain/cobalt-fvm/pkg/vm/kernel"
)

// Handler is the uniform shape a registered syscall presents to the
// interpreter: six raw argument words in, one result word out. A
// non-nil error is always a *Trap.
type Handler func(ctx *Context, args [6]uint64) (uint64, error)

// Registry maps syscall names to handlers. The interpreter resolves a
// guest import once at instantiation and calls the handler directly on
// each invocation.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates a registry with the full standard syscall set.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}

	r.register("verify_signature", func(ctx *Context, a [6]uint64) (uint64, error) {
		return VerifySignature(ctx, u32(a[0]), u32(a[1]), u32(a[2]), u32(a[3]), u32(a[4]), u32(a[5]))
	})
	r.register("hash_blake2b", func(ctx *Context, a [6]uint64) (uint64, error) {
		return 0, HashBlake2b(ctx, u32(a[0]), u32(a[1]), u32(a[2]))
	})
	r.register("hash", func(ctx *Context, a [6]uint64) (uint64, error) {
		return Hash(ctx, a[0], u32(a[1]), u32(a[2]), u32(a[3]), u32(a[4]))
	})
	r.register("compute_unsealed_sector_cid", func(ctx *Context, a [6]uint64) (uint64, error) {
		return ComputeUnsealedSectorCID(ctx, int64(a[0]), u32(a[1]), u32(a[2]), u32(a[3]), u32(a[4]))
	})
	r.register("verify_seal", func(ctx *Context, a [6]uint64) (uint64, error) {
		return VerifySeal(ctx, u32(a[0]), u32(a[1]))
	})
	r.register("verify_post", func(ctx *Context, a [6]uint64) (uint64, error) {
		return VerifyPoSt(ctx, u32(a[0]), u32(a[1]))
	})
	r.register("verify_consensus_fault", func(ctx *Context, a [6]uint64) (uint64, error) {
		return VerifyConsensusFault(ctx, u32(a[0]), u32(a[1]), u32(a[2]), u32(a[3]), u32(a[4]), u32(a[5]))
	})
	r.register("verify_aggregate_seals", func(ctx *Context, a [6]uint64) (uint64, error) {
		return VerifyAggregateSeals(ctx, u32(a[0]), u32(a[1]))
	})
	r.register("batch_verify_seals", func(ctx *Context, a [6]uint64) (uint64, error) {
		return BatchVerifySeals(ctx, u32(a[0]), u32(a[1]))
	})
	r.register("return_size", func(ctx *Context, a [6]uint64) (uint64, error) {
		return ReturnSize(ctx)
	})
	r.register("return_pop", func(ctx *Context, a [6]uint64) (uint64, error) {
		return ReturnPop(ctx, u32(a[0]), u32(a[1]))
	})

	return r
}

// Get returns the handler for a syscall name.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered syscall names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// register wraps a handler so that every failure leaves the registry
// as a *Trap, and that a missing memory or kernel is caught before the
// handler runs.
func (r *Registry) register(name string, h Handler) {
	r.handlers[name] = func(ctx *Context, args [6]uint64) (uint64, error) {
		if ctx.Kernel == nil || ctx.Memory == nil {
			return 0, NewTrap(fmt.Errorf("%w: syscall %s invoked without memory or kernel",
				kernel.ErrFatal, name))
		}
		ret, err := h(ctx, args)
		if err != nil {
			return 0, NewTrap(fmt.Errorf("%s: %w", name, err))
		}
		return ret, nil
	}
}

// u32 narrows a raw argument word to a memory offset or length.
// Out-of-range words clamp to the maximum, which then fails the bounds
// check instead of silently truncating into a valid region.
func u32(v uint64) uint32 {
	if v > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(v)
}
