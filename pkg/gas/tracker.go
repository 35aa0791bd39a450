package gas

import "errors"

// ErrOutOfGas is returned when a charge would push usage past the
// tracker's limit. Usage is clamped to the limit when this happens, so
// a frame that has run out of gas stays out of gas.
var ErrOutOfGas = errors.New("out of gas")

// GasTracker is the gas accounting authority for a single call frame.
//
// A tracker is exclusively owned by its frame: one frame is one logical
// thread of control, so the tracker performs no internal locking.
// Nested sub-calls run against a child tracker (see NewChild) whose
// usage and trace roll up into the parent on return (see Absorb).
type GasTracker struct {
	limit Gas
	used  Gas

	// tracing records a Charge per metering event. The trace slice is
	// nil when tracing is disabled; DrainTrace still works and yields
	// nothing.
	tracing bool
	trace   []Charge
}

// NewGasTracker creates a tracker with the given limit and an initial
// usage, both in gas. A non-zero initial usage supports resuming
// accounting, such as carrying forward an amount already paid for.
// A trace buffer is allocated only when tracing is requested.
func NewGasTracker(limit, used Gas, enableTracing bool) *GasTracker {
	return &GasTracker{
		limit:   limit,
		used:    used,
		tracing: enableTracing,
	}
}

// chargeInner applies the cost to used, clamping at the limit. The gas
// type saturates, so the sum itself cannot overflow.
func (t *GasTracker) chargeInner(toUse Gas) error {
	used := t.used.Add(toUse)
	if used > t.limit {
		t.used = t.limit
		return ErrOutOfGas
	}
	t.used = used
	return nil
}

// Charge consumes the given amount of gas under the given name.
//
// On success the returned timer is bound to the new trace entry when
// tracing is enabled, and is a no-op timer otherwise. On failure the
// attempted charge is still recorded in the trace before ErrOutOfGas is
// returned, so out-of-gas events stay diagnosable.
func (t *GasTracker) Charge(name string, toUse Gas) (Timer, error) {
	return t.ApplyCharge(NewCharge(name, toUse, Zero))
}

// ApplyCharge is Charge for a caller-assembled record, used when the
// caller wants the compute/auxiliary cost split preserved in the trace.
// The amount consumed is the charge's total.
func (t *GasTracker) ApplyCharge(charge Charge) (Timer, error) {
	err := t.chargeInner(charge.Total())
	if !t.tracing {
		return Timer{}, err
	}
	t.trace = append(t.trace, charge)
	if err != nil {
		return Timer{}, err
	}
	return newTimer(t, len(t.trace)-1), nil
}

// Absorb rolls a child tracker's accounting into this one: the child's
// total usage is charged against this tracker (which can itself run out
// of gas, since a sub-call may complete locally and still blow the
// combined budget) and the child's trace entries are appended, in their
// original order, after this tracker's own.
func (t *GasTracker) Absorb(other *GasTracker) error {
	if t.tracing {
		t.trace = append(t.trace, other.DrainTrace()...)
	}
	return t.chargeInner(other.Used())
}

// NewChild creates a tracker for a nested call with the given limit,
// but only when that limit is strictly below the gas still available
// here; otherwise it returns nil and the caller must not proceed with
// the nested call. The child starts at zero usage and inherits the
// tracing flag.
func (t *GasTracker) NewChild(limit Gas) *GasTracker {
	if t.Available() <= limit {
		return nil
	}
	return NewGasTracker(limit, Zero, t.tracing)
}

// Limit returns the maximum gas usable by this frame.
func (t *GasTracker) Limit() Gas {
	return t.limit
}

// Used returns the gas consumed so far.
func (t *GasTracker) Used() Gas {
	return t.used
}

// Available returns the gas remaining. The clamping invariant keeps
// used <= limit, so this never goes negative.
func (t *GasTracker) Available() Gas {
	return t.limit.Sub(t.used)
}

// Tracing reports whether this tracker records a trace.
func (t *GasTracker) Tracing() bool {
	return t.tracing
}

// DrainTrace returns the accumulated trace and clears it. Draining an
// empty or disabled trace yields nil.
func (t *GasTracker) DrainTrace() []Charge {
	out := t.trace
	t.trace = nil
	return out
}
