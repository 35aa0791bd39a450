package gas

import "time"

// Charge records a single metering event: a named cost split into a
// compute portion and an auxiliary portion, plus the wall-clock time the
// metered operation took when tracing is enabled.
//
// A Charge is pushed into a tracker's trace at the moment it is applied
// and is immutable afterwards, except for Elapsed, which the Timer bound
// to it fills in exactly once.
type Charge struct {
	Name string

	// ComputeGas is the cost of the computation itself.
	ComputeGas Gas

	// OtherGas covers auxiliary costs (storage, memory expansion, and
	// similar) attributed to the same event.
	OtherGas Gas

	// Elapsed is the measured duration of the metered operation. Zero
	// when tracing is disabled or the timer was never stopped.
	Elapsed time.Duration
}

// NewCharge creates a charge with the given name and cost split.
func NewCharge(name string, compute, other Gas) Charge {
	return Charge{Name: name, ComputeGas: compute, OtherGas: other}
}

// Total returns the full cost of the charge, saturating on overflow.
func (c Charge) Total() Gas {
	return c.ComputeGas.Add(c.OtherGas)
}
