// Package gas implements saturating, milligas-precision gas accounting
// for the Cobalt FVM.
//
// Gas values are stored as a signed count of milligas (1000 milligas per
// gas unit). Every arithmetic operation saturates at the representable
// extremes instead of wrapping, so untrusted, size-dependent cost
// computations can never overflow or panic on a consensus-critical path.
package gas

import (
	"fmt"
	"math"
)

// MilligasPrecision is the number of milligas in one unit of gas.
const MilligasPrecision = int64(1000)

// Gas is a quantity of gas, stored internally as milligas.
//
// The zero value is zero gas. Gas values are comparable with the
// ordinary ==, <, > operators, which order by the raw milligas count.
type Gas int64

// Zero is the zero gas value.
const Zero = Gas(0)

// NewGas constructs a Gas value from whole gas units, scaling up to
// milligas. Values that would exceed the representable range saturate
// at the extremes.
func NewGas(units int64) Gas {
	return Gas(saturatingMul(units, MilligasPrecision))
}

// FromMilligas constructs a Gas value from raw milligas, without
// rounding.
func FromMilligas(mg int64) Gas {
	return Gas(mg)
}

// IsSaturated reports whether the value has clamped at the maximum
// representable milligas.
func (g Gas) IsSaturated() bool {
	return int64(g) == math.MaxInt64
}

// IsZero reports whether the value is exactly zero.
func (g Gas) IsZero() bool {
	return g == 0
}

// Milligas returns the raw milligas count, without loss of precision.
func (g Gas) Milligas() int64 {
	return int64(g)
}

// RoundUp returns the value in whole gas units, rounding any fractional
// part up (toward positive infinity).
func (g Gas) RoundUp() int64 {
	return milligasToGas(int64(g), true)
}

// RoundDown returns the value in whole gas units, rounding any
// fractional part down (toward negative infinity).
func (g Gas) RoundDown() int64 {
	return milligasToGas(int64(g), false)
}

// Add returns g+other, saturating at the representable extremes.
func (g Gas) Add(other Gas) Gas {
	return Gas(saturatingAdd(int64(g), int64(other)))
}

// Sub returns g-other, saturating at the representable extremes.
func (g Gas) Sub(other Gas) Gas {
	return Gas(saturatingSub(int64(g), int64(other)))
}

// MulInt returns g*n for a signed scalar, saturating at the
// representable extremes.
func (g Gas) MulInt(n int64) Gas {
	return Gas(saturatingMul(int64(g), n))
}

// MulUint returns g*n for an unsigned scalar, saturating at the
// representable extremes. Scalars wider than int64 clamp first.
func (g Gas) MulUint(n uint64) Gas {
	if n > math.MaxInt64 {
		n = math.MaxInt64
	}
	return Gas(saturatingMul(int64(g), int64(n)))
}

// String renders the value as whole units with exactly three fractional
// digits, e.g. "1.500". Zero renders as "0".
func (g Gas) String() string {
	if g == 0 {
		return "0"
	}
	mg := int64(g)
	integral := mg / MilligasPrecision
	fractional := mg % MilligasPrecision
	if mg < 0 {
		return fmt.Sprintf("-%d.%03d", -integral, -fractional)
	}
	return fmt.Sprintf("%d.%03d", integral, fractional)
}

// milligasToGas converts milligas to whole gas units, rounding toward
// positive infinity when roundUp is set and toward negative infinity
// otherwise.
func milligasToGas(mg int64, roundUp bool) int64 {
	q := mg / MilligasPrecision
	switch {
	case mg > 0 && roundUp && mg%MilligasPrecision != 0:
		q = saturatingAdd(q, 1)
	case mg < 0 && !roundUp && mg%MilligasPrecision != 0:
		q = saturatingSub(q, 1)
	}
	return q
}

func saturatingAdd(a, b int64) int64 {
	sum := a + b
	// Overflow only when both operands share a sign the sum lost.
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		if a > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}

func saturatingSub(a, b int64) int64 {
	if b == math.MinInt64 {
		// -MinInt64 is unrepresentable; a - MinInt64 == a + (MaxInt64 + 1).
		return saturatingAdd(saturatingAdd(a, math.MaxInt64), 1)
	}
	return saturatingAdd(a, -b)
}

func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	prod := a * b
	if a == math.MinInt64 || b == math.MinInt64 || prod/b != a {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return prod
}
