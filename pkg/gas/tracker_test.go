package gas

import (
	"errors"
	"testing"
	"time"
)

// TestBasicTracker replays the canonical accounting scenario: limit 20,
// 10 already used, then charges of 5, 5 and 1.
func TestBasicTracker(t *testing.T) {
	tr := NewGasTracker(NewGas(20), NewGas(10), false)

	if _, err := tr.ApplyCharge(NewCharge("", NewGas(5), Zero)); err != nil {
		t.Fatalf("first charge failed: %v", err)
	}
	if tr.Used() != NewGas(15) {
		t.Errorf("used = %v, want 15", tr.Used())
	}
	if _, err := tr.ApplyCharge(NewCharge("", NewGas(5), Zero)); err != nil {
		t.Fatalf("second charge failed: %v", err)
	}
	if tr.Used() != NewGas(20) {
		t.Errorf("used = %v, want 20", tr.Used())
	}
	if _, err := tr.ApplyCharge(NewCharge("", NewGas(1), Zero)); !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("third charge: err = %v, want ErrOutOfGas", err)
	}
	if tr.Used() != NewGas(20) {
		t.Errorf("used after out-of-gas = %v, want clamped at 20", tr.Used())
	}
}

// TestChargeSequence tests the exact-sum property and the sticky clamp.
func TestChargeSequence(t *testing.T) {
	tr := NewGasTracker(NewGas(100), Zero, false)

	var total int64
	for i := 0; i < 9; i++ {
		if _, err := tr.Charge("step", NewGas(11)); err != nil {
			t.Fatalf("charge %d failed: %v", i, err)
		}
		total += 11
		if tr.Used() != NewGas(total) {
			t.Fatalf("used = %v after %d charges, want %d", tr.Used(), i+1, total)
		}
	}
	// 99 used; the next 11 must fail and clamp to exactly the limit.
	if _, err := tr.Charge("step", NewGas(11)); !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("err = %v, want ErrOutOfGas", err)
	}
	if tr.Used() != NewGas(100) {
		t.Errorf("used = %v, want clamped at 100", tr.Used())
	}
	// Sticky: every further non-zero charge fails and stays clamped.
	for i := 0; i < 3; i++ {
		if _, err := tr.Charge("more", FromMilligas(1)); !errors.Is(err, ErrOutOfGas) {
			t.Fatalf("charge after clamp: err = %v, want ErrOutOfGas", err)
		}
		if tr.Used() != NewGas(100) {
			t.Errorf("used = %v, want clamped at 100", tr.Used())
		}
	}
	if tr.Available() != Zero {
		t.Errorf("available = %v, want 0", tr.Available())
	}
}

// TestFailedChargeStillTraced tests that an out-of-gas attempt is
// recorded for diagnosability.
func TestFailedChargeStillTraced(t *testing.T) {
	tr := NewGasTracker(NewGas(1), Zero, true)
	if _, err := tr.Charge("too-big", NewGas(5)); !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("err = %v, want ErrOutOfGas", err)
	}
	trace := tr.DrainTrace()
	if len(trace) != 1 {
		t.Fatalf("trace has %d entries, want 1", len(trace))
	}
	if trace[0].Name != "too-big" || trace[0].ComputeGas != NewGas(5) {
		t.Errorf("trace entry = %+v, want the attempted charge", trace[0])
	}
}

// TestTimer tests that the scoped timer fills the elapsed field of its
// own trace entry, also across a trace reallocation.
func TestTimer(t *testing.T) {
	tr := NewGasTracker(NewGas(1000), Zero, true)

	timer, err := tr.Charge("timed", NewGas(1))
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	// Grow the trace so the backing array may move before Stop.
	for i := 0; i < 64; i++ {
		if _, err := tr.Charge("filler", FromMilligas(1)); err != nil {
			t.Fatalf("filler charge failed: %v", err)
		}
	}
	time.Sleep(time.Millisecond)
	timer.Stop()

	trace := tr.DrainTrace()
	if trace[0].Elapsed <= 0 {
		t.Errorf("elapsed = %v, want > 0", trace[0].Elapsed)
	}
	for _, c := range trace[1:] {
		if c.Elapsed != 0 {
			t.Errorf("entry %q has elapsed %v, want 0", c.Name, c.Elapsed)
		}
	}
	// Stopping again is a no-op.
	timer.Stop()
}

// TestNoopTimer tests that disabled tracing yields a no-op timer.
func TestNoopTimer(t *testing.T) {
	tr := NewGasTracker(NewGas(10), Zero, false)
	timer, err := tr.Charge("x", NewGas(1))
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	timer.Stop()
	if got := tr.DrainTrace(); len(got) != 0 {
		t.Errorf("trace has %d entries with tracing disabled, want 0", len(got))
	}
}

// TestNewChild tests the child admission rule.
func TestNewChild(t *testing.T) {
	tr := NewGasTracker(NewGas(100), NewGas(40), true)

	if child := tr.NewChild(NewGas(60)); child != nil {
		t.Error("child with limit == available should be refused")
	}
	if child := tr.NewChild(NewGas(61)); child != nil {
		t.Error("child with limit > available should be refused")
	}
	child := tr.NewChild(NewGas(59))
	if child == nil {
		t.Fatal("child with limit < available should be granted")
	}
	if child.Used() != Zero {
		t.Errorf("child used = %v, want 0", child.Used())
	}
	if child.Limit() != NewGas(59) {
		t.Errorf("child limit = %v, want 59", child.Limit())
	}
	if !child.Tracing() {
		t.Error("child should inherit the tracing flag")
	}
}

// TestAbsorb tests usage and trace roll-up from child to parent.
func TestAbsorb(t *testing.T) {
	parent := NewGasTracker(NewGas(100), Zero, true)
	if _, err := parent.Charge("parent-op", NewGas(10)); err != nil {
		t.Fatalf("parent charge failed: %v", err)
	}

	child := parent.NewChild(NewGas(50))
	if child == nil {
		t.Fatal("child should be granted")
	}
	if _, err := child.Charge("child-op-1", NewGas(7)); err != nil {
		t.Fatalf("child charge failed: %v", err)
	}
	if _, err := child.Charge("child-op-2", NewGas(3)); err != nil {
		t.Fatalf("child charge failed: %v", err)
	}

	if err := parent.Absorb(child); err != nil {
		t.Fatalf("absorb failed: %v", err)
	}
	if parent.Used() != NewGas(20) {
		t.Errorf("parent used = %v, want 20", parent.Used())
	}

	trace := parent.DrainTrace()
	want := []string{"parent-op", "child-op-1", "child-op-2"}
	if len(trace) != len(want) {
		t.Fatalf("trace has %d entries, want %d", len(trace), len(want))
	}
	for i, name := range want {
		if trace[i].Name != name {
			t.Errorf("trace[%d] = %q, want %q", i, trace[i].Name, name)
		}
	}
	// The child's trace was drained into the parent.
	if got := child.DrainTrace(); len(got) != 0 {
		t.Errorf("child trace has %d entries after absorb, want 0", len(got))
	}
}

// TestAbsorbOverBudget tests that a child completing locally can still
// blow the parent's combined budget at absorb time.
func TestAbsorbOverBudget(t *testing.T) {
	parent := NewGasTracker(NewGas(100), NewGas(95), false)
	child := parent.NewChild(NewGas(4))
	if child == nil {
		t.Fatal("child should be granted")
	}
	if _, err := child.Charge("nested", NewGas(4)); err != nil {
		t.Fatalf("child charge failed: %v", err)
	}
	// The parent keeps spending while the child's usage is pending.
	if _, err := parent.Charge("parent-op", NewGas(3)); err != nil {
		t.Fatalf("parent charge failed: %v", err)
	}
	// 98 + 4 exceeds the limit: the roll-up itself runs out of gas.
	if err := parent.Absorb(child); !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("absorb: err = %v, want ErrOutOfGas", err)
	}
	if parent.Used() != NewGas(100) {
		t.Errorf("parent used = %v, want clamped at 100", parent.Used())
	}
}

// TestDrainTraceIdempotent tests drain-then-drain-again.
func TestDrainTraceIdempotent(t *testing.T) {
	tr := NewGasTracker(NewGas(10), Zero, true)
	if _, err := tr.Charge("a", NewGas(1)); err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if got := tr.DrainTrace(); len(got) != 1 {
		t.Fatalf("first drain has %d entries, want 1", len(got))
	}
	if got := tr.DrainTrace(); len(got) != 0 {
		t.Errorf("second drain has %d entries, want 0", len(got))
	}
}
