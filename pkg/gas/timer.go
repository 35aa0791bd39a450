package gas

import "time"

// Timer measures the elapsed time of one metered operation and stores
// it into the trace entry the timer was created for.
//
// The timer addresses its trace entry by index rather than holding a
// reference into the trace slice, so the trace may grow (reallocating
// its backing array) while the timer is outstanding. The zero value is
// a no-op timer: Stop on it does nothing, which keeps the metering hot
// path free of timing overhead when tracing is disabled.
type Timer struct {
	tracker *GasTracker
	index   int
	start   time.Time
}

// newTimer binds a timer to the trace entry at index in the tracker's
// trace and starts measuring immediately.
func newTimer(t *GasTracker, index int) Timer {
	return Timer{tracker: t, index: index, start: time.Now()}
}

// Stop records the elapsed time into the bound trace entry. Stopping a
// no-op or already-stopped timer does nothing. The entry may already
// have been drained from the trace, in which case the measurement is
// discarded.
func (t *Timer) Stop() {
	if t.tracker == nil {
		return
	}
	tracker := t.tracker
	t.tracker = nil
	if t.index < len(tracker.trace) {
		tracker.trace[t.index].Elapsed = time.Since(t.start)
	}
}
