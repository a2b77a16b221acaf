package clock

import "sync/atomic"

// Manual is a Source whose Current() only moves when Advance is called,
// for deterministic tests of lease expiry, grant windows, and reap timing.
type Manual struct {
	now int64
}

// NewManual returns a Manual source starting at cycle 0.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Current() Cycles {
	return Cycles(atomic.LoadInt64(&m.now))
}

// Advance moves the manual clock forward by d and returns the new reading.
func (m *Manual) Advance(d Cycles) Cycles {
	return Cycles(atomic.AddInt64(&m.now, int64(d)))
}

// Set pins the manual clock to an absolute reading.
func (m *Manual) Set(c Cycles) {
	atomic.StoreInt64(&m.now, int64(c))
}
