/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2021 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

// Package clock models the monotonic "cycle" counter the core times
// everything against: RPC lifetimes, bpage leases, grant windows. There is
// no portable equivalent of a cycle-counter register without cgo, so a
// Cycles value is nanoseconds since an arbitrary epoch, carried as a plain
// int64 the way time.Duration carries nanoseconds.
package clock

import "time"

// Cycles is a monotonic timestamp or a duration expressed in nanoseconds.
type Cycles int64

// Source reports the current monotonic cycle count. Production code uses
// Now; tests substitute a Source that advances deterministically instead of
// sleeping real time.
type Source interface {
	Current() Cycles
}

type realSource struct{ start time.Time }

// Now is the production Source, backed by time.Now's monotonic reading.
func Now() Source {
	return &realSource{start: time.Now()}
}

func (r *realSource) Current() Cycles {
	return Cycles(time.Since(r.start).Nanoseconds())
}

// PerMicrosecond is the number of Cycles in one microsecond.
const PerMicrosecond Cycles = Cycles(time.Microsecond)

// PerMillisecond is the number of Cycles in one millisecond.
const PerMillisecond Cycles = Cycles(time.Millisecond)

// PerKiloByte converts a link rate in megabits per second into the number
// of Cycles it takes to transmit one kilobyte at that rate.
func PerKiloByte(mbps int) Cycles {
	if mbps <= 0 {
		return 0
	}
	// 1 KB = 8192 bits; bits/sec = mbps * 1e6.
	seconds := 8192.0 / (float64(mbps) * 1e6)
	return Cycles(seconds * float64(time.Second))
}

// Since returns the Cycles elapsed from a past reading of src.
func Since(src Source, start Cycles) Cycles {
	return src.Current() - start
}

// Duration converts Cycles to a time.Duration for use with stdlib timers.
func (c Cycles) Duration() time.Duration {
	return time.Duration(c)
}

// Microseconds returns c expressed as whole microseconds.
func (c Cycles) Microseconds() int64 {
	return int64(c / PerMicrosecond)
}
