/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package bufpool

import (
	"sync/atomic"

	"github.com/sabouaram/homa/clock"
)

// noOwner marks a descriptor with no current per-core owner.
const noOwner int32 = -1

// sentinelOwner marks the region's last bpage as permanently
// unallocatable (spec.md's "Geometry": the sentinel reservation).
const sentinelOwner int32 = -2

// descriptor is the per-bpage bookkeeping entry. refs/owner/expiration are
// plain int32/int64 mutated only through sync/atomic — a CAS-based
// try-lock, not bits-and-blooms/bitset, which offers no atomic mutation.
type descriptor struct {
	refs       atomic.Int32
	owner      atomic.Int32
	expiration atomic.Int64 // clock.Cycles, as int64
	locked     atomic.Bool
}

// tryLock attempts the non-blocking per-descriptor lock; false means
// another core is already carving this bpage and the caller should skip
// it and consider the next candidate.
func (d *descriptor) tryLock() bool {
	return d.locked.CompareAndSwap(false, true)
}

func (d *descriptor) unlock() {
	d.locked.Store(false)
}

// eligible reports whether d may be claimed by get_pages right now: either
// genuinely free, or owned by an expired lease with no outstanding refs.
func (d *descriptor) eligible(now clock.Cycles) bool {
	owner := d.owner.Load()
	refs := d.refs.Load()

	if owner == sentinelOwner {
		return false
	}
	if owner == noOwner {
		return refs == 0
	}
	return refs == 0 && clock.Cycles(d.expiration.Load()) <= now
}

func (d *descriptor) reset() {
	d.refs.Store(0)
	d.owner.Store(noOwner)
	d.expiration.Store(0)
	d.locked.Store(false)
}
