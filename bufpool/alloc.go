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
	"github.com/sabouaram/homa/clock"
	liberr "github.com/sabouaram/homa/errors"
)

// CheckWaiting is invoked whenever a release (ReleaseBuffers, or the unwind
// of a partial GetPages claim) drops a descriptor with no owner to zero
// refs; a real pacer/grant scheduler wires a non-nil hook here to wake
// senders blocked on buffer availability (spec.md §4.3's "external hook").
type CheckWaiting func(pool *BufferPool)

// SetCheckWaiting installs the wake-waiters hook.
func (p *BufferPool) SetCheckWaiting(fn CheckWaiting) {
	p.mu.Lock()
	p.onRelease = fn
	p.mu.Unlock()
}

// GetPages acquires count fully-free bpages for the calling core,
// advancing that core's rotating scan cursor. setOwner marks each claimed
// bpage as owned by coreID with a fresh lease (used for a tail bpage about
// to receive a partial allocation); otherwise the bpage is claimed
// anonymously for bulk, whole-page use (refs=1, no owner).
func (p *BufferPool) GetPages(coreID, count int, setOwner bool) ([]int, liberr.Error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.getPagesLocked(coreID, count, setOwner)
}

// getPagesLocked is GetPages' body, callable by other methods that already
// hold p.mu for reading (sync.RWMutex.RLock is not safely re-entrant, so
// Allocate calls this directly instead of calling GetPages twice).
func (p *BufferPool) getPagesLocked(coreID, count int, setOwner bool) ([]int, liberr.Error) {
	if count <= 0 {
		return nil, liberr.InvalidArgument.Error()
	}
	if p.region == nil {
		return nil, liberr.ResourceExhausted.Error()
	}
	if p.freeBpages.Load() < int64(count) {
		return nil, liberr.ResourceExhausted.Error()
	}

	cs := p.coreFor(coreID)
	now := p.clock.Current()
	out := make([]int, 0, count)

	for len(out) < count {
		idx, ok := p.claimOne(cs, coreID, setOwner, now)
		if !ok {
			for _, claimed := range out {
				p.releaseIndex(claimed)
			}
			return nil, liberr.ResourceExhausted.Error()
		}
		out = append(out, idx)
	}

	return out, nil
}

// claimOne scans up to numBpages candidates starting at cs.nextCandidate
// and claims the first eligible one.
func (p *BufferPool) claimOne(cs *coreState, coreID int, setOwner bool, now clock.Cycles) (int, bool) {
	for attempt := 0; attempt < p.numBpages; attempt++ {
		idx := cs.nextCandidate
		cs.nextCandidate = (cs.nextCandidate + 1) % p.numBpages

		d := &p.descriptors[idx]
		if !d.eligible(now) {
			continue
		}
		if !d.tryLock() {
			continue
		}
		if !d.eligible(now) {
			d.unlock()
			continue
		}

		// free_bpages only ever counts refs=0 && owner=-1 descriptors
		// (invariant 2); a stolen, still-owned-but-expired page was
		// never part of that count, so only a genuinely free claim
		// decrements the gauge.
		stolen := d.owner.Load() != noOwner
		if stolen {
			p.bpageSteals.Add(1)
			if p.metrics != nil {
				p.metrics.BpageSteals.Inc()
			}
		} else {
			n := p.freeBpages.Add(-1)
			if p.metrics != nil {
				p.metrics.FreeBpages.Set(float64(n))
			}
		}

		if setOwner {
			d.refs.Store(2)
			d.owner.Store(int32(coreID))
			d.expiration.Store(int64(now + p.leaseCycle))
		} else {
			d.refs.Store(1)
			d.owner.Store(noOwner)
			d.expiration.Store(0)
		}
		d.unlock()

		return idx, true
	}
	return 0, false
}

// releaseIndex decrements a descriptor's refs by one directly (used to
// unwind a partial GetPages claim, bypassing the byte-offset translation
// ReleaseBuffers performs for external callers).
func (p *BufferPool) releaseIndex(idx int) {
	d := &p.descriptors[idx]
	if d.refs.Add(-1) == 0 && d.owner.Load() == noOwner {
		n := p.freeBpages.Add(1)
		if p.metrics != nil {
			p.metrics.FreeBpages.Set(float64(n))
		}
		if p.onRelease != nil {
			p.onRelease(p)
		}
	}
}

// Allocate sizes a buffer of length bytes out of whole bpages plus,
// optionally, a suffix on a partial bpage, and returns the byte offsets
// into region backing it (one per whole bpage, plus the tail's starting
// offset). coreID identifies the calling core for per-core hint reuse.
func (p *BufferPool) Allocate(coreID, length int) ([]int, liberr.Error) {
	if length < 0 {
		return nil, liberr.InvalidArgument.Error()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.region == nil {
		return nil, liberr.ResourceExhausted.Error()
	}

	full := length / p.bpageSize
	tail := length % p.bpageSize

	required := full
	if tail > 0 {
		required++
	}
	if p.freeBpages.Load() < int64(required) {
		return nil, liberr.ResourceExhausted.Error()
	}

	offsets := make([]int, 0, required)

	if full > 0 {
		pages, err := p.getPagesLocked(coreID, full, false)
		if err != nil {
			return nil, err
		}
		for _, idx := range pages {
			offsets = append(offsets, idx*p.bpageSize)
		}
	}

	if tail > 0 {
		off, err := p.allocateTailLocked(coreID, tail)
		if err != nil {
			for _, o := range offsets {
				p.releaseIndex(o / p.bpageSize)
			}
			return nil, err
		}
		offsets = append(offsets, off)
	}

	return offsets, nil
}

// allocateTailLocked satisfies the tail bytes of an Allocate call, reusing
// the calling core's current hint bpage when it still has room, or
// claiming a fresh owned bpage otherwise.
func (p *BufferPool) allocateTailLocked(coreID, tail int) (int, liberr.Error) {
	cs := p.coreFor(coreID)
	now := p.clock.Current()

	if cs.pageHint >= 0 {
		d := &p.descriptors[cs.pageHint]
		if int(d.owner.Load()) == coreID && clock.Cycles(d.expiration.Load()) > now && cs.allocated+tail <= p.bpageSize {
			if d.tryLock() {
				if int(d.owner.Load()) == coreID {
					d.refs.Add(1)
					off := cs.pageHint*p.bpageSize + cs.allocated
					cs.allocated += tail
					d.unlock()
					p.bpageReuses.Add(1)
					if p.metrics != nil {
						p.metrics.BpageReuses.Inc()
					}
					return off, nil
				}
				d.unlock()
			}
		}
	}

	pages, err := p.getPagesLocked(coreID, 1, true)
	if err != nil {
		return 0, err
	}

	idx := pages[0]
	cs.pageHint = idx
	cs.allocated = tail

	return idx * p.bpageSize, nil
}

// GetBuffer translates a message offset into a byte offset within region
// and reports how many contiguous bytes remain in that bpage (or in the
// message, if smaller). Pure arithmetic; no locks beyond a read of the
// immutable bpageSize/region fields.
func (p *BufferPool) GetBuffer(bpageOffsets []int, messageLength, messageOffset int) (regionOffset int, available int, err liberr.Error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.region == nil {
		return 0, 0, liberr.ResourceExhausted.Error()
	}
	if messageOffset < 0 || messageOffset > messageLength {
		return 0, 0, liberr.InvalidArgument.Error()
	}

	page := messageOffset / p.bpageSize
	within := messageOffset % p.bpageSize

	if page >= len(bpageOffsets) {
		return 0, 0, liberr.InvalidArgument.Error()
	}

	regionOffset = bpageOffsets[page] + within

	inPage := p.bpageSize - within
	remaining := messageLength - messageOffset
	if remaining < inPage {
		available = remaining
	} else {
		available = inPage
	}

	return regionOffset, available, nil
}

// ReleaseBuffers decrements the refs of every descriptor backing offsets.
// It is a no-op if the pool's region is nil (already destroyed).
func (p *BufferPool) ReleaseBuffers(offsets []int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.region == nil {
		return
	}

	for _, off := range offsets {
		p.releaseIndex(off / p.bpageSize)
	}
}
