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

package homa

import (
	"sync/atomic"

	"github.com/sabouaram/homa/clock"
	"github.com/sabouaram/homa/packet"
	"github.com/sabouaram/homa/peer"
)

// State is an RpcRecord's lifecycle stage. Transitions to Dead are
// monotonic: no record re-enters a non-Dead state.
type State int32

const (
	StateOutgoing State = iota
	StateIncoming
	StateInService
	StateDead
)

func (s State) String() string {
	switch s {
	case StateOutgoing:
		return "OUTGOING"
	case StateIncoming:
		return "INCOMING"
	case StateInService:
		return "IN_SERVICE"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Flags is an atomic bitset of recognized RpcRecord flags. A plain uint32
// mutated through sync/atomic, not bits-and-blooms/bitset (not safe for
// concurrent mutation — see DESIGN.md).
type Flags uint32

const (
	// FlagPktsReady marks that msgin has data ready for an application
	// reader (set on hand-off).
	FlagPktsReady Flags = 1 << iota

	// FlagCantReap forbids Reap from reclaiming this record even when its
	// counters are otherwise quiescent.
	FlagCantReap
)

// Gap describes one out-of-order hole in a partially-received message.
type Gap struct {
	Start int
	End   int
}

// Msgin is the inbound message state (spec section 4.4).
type Msgin struct {
	Length         int // declared length; -1 means not yet known
	BytesRemaining int
	Granted        int
	Gaps           []Gap
	Packets        []*packet.Inbound
	Rank           int
	BpageOffsets   []int
}

// Msgout is the outbound message state (spec section 4.4). ActiveXmits is
// tracked on the owning RpcRecord as an atomic counter rather than
// duplicated here, since reap's gating check needs it lock-free.
type Msgout struct {
	Length         int
	NextXmitOffset int
	Granted        int
	Head           *packet.Outbound
	NumSkbs        int
}

// Interest is the optional back-link a thread waiting on an RPC's
// completion registers; Free clears and wakes it.
type Interest struct {
	ready chan struct{}
}

// NewInterest returns a fresh, unsignaled Interest.
func NewInterest() *Interest {
	return &Interest{ready: make(chan struct{}, 1)}
}

// Wake signals the interest exactly once; redundant wakes are no-ops.
func (i *Interest) Wake() {
	select {
	case i.ready <- struct{}{}:
	default:
	}
}

// Wait blocks until Wake is called.
func (i *Interest) Wait() {
	<-i.ready
}

// RpcRecord is the per-RPC state container (spec section 3). Its bucket
// list and active/dead list linkage are intrusive: a record lives on
// exactly one of {bucket list + active list} or {dead list} at a time
// (invariant 1).
type RpcRecord struct {
	ID    uint64
	Dport uint16
	Peer  peer.Peer

	Msgin  Msgin
	Msgout Msgout

	ResendTimerTicks int64
	SilentTicks      int64
	DoneTimerTicks   int64
	StartCycles      clock.Cycles

	state            atomic.Int32
	flags            atomic.Uint32
	grantsInProgress atomic.Int32
	activeXmits      atomic.Int32

	bucket   *Bucket
	interest *Interest

	next *RpcRecord // bucket list (singly-linked)

	activeNext, activePrev *RpcRecord // socket active list
	deadNext, deadPrev     *RpcRecord // socket dead list
}

func newRpcRecord(id uint64, p peer.Peer, dport uint16, initial State, now clock.Cycles) *RpcRecord {
	r := &RpcRecord{
		ID:          id,
		Dport:       dport,
		Peer:        p,
		StartCycles: now,
	}
	r.state.Store(int32(initial))
	return r
}

// State returns the record's current lifecycle stage.
func (r *RpcRecord) State() State {
	return State(r.state.Load())
}

// SetState advances the record's lifecycle stage. Callers outside this
// package should not drive a record to StateDead directly — use Free.
func (r *RpcRecord) SetState(s State) {
	r.state.Store(int32(s))
}

// SetFlag atomically sets f in the record's flag bitset.
func (r *RpcRecord) SetFlag(f Flags) {
	for {
		old := r.flags.Load()
		if old&uint32(f) != 0 {
			return
		}
		if r.flags.CompareAndSwap(old, old|uint32(f)) {
			return
		}
	}
}

// ClearFlag atomically clears f in the record's flag bitset.
func (r *RpcRecord) ClearFlag(f Flags) {
	for {
		old := r.flags.Load()
		if old&uint32(f) == 0 {
			return
		}
		if r.flags.CompareAndSwap(old, old&^uint32(f)) {
			return
		}
	}
}

// HasFlag reports whether f is set.
func (r *RpcRecord) HasFlag(f Flags) bool {
	return r.flags.Load()&uint32(f) != 0
}

// GrantsInProgress returns the current grants-in-progress counter.
func (r *RpcRecord) GrantsInProgress() int32 { return r.grantsInProgress.Load() }

// AddGrantsInProgress adjusts the grants-in-progress counter by delta.
func (r *RpcRecord) AddGrantsInProgress(delta int32) int32 {
	return r.grantsInProgress.Add(delta)
}

// ActiveXmits returns the current active-transmits counter.
func (r *RpcRecord) ActiveXmits() int32 { return r.activeXmits.Load() }

// AddActiveXmits adjusts the active-transmits counter by delta.
func (r *RpcRecord) AddActiveXmits(delta int32) int32 {
	return r.activeXmits.Add(delta)
}

// SetInterest registers i as the thread waiting on this record's
// completion, replacing any previous registration.
func (r *RpcRecord) SetInterest(i *Interest) {
	r.interest = i
}

// reapable reports whether Reap may reclaim r right now (spec section
// 4.2's walk-skip conditions).
func (r *RpcRecord) reapable() bool {
	return !r.HasFlag(FlagCantReap) && r.grantsInProgress.Load() == 0 && r.activeXmits.Load() == 0
}

// Unlock releases the bucket lock a lookup or construction call (FindClient,
// FindServer, NewClient, NewServer) returned the record holding.
func (r *RpcRecord) Unlock() {
	if r.bucket != nil {
		r.bucket.unlock()
	}
}
