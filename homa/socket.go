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
	"sync"
	"sync/atomic"

	"github.com/sabouaram/homa/bufpool"
)

// Socket owns one BucketTable pair (client-keyed and server-keyed), one
// DeadList, one BufferPool, the active-RPC list, and the shutdown flag
// (spec section 2). All active-list and dead-list mutation happens under
// mu; bucket list mutation happens under the bucket's own lock, acquired
// before mu per the bucket-then-socket ordering (spec section 4.1).
type Socket struct {
	Dport uint16

	ClientBuckets *BucketTable
	ServerBuckets *BucketTable
	Pool          *bufpool.BufferPool

	mu         sync.Mutex
	activeHead *RpcRecord
	activeTail *RpcRecord
	activeLen  int
	dead       *DeadList

	shutdown          atomic.Bool
	protectCount      atomic.Int32
	deadSkbs          atomic.Int64
	deadSkbsHighWater atomic.Int64
}

// NewSocket builds a Socket with numBuckets-sized client/server tables
// (each rounded up to a power of two) over pool.
func NewSocket(pool *bufpool.BufferPool, numBuckets int, dport uint16) *Socket {
	return &Socket{
		Dport:         dport,
		ClientBuckets: NewBucketTable(numBuckets),
		ServerBuckets: NewBucketTable(numBuckets),
		Pool:          pool,
		dead:          newDeadList(),
	}
}

// Shutdown marks the socket as shutting down; subsequent NewClient/NewServer
// calls that observe it under the socket lock return Shutdown.
func (s *Socket) Shutdown() {
	s.shutdown.Store(true)
}

// IsShutdown reports the shutdown flag.
func (s *Socket) IsShutdown() bool {
	return s.shutdown.Load()
}

// ProtectRpcs increments protect_count, inhibiting Reap while a diagnostic
// or snapshot walker holds an active-list iterator (spec section 5).
func (s *Socket) ProtectRpcs() {
	s.protectCount.Add(1)
}

// UnprotectRpcs decrements protect_count.
func (s *Socket) UnprotectRpcs() {
	s.protectCount.Add(-1)
}

// ActiveLen returns the number of RPCs currently on the active list.
func (s *Socket) ActiveLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLen
}

// DeadLen returns the number of RPCs currently on the dead list.
func (s *Socket) DeadLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead.Len()
}

// DeadSkbsHighWater returns the high-water mark of the dead list's size,
// updated without strict atomicity (statistic only, spec section 4.2).
func (s *Socket) DeadSkbsHighWater() int64 {
	return s.deadSkbsHighWater.Load()
}

// activatePush inserts r at the head of the active list. Caller must hold mu.
func (s *Socket) activatePush(r *RpcRecord) {
	r.activePrev = nil
	r.activeNext = s.activeHead
	if s.activeHead != nil {
		s.activeHead.activePrev = r
	}
	s.activeHead = r
	if s.activeTail == nil {
		s.activeTail = r
	}
	s.activeLen++
}

// activeRemove unlinks r from the active list. Caller must hold mu.
func (s *Socket) activeRemove(r *RpcRecord) {
	if r.activePrev != nil {
		r.activePrev.activeNext = r.activeNext
	} else {
		s.activeHead = r.activeNext
	}
	if r.activeNext != nil {
		r.activeNext.activePrev = r.activePrev
	} else {
		s.activeTail = r.activePrev
	}
	r.activeNext, r.activePrev = nil, nil
	s.activeLen--
}

// Active calls fn for every record on the active list, in most-recently-
// published-first order. fn must not mutate the active list.
func (s *Socket) Active(fn func(*RpcRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for r := s.activeHead; r != nil; r = r.activeNext {
		fn(r)
	}
}
