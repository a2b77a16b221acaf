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
	"net/netip"
	"sync"

	"github.com/sabouaram/homa/clock"
	"github.com/sabouaram/homa/metrics"
)

// Bucket is a single hash bucket: a spin-lock-equivalent mutex guarding an
// intrusive singly-linked list of RpcRecords (spec section 4.1). A found
// record is always returned to the caller still holding this lock.
type Bucket struct {
	mu   sync.Mutex
	head *RpcRecord
}

// lockTimed acquires the bucket lock, recording wait-time metrics only on
// the slow (contended) path — the fast path costs nothing beyond the
// TryLock itself.
func (b *Bucket) lockTimed(m *metrics.Set, src clock.Source) {
	if b.mu.TryLock() {
		return
	}
	var start clock.Cycles
	if src != nil {
		start = src.Current()
	}
	b.mu.Lock()
	if m != nil && src != nil {
		m.BucketLockWaitSeconds.Observe(clock.Since(src, start).Duration().Seconds())
	}
}

func (b *Bucket) unlock() {
	b.mu.Unlock()
}

// find scans for a record by client-assigned id.
func (b *Bucket) find(id uint64) *RpcRecord {
	for r := b.head; r != nil; r = r.next {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// findServer scans for a record by the (id, dport, peer address) triple
// new_server resolves against.
func (b *Bucket) findServer(id uint64, dport uint16, addr netip.AddrPort) *RpcRecord {
	for r := b.head; r != nil; r = r.next {
		if r.ID == id && r.Dport == dport && r.Peer.Addr == addr {
			return r
		}
	}
	return nil
}

// insert pushes r onto the front of the bucket list.
func (b *Bucket) insert(r *RpcRecord) {
	r.next = b.head
	b.head = r
}

// remove unlinks r from the bucket list. r must currently be on this
// bucket's list; it is a no-op otherwise.
func (b *Bucket) remove(r *RpcRecord) {
	if b.head == r {
		b.head = r.next
		r.next = nil
		return
	}
	for p := b.head; p != nil; p = p.next {
		if p.next == r {
			p.next = r.next
			r.next = nil
			return
		}
	}
}

// BucketTable is a fixed-cardinality array of Buckets; a socket holds two
// disjoint instances, one for client-assigned ids and one for
// server-assigned ids, so a numerically equal id in each table never
// shares a lock.
type BucketTable struct {
	buckets []*Bucket
}

// NewBucketTable builds a table of n buckets. n is rounded up to the next
// power of two so bucketFor can mask instead of divide, matching the
// "typically id % num_buckets" assignment spec section 4.1 describes while
// keeping the common case a single AND.
func NewBucketTable(n int) *BucketTable {
	if n < 1 {
		n = 1
	}
	size := 1
	for size < n {
		size <<= 1
	}
	t := &BucketTable{buckets: make([]*Bucket, size)}
	for i := range t.buckets {
		t.buckets[i] = &Bucket{}
	}
	return t
}

// bucketFor returns the bucket id is deterministically assigned to.
func (t *BucketTable) bucketFor(id uint64) *Bucket {
	return t.buckets[id&uint64(len(t.buckets)-1)]
}

// Len returns the bucket count.
func (t *BucketTable) Len() int {
	return len(t.buckets)
}
