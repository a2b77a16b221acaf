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

// Package packet holds the outbound/inbound packet buffer types the core
// chains off msgout/msgin, and the Allocator seam wire serialization and
// the OS send path plug into. Actual packet construction and transmission
// are external collaborators; this package only carries what the core
// itself needs to touch: chain links, offsets, and byte length.
package packet

// Outbound is one packet buffer in a msgout's owned chain.
type Outbound struct {
	Next   *Outbound
	Offset int
	Length int
}

// Inbound is one packet buffer queued on a msgin, or already drained into
// bpage-backed application memory.
type Inbound struct {
	Offset int
	Length int
	Data   []byte
}

// Allocator is the external collaborator that owns wire packet memory: it
// allocates and frees Outbound chain links, and drains queued Inbound
// packets by count. Reap passes a dead record's full inbound queue length,
// so its buffer budget bounds outbound frees only, not inbound draining.
type Allocator interface {
	// AllocateOutbound returns a new Outbound buffer able to carry length
	// bytes starting at offset.
	AllocateOutbound(offset, length int) *Outbound

	// FreeOutbound releases a chain of Outbound buffers previously
	// returned by AllocateOutbound. It is always called outside the
	// socket lock.
	FreeOutbound(chain *Outbound)

	// DrainInbound removes up to max Inbound packets from queue and
	// returns them, along with the remaining queue.
	DrainInbound(queue []*Inbound, max int) (drained []*Inbound, remaining []*Inbound)
}

// ChainLength counts the Outbound buffers reachable from head.
func ChainLength(head *Outbound) int {
	n := 0
	for p := head; p != nil; p = p.Next {
		n++
	}
	return n
}

// SpliceBatch detaches up to max buffers from the front of the chain
// rooted at head and returns (batch, remainder) — the batch as a
// standalone chain, remainder as whatever is left, for Reap to hand the
// batch to Allocator.FreeOutbound outside the socket lock.
func SpliceBatch(head *Outbound, max int) (batch *Outbound, remainder *Outbound) {
	if head == nil || max <= 0 {
		return nil, head
	}

	batch = head
	prev := head
	n := 1
	cur := head.Next

	for cur != nil && n < max {
		prev = cur
		cur = cur.Next
		n++
	}

	prev.Next = nil
	return batch, cur
}
