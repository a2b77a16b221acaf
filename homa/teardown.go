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

	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/homa/packet"
)

// Free makes rpc unreachable (spec section 4.2). It must be called with
// rpc's bucket lock held and the socket lock not held; the caller retains
// ownership of the bucket lock afterward (the same contract FindClient/
// FindServer/NewClient/NewServer establish) and must eventually call
// rpc.Unlock(). Freeing an already-DEAD record is a no-op.
func Free(ctx *Context, sock *Socket, rpc *RpcRecord) {
	if rpc.State() == StateDead {
		return
	}
	rpc.SetState(StateDead)

	// The grant scheduler may internally drop and retake rpc's own lock;
	// notifying it before the socket lock is acquired keeps the lock
	// hierarchy (bucket -> socket -> pool) intact (spec section 5).
	if ctx.Grant != nil {
		ctx.Grant.FreeRpc(rpc)
	}

	sock.mu.Lock()
	if rpc.bucket != nil {
		rpc.bucket.remove(rpc)
	}
	sock.activeRemove(rpc)
	sock.dead.pushBack(rpc)

	if rpc.interest != nil {
		rpc.interest.Wake()
		rpc.interest = nil
	}

	cur := sock.deadSkbs.Add(1)
	for {
		hw := sock.deadSkbsHighWater.Load()
		if cur <= hw || sock.deadSkbsHighWater.CompareAndSwap(hw, cur) {
			break
		}
	}
	sock.mu.Unlock()

	if ctx.Metrics != nil {
		ctx.Metrics.RpcsActive.Dec()
		ctx.Metrics.DeadSkbsHighWater.Set(float64(sock.deadSkbsHighWater.Load()))
	}
}

// Reap performs budgeted, off-critical-path reclamation of dead RPCs
// (spec section 4.2). recordBatch bounds how many dead-list records are
// considered per socket-lock acquisition (20 in production, 3 in test
// mode per original_source/homa_utils.c); bufferBudget bounds the total
// number of outbound packet buffers freed across the whole call
// (invariant 6). Reap returns true if more work remains — either the dead
// list is still non-empty or a protect_count walker deferred this call.
func Reap(ctx *Context, sock *Socket, recordBatch int, bufferBudget int) bool {
	if recordBatch < 1 {
		recordBatch = 1
	}

	freedBuffers := 0

	for {
		sock.mu.Lock()

		if sock.protectCount.Load() > 0 {
			sock.mu.Unlock()
			if ctx.Metrics != nil {
				ctx.Metrics.ReapBatchesBlocked.Inc()
			}
			return true
		}

		var reaped []*RpcRecord
		var outbound []*packet.Outbound

		considered := 0
		r := sock.dead.Front()
		for r != nil && considered < recordBatch {
			next := r.deadNext
			if !r.reapable() {
				r = next
				continue
			}
			considered++

			batch, remainder := packet.SpliceBatch(r.Msgout.Head, bufferBudget-freedBuffers)
			if batch != nil {
				freedBuffers += packet.ChainLength(batch)
				outbound = append(outbound, batch)
			}
			r.Msgout.Head = remainder

			if ctx.Packets != nil && len(r.Msgin.Packets) > 0 {
				_, remainingInbound := ctx.Packets.DrainInbound(r.Msgin.Packets, len(r.Msgin.Packets))
				r.Msgin.Packets = remainingInbound
			}

			if r.Msgout.Head == nil && len(r.Msgin.Packets) == 0 {
				sock.dead.remove(r)
				sock.deadSkbs.Add(-1)
				reaped = append(reaped, r)
			}

			r = next
		}

		moreWork := sock.dead.Len() > 0
		sock.mu.Unlock()

		if ctx.Packets != nil {
			for _, b := range outbound {
				ctx.Packets.FreeOutbound(b)
			}
		}

		for _, rr := range reaped {
			// Final bucket-lock acquire/release: a barrier against any
			// straggler reader that obtained rr's pointer before Free
			// unlinked it (spec section 4.2's rationale).
			if rr.bucket != nil {
				rr.bucket.lockTimed(ctx.Metrics, ctx.Clock)
				rr.bucket.unlock()
			}
			if sock.Pool != nil && len(rr.Msgin.BpageOffsets) > 0 {
				sock.Pool.ReleaseBuffers(rr.Msgin.BpageOffsets)
			}
			rr.Msgin.Gaps = nil
			if ctx.Metrics != nil {
				ctx.Metrics.ReapSkbsFreed.Inc()
			}
		}

		if ctx.Metrics != nil {
			ctx.Metrics.ReapBatchesRun.Inc()
		}

		if len(reaped) == 0 || !moreWork || freedBuffers >= bufferBudget {
			return moreWork
		}
	}
}

// ReapAll runs Reap concurrently across every socket in sockets, one
// goroutine per socket, and reports whether any of them still has work
// remaining. A process hosting many sockets (one per listening port) calls
// this from its periodic reap timer instead of walking sockets serially,
// since each socket's lock is independent and there is nothing to serialize
// on between them.
func ReapAll(ctx *Context, sockets []*Socket, recordBatch, bufferBudget int) bool {
	var anyMore atomic.Bool

	var g errgroup.Group
	for _, sock := range sockets {
		sock := sock
		g.Go(func() error {
			if Reap(ctx, sock, recordBatch, bufferBudget) {
				anyMore.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	return anyMore.Load()
}
