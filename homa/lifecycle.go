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

	"github.com/sabouaram/homa/bufpool"
	liberr "github.com/sabouaram/homa/errors"
)

// NewClient creates an outgoing RPC (spec section 4.1). On success the
// returned record is in state OUTGOING, published into both the client
// bucket table and the socket's active list, and held locked under its
// bucket lock — the caller must call Unlock() once done with it.
func NewClient(ctx *Context, sock *Socket, dest netip.AddrPort) (*RpcRecord, liberr.Error) {
	if sock.IsShutdown() {
		return nil, liberr.Shutdown.Error()
	}

	p, err := ctx.Peers.Find(dest)
	if err != nil {
		return nil, err
	}

	id := ctx.allocateClientID()
	r := newRpcRecord(id, p, 0, StateOutgoing, ctx.Clock.Current())

	b := sock.ClientBuckets.bucketFor(id)
	b.lockTimed(ctx.Metrics, ctx.Clock)

	sock.mu.Lock()
	if sock.IsShutdown() {
		sock.mu.Unlock()
		b.unlock()
		return nil, liberr.Shutdown.Error()
	}

	b.insert(r)
	r.bucket = b
	sock.activatePush(r)
	sock.mu.Unlock()

	if ctx.Metrics != nil {
		ctx.Metrics.RpcsActive.Inc()
	}

	return r, nil
}

// NewServer resolves or creates the RpcRecord for an inbound data packet
// (spec section 4.1). If a matching record already exists it is returned
// with created=false; otherwise a new one is initialized in state
// INCOMING. The returned record is held locked under its bucket lock in
// both cases — the caller must call Unlock().
func NewServer(ctx *Context, sock *Socket, src netip.AddrPort, id uint64, dport uint16, firstOffset int, declaredLength int) (rpc *RpcRecord, created bool, err liberr.Error) {
	p, perr := ctx.Peers.Find(src)
	if perr != nil {
		return nil, false, perr
	}

	b := sock.ServerBuckets.bucketFor(id)
	b.lockTimed(ctx.Metrics, ctx.Clock)

	if existing := b.findServer(id, dport, p.Addr); existing != nil {
		return existing, false, nil
	}

	r := newRpcRecord(id, p, dport, StateIncoming, ctx.Clock.Current())
	if ierr := initMsgin(r, sock.Pool, int(id%bufferCoreModulus), declaredLength, ctx.Config.UnscheduledBytes); ierr != nil {
		b.unlock()
		return nil, false, liberr.MsginInitFailed.Error(ierr)
	}

	sock.mu.Lock()
	if sock.IsShutdown() {
		sock.mu.Unlock()
		b.unlock()
		return nil, false, liberr.Shutdown.Error()
	}

	b.insert(r)
	r.bucket = b
	sock.activatePush(r)

	if firstOffset == 0 && len(r.Msgin.BpageOffsets) > 0 {
		r.SetFlag(FlagPktsReady)
	}

	sock.mu.Unlock()

	if ctx.Metrics != nil {
		ctx.Metrics.RpcsActive.Inc()
	}

	return r, true, nil
}

// bufferCoreModulus bounds the placeholder core-id derivation NewServer
// uses for bufpool.Allocate; a real caller threads the actual core id of
// the softirq context it runs in instead of deriving one from the RPC id.
const bufferCoreModulus = 1 << 16

// initMsgin sets up msgin's declared length, remaining-bytes, and initial
// grant watermark, and opportunistically obtains buffers for the message
// if a BufferPool is wired in (spec section 4.1's "invoke msgin
// initialization (external)"). Buffer exhaustion is not fatal: a declared
// length is still a valid msgin state without buffers yet attached.
func initMsgin(r *RpcRecord, pool *bufpool.BufferPool, coreID int, declaredLength int, unscheduledBytes int) error {
	if declaredLength < -1 {
		return liberr.InvalidArgument.Error()
	}

	r.Msgin.Length = declaredLength

	if declaredLength < 0 {
		r.Msgin.BytesRemaining = -1
		r.Msgin.Granted = 0
		return nil
	}

	r.Msgin.BytesRemaining = declaredLength
	if declaredLength < unscheduledBytes {
		r.Msgin.Granted = declaredLength
	} else {
		r.Msgin.Granted = unscheduledBytes
	}

	if pool != nil {
		if offsets, aerr := pool.Allocate(coreID, declaredLength); aerr == nil {
			r.Msgin.BpageOffsets = offsets
		}
	}

	return nil
}

// FindClient looks up an RPC by client-assigned id (spec section 4.1). The
// returned record, if any, is held locked under its bucket lock — the
// caller must call Unlock().
func FindClient(ctx *Context, sock *Socket, id uint64) *RpcRecord {
	b := sock.ClientBuckets.bucketFor(id)
	b.lockTimed(ctx.Metrics, ctx.Clock)

	r := b.find(id)
	if r == nil {
		b.unlock()
		return nil
	}
	return r
}

// FindServer looks up an RPC by (id, dport, source address) (spec section
// 4.1). The returned record, if any, is held locked under its bucket lock
// — the caller must call Unlock().
func FindServer(ctx *Context, sock *Socket, src netip.AddrPort, dport uint16, id uint64) *RpcRecord {
	b := sock.ServerBuckets.bucketFor(id)
	b.lockTimed(ctx.Metrics, ctx.Clock)

	r := b.findServer(id, dport, src)
	if r == nil {
		b.unlock()
		return nil
	}
	return r
}
