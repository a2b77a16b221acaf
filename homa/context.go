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

// Package homa implements the core RPC lifecycle and lookup state machine:
// BucketTable, RpcRecord, Socket, DeadList, and the two-phase Free/Reap
// teardown. Every entry point takes a *Context explicitly rather than
// reaching for package-level globals, so a process can host more than one
// Homa instance side by side.
package homa

import (
	"sync/atomic"

	libbuf "github.com/sabouaram/homa/bufpool"
	"github.com/sabouaram/homa/clock"
	"github.com/sabouaram/homa/config"
	"github.com/sabouaram/homa/grant"
	"github.com/sabouaram/homa/logger"
	"github.com/sabouaram/homa/metrics"
	"github.com/sabouaram/homa/packet"
	"github.com/sabouaram/homa/peer"
)

// Scheduler is the grant scheduler shape this package instantiates
// grant.Scheduler with: FreeRpc/CheckWaiting/LogTT over this package's own
// RpcRecord, BufferPool, and Context types.
type Scheduler = grant.Scheduler[*RpcRecord, *libbuf.BufferPool, *Context]

// Context bundles every external collaborator and piece of shared
// configuration an entry point needs, in place of the reference
// implementation's static per-process and per-core globals (spec section 9,
// "Global mutable state").
type Context struct {
	Config  *config.Config
	Peers   *peer.Registry
	Packets packet.Allocator
	Grant   Scheduler
	Metrics *metrics.Set
	Clock   clock.Source
	Log     logger.Logger

	// nextOutgoingID seeds client RPC id allocation. It starts at 2 (id 0
	// is reserved, never issued) and advances by 2 per call so every
	// client id's low bit is 0 (original_source/homa_utils.c).
	nextOutgoingID atomic.Uint64
}

// NewContext builds a Context. Config, Peers and Clock are required by
// NewClient/NewServer; callers exercising only a subset of the core (e.g.
// bufpool-only tests) can leave Grant/Packets/Metrics/Log nil and the paths
// that would use them degrade to no-ops.
func NewContext(cfg *config.Config, peers *peer.Registry, packets packet.Allocator, sched Scheduler, m *metrics.Set, src clock.Source, log logger.Logger) *Context {
	c := &Context{
		Config:  cfg,
		Peers:   peers,
		Packets: packets,
		Grant:   sched,
		Metrics: m,
		Clock:   src,
		Log:     log,
	}
	c.nextOutgoingID.Store(2)
	return c
}

// allocateClientID returns the next client RPC id and advances the counter
// by 2, mirroring fetch_add(next_outgoing_id, 2): the value returned is the
// one observed before this call's increment.
func (c *Context) allocateClientID() uint64 {
	return c.nextOutgoingID.Add(2) - 2
}

// WireBufferPool connects sock's buffer pool to ctx's metrics sink and grant
// scheduler: the pool starts mirroring its free/reuse/steal counters into
// ctx.Metrics immediately, and every release that drains an unowned
// descriptor to zero refs now also asks ctx.Grant to reconsider granting (spec section
// 4.3's external hook). A process that constructs a Socket with a non-nil
// Pool calls this once, after both the Context and Socket exist; a Socket
// built for bucket/lifecycle-only tests with a nil Pool is unaffected.
func WireBufferPool(ctx *Context, sock *Socket) {
	if sock.Pool == nil {
		return
	}
	sock.Pool.SetMetrics(ctx.Metrics)
	sock.Pool.SetCheckWaiting(func(pool *libbuf.BufferPool) {
		if ctx.Grant != nil {
			ctx.Grant.CheckWaiting(pool)
		}
		if ctx.Metrics != nil {
			ctx.Metrics.GrantsSent.Inc()
		}
	})
}
