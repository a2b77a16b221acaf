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

// Package grant models the pacer/grant scheduler the core notifies from
// Free (called with the record's bucket lock held, before the socket lock
// is taken) and from buffer release on the reap path (called with no
// bucket lock held). Scheduler is generic over the core's own RPC
// record, buffer pool, and top-level context types so this package never
// imports the homa package — the dependency points the other way.
package grant

// Scheduler is the seam the external pacer/grant scheduler plugs into.
// RPC, Pool and Ctx are instantiated by the core package with its own
// *RpcRecord, *BufferPool and *Context types.
type Scheduler[RPC any, Pool any, Ctx any] interface {
	// FreeRpc is called once an RPC record has been marked dead, while it
	// is still on its bucket list and before the socket lock is acquired,
	// so the scheduler can drop its own bookkeeping without risking lock
	// inversion.
	FreeRpc(rpc RPC)

	// CheckWaiting asks the scheduler to reconsider granting now that
	// pool may have freed capacity.
	CheckWaiting(pool Pool)

	// LogTT asks the scheduler to emit a timetrace snapshot through its
	// own diagnostic logging; a no-op in production builds that don't
	// collect timetraces.
	LogTT(ctx Ctx)
}

// Counting wraps a Scheduler and tallies how many times each method ran,
// for tests asserting that teardown notified the scheduler the expected
// number of times without needing a hand-rolled mock per test.
type Counting[RPC any, Pool any, Ctx any] struct {
	Next Scheduler[RPC, Pool, Ctx]

	FreeRpcCalls      int
	CheckWaitingCalls int
	LogTTCalls        int
}

// NewNoop returns a Counting scheduler whose Next does nothing, suitable
// as a default when no real pacer is wired in (e.g. unit tests of the RPC
// lifecycle that don't exercise grant behavior).
func NewNoop[RPC any, Pool any, Ctx any]() *Counting[RPC, Pool, Ctx] {
	return &Counting[RPC, Pool, Ctx]{Next: noop[RPC, Pool, Ctx]{}}
}

func (c *Counting[RPC, Pool, Ctx]) FreeRpc(rpc RPC) {
	c.FreeRpcCalls++
	c.Next.FreeRpc(rpc)
}

func (c *Counting[RPC, Pool, Ctx]) CheckWaiting(pool Pool) {
	c.CheckWaitingCalls++
	c.Next.CheckWaiting(pool)
}

func (c *Counting[RPC, Pool, Ctx]) LogTT(ctx Ctx) {
	c.LogTTCalls++
	c.Next.LogTT(ctx)
}

type noop[RPC any, Pool any, Ctx any] struct{}

func (noop[RPC, Pool, Ctx]) FreeRpc(RPC)       {}
func (noop[RPC, Pool, Ctx]) CheckWaiting(Pool) {}
func (noop[RPC, Pool, Ctx]) LogTT(Ctx)         {}
