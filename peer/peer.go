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

// Package peer models the remote endpoints an RPC is addressed to or
// received from. Address resolution and wire transport are themselves
// external collaborators; this package only holds the resolved identity
// and the concurrent registry keyed on it.
package peer

import (
	"net/netip"
	"sync"

	liberr "github.com/sabouaram/homa/errors"
)

// Peer is a resolved remote endpoint.
type Peer struct {
	Addr netip.AddrPort
}

// String returns the peer's address in host:port form.
func (p Peer) String() string {
	return p.Addr.String()
}

// Resolver looks up a Peer for a wire address; it is the seam an external
// address-resolution collaborator plugs into (DNS, a service registry, a
// static map — this package is agnostic to which).
type Resolver interface {
	Resolve(addr netip.AddrPort) (Peer, error)
}

// Registry is a concurrency-safe cache of Peer values keyed by address, so
// repeated lookups for the same remote endpoint during an RPC's lifetime
// don't re-invoke the Resolver. It's a thin sync.Map wrapper rather than a
// generic type of its own: Registry is the map's only caller, so there's
// nothing for a shared generic abstraction to buy here.
type Registry struct {
	peers sync.Map // netip.AddrPort -> Peer
	res   Resolver
}

// NewRegistry builds an empty Registry backed by res for cache misses.
func NewRegistry(res Resolver) *Registry {
	return &Registry{res: res}
}

// Find returns the cached Peer for addr, resolving and caching it on a
// miss. A resolution failure is reported as PeerResolutionFailed, with the
// resolver's own error as parent.
func (r *Registry) Find(addr netip.AddrPort) (Peer, liberr.Error) {
	if v, ok := r.peers.Load(addr); ok {
		return v.(Peer), nil
	}

	p, err := r.res.Resolve(addr)
	if err != nil {
		return Peer{}, liberr.PeerResolutionFailed.Error(err)
	}

	actual, _ := r.peers.LoadOrStore(addr, p)
	return actual.(Peer), nil
}

// GetAll returns a snapshot of every Peer currently cached.
func (r *Registry) GetAll() []Peer {
	res := make([]Peer, 0)
	r.peers.Range(func(_, v any) bool {
		res = append(res, v.(Peer))
		return true
	})
	return res
}

// Forget drops addr from the cache, forcing the next Find to re-resolve.
func (r *Registry) Forget(addr netip.AddrPort) {
	r.peers.Delete(addr)
}
