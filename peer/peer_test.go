package peer_test

import (
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"

	"github.com/sabouaram/homa/peer"
)

type staticResolver struct {
	calls atomic.Int64
	fail  bool
}

func (s *staticResolver) Resolve(addr netip.AddrPort) (peer.Peer, error) {
	s.calls.Add(1)
	if s.fail {
		return peer.Peer{}, errors.New("no route")
	}
	return peer.Peer{Addr: addr}, nil
}

func TestFindCachesResolution(t *testing.T) {
	res := &staticResolver{}
	reg := peer.NewRegistry(res)
	addr := netip.MustParseAddrPort("10.0.0.1:80")

	p1, err := reg.Find(addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := reg.Find(addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p1 != p2 {
		t.Fatalf("expected identical cached peer, got %v and %v", p1, p2)
	}
	if res.calls.Load() != 1 {
		t.Fatalf("expected exactly one resolver call, got %d", res.calls.Load())
	}
}

func TestFindPropagatesResolutionFailure(t *testing.T) {
	res := &staticResolver{fail: true}
	reg := peer.NewRegistry(res)
	addr := netip.MustParseAddrPort("10.0.0.2:80")

	_, err := reg.Find(addr)
	if err == nil {
		t.Fatalf("expected resolution error")
	}
}

func TestForgetForcesReResolve(t *testing.T) {
	res := &staticResolver{}
	reg := peer.NewRegistry(res)
	addr := netip.MustParseAddrPort("10.0.0.3:80")

	if _, err := reg.Find(addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reg.Forget(addr)
	if _, err := reg.Find(addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.calls.Load() != 2 {
		t.Fatalf("expected re-resolution after Forget, got %d calls", res.calls.Load())
	}
}

func TestGetAllReturnsSnapshot(t *testing.T) {
	res := &staticResolver{}
	reg := peer.NewRegistry(res)

	a := netip.MustParseAddrPort("10.0.0.4:80")
	b := netip.MustParseAddrPort("10.0.0.5:80")
	if _, err := reg.Find(a); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Find(b); err != nil {
		t.Fatal(err)
	}

	all := reg.GetAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 cached peers, got %d", len(all))
	}
}
