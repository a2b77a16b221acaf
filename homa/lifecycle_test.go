package homa

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/sabouaram/homa/bufpool"
	"github.com/sabouaram/homa/clock"
	"github.com/sabouaram/homa/config"
	liberr "github.com/sabouaram/homa/errors"
	"github.com/sabouaram/homa/grant"
	"github.com/sabouaram/homa/metrics"
	"github.com/sabouaram/homa/peer"
)

type staticResolver struct{}

func (staticResolver) Resolve(addr netip.AddrPort) (peer.Peer, error) {
	return peer.Peer{Addr: addr}, nil
}

func newTestContext() *Context {
	sched := grant.NewNoop[*RpcRecord, *bufpool.BufferPool, *Context]()
	return NewContext(
		config.Default(),
		peer.NewRegistry(staticResolver{}),
		nil,
		sched,
		metrics.NewForTest(),
		clock.NewManual(),
		nil,
	)
}

func TestNewClientAssignsDistinctEvenIDsConcurrently(t *testing.T) {
	ctx := newTestContext()
	sock := NewSocket(nil, 16, 1000)
	dest := netip.MustParseAddrPort("10.0.0.1:9000")

	const n = 50
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			r, err := NewClient(ctx, sock, dest)
			if err != nil {
				t.Errorf("NewClient failed: %v", err)
				return
			}
			ids[i] = r.ID
			r.Unlock()
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, id := range ids {
		if id%2 != 0 {
			t.Fatalf("expected an even client id, got %d", id)
		}
		if seen[id] {
			t.Fatalf("duplicate client id %d", id)
		}
		seen[id] = true
	}
}

func TestNewClientRejectsOnShutdown(t *testing.T) {
	ctx := newTestContext()
	sock := NewSocket(nil, 16, 1000)
	sock.Shutdown()

	r, err := NewClient(ctx, sock, netip.MustParseAddrPort("10.0.0.1:9000"))
	if r != nil {
		t.Fatalf("expected a nil record on a shutdown socket")
	}
	if err == nil || !err.IsCode(liberr.Shutdown) {
		t.Fatalf("expected a Shutdown error, got %v", err)
	}
	if sock.ActiveLen() != 0 {
		t.Fatalf("expected no record to be published onto the active list")
	}
}

func TestNewServerResolvesExistingRecord(t *testing.T) {
	ctx := newTestContext()
	sock := NewSocket(nil, 16, 1000)
	src := netip.MustParseAddrPort("10.0.0.2:7000")

	first, created, err := NewServer(ctx, sock, src, 10, 80, 0, 100)
	if err != nil || !created {
		t.Fatalf("expected the first NewServer call to create a record, err=%v created=%v", err, created)
	}
	first.Unlock()

	second, created, err := NewServer(ctx, sock, src, 10, 80, 0, 100)
	if err != nil {
		t.Fatalf("unexpected error on the second NewServer call: %v", err)
	}
	if created {
		t.Fatalf("expected the second NewServer call to resolve the existing record")
	}
	if second != first {
		t.Fatalf("expected the second call to return the same record")
	}
	second.Unlock()

	if sock.ActiveLen() != 1 {
		t.Fatalf("expected exactly one active record, got %d", sock.ActiveLen())
	}
}

func TestNewServerSetsPktsReadyOnFirstOffsetZero(t *testing.T) {
	ctx := newTestContext()

	pool := bufpool.New(ctx.Clock, 1000)
	region := make([]byte, 4*bufpool.DefaultBpageSize)
	if ierr := pool.Init(region, bufpool.DefaultBpageSize); ierr != nil {
		t.Fatalf("pool init failed: %v", ierr)
	}

	sock := NewSocket(pool, 16, 1000)
	src := netip.MustParseAddrPort("10.0.0.3:7000")

	r, created, err := NewServer(ctx, sock, src, 20, 80, 0, 100)
	if err != nil || !created {
		t.Fatalf("NewServer failed: err=%v created=%v", err, created)
	}
	defer r.Unlock()

	if !r.HasFlag(FlagPktsReady) {
		t.Fatalf("expected FlagPktsReady to be set when firstOffset is 0 and buffers were obtained")
	}
}

func TestNewServerLeavesPktsReadyClearOnLaterOffset(t *testing.T) {
	ctx := newTestContext()
	sock := NewSocket(nil, 16, 1000)
	src := netip.MustParseAddrPort("10.0.0.4:7000")

	r, created, err := NewServer(ctx, sock, src, 30, 80, 500, 1000)
	if err != nil || !created {
		t.Fatalf("NewServer failed: err=%v created=%v", err, created)
	}
	defer r.Unlock()

	if r.HasFlag(FlagPktsReady) {
		t.Fatalf("expected FlagPktsReady to remain clear when the first packet isn't offset 0")
	}
}

func TestFindClientAndFindServerRoundTrip(t *testing.T) {
	ctx := newTestContext()
	sock := NewSocket(nil, 16, 1000)

	client, err := NewClient(ctx, sock, netip.MustParseAddrPort("10.0.0.5:9000"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.Unlock()

	found := FindClient(ctx, sock, client.ID)
	if found == nil {
		t.Fatalf("expected to find the client record by id")
	}
	found.Unlock()

	if FindClient(ctx, sock, client.ID+1) != nil {
		t.Fatalf("expected no record for an unused client id")
	}

	src := netip.MustParseAddrPort("10.0.0.6:7000")
	server, created, serr := NewServer(ctx, sock, src, 40, 80, 0, 10)
	if serr != nil || !created {
		t.Fatalf("NewServer failed: err=%v created=%v", serr, created)
	}
	server.Unlock()

	foundServer := FindServer(ctx, sock, src, 80, 40)
	if foundServer == nil {
		t.Fatalf("expected to find the server record by (id, dport, addr)")
	}
	foundServer.Unlock()

	if FindServer(ctx, sock, src, 81, 40) != nil {
		t.Fatalf("expected a dport mismatch to miss")
	}
}
