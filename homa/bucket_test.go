package homa

import (
	"net/netip"
	"testing"

	"github.com/sabouaram/homa/clock"
	"github.com/sabouaram/homa/peer"
)

func TestNewBucketTableRoundsUpToPowerOfTwo(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 3: 4, 4: 4, 5: 8, 100: 128}
	for n, want := range cases {
		tbl := NewBucketTable(n)
		if got := tbl.Len(); got != want {
			t.Fatalf("NewBucketTable(%d).Len() = %d, want %d", n, got, want)
		}
	}
}

func TestBucketForIsDeterministic(t *testing.T) {
	tbl := NewBucketTable(16)
	id := uint64(42)
	if tbl.bucketFor(id) != tbl.bucketFor(id) {
		t.Fatalf("expected bucketFor to be deterministic for the same id")
	}
}

func TestClientAndServerTablesAreDisjoint(t *testing.T) {
	client := NewBucketTable(16)
	server := NewBucketTable(16)

	r := newRpcRecord(4, peer.Peer{}, 0, StateOutgoing, clock.Cycles(0))
	b := client.bucketFor(4)
	b.insert(r)
	r.bucket = b

	if server.bucketFor(4).find(4) != nil {
		t.Fatalf("expected the server table's bucket for id 4 to be unaffected by an insert into the client table")
	}
	if client.bucketFor(4).find(4) != r {
		t.Fatalf("expected to find the inserted record in the client table")
	}
}

func TestBucketInsertFindRemove(t *testing.T) {
	b := &Bucket{}
	r1 := newRpcRecord(2, peer.Peer{}, 0, StateOutgoing, clock.Cycles(0))
	r2 := newRpcRecord(4, peer.Peer{}, 0, StateOutgoing, clock.Cycles(0))

	b.insert(r1)
	b.insert(r2)

	if b.find(2) != r1 || b.find(4) != r2 {
		t.Fatalf("expected to find both inserted records")
	}
	if b.find(6) != nil {
		t.Fatalf("expected no record for an unused id")
	}

	b.remove(r2)
	if b.find(4) != nil {
		t.Fatalf("expected r2 to be gone after remove")
	}
	if b.find(2) != r1 {
		t.Fatalf("expected r1 to remain after removing r2")
	}

	b.remove(r1)
	if b.head != nil {
		t.Fatalf("expected an empty bucket list after removing every record")
	}
}

func TestBucketFindServerMatchesFullTriple(t *testing.T) {
	b := &Bucket{}
	addr := netip.MustParseAddrPort("10.0.0.1:9000")
	other := netip.MustParseAddrPort("10.0.0.2:9000")

	r := newRpcRecord(8, peer.Peer{Addr: addr}, 80, StateIncoming, clock.Cycles(0))
	b.insert(r)

	if b.findServer(8, 80, addr) != r {
		t.Fatalf("expected an exact (id, dport, addr) match to find r")
	}
	if b.findServer(8, 81, addr) != nil {
		t.Fatalf("expected a dport mismatch to miss")
	}
	if b.findServer(8, 80, other) != nil {
		t.Fatalf("expected an address mismatch to miss")
	}
}
