package packet_test

import (
	"testing"

	"github.com/sabouaram/homa/packet"
)

func chainOf(n int) *packet.Outbound {
	var head, tail *packet.Outbound
	for i := 0; i < n; i++ {
		p := &packet.Outbound{Offset: i * 1400, Length: 1400}
		if head == nil {
			head = p
			tail = p
		} else {
			tail.Next = p
			tail = p
		}
	}
	return head
}

func TestChainLength(t *testing.T) {
	if n := packet.ChainLength(nil); n != 0 {
		t.Fatalf("expected 0 for nil chain, got %d", n)
	}
	if n := packet.ChainLength(chainOf(5)); n != 5 {
		t.Fatalf("expected 5, got %d", n)
	}
}

func TestSpliceBatchWithinBudget(t *testing.T) {
	head := chainOf(3)
	batch, rem := packet.SpliceBatch(head, 10)

	if packet.ChainLength(batch) != 3 {
		t.Fatalf("expected full chain spliced when under budget")
	}
	if rem != nil {
		t.Fatalf("expected no remainder, got chain of length %d", packet.ChainLength(rem))
	}
}

func TestSpliceBatchBoundedByBudget(t *testing.T) {
	head := chainOf(10)
	batch, rem := packet.SpliceBatch(head, 4)

	if got := packet.ChainLength(batch); got != 4 {
		t.Fatalf("expected batch of 4, got %d", got)
	}
	if got := packet.ChainLength(rem); got != 6 {
		t.Fatalf("expected remainder of 6, got %d", got)
	}
}

func TestSpliceBatchEmptyChain(t *testing.T) {
	batch, rem := packet.SpliceBatch(nil, 4)
	if batch != nil || rem != nil {
		t.Fatalf("expected nil, nil for an empty chain")
	}
}
