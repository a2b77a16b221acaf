package grant_test

import (
	"testing"

	"github.com/sabouaram/homa/grant"
)

type rpc struct{ id uint64 }
type pool struct{ name string }
type ctx struct{}

func TestNoopCountsCalls(t *testing.T) {
	s := grant.NewNoop[*rpc, *pool, *ctx]()

	s.FreeRpc(&rpc{id: 1})
	s.FreeRpc(&rpc{id: 2})
	s.CheckWaiting(&pool{name: "p"})
	s.LogTT(&ctx{})

	if s.FreeRpcCalls != 2 {
		t.Fatalf("expected 2 FreeRpc calls, got %d", s.FreeRpcCalls)
	}
	if s.CheckWaitingCalls != 1 {
		t.Fatalf("expected 1 CheckWaiting call, got %d", s.CheckWaitingCalls)
	}
	if s.LogTTCalls != 1 {
		t.Fatalf("expected 1 LogTT call, got %d", s.LogTTCalls)
	}
}

type recording struct {
	freed []*rpc
}

func (r *recording) FreeRpc(p *rpc)       { r.freed = append(r.freed, p) }
func (r *recording) CheckWaiting(_ *pool) {}
func (r *recording) LogTT(_ *ctx)         {}

func TestCountingDelegatesToNext(t *testing.T) {
	rec := &recording{}
	s := &grant.Counting[*rpc, *pool, *ctx]{Next: rec}

	s.FreeRpc(&rpc{id: 7})

	if len(rec.freed) != 1 || rec.freed[0].id != 7 {
		t.Fatalf("expected delegation to the wrapped scheduler, got %+v", rec.freed)
	}
}
