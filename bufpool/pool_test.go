package bufpool

import (
	"testing"

	"github.com/sabouaram/homa/clock"
	liberr "github.com/sabouaram/homa/errors"
)

func newTestPool(t *testing.T, numBpages int, bpageSize int) (*BufferPool, *clock.Manual) {
	t.Helper()
	mc := clock.NewManual()
	p := New(mc, 10*clock.PerMillisecond)
	if err := p.Init(make([]byte, numBpages*bpageSize), bpageSize); err != nil {
		t.Fatalf("init: %v", err)
	}
	return p, mc
}

// Scenario 1: basic pool init.
func TestInitBasicGeometry(t *testing.T) {
	p, _ := newTestPool(t, 100, DefaultBpageSize)

	if p.numBpages != 100 {
		t.Fatalf("expected 100 bpages, got %d", p.numBpages)
	}
	if got := p.descriptors[98].owner.Load(); got != noOwner {
		t.Fatalf("expected descriptor 98 owner -1, got %d", got)
	}
	if got := p.descriptors[99].owner.Load(); got != sentinelOwner {
		t.Fatalf("expected sentinel reservation on last descriptor, got %d", got)
	}
	if got := p.FreeBpages(); got != 99 {
		t.Fatalf("expected free_bpages=99, got %d", got)
	}
}

// Boundary: region size 2*bpage_size - 1 -> InvalidArgument.
func TestInitRejectsUndersizedRegion(t *testing.T) {
	mc := clock.NewManual()
	p := New(mc, 0)
	region := make([]byte, 2*DefaultBpageSize-1)

	if err := p.Init(region, DefaultBpageSize); err == nil || !err.IsCode(liberr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

// Boundary: region misaligned by one byte -> InvalidArgument.
func TestInitRejectsMisalignedRegion(t *testing.T) {
	mc := clock.NewManual()
	p := New(mc, 0)
	region := make([]byte, 3*DefaultBpageSize+1)

	if err := p.Init(region, DefaultBpageSize); err == nil {
		t.Fatalf("expected InvalidArgument for misaligned region")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	p, _ := newTestPool(t, 4, 1024)
	p.Destroy()
	p.Destroy()

	if p.NumBpages() != 0 {
		t.Fatalf("expected 0 bpages after destroy, got %d", p.NumBpages())
	}
}

func TestReleaseBuffersNoopOnDestroyedPool(t *testing.T) {
	p, _ := newTestPool(t, 4, 1024)
	p.Destroy()

	p.ReleaseBuffers([]int{0, 1024}) // must not panic
}

// Scenario 2: allocate a 150000-byte message, bpage_size 64 KiB.
func TestAllocateSplitsFullAndTailBpages(t *testing.T) {
	p, _ := newTestPool(t, 100, DefaultBpageSize)

	offsets, err := p.Allocate(0, 150000)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	want := []int{0, DefaultBpageSize, 2 * DefaultBpageSize}
	if len(offsets) != len(want) {
		t.Fatalf("expected %d offsets, got %v", len(want), offsets)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offset %d: expected %d, got %d", i, want[i], offsets[i])
		}
	}

	cs := p.cores[0]
	if cs.pageHint != 2 {
		t.Fatalf("expected page_hint=2, got %d", cs.pageHint)
	}
	wantAllocated := 150000 - 2*DefaultBpageSize
	if cs.allocated != wantAllocated {
		t.Fatalf("expected allocated=%d, got %d", wantAllocated, cs.allocated)
	}
}

// Scenario 3: stealing an expired owner.
func TestGetPagesStealsExpiredOwner(t *testing.T) {
	p, mc := newTestPool(t, 25, DefaultBpageSize)

	d := &p.descriptors[0]
	d.owner.Store(5)
	d.expiration.Store(int64(mc.Current() - 1))
	d.refs.Store(0)
	p.freeBpages.Store(20)

	pages, err := p.GetPages(1, 2, false)
	if err != nil {
		t.Fatalf("get_pages: %v", err)
	}
	if len(pages) != 2 || pages[0] != 0 {
		t.Fatalf("expected pages starting at 0, got %v", pages)
	}
	if got := p.descriptors[0].owner.Load(); got != noOwner {
		t.Fatalf("expected stolen descriptor owner reset to -1, got %d", got)
	}
	if got := p.FreeBpages(); got != 19 {
		t.Fatalf("expected free_bpages=19, got %d", got)
	}
	if p.BpageSteals() != 1 {
		t.Fatalf("expected 1 steal recorded, got %d", p.BpageSteals())
	}
}

// get_pages when free_bpages = count -> success; when < count -> failure.
func TestGetPagesBoundaryOnFreeBpagesCount(t *testing.T) {
	p, _ := newTestPool(t, 5, DefaultBpageSize)

	if _, err := p.GetPages(0, 4, false); err != nil {
		t.Fatalf("expected success claiming exactly free_bpages pages: %v", err)
	}

	p2, _ := newTestPool(t, 5, DefaultBpageSize)
	if _, err := p2.GetPages(0, 5, false); err == nil {
		t.Fatalf("expected failure requesting more than free_bpages")
	}
}

// Scenario 4 (refs bookkeeping across two RPCs sharing a tail bpage).
func TestAllocateReusesTailAcrossTwoRPCs(t *testing.T) {
	p, _ := newTestPool(t, 100, DefaultBpageSize)

	offsetsA, err := p.Allocate(0, 150000)
	if err != nil {
		t.Fatalf("allocate A: %v", err)
	}
	offsetsB, err := p.Allocate(0, 2000)
	if err != nil {
		t.Fatalf("allocate B: %v", err)
	}

	if p.descriptors[0].refs.Load() != 1 {
		t.Fatalf("expected desc[0].refs=1, got %d", p.descriptors[0].refs.Load())
	}
	if p.descriptors[1].refs.Load() != 1 {
		t.Fatalf("expected desc[1].refs=1, got %d", p.descriptors[1].refs.Load())
	}
	if p.descriptors[2].refs.Load() != 3 {
		t.Fatalf("expected desc[2].refs=3 after B reuses A's tail bpage, got %d", p.descriptors[2].refs.Load())
	}
	if p.BpageReuses() != 1 {
		t.Fatalf("expected 1 bpage reuse, got %d", p.BpageReuses())
	}

	// B's offset lands inside the same bpage as A's tail, after A's bytes.
	if offsetsB[0] != offsetsA[2]+(150000-2*DefaultBpageSize) {
		t.Fatalf("expected B's offset to follow A's tail allocation, got %d vs %d", offsetsB[0], offsetsA[2])
	}

	// Releasing A's three bpages brings desc[0]/[1] to 0 and desc[2] to 2.
	p.ReleaseBuffers(offsetsA)

	if p.descriptors[0].refs.Load() != 0 {
		t.Fatalf("expected desc[0].refs=0 after release, got %d", p.descriptors[0].refs.Load())
	}
	if p.descriptors[1].refs.Load() != 0 {
		t.Fatalf("expected desc[1].refs=0 after release, got %d", p.descriptors[1].refs.Load())
	}
	if p.descriptors[2].refs.Load() != 2 {
		t.Fatalf("expected desc[2].refs=2 after release, got %d", p.descriptors[2].refs.Load())
	}
}

// Invariant 4: release_buffers is inverse to allocate on refs.
func TestReleaseIsInverseOfAllocate(t *testing.T) {
	p, _ := newTestPool(t, 50, DefaultBpageSize)

	before := p.FreeBpages()
	offsets, err := p.Allocate(0, 300000)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	p.ReleaseBuffers(offsets)

	for i := range p.descriptors {
		if p.descriptors[i].owner.Load() == sentinelOwner {
			continue
		}
		if got := p.descriptors[i].refs.Load(); got != 0 {
			t.Fatalf("descriptor %d: expected refs=0 after matched release, got %d", i, got)
		}
	}
	if p.FreeBpages() != before {
		t.Fatalf("expected free_bpages to return to %d, got %d", before, p.FreeBpages())
	}
}

func TestAllocateResourceExhaustedLeavesPoolUntouched(t *testing.T) {
	p, _ := newTestPool(t, 3, DefaultBpageSize) // 2 usable + 1 sentinel

	_, err := p.Allocate(0, 3*DefaultBpageSize) // needs 3 full bpages, only 2 free
	if err == nil {
		t.Fatalf("expected ResourceExhausted")
	}

	for i := 0; i < 2; i++ {
		if got := p.descriptors[i].refs.Load(); got != 0 {
			t.Fatalf("descriptor %d: expected untouched refs=0, got %d", i, got)
		}
	}
	if p.FreeBpages() != 2 {
		t.Fatalf("expected free_bpages unchanged at 2, got %d", p.FreeBpages())
	}
}

func TestGetBufferArithmetic(t *testing.T) {
	p, _ := newTestPool(t, 10, DefaultBpageSize)
	offsets, err := p.Allocate(0, 150000)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	off, avail, err := p.GetBuffer(offsets, 150000, 70000)
	if err != nil {
		t.Fatalf("get_buffer: %v", err)
	}
	wantOff := offsets[1] + (70000 - DefaultBpageSize)
	if off != wantOff {
		t.Fatalf("expected region offset %d, got %d", wantOff, off)
	}
	wantAvail := DefaultBpageSize - (70000 - DefaultBpageSize)
	if avail != wantAvail {
		t.Fatalf("expected %d contiguous bytes available, got %d", wantAvail, avail)
	}
}
