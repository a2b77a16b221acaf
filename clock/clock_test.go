package clock_test

import (
	"testing"
	"time"

	"github.com/sabouaram/homa/clock"
)

func TestNowAdvances(t *testing.T) {
	src := clock.Now()
	a := src.Current()
	time.Sleep(time.Millisecond)
	b := src.Current()

	if b <= a {
		t.Fatalf("expected monotonic advance, got a=%d b=%d", a, b)
	}
}

func TestPerKiloByte(t *testing.T) {
	c := clock.PerKiloByte(25000)
	if c <= 0 {
		t.Fatalf("expected positive cycles for 25000 Mbps, got %d", c)
	}

	faster := clock.PerKiloByte(50000)
	if faster >= c {
		t.Fatalf("expected doubling the link rate to halve the per-KB cost: got %d >= %d", faster, c)
	}
}

func TestPerKiloByteZero(t *testing.T) {
	if c := clock.PerKiloByte(0); c != 0 {
		t.Fatalf("expected 0 cycles for a non-positive rate, got %d", c)
	}
}

func TestMicroseconds(t *testing.T) {
	c := 5 * clock.PerMicrosecond
	if got := c.Microseconds(); got != 5 {
		t.Fatalf("expected 5us, got %d", got)
	}
}

func TestSince(t *testing.T) {
	src := clock.Now()
	start := src.Current()
	time.Sleep(time.Millisecond)

	if elapsed := clock.Since(src, start); elapsed <= 0 {
		t.Fatalf("expected positive elapsed cycles, got %d", elapsed)
	}
}
