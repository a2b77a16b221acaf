package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/sabouaram/homa/metrics"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	s := metrics.NewForTest()

	s.ReapBatchesRun.Inc()
	s.BpageSteals.Add(3)
	s.FreeBpages.Set(42)

	if got := counterValue(t, s.ReapBatchesRun); got != 1 {
		t.Fatalf("expected 1 reap batch, got %v", got)
	}
	if got := counterValue(t, s.BpageSteals); got != 3 {
		t.Fatalf("expected 3 bpage steals, got %v", got)
	}
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustRegister to panic on duplicate metric names")
		}
	}()
	metrics.New(reg)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
