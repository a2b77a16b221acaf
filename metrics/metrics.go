/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2021 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

// Package metrics exposes the bucket/reap/bpage counters a running Homa
// core accumulates, as prometheus collectors registered under a caller-
// supplied registry (never the global DefaultRegisterer, so more than one
// Homa instance can coexist in a process, e.g. in tests).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set is the full collector bundle for one Homa instance.
type Set struct {
	BucketLockWaitSeconds prometheus.Histogram
	ReapBatchesRun        prometheus.Counter
	ReapBatchesBlocked    prometheus.Counter
	ReapSkbsFreed         prometheus.Counter
	BpageSteals           prometheus.Counter
	BpageReuses           prometheus.Counter
	FreeBpages            prometheus.Gauge
	DeadSkbsHighWater     prometheus.Gauge
	GrantsSent            prometheus.Counter
	RpcsActive            prometheus.Gauge
}

// New builds a Set and registers every collector in it against reg.
// Namespace/subsystem follow the teacher's "namespace_subsystem_name"
// convention for prometheus metric naming.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		BucketLockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "homa",
			Subsystem: "bucket",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting to acquire a bucket spinlock.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		ReapBatchesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "homa",
			Subsystem: "reap",
			Name:      "batches_run_total",
			Help:      "Number of reap batches that ran to completion.",
		}),
		ReapBatchesBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "homa",
			Subsystem: "reap",
			Name:      "batches_blocked_total",
			Help:      "Number of reap attempts deferred by protect_count admission control.",
		}),
		ReapSkbsFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "homa",
			Subsystem: "reap",
			Name:      "skbs_freed_total",
			Help:      "Number of dead RPC records freed by Reap.",
		}),
		BpageSteals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "homa",
			Subsystem: "bufpool",
			Name:      "bpage_steals_total",
			Help:      "Number of bpages reclaimed from another core's hint.",
		}),
		BpageReuses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "homa",
			Subsystem: "bufpool",
			Name:      "bpage_reuses_total",
			Help:      "Number of bpages handed to a new RPC without a fresh allocation.",
		}),
		FreeBpages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "homa",
			Subsystem: "bufpool",
			Name:      "free_bpages",
			Help:      "Approximate count of bpages not currently leased to any core.",
		}),
		DeadSkbsHighWater: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "homa",
			Subsystem: "reap",
			Name:      "dead_skbs_high_water",
			Help:      "High-water mark of RPC records awaiting reap on the dead list.",
		}),
		GrantsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "homa",
			Subsystem: "grant",
			Name:      "sent_total",
			Help:      "Number of CheckWaiting notifications sent to the external grant scheduler after a bpage release.",
		}),
		RpcsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "homa",
			Subsystem: "rpc",
			Name:      "active",
			Help:      "Number of RPC records not yet on the dead list.",
		}),
	}

	reg.MustRegister(
		s.BucketLockWaitSeconds,
		s.ReapBatchesRun,
		s.ReapBatchesBlocked,
		s.ReapSkbsFreed,
		s.BpageSteals,
		s.BpageReuses,
		s.FreeBpages,
		s.DeadSkbsHighWater,
		s.GrantsSent,
		s.RpcsActive,
	)

	return s
}

// NewForTest builds a Set against a fresh private registry, so package
// tests never collide with other tests registering the same metric names.
func NewForTest() *Set {
	return New(prometheus.NewRegistry())
}
