// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package trng

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trng_read_requests_total",
		Help: "Total number of random-bytes requests served",
	})

	readBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trng_read_bytes_total",
		Help: "Total random bytes delivered to callers",
	})

	readFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trng_read_failures_total",
		Help: "Total failed random-bytes requests",
	}, []string{"class"})

	readDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trng_read_duration_seconds",
		Help:    "Time spent serving random-bytes requests",
		Buckets: prometheus.DefBuckets,
	})

	selfTests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trng_self_test_total",
		Help: "Total power-on self-test runs",
	}, []string{"result"})

	reseeds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trng_reseeds_total",
		Help: "Total reseeds observed across device instances",
	})
)

// failureClass buckets a driver error for the failure counter.
// Catastrophic faults are reported separately so alerting can distinguish
// a device that needs a power cycle from a recoverable error.
func failureClass(err error) string {
	switch {
	case errors.Is(err, ErrCatastrophic),
		errors.Is(err, ErrStuckOutput),
		errors.Is(err, ErrDeterministicFail):
		return "catastrophic"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
