// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package trng is a driver for a hardware true random number generator IP
// block that pairs a ring-oscillator entropy source with a block-cipher
// DRBG. It exposes a small service — cryptographically strong random bytes
// of any length — while managing entropy collection, the SP 800-90A
// derivation function, the reseed/generate state machine over the device's
// registers, both silicon revisions, and the mandatory known-answer and
// health self-tests.
//
// Hardware is reached through the Port interface; the platform supplies an
// implementation over its mapped registers. Open runs the known-answer test
// for the configured revision and the health-mode smoke test before any
// instance is handed to the caller.
//
// The driver holds no locks. An instance owns its register window
// exclusively between Open and Close, and callers serialize access.
package trng

import (
	"fmt"
	"time"

	"github.com/sixafter/trng/internal/engine"
)

// Port is the raw 32-bit register access boundary the platform implements.
// Offsets are relative to the device base address, and implementations
// must use ordered read/write primitives so the device observes writes in
// program order.
type Port interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
}

// Device is one TRNG instance: an engine bound to a register port,
// self-tested, instantiated and ready to serve random bytes.
type Device struct {
	eng *engine.Engine
	log Logger

	// seenReseeds tracks the engine counter for the reseed metric.
	seenReseeds uint64
}

// Open maps the device behind port, runs the known-answer test for the
// configured silicon revision followed by the health-mode smoke test, then
// instantiates the instance and performs its initial reseed. Any self-test
// failure is fatal for the device: it must not be used, and ErrKATMismatch
// in particular indicates broken silicon or a broken register path.
func Open(port Port, opts ...Option) (*Device, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.Logger
	if log == nil {
		log = engine.NullLogger()
	}

	if err := engine.SelfTest(port, cfg.Version, log); err != nil {
		selfTests.WithLabelValues("fail").Inc()
		return nil, fmt.Errorf("trng: self test: %w", err)
	}
	selfTests.WithLabelValues("pass").Inc()

	eng := engine.New(port, log)
	if err := eng.Instantiate(cfg.engineConfig()); err != nil {
		return nil, err
	}

	d := &Device{eng: eng, log: log}
	d.syncReseedMetric()
	return d, nil
}

// Read fills p with cryptographically strong random bytes, chunking the
// request into security-strength blocks. The final partial block is
// generated into a scratch buffer and copied, so the device never produces
// less than a full block. On any failure no partial result is returned:
// the buffer is indeterminate and the instance has left the HEALTHY state.
func (d *Device) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	readRequests.Inc()
	start := time.Now()
	defer func() {
		readDuration.Observe(time.Since(start).Seconds())
		d.syncReseedMetric()
	}()

	full := len(p) / SecurityStrength * SecurityStrength
	for off := 0; off < full; off += SecurityStrength {
		if err := d.eng.Generate(p[off:off+SecurityStrength], false); err != nil {
			readFailures.WithLabelValues(failureClass(err)).Inc()
			return 0, err
		}
	}

	if tail := len(p) - full; tail > 0 {
		var scratch [SecurityStrength]byte
		if err := d.eng.Generate(scratch[:], false); err != nil {
			readFailures.WithLabelValues(failureClass(err)).Inc()
			return 0, err
		}
		copy(p[full:], scratch[:tail])
		for i := range scratch {
			scratch[i] = 0
		}
	}

	readBytes.Add(float64(len(p)))
	return len(p), nil
}

// Generate fills p directly through the engine, optionally requesting a
// prediction-resistance reseed first. Unlike Read, the request must be
// burst aligned and at least the security strength.
func (d *Device) Generate(p []byte, predictionResistance bool) error {
	err := d.eng.Generate(p, predictionResistance)
	if err != nil {
		readFailures.WithLabelValues(failureClass(err)).Inc()
	}
	d.syncReseedMetric()
	return err
}

// Reseed loads fresh seed material: a caller seed in DRNG mode, or nil in
// HRNG mode to reseed from the entropy hardware.
func (d *Device) Reseed(seed []byte, dfmul uint32) error {
	err := d.eng.Reseed(seed, dfmul)
	d.syncReseedMetric()
	return err
}

// Status returns the instance lifecycle state.
func (d *Device) Status() Status {
	return d.eng.Status()
}

// Stats returns a snapshot of the instance counters.
func (d *Device) Stats() Stats {
	return d.eng.Stats()
}

// Close releases the instance: seed and personalization registers are
// zeroed, reset is asserted and all in-memory secret material is wiped.
func (d *Device) Close() error {
	d.eng.Release()
	return nil
}

// syncReseedMetric folds engine reseed counts, including implicit HRNG
// reseeds, into the package metric.
func (d *Device) syncReseedMetric() {
	if n := d.eng.Stats().Reseeds; n > d.seenReseeds {
		reseeds.Add(float64(n - d.seenReseeds))
		d.seenReseeds = n
	}
}

// Default is the package-level device used by the platform's random-bytes
// hook. It is nil until Init succeeds.
var Default *Device

// Init opens the default device. The platform calls this once at boot,
// after mapping the device registers.
func Init(port Port, opts ...Option) error {
	d, err := Open(port, opts...)
	if err != nil {
		return err
	}
	Default = d
	return nil
}

// Read fills p from the default device. It panics on any failure,
// including an uninitialized default device: the calling security
// subsystem cannot safely proceed with a degraded random source.
func Read(p []byte) {
	if Default == nil {
		panic(ErrNotInitialized)
	}
	if _, err := Default.Read(p); err != nil {
		panic(fmt.Sprintf("trng: random source failed: %v", err))
	}
}

// Close releases the default device.
func Close() error {
	if Default == nil {
		return ErrNotInitialized
	}
	err := Default.Close()
	Default = nil
	return err
}
