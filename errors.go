// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package trng

import (
	"errors"

	"github.com/sixafter/trng/internal/engine"
	"github.com/sixafter/trng/internal/mmio"
)

// Sentinel errors surfaced by the driver. Engine and register-layer
// failures wrap these values, so errors.Is works across the package
// boundary.
var (
	// ErrInvalidConfig rejects a configuration violating the instance
	// invariants.
	ErrInvalidConfig = engine.ErrInvalidConfig

	// ErrNotHealthy is returned for operations outside the HEALTHY state.
	ErrNotHealthy = engine.ErrNotHealthy

	// ErrCatastrophic is returned after a hardware integrity fault. The
	// state is sticky: only a full re-init with a fresh Open, which
	// re-runs the known-answer tests, may proceed.
	ErrCatastrophic = engine.ErrCatastrophic

	// ErrRequestTooSmall rejects generate requests under the security
	// strength.
	ErrRequestTooSmall = engine.ErrRequestTooSmall

	// ErrSeedLifeExceeded is returned in DRNG when the seed life is
	// exhausted.
	ErrSeedLifeExceeded = engine.ErrSeedLifeExceeded

	// ErrPredictionResistance rejects an unsupported prediction-resistance
	// request.
	ErrPredictionResistance = engine.ErrPredictionResistance

	// ErrReseedNotAllowed is returned for reseed in PTRNG mode.
	ErrReseedNotAllowed = engine.ErrReseedNotAllowed

	// ErrSeedReuse rejects a reseed with the original instantiate seed.
	ErrSeedReuse = engine.ErrSeedReuse

	// ErrWeakEntropy is returned when collected seed material carries a
	// trivial bit pattern.
	ErrWeakEntropy = engine.ErrWeakEntropy

	// ErrEntropyHealth is returned when the hardware flags an entropy
	// certification failure after a reseed.
	ErrEntropyHealth = engine.ErrEntropyHealth

	// ErrDeterministicFail is returned when the per-burst deterministic
	// test asserts during generation.
	ErrDeterministicFail = engine.ErrDeterministicFail

	// ErrStuckOutput is returned when two consecutive output bursts are
	// bit-identical.
	ErrStuckOutput = engine.ErrStuckOutput

	// ErrKATMismatch is returned when a known-answer test fails. This is
	// a panic-class failure: the device must not be used.
	ErrKATMismatch = engine.ErrKATMismatch

	// ErrTimeout is returned when a register poll expires.
	ErrTimeout = mmio.ErrTimeout

	// ErrSerialVerify is returned when the V2 serial seed load reads back
	// corrupted.
	ErrSerialVerify = mmio.ErrSerialVerify

	// ErrNotInitialized is returned by the package-level helpers before
	// Init has run.
	ErrNotInitialized = errors.New("trng: default device not initialized")
)
