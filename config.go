// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Configuration types and functional options for the TRNG driver. The
// Config mirrors the device's user configuration: operating mode, silicon
// revision, seed life, derivation-function settings and the optional seed
// and personalization material.

package trng

import (
	"github.com/sixafter/trng/internal/engine"
)

// Re-exported engine types, so callers configure the driver without
// reaching into internal packages.
type (
	// Version identifies the IP silicon revision.
	Version = engine.Version

	// Mode selects the seed and output pathway.
	Mode = engine.Mode

	// Status is the instance lifecycle state.
	Status = engine.Status

	// Stats is a snapshot of the instance counters.
	Stats = engine.Stats

	// Logger is the logging interface the driver writes through. Any
	// logrus logger satisfies it.
	Logger = engine.Logger
)

// Silicon revisions.
const (
	// V1 loads seed material in parallel through 12 registers.
	V1 = engine.V1

	// V2 clocks seed bits serially through a dedicated register.
	V2 = engine.V2
)

// Operating modes.
const (
	// ModeDRNG runs the DRBG from a caller-supplied seed.
	ModeDRNG = engine.ModeDRNG

	// ModePTRNG outputs ring-oscillator entropy directly.
	ModePTRNG = engine.ModePTRNG

	// ModeHRNG seeds the DRBG from the ring oscillators.
	ModeHRNG = engine.ModeHRNG
)

// Lifecycle states.
const (
	StatusUninitialized = engine.StatusUninitialized
	StatusHealthy       = engine.StatusHealthy
	StatusError         = engine.StatusError
	StatusCatastrophic  = engine.StatusCatastrophic
)

const (
	// SecurityStrength is the generate block size in bytes. Reads of any
	// length are chunked into blocks of this size.
	SecurityStrength = engine.SecurityStrength

	// SeedLenV1 and SeedLenV2 are the initial seed lengths per revision.
	SeedLenV1 = engine.SeedLenV1
	SeedLenV2 = engine.SeedLenV2

	// DefaultSeedLife is the default number of generate calls per seed.
	DefaultSeedLife = 1000

	// DefaultDFMul is the default derivation-function length multiplier.
	DefaultDFMul = 7
)

// Config holds the user configuration fixed at Open.
type Config struct {
	// Version selects the silicon revision. Defaults to V1.
	Version Version

	// Mode selects the seed/output pathway. Defaults to ModeHRNG.
	Mode Mode

	// SeedLife is the number of generate calls permitted per seed before
	// a reseed is required. Must be zero in PTRNG mode. In DRNG a call
	// fails only once more than SeedLife calls have run, so SeedLife+1
	// calls succeed per seed.
	SeedLife uint32

	// DFMul is the derivation-function length multiplier, in [2, 9] when
	// the DF is enabled and 0 when DFDisable is set.
	DFMul uint32

	// DFDisable bypasses the derivation function and loads seed material
	// raw.
	DFDisable bool

	// PredictionResistance permits caller-requested reseeds before a
	// generate call.
	PredictionResistance bool

	// Seed is the initial seed: required in DRNG (SeedLenV1 or SeedLenV2
	// bytes depending on Version), forbidden otherwise.
	Seed []byte

	// Personalization is the optional 48-byte personalization string.
	Personalization []byte

	// Logger receives driver logs. When nil, logging is discarded.
	Logger Logger
}

// DefaultConfig returns the production defaults: a V1 device in HRNG mode
// with the derivation function enabled.
func DefaultConfig() Config {
	return Config{
		Version:  V1,
		Mode:     ModeHRNG,
		SeedLife: DefaultSeedLife,
		DFMul:    DefaultDFMul,
	}
}

// engineConfig maps the public configuration onto the engine's.
func (c Config) engineConfig() engine.Config {
	return engine.Config{
		Version:         c.Version,
		Mode:            c.Mode,
		SeedLife:        c.SeedLife,
		DFMul:           c.DFMul,
		DFDisable:       c.DFDisable,
		PredictEn:       c.PredictionResistance,
		Seed:            c.Seed,
		Personalization: c.Personalization,
	}
}

// Option defines a functional option for customizing a Config.
type Option func(*Config)

// WithVersion selects the silicon revision.
func WithVersion(v Version) Option { return func(c *Config) { c.Version = v } }

// WithMode selects the operating mode.
func WithMode(m Mode) Option { return func(c *Config) { c.Mode = m } }

// WithSeedLife sets the number of generate calls permitted per seed.
func WithSeedLife(n uint32) Option { return func(c *Config) { c.SeedLife = n } }

// WithDFMul sets the derivation-function length multiplier.
func WithDFMul(n uint32) Option { return func(c *Config) { c.DFMul = n } }

// WithDFDisabled bypasses the derivation function. The multiplier must be
// zero.
func WithDFDisabled() Option {
	return func(c *Config) {
		c.DFDisable = true
		c.DFMul = 0
	}
}

// WithSeed supplies the initial seed for DRNG mode.
func WithSeed(seed []byte) Option { return func(c *Config) { c.Seed = seed } }

// WithPersonalization supplies the 48-byte personalization string mixed
// into the seed.
func WithPersonalization(p []byte) Option {
	return func(c *Config) { c.Personalization = p }
}

// WithPredictionResistance permits caller-requested reseeds before
// generation.
func WithPredictionResistance() Option {
	return func(c *Config) { c.PredictionResistance = true }
}

// WithSeedLifeZero is a convenience for PTRNG mode, which forbids a seed
// life.
func WithSeedLifeZero() Option { return func(c *Config) { c.SeedLife = 0 } }

// WithLogger routes driver logs to the given logger.
func WithLogger(l Logger) Option { return func(c *Config) { c.Logger = l } }
