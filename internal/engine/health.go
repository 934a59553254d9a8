// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package engine

import (
	"bytes"
	"fmt"

	"github.com/sixafter/trng/internal/mmio"
)

// Known-answer vectors for the V1 revision: DRNG, dfmul=2, seed_life=5.
var (
	KATV1Seed = [SeedLenV1]byte{
		0x3B, 0xC3, 0xED, 0x64, 0xF4, 0x80, 0x1C, 0xC7,
		0x14, 0xCC, 0x35, 0xED, 0x57, 0x01, 0x2A, 0xE4,
		0xBC, 0xEF, 0xDE, 0xF6, 0x7C, 0x46, 0xA6, 0x34,
		0xC6, 0x79, 0xE8, 0x91, 0x5D, 0xB1, 0xDB, 0xA7,
		0x49, 0xA5, 0xBB, 0x4F, 0xED, 0x30, 0xB3, 0x7B,
		0xA9, 0x8B, 0xF5, 0x56, 0x4D, 0x40, 0x18, 0x9F,
	}

	KATV1PerString = [48]byte{
		0xB2, 0x80, 0x7E, 0x4C, 0xD0, 0xE4, 0xE2, 0xA9,
		0x2F, 0x1F, 0x5D, 0xC1, 0xA2, 0x1F, 0x40, 0xFC,
		0x1F, 0x24, 0x5D, 0x42, 0x61, 0x80, 0xE6, 0xE9,
		0x71, 0x05, 0x17, 0x5B, 0xAF, 0x70, 0x30, 0x18,
		0xBC, 0x23, 0x18, 0x15, 0xCB, 0xB8, 0xA6, 0x3E,
		0x83, 0xB8, 0x4A, 0xFE, 0x38, 0xFC, 0x25, 0x87,
	}

	KATV1Expected = [SecurityStrength]byte{
		0x91, 0x9A, 0x6B, 0x99, 0xD5, 0xBC, 0x2C, 0x11,
		0x5F, 0x3A, 0xFC, 0x0B, 0x0E, 0x7B, 0xC7, 0x69,
		0x4D, 0xE1, 0xE5, 0xFE, 0x59, 0x9E, 0xAA, 0x41,
		0xD3, 0x48, 0xFD, 0x3D, 0xD2, 0xC4, 0x50, 0x1E,
	}
)

// Known-answer vectors for the V2 revision: DRNG, dfmul=7, seed_life=2,
// with a reseed from a second fixed seed before generating.
var (
	KATV2Seed = [SeedLenV2]byte{
		0x7D, 0x12, 0xE6, 0x0B, 0x9A, 0x3F, 0xC4, 0x58,
		0x21, 0xD9, 0x6E, 0x84, 0x0C, 0xB7, 0x43, 0xFA,
		0x96, 0x2A, 0xD1, 0x5C, 0xE8, 0x07, 0xBD, 0x39,
		0x64, 0xF2, 0x18, 0xAC, 0x5B, 0xC0, 0x77, 0x9E,
		0x03, 0xDB, 0x4E, 0x91, 0x26, 0xFD, 0x6A, 0xB5,
		0x48, 0x8F, 0x1C, 0xE3, 0x70, 0x35, 0xCA, 0x02,
		0xB9, 0x57, 0xEC, 0x14, 0x81, 0x3E, 0xA6, 0xD8,
		0x4B, 0x92, 0x2F, 0xC5, 0x60, 0x0D, 0xBA, 0x73,
		0x38, 0xEF, 0x56, 0x9D, 0x2C, 0xF1, 0x66, 0xAB,
		0x40, 0x87, 0x1A, 0xDE, 0x75, 0x32, 0xC9, 0x0E,
		0xB3, 0x5F, 0xE4, 0x19, 0x8C, 0x37, 0xA2, 0xDD,
		0x46, 0x9B, 0x20, 0xC7, 0x6C, 0x01, 0xB6, 0x7F,
		0x34, 0xE9, 0x52, 0x95, 0x28, 0xFB, 0x6E, 0xA1,
		0x4C, 0x83, 0x16, 0xD2, 0x79, 0x3A, 0xCF, 0x08,
		0xBD, 0x51, 0xE0, 0x1D, 0x88, 0x3B, 0xAE, 0xD5,
		0x42, 0x97, 0x24, 0xCB, 0x68, 0x05, 0xB2, 0x7B,
	}

	KATV2Reseed = [SeedLenV2]byte{
		0xC8, 0x35, 0x9B, 0x62, 0xE7, 0x0A, 0xD4, 0x4F,
		0x16, 0xA3, 0x78, 0xDD, 0x21, 0xBE, 0x5A, 0x8C,
		0xF9, 0x04, 0x67, 0xB2, 0x3D, 0xE0, 0x95, 0x2A,
		0x51, 0xCE, 0x1B, 0x86, 0x6F, 0xF4, 0x09, 0xB8,
		0x2D, 0xDA, 0x47, 0x90, 0x13, 0xEA, 0x7E, 0xC1,
		0x58, 0x85, 0x3A, 0xAF, 0x64, 0x0F, 0xD6, 0x2B,
		0x9C, 0x71, 0xE6, 0x33, 0x88, 0x15, 0xBA, 0xEF,
		0x4A, 0xD7, 0x00, 0xA5, 0x7C, 0x29, 0x96, 0x63,
		0x1E, 0xCB, 0x50, 0xBD, 0x36, 0xE1, 0x8A, 0x07,
		0xF2, 0x5D, 0xC4, 0x11, 0xAE, 0x6B, 0xD0, 0x3F,
		0x84, 0x49, 0xFE, 0x23, 0x98, 0x05, 0xB4, 0xE9,
		0x5C, 0x81, 0x3E, 0xD3, 0x70, 0x17, 0xAA, 0x65,
		0x0A, 0xBF, 0x54, 0x99, 0x3C, 0xE5, 0x72, 0xCF,
		0x44, 0x8B, 0x12, 0xDE, 0x69, 0x26, 0xF3, 0x0C,
		0xA9, 0x5E, 0xE2, 0x37, 0x80, 0x1F, 0xB0, 0xC5,
		0x5A, 0x93, 0x2E, 0xEB, 0x74, 0x0B, 0xA6, 0x61,
	}

	KATV2PerString = [48]byte{
		0x6A, 0xD3, 0x40, 0xFD, 0x8E, 0x27, 0xB4, 0x59,
		0x02, 0xC9, 0x76, 0xE1, 0x3C, 0x8B, 0x10, 0xA7,
		0xDE, 0x45, 0x92, 0x0F, 0xB8, 0x63, 0xEC, 0x31,
		0x84, 0x1D, 0xCA, 0x57, 0xF0, 0x29, 0x9E, 0x4B,
		0xB6, 0x03, 0xD8, 0x6D, 0x22, 0xFF, 0x48, 0x91,
		0x5C, 0xE7, 0x1A, 0xA5, 0x30, 0xCD, 0x78, 0x13,
	}

	KATV2Expected = [SecurityStrength]byte{
		0xEE, 0xA7, 0x5B, 0xB6, 0x2B, 0x97, 0xF0, 0xC0,
		0x0F, 0xD6, 0xAB, 0x13, 0x00, 0x87, 0x7E, 0xF4,
		0x00, 0x7F, 0xD7, 0x56, 0xFE, 0xE5, 0xDF, 0xA6,
		0x55, 0x5B, 0xB2, 0x86, 0xDD, 0x81, 0x73, 0xB2,
	}
)

// KATV1 runs the V1 known-answer scenario: instantiate DRNG with the fixed
// seed and personalization string, generate one security-strength block and
// compare it against the expected vector. The instance is released before
// returning. A mismatch is fatal for the caller.
func KATV1(port mmio.Port, log Logger, devOpts ...mmio.DeviceOption) error {
	e := New(port, log, devOpts...)
	defer e.Release()

	cfg := Config{
		Version:         V1,
		Mode:            ModeDRNG,
		SeedLife:        5,
		DFMul:           2,
		Seed:            KATV1Seed[:],
		Personalization: KATV1PerString[:],
	}
	if err := e.Instantiate(cfg); err != nil {
		return fmt.Errorf("kat v1 instantiate: %w", err)
	}

	var out [SecurityStrength]byte
	if err := e.Generate(out[:], false); err != nil {
		return fmt.Errorf("kat v1 generate: %w", err)
	}
	if !bytes.Equal(out[:], KATV1Expected[:]) {
		e.status = StatusError
		return fmt.Errorf("%w: v1", ErrKATMismatch)
	}
	return nil
}

// KATV2 runs the V2 known-answer scenario: instantiate DRNG with the first
// fixed 128-byte seed, reseed with the second, generate one block and
// compare. The instance is released before returning.
func KATV2(port mmio.Port, log Logger, devOpts ...mmio.DeviceOption) error {
	e := New(port, log, devOpts...)
	defer e.Release()

	cfg := Config{
		Version:         V2,
		Mode:            ModeDRNG,
		SeedLife:        2,
		DFMul:           7,
		Seed:            KATV2Seed[:],
		Personalization: KATV2PerString[:],
	}
	if err := e.Instantiate(cfg); err != nil {
		return fmt.Errorf("kat v2 instantiate: %w", err)
	}
	if err := e.Reseed(KATV2Reseed[:], 7); err != nil {
		return fmt.Errorf("kat v2 reseed: %w", err)
	}

	var out [SecurityStrength]byte
	if err := e.Generate(out[:], false); err != nil {
		return fmt.Errorf("kat v2 generate: %w", err)
	}
	if !bytes.Equal(out[:], KATV2Expected[:]) {
		e.status = StatusError
		return fmt.Errorf("%w: v2", ErrKATMismatch)
	}
	return nil
}

// HealthTest exercises the entropy path and the derivation function: a
// short-lived HRNG instance with seed_life=10 and dfmul=7, no
// personalization and no caller seed, instantiated and released.
func HealthTest(port mmio.Port, version Version, log Logger, devOpts ...mmio.DeviceOption) error {
	e := New(port, log, devOpts...)
	cfg := Config{
		Version:  version,
		Mode:     ModeHRNG,
		SeedLife: 10,
		DFMul:    7,
	}
	if err := e.Instantiate(cfg); err != nil {
		return fmt.Errorf("health test: %w", err)
	}
	e.Release()
	return nil
}

// SelfTest runs the known-answer test for the configured revision followed
// by the health-mode smoke test. It must pass before an instance is handed
// to callers, and must be re-run before any re-init out of a catastrophic
// fault.
func SelfTest(port mmio.Port, version Version, log Logger, devOpts ...mmio.DeviceOption) error {
	kat := KATV1
	if version == V2 {
		kat = KATV2
	}
	if err := kat(port, log, devOpts...); err != nil {
		return err
	}
	return HealthTest(port, version, log, devOpts...)
}
