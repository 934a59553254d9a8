// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// White-box tests: configuration validation, secret wiping and poll
// timeouts against a minimal in-package fake port.

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sixafter/trng/internal/mmio"
)

// quietPort is a register file whose status always reports completion and
// whose output port serves a changing pattern, enough to drive the state
// machine through happy paths without a full device model.
type quietPort struct {
	regs map[uint32]uint32
	ctr  uint32

	// dead silences the status register to force timeouts.
	dead bool
}

func newQuietPort() *quietPort {
	return &quietPort{regs: make(map[uint32]uint32)}
}

func (p *quietPort) Read32(off uint32) uint32 {
	switch off {
	case mmio.RegStatus:
		if p.dead {
			return 0
		}
		return mmio.StatusDone | mmio.QCntFull<<mmio.StatusQCntShift
	case mmio.RegCoreOutput:
		p.ctr += 0x01030507
		return p.ctr
	default:
		return p.regs[off]
	}
}

func (p *quietPort) Write32(off uint32, v uint32) {
	p.regs[off] = v
}

func noSleep(time.Duration) {}

func drngConfig() Config {
	return Config{
		Version:  V1,
		Mode:     ModeDRNG,
		SeedLife: 5,
		DFMul:    2,
		Seed:     KATV1Seed[:],
	}
}

// Test_Validate_Rejections walks the invariant table: each invalid
// configuration must be rejected with ErrInvalidConfig and leave the
// instance untouched.
func Test_Validate_Rejections(t *testing.T) {
	t.Parallel()

	seed48 := make([]byte, SeedLenV1)
	pstr := make([]byte, 48)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"dfmul zero with df enabled", Config{Version: V1, Mode: ModeHRNG, SeedLife: 1, DFMul: 0}},
		{"dfmul below range", Config{Version: V1, Mode: ModeHRNG, SeedLife: 1, DFMul: 1}},
		{"dfmul above range", Config{Version: V1, Mode: ModeHRNG, SeedLife: 1, DFMul: 10}},
		{"dfmul with df disabled", Config{Version: V1, Mode: ModeDRNG, SeedLife: 1, DFMul: 2, DFDisable: true, Seed: seed48}},
		{"drng without seed", Config{Version: V1, Mode: ModeDRNG, SeedLife: 1, DFMul: 2}},
		{"hrng with seed", Config{Version: V1, Mode: ModeHRNG, SeedLife: 1, DFMul: 2, Seed: seed48}},
		{"ptrng with seed", Config{Version: V1, Mode: ModePTRNG, DFMul: 2, Seed: seed48}},
		{"ptrng with perstring", Config{Version: V1, Mode: ModePTRNG, DFMul: 2, Personalization: pstr}},
		{"ptrng with predict", Config{Version: V1, Mode: ModePTRNG, DFMul: 2, PredictEn: true}},
		{"ptrng with seed life", Config{Version: V1, Mode: ModePTRNG, DFMul: 2, SeedLife: 3}},
		{"short seed", Config{Version: V1, Mode: ModeDRNG, SeedLife: 1, DFMul: 2, Seed: make([]byte, 32)}},
		{"v1 seed too short for dfmul", Config{Version: V1, Mode: ModeDRNG, SeedLife: 1, DFMul: 4, Seed: seed48}},
		{"v2 seed with v1 length", Config{Version: V2, Mode: ModeDRNG, SeedLife: 1, DFMul: 7, Seed: seed48}},
		{"short perstring", Config{Version: V1, Mode: ModeDRNG, SeedLife: 1, DFMul: 2, Seed: seed48, Personalization: make([]byte, 12)}},
		{"unknown version", Config{Mode: ModeDRNG, SeedLife: 1, DFMul: 2, Seed: seed48}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			is := assert.New(t)

			e := New(newQuietPort(), nil, mmio.WithSleep(noSleep))
			err := e.Instantiate(tc.cfg)
			is.ErrorIs(err, ErrInvalidConfig)
			is.Equal(StatusUninitialized, e.Status(), "config rejection must have no side effects")
		})
	}
}

// Test_Validate_CollectsAllViolations verifies that validation reports
// every broken invariant at once rather than the first one found.
func Test_Validate_CollectsAllViolations(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	err := validate(Config{
		Version:  V1,
		Mode:     ModePTRNG,
		SeedLife: 4,
		DFMul:    11,
		Seed:     make([]byte, 10),
	})
	is.ErrorIs(err, ErrInvalidConfig)
	is.ErrorContains(err, "dfmul")
	is.ErrorContains(err, "seed life")
	is.ErrorContains(err, "initial seed")
}

// Test_Engine_ReleaseWipesSecrets scans the engine's buffers for the
// original seed bytes after release: none may survive.
func Test_Engine_ReleaseWipesSecrets(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	p := newQuietPort()
	e := New(p, nil, mmio.WithSleep(noSleep))
	is.NoError(e.Instantiate(drngConfig()))
	is.NotEmpty(e.seed)

	e.Release()

	is.Nil(e.seed)
	is.Nil(e.pstr)
	for i, b := range e.entropy {
		is.Zero(b, "entropy buffer byte %d", i)
	}
	is.Nil(e.cfg.Seed)
	is.Equal(StatusUninitialized, e.Status())

	// Release zeroes the register banks and holds reset.
	for i := 0; i < mmio.SeedWords; i++ {
		is.Zero(p.regs[mmio.RegExtSeed+uint32(i)*4], "seed word %d", i)
		is.Zero(p.regs[mmio.RegPerString+uint32(i)*4], "perstring word %d", i)
	}
	is.Equal(uint32(mmio.ResetAssert), p.regs[mmio.RegReset])
}

// Test_Engine_GenerateTimeout verifies that a silent device times the
// burst poll out and transitions to ERROR.
func Test_Engine_GenerateTimeout(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	p := newQuietPort()
	e := New(p, nil, mmio.WithSleep(noSleep))
	is.NoError(e.Instantiate(drngConfig()))

	p.dead = true
	buf := make([]byte, SecurityStrength)
	err := e.Generate(buf, false)
	is.ErrorIs(err, mmio.ErrTimeout)
	is.Equal(StatusError, e.Status())
}

// Test_Engine_ReseedTimeout verifies that a device that never signals DONE
// fails the instantiate reseed with ERROR.
func Test_Engine_ReseedTimeout(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	p := newQuietPort()
	p.dead = true
	e := New(p, nil, mmio.WithSleep(noSleep))

	err := e.Instantiate(drngConfig())
	is.ErrorIs(err, mmio.ErrTimeout)
	is.Equal(StatusError, e.Status())
}

// Test_Engine_SeedPatternRejection verifies the trivial-entropy check.
func Test_Engine_SeedPatternRejection(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	good := make([]byte, 48)
	for i := range good {
		good[i] = byte(i)
	}
	is.NoError(checkSeedPattern(good))

	bad := make([]byte, 48)
	for i := range bad {
		bad[i] = 0xAA
	}
	is.ErrorIs(checkSeedPattern(bad), ErrWeakEntropy)

	// A single trivial word anywhere is enough.
	mixed := make([]byte, 48)
	for i := range mixed {
		mixed[i] = byte(i)
	}
	mixed[20], mixed[21], mixed[22], mixed[23] = 0x55, 0x55, 0x55, 0x55
	is.ErrorIs(checkSeedPattern(mixed), ErrWeakEntropy)
}

// Test_WorkingSeedLen pins the seed-consumption rule per version and DF
// setting.
func Test_WorkingSeedLen(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	is.Equal(SeedLenV1, workingSeedLen(V1, true, 0))
	is.Equal(48, workingSeedLen(V1, false, 2))
	is.Equal(160, workingSeedLen(V1, false, 9))
	is.Equal(SeedLenV2, workingSeedLen(V2, false, 7))
	is.Equal(16, workingSeedLen(V2, true, 0))
}
