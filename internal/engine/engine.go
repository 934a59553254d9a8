// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package engine implements the TRNG state machine: a single device
// instance driven through reset, instantiate, reseed, generate and release
// over the memory-mapped register interface.
//
// The engine owns the instance configuration, accumulated statistics and
// all secret working buffers. It holds no locks: the hosting environment
// must not invoke it re-entrantly, and callers serialize access
// externally.
package engine

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/sixafter/trng/internal/mmio"
	"github.com/sixafter/trng/x/crypto/df"
)

// Version identifies the IP silicon revision. The revisions differ in how
// seed material is loaded: V1 loads 12 words in parallel, V2 clocks seed
// bits serially through a dedicated register.
type Version uint8

const (
	// V1 is the parallel-seed-load revision.
	V1 Version = iota + 1

	// V2 is the serial-seed-load revision with extra health-test controls.
	V2
)

// String returns the revision name.
func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return fmt.Sprintf("version(%d)", uint8(v))
	}
}

// Mode selects the seed and output pathway.
type Mode uint8

const (
	// ModeDRNG runs the DRBG from a caller-supplied seed; no entropy
	// source is used.
	ModeDRNG Mode = iota

	// ModePTRNG outputs ring-oscillator entropy directly, optionally
	// conditioned by the derivation function.
	ModePTRNG

	// ModeHRNG seeds the DRBG from the ring oscillators and generates
	// from the DRBG.
	ModeHRNG
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeDRNG:
		return "drng"
	case ModePTRNG:
		return "ptrng"
	case ModeHRNG:
		return "hrng"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Status is the instance lifecycle state.
type Status uint8

const (
	// StatusUninitialized is the state before instantiate and after
	// release.
	StatusUninitialized Status = iota

	// StatusHealthy permits generate and reseed.
	StatusHealthy

	// StatusError marks a recoverable fault; only release and a full
	// re-instantiate proceed.
	StatusError

	// StatusCatastrophic marks a hardware integrity fault. It is sticky:
	// no soft re-init clears it, and a full re-init must re-run the KAT.
	StatusCatastrophic
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusHealthy:
		return "healthy"
	case StatusError:
		return "error"
	case StatusCatastrophic:
		return "catastrophic"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

const (
	// SecurityStrength is the generate chunk size in bytes.
	SecurityStrength = 32

	// SeedLenV1 is the initial seed length for V1 silicon.
	SeedLenV1 = 48

	// SeedLenV2 is the initial seed length for V2 silicon.
	SeedLenV2 = 128

	// DFMulMin and DFMulMax bound the DF-length multiplier when the DF is
	// enabled.
	DFMulMin = 2
	DFMulMax = 9

	// ResetDelay is the soft and hard reset pulse width.
	ResetDelay = 10 * time.Microsecond

	// GenerateTimeout bounds each burst poll.
	GenerateTimeout = 8 * time.Millisecond

	// ReseedTimeout bounds the reseed DONE poll.
	ReseedTimeout = 1500 * time.Millisecond
)

// V2 entropy health-test defaults written at instantiate for the
// oscillator-backed modes.
const (
	defaultDIT       = 0x0C
	defaultRCTCutoff = 31
	defaultAPTCutoff = 410
)

var (
	// ErrInvalidConfig rejects a configuration that violates the instance
	// invariants. Instantiate leaves the instance UNINITIALIZED.
	ErrInvalidConfig = errors.New("trng: invalid configuration")

	// ErrInstantiated is returned when instantiate runs on an instance
	// that is not UNINITIALIZED.
	ErrInstantiated = errors.New("trng: instance already instantiated")

	// ErrNotHealthy is returned when generate or reseed runs outside
	// HEALTHY.
	ErrNotHealthy = errors.New("trng: instance is not healthy")

	// ErrCatastrophic is returned for any operation after a catastrophic
	// hardware fault.
	ErrCatastrophic = errors.New("trng: instance is in catastrophic state")

	// ErrRequestTooSmall rejects generate requests under the security
	// strength.
	ErrRequestTooSmall = errors.New("trng: request below security strength")

	// ErrRequestAlignment rejects generate requests that do not divide
	// into hardware bursts.
	ErrRequestAlignment = errors.New("trng: request length not burst aligned")

	// ErrSeedLifeExceeded is returned in DRNG when the seed life is
	// exhausted and no reseed was performed.
	ErrSeedLifeExceeded = errors.New("trng: seed life exceeded")

	// ErrPredictionResistance rejects a prediction-resistance request the
	// configuration or mode cannot honor.
	ErrPredictionResistance = errors.New("trng: prediction resistance not available")

	// ErrReseedNotAllowed is returned for reseed in PTRNG mode.
	ErrReseedNotAllowed = errors.New("trng: reseed not permitted in this mode")

	// ErrSeedRequired is returned for a DRNG reseed without a caller seed.
	ErrSeedRequired = errors.New("trng: caller seed required")

	// ErrSeedReuse rejects a reseed with the original instantiate seed.
	ErrSeedReuse = errors.New("trng: reseed with the original seed")

	// ErrWeakEntropy is returned when collected seed material carries a
	// trivial bit pattern.
	ErrWeakEntropy = errors.New("trng: collected entropy failed pattern check")

	// ErrEntropyHealth is returned when the certification flag is set
	// after a reseed.
	ErrEntropyHealth = errors.New("trng: entropy health failure")

	// ErrDeterministicFail is returned when the per-burst deterministic
	// test flag asserts during generation.
	ErrDeterministicFail = errors.New("trng: deterministic test failure")

	// ErrStuckOutput is returned when two consecutive bursts are
	// bit-identical.
	ErrStuckOutput = errors.New("trng: identical consecutive output bursts")

	// ErrKATMismatch is returned when a known-answer test output differs
	// from its expected vector. Callers must treat this as fatal.
	ErrKATMismatch = errors.New("trng: known-answer test mismatch")
)

// Logger is the subset of logrus the engine logs through, so callers can
// plug any logger or silence the engine entirely.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NullLogger returns a logger that discards everything, used when no
// logger is configured and in tests.
func NullLogger() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Config is the per-instance user configuration fixed at instantiate.
type Config struct {
	// Version selects the silicon revision.
	Version Version

	// Mode selects the seed/output pathway.
	Mode Mode

	// SeedLife is the number of generate calls permitted per seed. Must
	// be zero in PTRNG mode. In HRNG the call after SeedLife calls
	// reseeds implicitly; in DRNG a call fails only once more than
	// SeedLife calls have run, so SeedLife+1 calls succeed per seed.
	SeedLife uint32

	// DFMul is the DF-length multiplier: the DF consumes (DFMul+1)*16
	// bytes of raw input. In [DFMulMin, DFMulMax] when the DF is enabled,
	// zero when disabled. On V2 it is also the DLEN field of CTRL_3.
	DFMul uint32

	// DFDisable bypasses the derivation function and loads seed material
	// raw.
	DFDisable bool

	// PredictEn permits caller-requested prediction-resistance reseeds.
	PredictEn bool

	// Seed is the initial seed; required in DRNG, forbidden otherwise.
	// SeedLenV1 or SeedLenV2 bytes depending on Version.
	Seed []byte

	// Personalization is the optional 48-byte personalization string.
	Personalization []byte
}

// Stats accumulates per-instance counters. Reseed resets the per-seed
// values; release clears everything.
type Stats struct {
	// BytesSinceReseed counts output bytes since the last reseed.
	BytesSinceReseed uint64

	// BytesTotal counts output bytes over the instance lifetime.
	BytesTotal uint64

	// ElapsedSeedLife counts generate calls since the last reseed.
	ElapsedSeedLife uint32

	// Reseeds counts completed reseeds, including implicit ones.
	Reseeds uint64

	// GenerateCalls counts successful generate calls.
	GenerateCalls uint64
}

// Engine drives one TRNG instance.
type Engine struct {
	dev    *mmio.Device
	log    Logger
	cfg    Config
	status Status
	stats  Stats
	df     *df.DF

	// seed and pstr are working copies of the caller's secret material.
	seed []byte
	pstr []byte

	// entropy stages raw oscillator output for the DF paths.
	entropy [df.MaxPreDFLen]byte
}

// New returns an engine over the given register port. A nil logger
// silences the engine. Device options are passed through to the register
// layer, which lets tests replace the delay primitive.
func New(port mmio.Port, log Logger, devOpts ...mmio.DeviceOption) *Engine {
	if log == nil {
		log = NullLogger()
	}
	return &Engine{
		dev:    mmio.NewDevice(port, devOpts...),
		log:    log,
		df:     df.New(),
		status: StatusUninitialized,
	}
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	return e.status
}

// Stats returns a snapshot of the instance counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Config returns a copy of the active configuration without the secret
// material.
func (e *Engine) Config() Config {
	c := e.cfg
	c.Seed = nil
	c.Personalization = nil
	return c
}

// Instantiate validates cfg, resets the device and, for the seeded modes,
// performs the initial reseed. On success the instance is HEALTHY; a
// hardware fault during the initial reseed leaves it in ERROR, while a
// rejected configuration has no side effects.
func (e *Engine) Instantiate(cfg Config) error {
	if e.status == StatusCatastrophic {
		return ErrCatastrophic
	}
	if e.status != StatusUninitialized {
		return ErrInstantiated
	}
	if err := validate(cfg); err != nil {
		return err
	}

	e.cfg = cfg
	e.seed = append([]byte(nil), cfg.Seed...)
	e.pstr = append([]byte(nil), cfg.Personalization...)
	e.cfg.Seed = e.seed
	e.cfg.Personalization = e.pstr
	e.stats = Stats{}

	e.reset()

	if cfg.Version == V2 && cfg.Mode != ModeDRNG {
		e.dev.WriteField(mmio.RegCtrl2, mmio.Ctrl2DITMask, 0, defaultDIT)
		e.dev.WriteField(mmio.RegCtrl2, mmio.Ctrl2RCTCutoffMask, mmio.Ctrl2RCTCutoffShift, defaultRCTCutoff)
		e.dev.WriteField(mmio.RegCtrl3, mmio.Ctrl3APTCutoffMask, mmio.Ctrl3APTCutoffShift, defaultAPTCutoff)
	}
	if cfg.Version == V2 && cfg.Mode == ModePTRNG && !cfg.DFDisable {
		// This combination has not been validated end to end on silicon.
		e.log.Warnf("trng: ptrng with df on v2 is untested on hardware")
	}

	if cfg.Mode != ModePTRNG {
		if err := e.reseedInternal(e.seed, e.pstr, cfg.DFMul); err != nil {
			return err
		}
	}

	e.status = StatusHealthy
	e.log.Infof("trng: instantiated %s %s seed_life=%d dfmul=%d", cfg.Version, cfg.Mode, cfg.SeedLife, cfg.DFMul)
	return nil
}

// Release zeroes the seed and personalization register banks, asserts
// reset, wipes all in-memory secret material and returns the instance to
// UNINITIALIZED. A catastrophic status survives release.
func (e *Engine) Release() {
	e.dev.WriteSeedWords(mmio.RegExtSeed, nil)
	e.dev.WriteSeedWords(mmio.RegPerString, nil)
	e.dev.Write32(mmio.RegReset, mmio.ResetAssert)

	wipe(e.seed)
	wipe(e.pstr)
	e.seed = nil
	e.pstr = nil
	for i := range e.entropy {
		e.entropy[i] = 0
	}
	e.df.Wipe()
	e.cfg = Config{}
	e.stats = Stats{}

	if e.status != StatusCatastrophic {
		e.status = StatusUninitialized
	}
	e.log.Infof("trng: released")
}

// reset pulses the soft reset bit, then the hard reset register.
func (e *Engine) reset() {
	e.softReset()
	e.dev.Write32(mmio.RegReset, mmio.ResetAssert)
	e.dev.Sleep(ResetDelay)
	e.dev.Write32(mmio.RegReset, 0)
}

// softReset pulses PRNGSRST.
func (e *Engine) softReset() {
	e.dev.SetBits(mmio.RegCtrl, mmio.CtrlPRNGSRst)
	e.dev.Sleep(ResetDelay)
	e.dev.ClearBits(mmio.RegCtrl, mmio.CtrlPRNGSRst)
}

// guard rejects operations outside HEALTHY without touching the device.
func (e *Engine) guard() error {
	switch e.status {
	case StatusHealthy:
		return nil
	case StatusCatastrophic:
		return ErrCatastrophic
	default:
		return ErrNotHealthy
	}
}

// fail transitions to ERROR unless the instance is already catastrophic.
func (e *Engine) fail(err error) error {
	if e.status != StatusCatastrophic {
		e.status = StatusError
	}
	e.log.Errorf("trng: fault: %v", err)
	return err
}

// catastrophic transitions to CATASTROPHIC. The state is sticky.
func (e *Engine) catastrophic(err error) error {
	e.status = StatusCatastrophic
	e.log.Errorf("trng: catastrophic fault: %v", err)
	return err
}

// validate checks cfg against the instance invariants, collecting every
// violation so the caller sees the full set at once.
func validate(cfg Config) error {
	var errs *multierror.Error

	switch cfg.Version {
	case V1, V2:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown version %d", cfg.Version))
	}

	switch cfg.Mode {
	case ModeDRNG, ModePTRNG, ModeHRNG:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown mode %d", cfg.Mode))
	}

	if cfg.DFDisable {
		if cfg.DFMul != 0 {
			errs = multierror.Append(errs, fmt.Errorf("dfmul must be 0 when the df is disabled, got %d", cfg.DFMul))
		}
	} else if cfg.DFMul < DFMulMin || cfg.DFMul > DFMulMax {
		errs = multierror.Append(errs, fmt.Errorf("dfmul must be in [%d, %d], got %d", DFMulMin, DFMulMax, cfg.DFMul))
	}

	switch cfg.Mode {
	case ModePTRNG:
		if cfg.Seed != nil {
			errs = multierror.Append(errs, errors.New("ptrng forbids an initial seed"))
		}
		if cfg.Personalization != nil {
			errs = multierror.Append(errs, errors.New("ptrng forbids a personalization string"))
		}
		if cfg.PredictEn {
			errs = multierror.Append(errs, errors.New("ptrng forbids prediction resistance"))
		}
		if cfg.SeedLife != 0 {
			errs = multierror.Append(errs, errors.New("ptrng forbids a non-zero seed life"))
		}
	case ModeDRNG:
		if cfg.Seed == nil {
			errs = multierror.Append(errs, errors.New("drng requires an initial seed"))
		}
	case ModeHRNG:
		if cfg.Seed != nil {
			errs = multierror.Append(errs, errors.New("hrng forbids an initial seed"))
		}
	}

	if cfg.Seed != nil {
		want := SeedLenV1
		if cfg.Version == V2 {
			want = SeedLenV2
		}
		if len(cfg.Seed) != want {
			errs = multierror.Append(errs, fmt.Errorf("seed must be %d bytes for %s, got %d", want, cfg.Version, len(cfg.Seed)))
		} else if n := workingSeedLen(cfg.Version, cfg.DFDisable, cfg.DFMul); n > len(cfg.Seed) {
			errs = multierror.Append(errs, fmt.Errorf("dfmul %d needs %d seed bytes, got %d", cfg.DFMul, n, len(cfg.Seed)))
		}
	}

	if cfg.Personalization != nil && len(cfg.Personalization) != df.PerStringLen {
		errs = multierror.Append(errs, fmt.Errorf("personalization string must be %d bytes, got %d", df.PerStringLen, len(cfg.Personalization)))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return nil
}

// workingSeedLen is the seed material consumed by a reseed: 48 bytes on
// the raw V1 path, (dfmul+1)*16 when the DF runs or when V2 clocks the
// seed serially.
func workingSeedLen(v Version, dfDisable bool, dfmul uint32) int {
	if v == V2 || !dfDisable {
		return int(dfmul+1) * mmio.BurstLen
	}
	return SeedLenV1
}

// wipe zeroes a secret buffer.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
