// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package engine

import (
	"github.com/sixafter/trng/internal/mmio"
	"github.com/sixafter/trng/x/crypto/df"
)

// Generate fills buf with random output. The request must be at least the
// security strength and burst aligned (32-byte aligned in PTRNG with the
// DF). predict requests a prediction-resistance reseed before generation;
// it is honored in HRNG and rejected in DRNG once the seed has been used.
//
// On any fault the instance leaves HEALTHY and the buffer contents are
// indeterminate; no partial result is ever returned.
func (e *Engine) Generate(buf []byte, predict bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	if len(buf) < SecurityStrength {
		return ErrRequestTooSmall
	}
	if predict && !e.cfg.PredictEn {
		return ErrPredictionResistance
	}

	switch e.cfg.Mode {
	case ModeHRNG:
		if len(buf)%mmio.BurstLen != 0 {
			return ErrRequestAlignment
		}
		if e.stats.ElapsedSeedLife >= e.cfg.SeedLife {
			if err := e.reseedInternal(nil, e.pstr, e.cfg.DFMul); err != nil {
				return err
			}
		} else if predict && e.stats.ElapsedSeedLife > 0 {
			if err := e.reseedInternal(nil, e.pstr, e.cfg.DFMul); err != nil {
				return err
			}
		}
		e.dev.Write32(mmio.RegCtrl, mmio.CtrlPRNGMode|mmio.CtrlPRNGXS)
		if err := e.collectRandom(buf); err != nil {
			return err
		}

	case ModeDRNG:
		if len(buf)%mmio.BurstLen != 0 {
			return ErrRequestAlignment
		}
		if e.stats.ElapsedSeedLife > e.cfg.SeedLife {
			return e.fail(ErrSeedLifeExceeded)
		}
		if predict && e.stats.ElapsedSeedLife > 0 {
			return ErrPredictionResistance
		}
		e.dev.Write32(mmio.RegCtrl, mmio.CtrlPRNGMode|mmio.CtrlPRNGXS)
		if err := e.collectRandom(buf); err != nil {
			return err
		}

	case ModePTRNG:
		if err := e.generatePTRNG(buf); err != nil {
			return err
		}
	}

	e.stats.BytesSinceReseed += uint64(len(buf))
	e.stats.BytesTotal += uint64(len(buf))
	e.stats.ElapsedSeedLife++
	e.stats.GenerateCalls++
	return nil
}

// generatePTRNG reads raw oscillator output, either straight into the
// caller's buffer or staged through the derivation function one
// security-strength block at a time.
func (e *Engine) generatePTRNG(buf []byte) error {
	if e.cfg.DFDisable {
		if len(buf)%mmio.BurstLen != 0 {
			return ErrRequestAlignment
		}
		e.startEntropyUnit()
		return e.collectRandom(buf)
	}

	if len(buf)%SecurityStrength != 0 {
		return ErrRequestAlignment
	}
	n := int(e.cfg.DFMul+1) * mmio.BurstLen
	for off := 0; off < len(buf); off += SecurityStrength {
		e.startEntropyUnit()
		if err := e.collectRandom(e.entropy[:n]); err != nil {
			return err
		}
		out, err := e.df.Derive(df.Rand, e.entropy[:n], nil)
		if err != nil {
			return e.fail(err)
		}
		copy(buf[off:off+SecurityStrength], out)
	}
	return nil
}

// collectRandom drains len(dst)/16 bursts from the core output FIFO into
// dst. Each burst waits for a full FIFO, checks the deterministic test
// flag, and is compared bit-for-bit against the previous burst: a
// duplicate means the core output is stuck and the fault is catastrophic.
func (e *Engine) collectRandom(dst []byte) error {
	e.dev.SetBits(mmio.RegCtrl, mmio.CtrlPRNGStart)
	defer e.dev.ClearBits(mmio.RegCtrl, mmio.CtrlPRNGStart)

	var prev, burst [mmio.BurstLen]byte
	nbursts := len(dst) / mmio.BurstLen
	for i := 0; i < nbursts; i++ {
		err := e.dev.WaitForEvent(
			mmio.RegStatus,
			mmio.StatusQCntMask,
			mmio.QCntFull<<mmio.StatusQCntShift,
			GenerateTimeout,
		)
		if err != nil {
			return e.fail(err)
		}
		if e.cfg.Mode != ModePTRNG && e.dev.Read32(mmio.RegStatus)&mmio.StatusDTF != 0 {
			return e.catastrophic(ErrDeterministicFail)
		}

		e.dev.ReadBurst(burst[:])
		if i > 0 && burst == prev {
			return e.catastrophic(ErrStuckOutput)
		}
		prev = burst
		copy(dst[i*mmio.BurstLen:], burst[:])
	}
	return nil
}
