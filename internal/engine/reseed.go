// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sixafter/trng/internal/mmio"
	"github.com/sixafter/trng/x/crypto/df"
)

// Reseed loads fresh seed material from HEALTHY: a caller seed in DRNG, or
// the entropy hardware in HRNG. A caller seed equal to the original
// instantiate seed is rejected. PTRNG never reseeds.
func (e *Engine) Reseed(seed []byte, dfmul uint32) error {
	if err := e.guard(); err != nil {
		return err
	}

	switch e.cfg.Mode {
	case ModePTRNG:
		return ErrReseedNotAllowed
	case ModeDRNG:
		if seed == nil {
			return ErrSeedRequired
		}
	case ModeHRNG:
		if seed != nil {
			return fmt.Errorf("%w: hrng reseeds from hardware only", ErrInvalidConfig)
		}
	}

	if e.cfg.DFDisable {
		if dfmul != 0 {
			return fmt.Errorf("%w: dfmul must be 0 when the df is disabled, got %d", ErrInvalidConfig, dfmul)
		}
	} else if dfmul < DFMulMin || dfmul > DFMulMax {
		return fmt.Errorf("%w: dfmul must be in [%d, %d], got %d", ErrInvalidConfig, DFMulMin, DFMulMax, dfmul)
	}

	if seed != nil {
		n := workingSeedLen(e.cfg.Version, e.cfg.DFDisable, dfmul)
		if len(seed) < n {
			return fmt.Errorf("%w: dfmul %d needs %d seed bytes, got %d", ErrInvalidConfig, dfmul, n, len(seed))
		}
		if len(e.seed) >= n && bytes.Equal(seed[:n], e.seed[:n]) {
			return ErrSeedReuse
		}
	}

	return e.reseedInternal(seed, e.pstr, dfmul)
}

// reseedInternal drives one full reseed: dispatch seed material by version
// and DF setting, start the hardware reseed, poll DONE and check the
// entropy certification flag. Per-seed statistics reset on entry; any
// failure transitions the instance to ERROR.
func (e *Engine) reseedInternal(seed, pstr []byte, dfmul uint32) error {
	e.stats.BytesSinceReseed = 0
	e.stats.ElapsedSeedLife = 0

	seedLen := workingSeedLen(e.cfg.Version, e.cfg.DFDisable, dfmul)

	var err error
	if e.cfg.DFDisable || e.cfg.Version == V2 {
		err = e.reseedNoDF(seed, pstr, dfmul, seedLen)
	} else {
		err = e.reseedDF(seed, pstr, seedLen)
	}
	if err != nil {
		return e.fail(err)
	}

	if e.cfg.Version == V1 {
		// PRNGMODE stays clear to select reseed.
		e.dev.Write32(mmio.RegCtrl, mmio.CtrlPRNGXS)
		e.dev.SetBits(mmio.RegCtrl, mmio.CtrlPRNGStart)
	}

	if err := e.dev.WaitForEvent(mmio.RegStatus, mmio.StatusDone, mmio.StatusDone, ReseedTimeout); err != nil {
		return e.fail(err)
	}
	if e.dev.Read32(mmio.RegStatus)&mmio.StatusCERTF != 0 {
		return e.fail(ErrEntropyHealth)
	}
	e.dev.ClearBits(mmio.RegCtrl, mmio.CtrlPRNGStart)

	e.stats.Reseeds++
	e.log.Debugf("trng: reseed complete, dfmul=%d seed_len=%d", dfmul, seedLen)
	return nil
}

// reseedNoDF loads raw seed material: parallel words on V1, serial bits on
// V2.
func (e *Engine) reseedNoDF(seed, pstr []byte, dfmul uint32, seedLen int) error {
	switch {
	case e.cfg.Version == V1 && e.cfg.Mode == ModeHRNG:
		if err := e.gatherEntropy(e.entropy[:SeedLenV1]); err != nil {
			return err
		}
		if err := checkSeedPattern(e.entropy[:SeedLenV1]); err != nil {
			return err
		}
		e.dev.WriteSeedWords(mmio.RegExtSeed, e.entropy[:SeedLenV1])

	case e.cfg.Version == V1:
		e.dev.WriteSeedWords(mmio.RegExtSeed, seed)

	default: // V2
		e.dev.WriteField(mmio.RegCtrl3, mmio.Ctrl3DLenMask, 0, dfmul)
		if pstr != nil {
			e.dev.WriteSeedWords(mmio.RegPerString, pstr)
			e.dev.ClearBits(mmio.RegCtrl, mmio.CtrlPersoDisable)
		} else {
			e.dev.SetBits(mmio.RegCtrl, mmio.CtrlPersoDisable)
		}

		if e.cfg.Mode == ModeDRNG {
			// The silicon requires this exact order: enable the serial
			// port, then start, then clock the seed bits.
			e.dev.SetBits(mmio.RegCtrl, mmio.CtrlTstMode|mmio.CtrlTRSSEn)
			e.dev.SetBits(mmio.RegCtrl, mmio.CtrlPRNGStart)
			if err := e.dev.WriteSerialSeed(seed[:seedLen]); err != nil {
				return err
			}
		} else {
			e.dev.Write32(mmio.RegOscEn, mmio.OscEnable)
			// PRNGMODE stays clear to select reseed.
			e.dev.SetBits(mmio.RegCtrl, mmio.CtrlTRSSEn|mmio.CtrlPRNGXS)
			e.dev.SetBits(mmio.RegCtrl, mmio.CtrlPRNGStart)
		}
	}
	return nil
}

// reseedDF distills seed material through the derivation function on V1:
// oscillator entropy in HRNG, the caller seed in DRNG, and loads the
// 48-byte DF output in parallel.
func (e *Engine) reseedDF(seed, pstr []byte, seedLen int) error {
	if e.cfg.Mode == ModeHRNG {
		if err := e.gatherEntropy(e.entropy[:seedLen]); err != nil {
			return err
		}
		if err := checkSeedPattern(e.entropy[:seedLen]); err != nil {
			return err
		}
	} else {
		copy(e.entropy[:seedLen], seed)
	}

	out, err := e.df.Derive(df.Seed, e.entropy[:seedLen], pstr)
	if err != nil {
		return err
	}
	e.dev.WriteSeedWords(mmio.RegExtSeed, out)
	return nil
}

// gatherEntropy switches the core into entropy-unit mode and collects raw
// oscillator output into dst.
func (e *Engine) gatherEntropy(dst []byte) error {
	e.startEntropyUnit()
	return e.collectRandom(dst)
}

// startEntropyUnit enables the oscillators and routes raw entropy to the
// output FIFO.
func (e *Engine) startEntropyUnit() {
	e.dev.Write32(mmio.RegOscEn, mmio.OscEnable)
	e.softReset()
	e.dev.Write32(mmio.RegCtrl, mmio.CtrlEUMode|mmio.CtrlTRSSEn)
}

// checkSeedPattern rejects seed material carrying a trivial 32-bit
// pattern.
func checkSeedPattern(seed []byte) error {
	for i := 0; i+4 <= len(seed); i += 4 {
		switch binary.BigEndian.Uint32(seed[i:]) {
		case 0xAAAAAAAA, 0x55555555:
			return fmt.Errorf("%w: trivial word at offset %d", ErrWeakEntropy, i)
		}
	}
	return nil
}
