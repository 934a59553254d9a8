// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package mmio

// Register map: offsets from the device base, all 32-bit.
const (
	// RegStatus reports completion and health flags.
	RegStatus = 0x04

	StatusDone  = 1 << 0 // reseed/operation complete
	StatusDTF   = 1 << 1 // deterministic test fail, per burst
	StatusCERTF = 1 << 3 // entropy certification failure

	// QCNT counts the 32-bit words queued in the output FIFO.
	StatusQCntShift = 9
	StatusQCntMask  = 0x7 << StatusQCntShift

	// RegCtrl is the primary control register.
	RegCtrl = 0x08

	CtrlPRNGSRst      = 1 << 0  // soft reset
	CtrlTRSSEn        = 1 << 2  // true random seed source enable
	CtrlPRNGXS        = 1 << 3  // external seed select
	CtrlPRNGStart     = 1 << 5  // start the requested operation
	CtrlTstMode       = 1 << 6  // test mode, gates the V2 serial seed port
	CtrlPRNGMode      = 1 << 7  // 1 = generate, 0 = reseed
	CtrlEUMode        = 1 << 8  // entropy unit mode, raw oscillator output
	CtrlSingleGenMode = 1 << 9  // one burst per start
	CtrlPersoDisable  = 1 << 10 // bypass the personalization registers

	// RegCtrl2 (V2 only) tunes the digitization and repetition-count test.
	RegCtrl2 = 0x0C

	Ctrl2DITMask        = 0x1F
	Ctrl2RCTCutoffShift = 8
	Ctrl2RCTCutoffMask  = 0x1FF << Ctrl2RCTCutoffShift

	// RegCtrl3 (V2 only) carries the seed length and adaptive-proportion
	// test cutoff.
	RegCtrl3 = 0x10

	Ctrl3DLenMask       = 0xFF
	Ctrl3APTCutoffShift = 8
	Ctrl3APTCutoffMask  = 0x3FF << Ctrl3APTCutoffShift

	// RegCtrl4 (V2 only) is the serial seed bit input.
	RegCtrl4 = 0x14

	Ctrl4SeedBit = 1 << 0

	// RegExtSeed is the first of 12 parallel seed-load registers
	// (0x40..0x6C).
	RegExtSeed = 0x40

	// RegPerString is the first of 12 personalization-string registers
	// (0x80..0xAC).
	RegPerString = 0x80

	// RegCoreOutput is the read port for random burst words.
	RegCoreOutput = 0xC0

	// RegReset asserts the hard reset while bit 0 is set.
	RegReset = 0xD0

	ResetAssert = 1 << 0

	// RegOscEn enables the ring oscillators.
	RegOscEn = 0xD4

	OscEnable = 1 << 0
)

const (
	// SeedWords is the width of the parallel seed and personalization
	// register banks.
	SeedWords = 12

	// BurstWords is the number of FIFO words per 16-byte burst.
	BurstWords = 4

	// BurstLen is the burst size in bytes.
	BurstLen = 16

	// QCntFull is the QCNT value indicating a complete burst.
	QCntFull = 4
)
