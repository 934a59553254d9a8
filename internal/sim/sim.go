// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package sim provides a simulated TRNG device behind the register port
// interface. It records the exact write sequence for assertions, replays
// scripted output captures for the known-answer scenarios, models the DRBG
// core behaviorally for everything else, and injects the hardware fault
// conditions the driver must survive: entropy certification failures,
// per-burst deterministic test failures, stuck output and serial-seed
// corruption.
package sim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"io"

	ctrdrbg "github.com/sixafter/aes-ctr-drbg"

	"github.com/sixafter/trng/internal/mmio"
)

// Write is one recorded register write, in program order.
type Write struct {
	Off uint32
	Val uint32
}

// session is what the core is currently producing.
type session uint8

const (
	sessionNone session = iota
	sessionEntropy
	sessionGenerate
	sessionReseed
)

// Device is a simulated TRNG register file. It implements the driver's
// register port. Not safe for concurrent use, matching the driver's
// single-caller model.
type Device struct {
	regs    map[uint32]uint32
	journal []Write

	// noise backs the ring oscillators.
	noise io.Reader

	// scripts queues generate-session outputs, served before the
	// behavioral model. Used to replay captured silicon output.
	scripts [][]byte

	// model is the behavioral DRBG stream, keyed from the loaded seed.
	model cipher.Stream

	active     session
	reseedTst  bool // serial (test-mode) reseed in flight
	seeded     bool
	done       bool
	burst      [mmio.BurstLen]byte
	burstPos   int
	burstsOut  int
	scriptSrc  io.Reader
	serialSeed []byte
	serialCur  byte
	serialBits int

	// fault injection
	certf       bool
	dtfAtBurst  int
	stuck       bool
	corruptBit  int
	serialReads int
}

// Option customizes the simulated device.
type Option func(*Device)

// WithNoise replaces the oscillator noise source, letting tests feed
// deterministic entropy.
func WithNoise(r io.Reader) Option {
	return func(d *Device) { d.noise = r }
}

// WithGenerateScript queues output captures: each slice is served, in
// order, as the complete output of one generate session before the
// behavioral model takes over.
func WithGenerateScript(outputs ...[]byte) Option {
	return func(d *Device) { d.scripts = append(d.scripts, outputs...) }
}

// WithCERTF asserts the entropy certification failure flag alongside
// reseed completion.
func WithCERTF() Option {
	return func(d *Device) { d.certf = true }
}

// WithDTF asserts the deterministic test failure flag when burst n (zero
// based, counted across the device lifetime) is queued.
func WithDTF(n int) Option {
	return func(d *Device) { d.dtfAtBurst = n }
}

// WithStuckOutput repeats generate-session bursts forever after the first,
// modeling a stuck core output.
func WithStuckOutput() Option {
	return func(d *Device) { d.stuck = true }
}

// WithSerialCorruption flips serial seed bit n (zero based, counted across
// the device lifetime) on read-back.
func WithSerialCorruption(n int) Option {
	return func(d *Device) { d.corruptBit = n }
}

// New returns a simulated device. The default noise source is the
// aes-ctr-drbg reader, so unscripted entropy is cryptographically strong.
func New(opts ...Option) *Device {
	d := &Device{
		regs:       make(map[uint32]uint32),
		noise:      ctrdrbg.Reader,
		dtfAtBurst: -1,
		corruptBit: -1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Journal returns the recorded writes in program order.
func (d *Device) Journal() []Write {
	return d.journal
}

// WroteTo reports whether any write touched [lo, hi].
func (d *Device) WroteTo(lo, hi uint32) bool {
	for _, w := range d.journal {
		if w.Off >= lo && w.Off <= hi {
			return true
		}
	}
	return false
}

// Reg returns the current value of a register.
func (d *Device) Reg(off uint32) uint32 {
	return d.regs[off]
}

// Read32 implements the register port.
func (d *Device) Read32(off uint32) uint32 {
	switch off {
	case mmio.RegStatus:
		return d.status()
	case mmio.RegCoreOutput:
		return d.output()
	case mmio.RegCtrl4:
		d.serialReads++
		v := d.regs[mmio.RegCtrl4]
		if d.corruptBit >= 0 && d.serialReads-1 == d.corruptBit {
			v ^= mmio.Ctrl4SeedBit
		}
		return v
	default:
		return d.regs[off]
	}
}

// Write32 implements the register port.
func (d *Device) Write32(off uint32, v uint32) {
	d.journal = append(d.journal, Write{Off: off, Val: v})

	switch off {
	case mmio.RegCtrl:
		prev := d.regs[off]
		d.regs[off] = v
		if prev&mmio.CtrlPRNGStart == 0 && v&mmio.CtrlPRNGStart != 0 {
			d.start(v)
		}
		if prev&mmio.CtrlPRNGStart != 0 && v&mmio.CtrlPRNGStart == 0 {
			d.active = sessionNone
		}
	case mmio.RegCtrl4:
		d.regs[off] = v
		d.clockSerialBit(byte(v & mmio.Ctrl4SeedBit))
	case mmio.RegReset:
		d.regs[off] = v
		if v&mmio.ResetAssert != 0 {
			d.hardReset()
		}
	default:
		d.regs[off] = v
	}
}

// start begins a session on the PRNGSTART rising edge.
func (d *Device) start(ctrl uint32) {
	d.done = false
	d.burstPos = 0
	switch {
	case ctrl&mmio.CtrlEUMode != 0:
		d.active = sessionEntropy
	case ctrl&mmio.CtrlPRNGMode != 0:
		d.active = sessionGenerate
		d.scriptSrc = nil
		if len(d.scripts) > 0 {
			d.scriptSrc = newByteSource(d.scripts[0])
			d.scripts = d.scripts[1:]
		}
	default:
		d.active = sessionReseed
		d.reseedTst = ctrl&mmio.CtrlTstMode != 0
	}
}

// status composes the STATUS register from the active session and the
// injected faults.
func (d *Device) status() uint32 {
	var s uint32
	if d.active == sessionReseed && d.reseedComplete() {
		if !d.done {
			d.latchSeed()
			d.done = true
		}
		s |= mmio.StatusDone
		if d.certf {
			s |= mmio.StatusCERTF
		}
	}
	if d.active == sessionEntropy || d.active == sessionGenerate {
		s |= mmio.QCntFull << mmio.StatusQCntShift
		if d.dtfAtBurst >= 0 && d.burstsOut == d.dtfAtBurst {
			s |= mmio.StatusDTF
		}
	}
	return s
}

// reseedComplete reports whether the seed material for the in-flight
// reseed has fully arrived. A serial reseed needs (DLEN+1)*16 bytes
// clocked through the bit port; everything else completes immediately.
func (d *Device) reseedComplete() bool {
	if !d.reseedTst {
		return true
	}
	dlen := d.regs[mmio.RegCtrl3] & mmio.Ctrl3DLenMask
	return len(d.serialSeed) >= int(dlen+1)*mmio.BurstLen
}

// latchSeed keys the behavioral DRBG model from whatever seed material the
// driver delivered: serial bits, the parallel seed bank, or internal
// oscillator noise when neither was loaded.
func (d *Device) latchSeed() {
	var seed []byte
	switch {
	case len(d.serialSeed) > 0:
		seed = d.serialSeed
		d.serialSeed = nil
	case d.seedBankLoaded():
		seed = make([]byte, mmio.SeedWords*4)
		for i := 0; i < mmio.SeedWords; i++ {
			w := d.regs[mmio.RegExtSeed+uint32(mmio.SeedWords-1-i)*4]
			binary.BigEndian.PutUint32(seed[4*i:], w)
		}
	default:
		seed = make([]byte, 48)
		_, _ = io.ReadFull(d.noise, seed)
	}

	var pstr []byte
	if d.regs[mmio.RegCtrl]&mmio.CtrlPersoDisable == 0 {
		pstr = make([]byte, mmio.SeedWords*4)
		for i := 0; i < mmio.SeedWords; i++ {
			w := d.regs[mmio.RegPerString+uint32(mmio.SeedWords-1-i)*4]
			binary.BigEndian.PutUint32(pstr[4*i:], w)
		}
	}

	key := sha256.Sum256(append(append([]byte(nil), seed...), pstr...))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return
	}
	var iv [aes.BlockSize]byte
	d.model = cipher.NewCTR(block, iv[:])
	d.seeded = true
}

// seedBankLoaded reports whether the parallel seed bank holds a non-zero
// word.
func (d *Device) seedBankLoaded() bool {
	for i := 0; i < mmio.SeedWords; i++ {
		if d.regs[mmio.RegExtSeed+uint32(i)*4] != 0 {
			return true
		}
	}
	return false
}

// output serves one FIFO word, refilling the 16-byte burst buffer as
// needed from the session source.
func (d *Device) output() uint32 {
	if d.active != sessionEntropy && d.active != sessionGenerate {
		return 0
	}
	if d.burstPos == 0 {
		d.fillBurst()
	}
	w := binary.BigEndian.Uint32(d.burst[d.burstPos:])
	d.burstPos += 4
	if d.burstPos == mmio.BurstLen {
		d.burstPos = 0
		d.burstsOut++
	}
	return w
}

// fillBurst produces the next 16 output bytes: scripted capture bytes when
// queued, the previous burst repeated when stuck, oscillator noise in
// entropy mode and the behavioral DRBG model otherwise.
func (d *Device) fillBurst() {
	if d.active == sessionGenerate && d.scriptSrc != nil {
		if _, err := io.ReadFull(d.scriptSrc, d.burst[:]); err == nil {
			return
		}
		d.scriptSrc = nil
	}
	if d.stuck && d.active == sessionGenerate && d.burstsOut > 0 {
		return
	}
	if d.active == sessionEntropy || !d.seeded {
		_, _ = io.ReadFull(d.noise, d.burst[:])
		return
	}
	for i := range d.burst {
		d.burst[i] = 0
	}
	d.model.XORKeyStream(d.burst[:], d.burst[:])
}

// clockSerialBit accumulates serially loaded seed bits, MSB first.
func (d *Device) clockSerialBit(bit byte) {
	if d.regs[mmio.RegCtrl]&mmio.CtrlTstMode == 0 {
		return
	}
	d.serialCur = d.serialCur<<1 | bit
	d.serialBits++
	if d.serialBits == 8 {
		d.serialSeed = append(d.serialSeed, d.serialCur)
		d.serialCur = 0
		d.serialBits = 0
	}
}

// hardReset clears the register file and any in-flight session. The
// journal, the model seed and the injected faults survive, matching
// silicon state that only a power cycle clears.
func (d *Device) hardReset() {
	hold := d.regs[mmio.RegReset]
	d.regs = map[uint32]uint32{mmio.RegReset: hold}
	d.active = sessionNone
	d.done = false
	d.burstPos = 0
	d.serialCur = 0
	d.serialBits = 0
	d.serialSeed = nil
}

// newByteSource wraps a script capture as a reader.
func newByteSource(b []byte) io.Reader {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &byteSource{b: cp}
}

type byteSource struct {
	b []byte
}

func (s *byteSource) Read(p []byte) (int, error) {
	if len(s.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.b)
	s.b = s.b[n:]
	return n, nil
}
