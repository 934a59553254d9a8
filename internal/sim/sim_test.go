// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Tests for the simulated device itself: sessions, scripted replay, the
// serial bit port and fault injection.

package sim

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sixafter/trng/internal/mmio"
)

type zeroOneReader struct {
	n byte
}

func (r *zeroOneReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.n
		r.n += 3
	}
	return len(p), nil
}

// startGenerate puts the device into a generate session.
func startGenerate(d *Device) {
	d.Write32(mmio.RegCtrl, mmio.CtrlPRNGMode|mmio.CtrlPRNGXS)
	d.Write32(mmio.RegCtrl, mmio.CtrlPRNGMode|mmio.CtrlPRNGXS|mmio.CtrlPRNGStart)
}

// drainBurst reads one 16-byte burst.
func drainBurst(d *Device) []byte {
	out := make([]byte, mmio.BurstLen)
	for i := 0; i < mmio.BurstWords; i++ {
		binary.BigEndian.PutUint32(out[4*i:], d.Read32(mmio.RegCoreOutput))
	}
	return out
}

// Test_Sim_Journal verifies writes are recorded in program order.
func Test_Sim_Journal(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	d := New(WithNoise(&zeroOneReader{}))
	d.Write32(mmio.RegOscEn, 1)
	d.Write32(mmio.RegCtrl, mmio.CtrlEUMode)

	j := d.Journal()
	is.Len(j, 2)
	is.Equal(Write{Off: mmio.RegOscEn, Val: 1}, j[0])
	is.Equal(Write{Off: mmio.RegCtrl, Val: mmio.CtrlEUMode}, j[1])
	is.True(d.WroteTo(mmio.RegOscEn, mmio.RegOscEn))
	is.False(d.WroteTo(mmio.RegExtSeed, mmio.RegExtSeed+44))
}

// Test_Sim_ScriptReplay verifies a queued capture is served verbatim
// through the output FIFO.
func Test_Sim_ScriptReplay(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	capture := make([]byte, 32)
	for i := range capture {
		capture[i] = byte(0x40 + i)
	}
	d := New(WithNoise(&zeroOneReader{}), WithGenerateScript(capture))
	startGenerate(d)

	got := append(drainBurst(d), drainBurst(d)...)
	is.Equal(capture, got)
}

// Test_Sim_StatusSessions verifies QCNT appears only while a session is
// producing output.
func Test_Sim_StatusSessions(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	d := New(WithNoise(&zeroOneReader{}))
	is.Zero(d.Read32(mmio.RegStatus) & mmio.StatusQCntMask)

	startGenerate(d)
	is.Equal(uint32(mmio.QCntFull<<mmio.StatusQCntShift), d.Read32(mmio.RegStatus)&mmio.StatusQCntMask)

	// Clearing start ends the session.
	d.Write32(mmio.RegCtrl, mmio.CtrlPRNGMode|mmio.CtrlPRNGXS)
	is.Zero(d.Read32(mmio.RegStatus) & mmio.StatusQCntMask)
}

// Test_Sim_SerialSeed verifies MSB-first bit accumulation behind the test
// mode gate and the DLEN-based reseed completion.
func Test_Sim_SerialSeed(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	d := New(WithNoise(&zeroOneReader{}))
	d.Write32(mmio.RegCtrl3, 0) // DLEN 0: one 16-byte block
	d.Write32(mmio.RegCtrl, mmio.CtrlTstMode|mmio.CtrlTRSSEn)
	d.Write32(mmio.RegCtrl, mmio.CtrlTstMode|mmio.CtrlTRSSEn|mmio.CtrlPRNGStart)

	// Not complete until all bytes are clocked.
	is.Zero(d.Read32(mmio.RegStatus) & mmio.StatusDone)

	seed := make([]byte, 16)
	for i := range seed {
		seed[i] = byte(0x81 + i)
	}
	for _, b := range seed {
		for bit := 7; bit >= 0; bit-- {
			d.Write32(mmio.RegCtrl4, uint32(b>>uint(bit))&1)
		}
	}
	is.Equal(uint32(mmio.StatusDone), d.Read32(mmio.RegStatus)&mmio.StatusDone)
}

// Test_Sim_StuckOutput verifies the stuck fault repeats the first burst.
func Test_Sim_StuckOutput(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	d := New(WithNoise(&zeroOneReader{}), WithStuckOutput())
	startGenerate(d)

	b1 := drainBurst(d)
	b2 := drainBurst(d)
	is.True(bytes.Equal(b1, b2), "stuck device must repeat bursts")
}

// Test_Sim_HardReset verifies reset clears the register file but keeps
// the journal.
func Test_Sim_HardReset(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	d := New(WithNoise(&zeroOneReader{}))
	d.Write32(mmio.RegExtSeed, 0x1234)
	d.Write32(mmio.RegReset, mmio.ResetAssert)

	is.Zero(d.Reg(mmio.RegExtSeed))
	is.Len(d.Journal(), 2)
}
