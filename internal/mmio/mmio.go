// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package mmio provides typed register access for the TRNG IP block: timed
// polling, read-modify-write helpers, the parallel reverse-word-order seed
// load used by V1 and the DF path, and the V2 serial bit load with
// write-back verification.
//
// Hardware is reached through the Port interface so the state machine can
// run unchanged against real mapped registers or a simulated device. The
// platform's Port implementation is expected to use ordered read/write
// primitives; this package assumes writes reach the device in program order.
package mmio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Port is the raw 32-bit register access boundary. Offsets are relative to
// the device base address.
type Port interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
}

var (
	// ErrTimeout is returned when a timed poll expires, including the final
	// post-deadline re-read.
	ErrTimeout = errors.New("mmio: timed out waiting for register event")

	// ErrSerialVerify is returned when a serially clocked seed byte reads
	// back different from its source.
	ErrSerialVerify = errors.New("mmio: serial seed write-back verification failed")
)

const (
	// pollInterval paces the busy-poll loop.
	pollInterval = time.Microsecond

	// serialByteSettle covers the required 2 clock cycles after each
	// serially loaded byte.
	serialByteSettle = time.Microsecond

	// serialChunkSettle covers the required 700 clock cycles after every
	// 8 serially loaded bytes.
	serialChunkSettle = 10 * time.Microsecond
)

// Device wraps a Port with the driver's register conventions.
type Device struct {
	port  Port
	sleep func(time.Duration)
}

// DeviceOption customizes a Device.
type DeviceOption func(*Device)

// WithSleep replaces the delay primitive, letting tests run settle delays
// and poll pacing without wall-clock time.
func WithSleep(f func(time.Duration)) DeviceOption {
	return func(d *Device) { d.sleep = f }
}

// NewDevice returns a Device over the given port.
func NewDevice(p Port, opts ...DeviceOption) *Device {
	d := &Device{
		port:  p,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Read32 reads a register.
func (d *Device) Read32(off uint32) uint32 {
	return d.port.Read32(off)
}

// Write32 writes a register.
func (d *Device) Write32(off uint32, v uint32) {
	d.port.Write32(off, v)
}

// SetBits read-modify-writes mask into a register.
func (d *Device) SetBits(off uint32, mask uint32) {
	d.port.Write32(off, d.port.Read32(off)|mask)
}

// ClearBits read-modify-writes mask out of a register.
func (d *Device) ClearBits(off uint32, mask uint32) {
	d.port.Write32(off, d.port.Read32(off)&^mask)
}

// WriteField read-modify-writes a masked, shifted field.
func (d *Device) WriteField(off uint32, mask uint32, shift uint, v uint32) {
	cur := d.port.Read32(off) &^ mask
	d.port.Write32(off, cur|(v<<shift)&mask)
}

// Sleep delays for at least dur using the configured delay primitive.
func (d *Device) Sleep(dur time.Duration) {
	d.sleep(dur)
}

// WaitForEvent busy-polls reg until (value & mask) == expected or the
// timeout expires. The calling thread may be descheduled past the deadline,
// so one final re-read is performed after the deadline before declaring
// failure.
func (d *Device) WaitForEvent(off uint32, mask, expected uint32, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.port.Read32(off)&mask == expected {
			return nil
		}
		d.sleep(pollInterval)
	}
	if d.port.Read32(off)&mask == expected {
		return nil
	}
	return fmt.Errorf("%w: reg 0x%02x mask 0x%08x want 0x%08x", ErrTimeout, off, mask, expected)
}

// WriteSeedWords loads a 48-byte buffer into a 12-register bank. The byte
// stream is grouped into 4-byte big-endian words, and registers are written
// in reverse word order: input word i lands at base + (11-i)*4. A nil
// buffer writes zeros, which is how release scrubs the banks.
func (d *Device) WriteSeedWords(base uint32, b []byte) {
	for i := 0; i < SeedWords; i++ {
		var w uint32
		if b != nil {
			w = binary.BigEndian.Uint32(b[4*i:])
		}
		d.port.Write32(base+uint32(SeedWords-1-i)*4, w)
	}
}

// ReadSeedWords reads a 12-register bank back into a 48-byte buffer using
// the same reverse word order as WriteSeedWords.
func (d *Device) ReadSeedWords(base uint32, b []byte) {
	for i := 0; i < SeedWords; i++ {
		w := d.port.Read32(base + uint32(SeedWords-1-i)*4)
		binary.BigEndian.PutUint32(b[4*i:], w)
	}
}

// WriteSerialSeed clocks seed into the V2 serial seed register bit by bit,
// MSB first. Each byte is read back from the bit port as it is clocked and
// compared against the source; a mismatch aborts the load. The settle
// delays after each byte and after every 8 bytes are required by the
// silicon and must not be shortened.
func (d *Device) WriteSerialSeed(seed []byte) error {
	for i, src := range seed {
		var got byte
		for bit := 7; bit >= 0; bit-- {
			v := uint32(src>>uint(bit)) & Ctrl4SeedBit
			d.port.Write32(RegCtrl4, v)
			got = got<<1 | byte(d.port.Read32(RegCtrl4)&Ctrl4SeedBit)
		}
		if got != src {
			return fmt.Errorf("%w: byte %d read back 0x%02x want 0x%02x", ErrSerialVerify, i, got, src)
		}
		d.sleep(serialByteSettle)
		if (i+1)%8 == 0 {
			d.sleep(serialChunkSettle)
		}
	}
	return nil
}

// ReadBurst drains one 16-byte burst from the core output FIFO into dst,
// byte-swapping each word to big-endian. dst must hold BurstLen bytes.
func (d *Device) ReadBurst(dst []byte) {
	for i := 0; i < BurstWords; i++ {
		binary.BigEndian.PutUint32(dst[4*i:], d.port.Read32(RegCoreOutput))
	}
}
