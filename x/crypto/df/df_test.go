// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Tests for the derivation function: output lengths, determinism under the
// fixed key, formatted-input packing and buffer hygiene.

package df

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntropy(n int) []byte {
	e := make([]byte, n)
	for i := range e {
		e[i] = byte(i*31 + 7)
	}
	return e
}

func testPerString() []byte {
	p := make([]byte, PerStringLen)
	for i := range p {
		p[i] = byte(0xA0 ^ i)
	}
	return p
}

// Test_DF_SeedLength verifies DF(SEED, perstring) always derives 48 bytes.
func Test_DF_SeedLength(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	for _, n := range []int{16, 48, 128, MaxPreDFLen} {
		out, err := New().Derive(Seed, testEntropy(n), testPerString())
		is.NoError(err)
		is.Len(out, SeedLen, "entropy length %d", n)
	}
}

// Test_DF_RandLength verifies DF(RAND, nil) always derives 32 bytes.
func Test_DF_RandLength(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	out, err := New().Derive(Rand, testEntropy(128), nil)
	is.NoError(err)
	is.Len(out, RandLen)
}

// Test_DF_Deterministic verifies the DF is deterministic in both passes:
// identical inputs derive identical outputs across independent instances.
func Test_DF_Deterministic(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	out1, err := New().Derive(Seed, testEntropy(48), testPerString())
	is.NoError(err)
	cp := make([]byte, len(out1))
	copy(cp, out1)

	out2, err := New().Derive(Seed, testEntropy(48), testPerString())
	is.NoError(err)
	is.Equal(cp, out2)
}

// Test_DF_InputSensitivity verifies that a one-bit change in the entropy or
// the personalization string changes the derived seed.
func Test_DF_InputSensitivity(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	base, err := New().Derive(Seed, testEntropy(48), testPerString())
	is.NoError(err)
	want := make([]byte, len(base))
	copy(want, base)

	ent := testEntropy(48)
	ent[0] ^= 0x01
	flipped, err := New().Derive(Seed, ent, testPerString())
	is.NoError(err)
	is.False(bytes.Equal(want, flipped), "entropy bit flip must change the seed")

	pstr := testPerString()
	pstr[47] ^= 0x80
	flipped, err = New().Derive(Seed, testEntropy(48), pstr)
	is.NoError(err)
	is.False(bytes.Equal(want, flipped), "perstring bit flip must change the seed")
}

// Test_DF_ReusedInstanceIsClean verifies that deriving with long entropy and
// then short entropy on the same instance gives the same result as a fresh
// instance: the stale tail of the input buffer must not leak into the pad.
func Test_DF_ReusedInstanceIsClean(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	d := New()
	_, err := d.Derive(Seed, testEntropy(MaxPreDFLen), testPerString())
	is.NoError(err)

	reused, err := d.Derive(Seed, testEntropy(16), nil)
	is.NoError(err)
	got := make([]byte, len(reused))
	copy(got, reused)

	fresh, err := New().Derive(Seed, testEntropy(16), nil)
	is.NoError(err)
	is.Equal(fresh, got)
}

// Test_DF_FormatLayout verifies the formatted-input layout: big-endian L and
// N fields, entropy then perstring placement, 0x80 pad, zero fill, and a
// total length rounded to the block size.
func Test_DF_FormatLayout(t *testing.T) {
	t.Parallel()
	is := assert.New(t)
	must := require.New(t)

	d := New()
	ent := testEntropy(20)
	pstr := testPerString()
	total := d.format(ent, pstr, SeedLen)

	must.Zero(total%BlockSize, "formatted length must be block aligned")
	is.Equal(uint32(len(ent)+len(pstr)), binary.BigEndian.Uint32(d.in[4:8]), "L field")
	is.Equal(uint32(SeedLen), binary.BigEndian.Uint32(d.in[8:12]), "N field")
	is.Equal(ent, d.in[headerLen:headerLen+len(ent)])
	is.Equal(pstr, d.in[headerLen+len(ent):headerLen+len(ent)+len(pstr)])

	padAt := headerLen + len(ent) + len(pstr)
	is.Equal(byte(0x80), d.in[padAt])
	for i := padAt + 1; i < total; i++ {
		is.Zero(d.in[i], "pad byte %d", i)
	}
}

// Test_DF_EntropyTooLong verifies the MaxPreDFLen cap.
func Test_DF_EntropyTooLong(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	_, err := New().Derive(Seed, testEntropy(MaxPreDFLen+1), nil)
	is.ErrorIs(err, ErrEntropyTooLong)
}

// Test_DF_PerStringLength verifies that a present personalization string
// must be exactly 48 bytes.
func Test_DF_PerStringLength(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	_, err := New().Derive(Seed, testEntropy(16), make([]byte, 47))
	is.ErrorIs(err, ErrPerStringLen)
}

// Test_DF_Wipe verifies that Wipe clears the working buffers.
func Test_DF_Wipe(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	d := New()
	_, err := d.Derive(Seed, testEntropy(48), testPerString())
	is.NoError(err)

	d.Wipe()
	for i, b := range d.in {
		is.Zero(b, "input buffer byte %d", i)
	}
	for i, b := range d.temp {
		is.Zero(b, "temp buffer byte %d", i)
	}
	for i, b := range d.out {
		is.Zero(b, "output buffer byte %d", i)
	}
}
