// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package df implements the NIST SP 800-90A (§10.3.2/10.3.3) block-cipher
// derivation function used by the TRNG driver to distill raw entropy and an
// optional personalization string into a DRBG seed, or into conditioned
// random output on the PTRNG+DF path.
//
// The DF is deterministic under its fixed key {0, 1, ..., 31}: identical
// inputs always derive identical outputs, which is what the known-answer
// tests rely on. This package is part of the experimental "x" modules and
// may be subject to change.
package df

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Output flavors of the derivation function.
const (
	// Seed derives a 48-byte DRBG seed.
	Seed Flag = iota

	// Rand derives a 32-byte conditioned random block (PTRNG+DF only).
	Rand
)

// Flag selects the derivation output flavor.
type Flag uint8

const (
	// SeedLen is the derived seed length in bytes.
	SeedLen = 48

	// RandLen is the derived random output length in bytes.
	RandLen = 32

	// PerStringLen is the personalization string length in bytes.
	PerStringLen = 48

	// MaxPreDFLen caps the raw entropy accepted by the DF.
	MaxPreDFLen = 160

	// keyLen is the fixed derivation key length.
	keyLen = 32

	// headerLen covers the iv counter, L and N fields.
	headerLen = 12

	// inputBufLen is the formatted-input capacity: header, maximum entropy,
	// personalization string and the 0x80 pad block, rounded to BlockSize.
	inputBufLen = (headerLen + MaxPreDFLen + PerStringLen + BlockSize) &^ (BlockSize - 1)
)

var (
	// ErrEntropyTooLong is returned when the raw input exceeds MaxPreDFLen.
	ErrEntropyTooLong = errors.New("df: entropy exceeds maximum pre-DF length")

	// ErrPerStringLen is returned when the personalization string is present
	// but not exactly PerStringLen bytes.
	ErrPerStringLen = errors.New("df: personalization string must be 48 bytes")
)

// DF owns the working buffers for the two-pass derivation. It is not safe
// for concurrent use; the driver serializes all access. Buffers hold secret
// material between calls, so Wipe must run when the owning instance is
// released.
type DF struct {
	cipher blockCipher
	in     [inputBufLen]byte
	temp   [SeedLen]byte
	out    [SeedLen]byte
}

// New returns a derivation function with empty working buffers.
func New() *DF {
	return &DF{}
}

// dfKey returns the fixed derivation key {0, 1, ..., 31}.
func dfKey() []byte {
	k := make([]byte, keyLen)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

// Derive runs the two-pass block-cipher DF over entropy and an optional
// personalization string. The returned slice aliases the DF's output buffer
// and is valid until the next Derive or Wipe call.
//
// Pass one computes three chained checksums of the formatted input, each
// under a distinct iv counter, producing a 48-byte intermediate K||X. Pass
// two re-keys the cipher with K and produces the output by chained
// encryption starting from X.
func (d *DF) Derive(flag Flag, entropy, perstring []byte) ([]byte, error) {
	if len(entropy) > MaxPreDFLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrEntropyTooLong, len(entropy), MaxPreDFLen)
	}
	if perstring != nil && len(perstring) != PerStringLen {
		return nil, fmt.Errorf("%w: got %d", ErrPerStringLen, len(perstring))
	}

	outLen := SeedLen
	if flag == Rand {
		outLen = RandLen
	}

	total := d.format(entropy, perstring, outLen)

	// First pass: one chained checksum per 16-byte output offset, keyed with
	// the fixed DF key and distinguished by the iv counter field.
	d.cipher.SetupKey(dfKey())
	nblocks := total / BlockSize
	for i := 0; i < SeedLen; i += BlockSize {
		binary.BigEndian.PutUint32(d.in[0:4], uint32(i/BlockSize))
		for j := i; j < i+BlockSize; j++ {
			d.temp[j] = 0
		}
		d.cipher.Checksum(d.in[:nblocks*BlockSize], d.temp[i:i+BlockSize])
	}

	// Second pass: re-key with K (the first 32 bytes) and chain-encrypt
	// starting from X (the final 16).
	d.cipher.SetupKey(d.temp[:keyLen])
	d.cipher.Encrypt(d.out[0:BlockSize], d.temp[keyLen:SeedLen])
	for i := BlockSize; i < outLen; i += BlockSize {
		d.cipher.Encrypt(d.out[i:i+BlockSize], d.out[i-BlockSize:i])
	}

	return d.out[:outLen], nil
}

// format packs (ivCounter, L, N, entropy, perstring, 0x80 pad) into the
// input buffer and returns the formatted length, a multiple of BlockSize.
// Because the entropy length varies between calls, the pad and any stale
// tail from a previous derivation are explicitly rewritten: every byte from
// the end of the entropy to the end of the buffer is stored fresh, so no
// destructive overlap can occur.
func (d *DF) format(entropy, perstring []byte, outLen int) int {
	rawLen := len(entropy) + len(perstring)

	binary.BigEndian.PutUint32(d.in[4:8], uint32(rawLen))
	binary.BigEndian.PutUint32(d.in[8:12], uint32(outLen))

	off := headerLen
	off += copy(d.in[off:], entropy)
	off += copy(d.in[off:], perstring)
	d.in[off] = 0x80
	off++

	total := (off + BlockSize - 1) &^ (BlockSize - 1)
	for i := off; i < len(d.in); i++ {
		d.in[i] = 0
	}
	return total
}

// Wipe zeroes every working buffer and the expanded key schedule.
func (d *DF) Wipe() {
	d.cipher.Wipe()
	for i := range d.in {
		d.in[i] = 0
	}
	for i := range d.temp {
		d.temp[i] = 0
	}
	for i := range d.out {
		d.out[i] = 0
	}
}
