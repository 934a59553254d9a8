// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Tests for the DF block cipher: key schedule determinism, encryption,
// chained checksums and wiping.

package df

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test_Cipher_EncryptDeterministic verifies that setup_key followed by
// encrypt is deterministic: encrypting a zero block twice under the same key
// yields identical ciphertext.
func Test_Cipher_EncryptDeterministic(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var c1, c2 blockCipher
	c1.SetupKey(dfKey())
	c2.SetupKey(dfKey())

	var zero [BlockSize]byte
	out1 := make([]byte, BlockSize)
	out2 := make([]byte, BlockSize)
	c1.Encrypt(out1, zero[:])
	c2.Encrypt(out2, zero[:])

	is.Equal(out1, out2, "same key and block must encrypt identically")
	is.False(bytes.Equal(out1, zero[:]), "ciphertext must differ from the zero block")
}

// Test_Cipher_EncryptInPlace verifies that dst and src may alias, which the
// checksum chain depends on.
func Test_Cipher_EncryptInPlace(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var c blockCipher
	c.SetupKey(dfKey())

	src := make([]byte, BlockSize)
	for i := range src {
		src[i] = byte(i * 7)
	}
	want := make([]byte, BlockSize)
	c.Encrypt(want, src)

	c.Encrypt(src, src)
	is.Equal(want, src)
}

// Test_Cipher_KeyDependence verifies that distinct keys produce distinct
// ciphertext for the same block.
func Test_Cipher_KeyDependence(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var c1, c2 blockCipher
	c1.SetupKey(dfKey())

	k2 := dfKey()
	k2[0] ^= 0x01
	c2.SetupKey(k2)

	var zero [BlockSize]byte
	out1 := make([]byte, BlockSize)
	out2 := make([]byte, BlockSize)
	c1.Encrypt(out1, zero[:])
	c2.Encrypt(out2, zero[:])

	is.False(bytes.Equal(out1, out2), "a single flipped key bit must change the ciphertext")
}

// Test_Cipher_ChecksumChains verifies the CBC-MAC chain: the checksum over
// two blocks equals the checksum over the second block with the first
// block's checksum as the iv.
func Test_Cipher_ChecksumChains(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var c blockCipher
	c.SetupKey(dfKey())

	data := make([]byte, 2*BlockSize)
	for i := range data {
		data[i] = byte(i)
	}

	full := make([]byte, BlockSize)
	c.Checksum(data, full)

	step := make([]byte, BlockSize)
	c.Checksum(data[:BlockSize], step)
	c.Checksum(data[BlockSize:], step)

	is.Equal(full, step)
}

// Test_Cipher_ChecksumIVSensitivity verifies that distinct ivs produce
// distinct checksums over the same data, which is what separates the three
// first-pass outputs of the DF.
func Test_Cipher_ChecksumIVSensitivity(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var c blockCipher
	c.SetupKey(dfKey())

	data := make([]byte, BlockSize)
	iv0 := make([]byte, BlockSize)
	iv1 := make([]byte, BlockSize)
	iv1[15] = 1

	c.Checksum(data, iv0)
	c.Checksum(data, iv1)

	is.False(bytes.Equal(iv0, iv1))
}

// Test_Cipher_DerivedTables checks the derived table construction against
// its definition: sbox2 doubles in the field and sbox3 is sbox2 xor sbox.
func Test_Cipher_DerivedTables(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	for i := 0; i < 256; i++ {
		s := sbox[i]
		want2 := s << 1
		if s&0x80 != 0 {
			want2 ^= 0x1b
		}
		is.Equal(want2, sbox2[i], "sbox2[%d]", i)
		is.Equal(want2^s, sbox3[i], "sbox3[%d]", i)
	}
}

// Test_Cipher_Wipe verifies that Wipe clears the expanded key schedule.
func Test_Cipher_Wipe(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var c blockCipher
	c.SetupKey(dfKey())
	c.Wipe()

	for i, b := range c.rk {
		is.Zero(b, "round key byte %d should be wiped", i)
	}
}
