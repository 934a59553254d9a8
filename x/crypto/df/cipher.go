// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package df

// The block cipher below is the fixed-key primitive behind the derivation
// function. It operates on 16-byte blocks with a 32-byte key expanded to
// 16*(rounds+1) bytes of round-key material. It is deliberately not exported:
// the only consumer is the DF's two-pass construction, and the fused
// substitution/column-mix tables are an implementation detail of that
// contract.

const (
	// BlockSize is the cipher block size in bytes.
	BlockSize = 16

	// rounds is fixed by the 32-byte derivation-function key.
	rounds = 14

	// keyScheduleLen is the size of the expanded round-key material.
	keyScheduleLen = BlockSize * (rounds + 1)
)

// sbox is the base substitution table.
var sbox = [256]byte{
	0x63, 0x7c, 0x77, 0x7b, 0xf2, 0x6b, 0x6f, 0xc5, 0x30, 0x01, 0x67, 0x2b, 0xfe, 0xd7, 0xab, 0x76,
	0xca, 0x82, 0xc9, 0x7d, 0xfa, 0x59, 0x47, 0xf0, 0xad, 0xd4, 0xa2, 0xaf, 0x9c, 0xa4, 0x72, 0xc0,
	0xb7, 0xfd, 0x93, 0x26, 0x36, 0x3f, 0xf7, 0xcc, 0x34, 0xa5, 0xe5, 0xf1, 0x71, 0xd8, 0x31, 0x15,
	0x04, 0xc7, 0x23, 0xc3, 0x18, 0x96, 0x05, 0x9a, 0x07, 0x12, 0x80, 0xe2, 0xeb, 0x27, 0xb2, 0x75,
	0x09, 0x83, 0x2c, 0x1a, 0x1b, 0x6e, 0x5a, 0xa0, 0x52, 0x3b, 0xd6, 0xb3, 0x29, 0xe3, 0x2f, 0x84,
	0x53, 0xd1, 0x00, 0xed, 0x20, 0xfc, 0xb1, 0x5b, 0x6a, 0xcb, 0xbe, 0x39, 0x4a, 0x4c, 0x58, 0xcf,
	0xd0, 0xef, 0xaa, 0xfb, 0x43, 0x4d, 0x33, 0x85, 0x45, 0xf9, 0x02, 0x7f, 0x50, 0x3c, 0x9f, 0xa8,
	0x51, 0xa3, 0x40, 0x8f, 0x92, 0x9d, 0x38, 0xf5, 0xbc, 0xb6, 0xda, 0x21, 0x10, 0xff, 0xf3, 0xd2,
	0xcd, 0x0c, 0x13, 0xec, 0x5f, 0x97, 0x44, 0x17, 0xc4, 0xa7, 0x7e, 0x3d, 0x64, 0x5d, 0x19, 0x73,
	0x60, 0x81, 0x4f, 0xdc, 0x22, 0x2a, 0x90, 0x88, 0x46, 0xee, 0xb8, 0x14, 0xde, 0x5e, 0x0b, 0xdb,
	0xe0, 0x32, 0x3a, 0x0a, 0x49, 0x06, 0x24, 0x5c, 0xc2, 0xd3, 0xac, 0x62, 0x91, 0x95, 0xe4, 0x79,
	0xe7, 0xc8, 0x37, 0x6d, 0x8d, 0xd5, 0x4e, 0xa9, 0x6c, 0x56, 0xf4, 0xea, 0x65, 0x7a, 0xae, 0x08,
	0xba, 0x78, 0x25, 0x2e, 0x1c, 0xa6, 0xb4, 0xc6, 0xe8, 0xdd, 0x74, 0x1f, 0x4b, 0xbd, 0x8b, 0x8a,
	0x70, 0x3e, 0xb5, 0x66, 0x48, 0x03, 0xf6, 0x0e, 0x61, 0x35, 0x57, 0xb9, 0x86, 0xc1, 0x1d, 0x9e,
	0xe1, 0xf8, 0x98, 0x11, 0x69, 0xd9, 0x8e, 0x94, 0x9b, 0x1e, 0x87, 0xe9, 0xce, 0x55, 0x28, 0xdf,
	0x8c, 0xa1, 0x89, 0x0d, 0xbf, 0xe6, 0x42, 0x68, 0x41, 0x99, 0x2d, 0x0f, 0xb0, 0x54, 0xbb, 0x16,
}

// sbox2 and sbox3 are the column-mix tables derived from sbox:
// sbox2[i] = xtime(sbox[i]), sbox3[i] = sbox2[i] ^ sbox[i].
var (
	sbox2 [256]byte
	sbox3 [256]byte
)

func init() {
	for i, s := range sbox {
		sbox2[i] = xtime(s)
		sbox3[i] = sbox2[i] ^ s
	}
}

// xtime multiplies by x in GF(2^8) modulo the field polynomial.
func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1b
	}
	return b << 1
}

// blockCipher holds the expanded key schedule. The zero value is unusable;
// SetupKey must run before Encrypt or Checksum.
type blockCipher struct {
	rk [keyScheduleLen]byte
}

// SetupKey expands a 32-byte key into the round-key schedule using the
// standard round-constant/rotate/s-box recurrence.
func (c *blockCipher) SetupKey(key []byte) {
	copy(c.rk[:32], key[:32])
	rcon := byte(1)
	for i := 32; i < keyScheduleLen; i += 4 {
		var t [4]byte
		copy(t[:], c.rk[i-4:i])
		switch i % 32 {
		case 0:
			t[0], t[1], t[2], t[3] = sbox[t[1]]^rcon, sbox[t[2]], sbox[t[3]], sbox[t[0]]
			rcon = xtime(rcon)
		case 16:
			t[0], t[1], t[2], t[3] = sbox[t[0]], sbox[t[1]], sbox[t[2]], sbox[t[3]]
		}
		for j := 0; j < 4; j++ {
			c.rk[i+j] = c.rk[i-32+j] ^ t[j]
		}
	}
}

// Encrypt transforms one 16-byte block from src into dst. dst and src may
// alias.
func (c *blockCipher) Encrypt(dst, src []byte) {
	var a, b [BlockSize]byte

	// Initial key addition.
	for i := 0; i < BlockSize; i++ {
		a[i] = src[i] ^ c.rk[i]
	}

	// rounds-1 fused substitution + column-mix rounds.
	for r := 1; r < rounds; r++ {
		c.mixColumnSbox(&b, &a, c.rk[r*BlockSize:])
		a = b
	}

	// Final round substitutes and shifts rows only.
	c.shiftRowSbox(&b, &a, c.rk[rounds*BlockSize:])
	copy(dst[:BlockSize], b[:])
}

// mixColumnSbox applies the substitution and the column mix in one pass
// using the three precomputed tables, then adds the round key. The row
// shift is folded into the source indexing.
func (c *blockCipher) mixColumnSbox(dst, src *[BlockSize]byte, rk []byte) {
	for col := 0; col < 4; col++ {
		a0 := src[4*col]
		a1 := src[(4*col+5)%BlockSize]
		a2 := src[(4*col+10)%BlockSize]
		a3 := src[(4*col+15)%BlockSize]
		dst[4*col+0] = sbox2[a0] ^ sbox3[a1] ^ sbox[a2] ^ sbox[a3] ^ rk[4*col+0]
		dst[4*col+1] = sbox[a0] ^ sbox2[a1] ^ sbox3[a2] ^ sbox[a3] ^ rk[4*col+1]
		dst[4*col+2] = sbox[a0] ^ sbox[a1] ^ sbox2[a2] ^ sbox3[a3] ^ rk[4*col+2]
		dst[4*col+3] = sbox3[a0] ^ sbox[a1] ^ sbox[a2] ^ sbox2[a3] ^ rk[4*col+3]
	}
}

// shiftRowSbox applies the substitution with the row shift and adds the
// final round key.
func (c *blockCipher) shiftRowSbox(dst, src *[BlockSize]byte, rk []byte) {
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			dst[4*col+row] = sbox[src[(4*((col+row)%4)+row)]] ^ rk[4*col+row]
		}
	}
}

// Checksum runs the CBC-MAC style chain over data: each 16-byte block is
// XOR-ed into iv, then iv is encrypted in place. data length must be a
// multiple of BlockSize; iv must be 16 bytes.
func (c *blockCipher) Checksum(data, iv []byte) {
	for off := 0; off+BlockSize <= len(data); off += BlockSize {
		for i := 0; i < BlockSize; i++ {
			iv[i] ^= data[off+i]
		}
		c.Encrypt(iv, iv)
	}
}

// Wipe clears the expanded key schedule.
func (c *blockCipher) Wipe() {
	for i := range c.rk {
		c.rk[i] = 0
	}
}
