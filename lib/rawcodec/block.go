// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rawcodec

import "encoding/binary"

// BlockSamples is the number of samples in one encoded block.
const BlockSamples = 64

// MaxBits is the largest supported bit width.
const MaxBits = 16

// blockBytes[bits] is the number of payload bytes one block occupies.
// The table is a protocol constant: byte consumption depends only on
// the declared width, never on sample content.
var blockBytes = [MaxBits + 1]int{
	0,   // bits = 0
	8,   // bits = 1
	16,  // bits = 2
	24,  // bits = 3
	32,  // bits = 4
	40,  // bits = 5
	48,  // bits = 6
	64,  // bits = 7
	64,  // bits = 8
	80,  // bits = 9
	80,  // bits = 10
	128, // bits = 11
	128, // bits = 12
	128, // bits = 13
	128, // bits = 14
	128, // bits = 15
	128, // bits = 16
}

// BlockBytes returns the payload size in bytes of a block encoded at
// the given width. Widths above MaxBits are invalid.
func BlockBytes(bits uint16) int {
	return blockBytes[bits]
}

// DecodeBlock unpacks one 64-sample block declared at the given width
// from input starting at offset, writing the pre-reference samples to
// dst. It returns the number of bytes consumed.
//
// If the block would read past the end of input, the remaining bytes
// are reported as consumed without being interpreted and dst is left
// untouched: a deliberately truncated terminal block signaling a short
// or corrupt stream. bits must be in [0, MaxBits]; the caller
// validates widths sourced from untrusted run data.
func DecodeBlock(dst *[BlockSamples]uint16, bits uint16, input []byte, offset int) int {
	need := blockBytes[bits]
	if offset+need > len(input) {
		return len(input) - offset
	}
	in := input[offset : offset+need]

	switch bits {
	case 0:
		for i := range dst {
			dst[i] = 0
		}
	case 1:
		decode1(dst, in)
	case 2:
		decode2(dst, in)
	case 3:
		decode3(dst, in)
	case 4:
		decode4(dst, in)
	case 5:
		decode5(dst, in)
	case 6:
		decode6(dst, in)
	case 7, 8:
		decode8(dst, in)
	case 9, 10:
		decode10(dst, in)
	default:
		decode16(dst, in)
	}
	return need
}

// Each decode routine below processes 8 byte lanes at a time, writing
// 8 output rows of 8 lanes each. Output row k lane l lives at
// dst[k*8+l]. The layouts are lane-for-lane identical to the camera's
// vectorized encoder.

func decode1(dst *[BlockSamples]uint16, in []byte) {
	for lane := 0; lane < 8; lane++ {
		v := uint16(in[lane])
		for k := 0; k < 8; k++ {
			dst[k*8+lane] = (v >> k) & 0x01
		}
	}
}

func decode2(dst *[BlockSamples]uint16, in []byte) {
	for half := 0; half < 2; half++ {
		out := dst[half*32:]
		for lane := 0; lane < 8; lane++ {
			v := uint16(in[half*8+lane])
			for k := 0; k < 4; k++ {
				out[k*8+lane] = (v >> (2 * k)) & 0x03
			}
		}
	}
}

// decode3 packs eight 3-bit rows into three byte lanes. Rows 2 and 5
// hold only 2 bits inline; their third bit is stored in bits 6 and 7
// of the last lane group.
func decode3(dst *[BlockSamples]uint16, in []byte) {
	for lane := 0; lane < 8; lane++ {
		p0 := uint16(in[lane])
		p1 := uint16(in[8+lane])
		p2 := uint16(in[16+lane])

		dst[0*8+lane] = p0 & 0x07
		dst[1*8+lane] = (p0 >> 3) & 0x07
		dst[2*8+lane] = ((p0 >> 6) & 0x03) | (((p2 >> 6) & 0x01) << 2)
		dst[3*8+lane] = p1 & 0x07
		dst[4*8+lane] = (p1 >> 3) & 0x07
		dst[5*8+lane] = ((p1 >> 6) & 0x03) | (((p2 >> 7) & 0x01) << 2)
		dst[6*8+lane] = p2 & 0x07
		dst[7*8+lane] = (p2 >> 3) & 0x07
	}
}

func decode4(dst *[BlockSamples]uint16, in []byte) {
	for group := 0; group < 4; group++ {
		out := dst[group*16:]
		for lane := 0; lane < 8; lane++ {
			v := uint16(in[group*8+lane])
			out[lane] = v & 0x0F
			out[8+lane] = (v >> 4) & 0x0F
		}
	}
}

// decode5 stores rows 0-4 inline and rebuilds rows 5-7 from the high
// bits of lanes p0-p4. Row 7 collects its top two bits from bit 7 of
// p3 and p4.
func decode5(dst *[BlockSamples]uint16, in []byte) {
	for lane := 0; lane < 8; lane++ {
		p0 := uint16(in[lane])
		p1 := uint16(in[8+lane])
		p2 := uint16(in[16+lane])
		p3 := uint16(in[24+lane])
		p4 := uint16(in[32+lane])

		dst[0*8+lane] = p0 & 0x1F
		dst[1*8+lane] = p1 & 0x1F
		dst[2*8+lane] = p2 & 0x1F
		dst[3*8+lane] = p3 & 0x1F
		dst[4*8+lane] = p4 & 0x1F
		dst[5*8+lane] = ((p0 >> 5) & 0x07) | (((p3 >> 5) & 0x03) << 3)
		dst[6*8+lane] = ((p1 >> 5) & 0x07) | (((p4 >> 5) & 0x03) << 3)
		dst[7*8+lane] = ((p2 >> 5) & 0x07) |
			(((p3 >> 7) & 0x01) << 3) |
			(((p4 >> 7) & 0x01) << 4)
	}
}

// decode6 stores rows 0-5 inline; rows 6 and 7 are assembled from the
// top two bits of lanes p0-p2 and p3-p5 respectively.
func decode6(dst *[BlockSamples]uint16, in []byte) {
	for lane := 0; lane < 8; lane++ {
		p0 := uint16(in[lane])
		p1 := uint16(in[8+lane])
		p2 := uint16(in[16+lane])
		p3 := uint16(in[24+lane])
		p4 := uint16(in[32+lane])
		p5 := uint16(in[40+lane])

		dst[0*8+lane] = p0 & 0x3F
		dst[1*8+lane] = p1 & 0x3F
		dst[2*8+lane] = p2 & 0x3F
		dst[3*8+lane] = p3 & 0x3F
		dst[4*8+lane] = p4 & 0x3F
		dst[5*8+lane] = p5 & 0x3F
		dst[6*8+lane] = ((p0 >> 6) & 0x03) |
			(((p1 >> 6) & 0x03) << 2) |
			(((p2 >> 6) & 0x03) << 4)
		dst[7*8+lane] = ((p3 >> 6) & 0x03) |
			(((p4 >> 6) & 0x03) << 2) |
			(((p5 >> 6) & 0x03) << 4)
	}
}

func decode8(dst *[BlockSamples]uint16, in []byte) {
	for i := 0; i < BlockSamples; i++ {
		dst[i] = uint16(in[i])
	}
}

// decode10 handles widths 9 and 10: two half-blocks of four base lane
// groups carrying 8 low bits each, followed by one lane group whose
// byte holds the 2 extra high bits for each of the four groups.
func decode10(dst *[BlockSamples]uint16, in []byte) {
	for half := 0; half < 2; half++ {
		base := in[half*40:]
		out := dst[half*32:]
		for lane := 0; lane < 8; lane++ {
			hi := uint16(base[32+lane])
			out[0*8+lane] = uint16(base[lane]) | ((hi & 0x03) << 8)
			out[1*8+lane] = uint16(base[8+lane]) | ((hi & 0x0C) << 6)
			out[2*8+lane] = uint16(base[16+lane]) | ((hi & 0x30) << 4)
			out[3*8+lane] = uint16(base[24+lane]) | ((hi & 0xC0) << 2)
		}
	}
}

func decode16(dst *[BlockSamples]uint16, in []byte) {
	for i := 0; i < BlockSamples; i++ {
		dst[i] = binary.LittleEndian.Uint16(in[2*i:])
	}
}
