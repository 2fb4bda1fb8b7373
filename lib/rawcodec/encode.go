// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rawcodec

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// EncodeBlock packs 64 pre-reference samples at the given width,
// appending the payload to dst. Samples must fit in the declared
// width. The layout is the exact inverse of DecodeBlock.
func EncodeBlock(dst []byte, width uint16, samples *[BlockSamples]uint16) []byte {
	switch width {
	case 0:
		return dst
	case 1:
		return encode1(dst, samples)
	case 2:
		return encode2(dst, samples)
	case 3:
		return encode3(dst, samples)
	case 4:
		return encode4(dst, samples)
	case 5:
		return encode5(dst, samples)
	case 6:
		return encode6(dst, samples)
	case 7, 8:
		return encode8(dst, samples)
	case 9, 10:
		return encode10(dst, samples)
	default:
		return encode16(dst, samples)
	}
}

func encode1(dst []byte, s *[BlockSamples]uint16) []byte {
	for lane := 0; lane < 8; lane++ {
		var v uint16
		for k := 0; k < 8; k++ {
			v |= (s[k*8+lane] & 0x01) << k
		}
		dst = append(dst, byte(v))
	}
	return dst
}

func encode2(dst []byte, s *[BlockSamples]uint16) []byte {
	for half := 0; half < 2; half++ {
		in := s[half*32:]
		for lane := 0; lane < 8; lane++ {
			var v uint16
			for k := 0; k < 4; k++ {
				v |= (in[k*8+lane] & 0x03) << (2 * k)
			}
			dst = append(dst, byte(v))
		}
	}
	return dst
}

func encode3(dst []byte, s *[BlockSamples]uint16) []byte {
	var lanes [24]byte
	for lane := 0; lane < 8; lane++ {
		r2 := s[2*8+lane]
		r5 := s[5*8+lane]
		lanes[lane] = byte((s[0*8+lane] & 0x07) |
			((s[1*8+lane] & 0x07) << 3) |
			((r2 & 0x03) << 6))
		lanes[8+lane] = byte((s[3*8+lane] & 0x07) |
			((s[4*8+lane] & 0x07) << 3) |
			((r5 & 0x03) << 6))
		lanes[16+lane] = byte((s[6*8+lane] & 0x07) |
			((s[7*8+lane] & 0x07) << 3) |
			(((r2 >> 2) & 0x01) << 6) |
			(((r5 >> 2) & 0x01) << 7))
	}
	return append(dst, lanes[:]...)
}

func encode4(dst []byte, s *[BlockSamples]uint16) []byte {
	for group := 0; group < 4; group++ {
		in := s[group*16:]
		for lane := 0; lane < 8; lane++ {
			dst = append(dst, byte((in[lane]&0x0F)|((in[8+lane]&0x0F)<<4)))
		}
	}
	return dst
}

func encode5(dst []byte, s *[BlockSamples]uint16) []byte {
	var lanes [40]byte
	for lane := 0; lane < 8; lane++ {
		r5 := s[5*8+lane]
		r6 := s[6*8+lane]
		r7 := s[7*8+lane]
		lanes[lane] = byte((s[0*8+lane] & 0x1F) | ((r5 & 0x07) << 5))
		lanes[8+lane] = byte((s[1*8+lane] & 0x1F) | ((r6 & 0x07) << 5))
		lanes[16+lane] = byte((s[2*8+lane] & 0x1F) | ((r7 & 0x07) << 5))
		lanes[24+lane] = byte((s[3*8+lane] & 0x1F) |
			(((r5 >> 3) & 0x03) << 5) |
			(((r7 >> 3) & 0x01) << 7))
		lanes[32+lane] = byte((s[4*8+lane] & 0x1F) |
			(((r6 >> 3) & 0x03) << 5) |
			(((r7 >> 4) & 0x01) << 7))
	}
	return append(dst, lanes[:]...)
}

func encode6(dst []byte, s *[BlockSamples]uint16) []byte {
	var lanes [48]byte
	for lane := 0; lane < 8; lane++ {
		r6 := s[6*8+lane]
		r7 := s[7*8+lane]
		lanes[lane] = byte((s[0*8+lane] & 0x3F) | ((r6 & 0x03) << 6))
		lanes[8+lane] = byte((s[1*8+lane] & 0x3F) | (((r6 >> 2) & 0x03) << 6))
		lanes[16+lane] = byte((s[2*8+lane] & 0x3F) | (((r6 >> 4) & 0x03) << 6))
		lanes[24+lane] = byte((s[3*8+lane] & 0x3F) | ((r7 & 0x03) << 6))
		lanes[32+lane] = byte((s[4*8+lane] & 0x3F) | (((r7 >> 2) & 0x03) << 6))
		lanes[40+lane] = byte((s[5*8+lane] & 0x3F) | (((r7 >> 4) & 0x03) << 6))
	}
	return append(dst, lanes[:]...)
}

func encode8(dst []byte, s *[BlockSamples]uint16) []byte {
	for i := 0; i < BlockSamples; i++ {
		dst = append(dst, byte(s[i]))
	}
	return dst
}

func encode10(dst []byte, s *[BlockSamples]uint16) []byte {
	var lanes [80]byte
	for half := 0; half < 2; half++ {
		in := s[half*32:]
		out := lanes[half*40:]
		for lane := 0; lane < 8; lane++ {
			out[lane] = byte(in[0*8+lane])
			out[8+lane] = byte(in[1*8+lane])
			out[16+lane] = byte(in[2*8+lane])
			out[24+lane] = byte(in[3*8+lane])
			out[32+lane] = byte(((in[0*8+lane] >> 8) & 0x03) |
				(((in[1*8+lane] >> 8) & 0x03) << 2) |
				(((in[2*8+lane] >> 8) & 0x03) << 4) |
				(((in[3*8+lane] >> 8) & 0x03) << 6))
		}
	}
	return append(dst, lanes[:]...)
}

func encode16(dst []byte, s *[BlockSamples]uint16) []byte {
	for i := 0; i < BlockSamples; i++ {
		dst = binary.LittleEndian.AppendUint16(dst, s[i])
	}
	return dst
}

// widthFor returns the smallest supported bit width that can hold v.
func widthFor(v uint16) uint16 {
	return uint16(bits.Len16(v))
}

// encodeRun appends one compressed side-channel stream to dst: the
// little-endian 32-bit sample count followed by 64-sample blocks, each
// with a 2-byte inline header. Per block, the reference is the block
// minimum clamped to 12 bits and the width is chosen to fit the
// largest residual.
//
// The header's width field is 4 bits, so residuals are capped at 15
// bits: a block whose values span more than the 12-bit reference plus
// a 15-bit payload can cover is not representable and is rejected.
// Real side-channel data (per-block bit widths and sensor-sample block
// minimums) sits far below this ceiling.
func encodeRun(dst []byte, values []uint16) ([]byte, error) {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(values)))

	var block [BlockSamples]uint16
	for start := 0; start < len(values); start += BlockSamples {
		block = [BlockSamples]uint16{}
		n := copy(block[:], values[start:])

		reference := block[0]
		for _, v := range block[:n] {
			if v < reference {
				reference = v
			}
		}
		if reference > 0x0FFF {
			reference = 0x0FFF
		}

		var width uint16
		for i := range block {
			block[i] -= reference
			if w := widthFor(block[i]); w > width {
				width = w
			}
		}
		if width > 0x0F {
			return nil, fmt.Errorf("run block at %d spans %d bits over reference %d, exceeds header field",
				start, width, reference)
		}

		dst = append(dst, byte(width<<4)|byte(reference>>8), byte(reference))
		dst = EncodeBlock(dst, width, &block)
	}
	return dst, nil
}

// EncodeFrame packs a full raster into the on-disk frame layout:
// 16-byte header, interleaved block payload, bit-width run, reference
// run. width must be a multiple of BlockSamples and height a multiple
// of 4. The inverse of DecodeFrame at identical dimensions.
func EncodeFrame(samples []uint16, width, height int) ([]byte, error) {
	if width <= 0 || width%BlockSamples != 0 {
		return nil, fmt.Errorf("encode width %d must be a positive multiple of %d", width, BlockSamples)
	}
	if height <= 0 || height%4 != 0 {
		return nil, fmt.Errorf("encode height %d must be a positive multiple of 4", height)
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("raster has %d samples, want %d", len(samples), width*height)
	}

	blockCount := width * height / BlockSamples
	bitWidths := make([]uint16, 0, blockCount)
	references := make([]uint16, 0, blockCount)
	payload := make([]byte, 0, blockCount*BlockSamples*2)

	var blocks [4][BlockSamples]uint16
	for y := 0; y < height; y += 4 {
		row0 := samples[y*width:]
		row1 := samples[(y+1)*width:]
		row2 := samples[(y+2)*width:]
		row3 := samples[(y+3)*width:]

		for x := 0; x < width; x += BlockSamples {
			// Gather the 4 interleaved blocks of this column group:
			// the inverse of DecodeFrame's scatter.
			for i := 0; i < BlockSamples; i += 2 {
				xi := x + i
				blocks[0][i/2] = row0[xi]
				blocks[1][i/2] = row0[xi+1]
				blocks[2][i/2] = row1[xi]
				blocks[3][i/2] = row1[xi+1]
				blocks[0][BlockSamples/2+i/2] = row2[xi]
				blocks[1][BlockSamples/2+i/2] = row2[xi+1]
				blocks[2][BlockSamples/2+i/2] = row3[xi]
				blocks[3][BlockSamples/2+i/2] = row3[xi+1]
			}

			for b := 0; b < 4; b++ {
				reference := blocks[b][0]
				for _, v := range blocks[b] {
					if v < reference {
						reference = v
					}
				}
				var bitWidth uint16
				for i := range blocks[b] {
					blocks[b][i] -= reference
					if w := widthFor(blocks[b][i]); w > bitWidth {
						bitWidth = w
					}
				}
				bitWidths = append(bitWidths, bitWidth)
				references = append(references, reference)
				payload = EncodeBlock(payload, bitWidth, &blocks[b])
			}
		}
	}

	bitsRun, err := encodeRun(nil, bitWidths)
	if err != nil {
		return nil, fmt.Errorf("bit-width run: %w", err)
	}
	refsRun, err := encodeRun(nil, references)
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}
	bitsOffset := FrameHeaderSize + len(payload)
	refsOffset := bitsOffset + len(bitsRun)

	frame := make([]byte, 0, refsOffset+len(refsRun))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(width))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(height))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(bitsOffset))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(refsOffset))
	frame = append(frame, payload...)
	frame = append(frame, bitsRun...)
	frame = append(frame, refsRun...)
	return frame, nil
}
