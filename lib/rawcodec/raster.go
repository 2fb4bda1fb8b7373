// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rawcodec

import (
	"encoding/binary"
	"fmt"
)

// FrameHeaderSize is the fixed prefix of every encoded frame: four
// little-endian 32-bit fields.
const FrameHeaderSize = 16

// FrameHeader describes the encoded geometry of a frame and where its
// two side-channel runs start within the frame buffer.
type FrameHeader struct {
	// EncodedWidth is the padded raster width, always a multiple of
	// BlockSamples.
	EncodedWidth uint32

	// EncodedHeight is the raster height in rows.
	EncodedHeight uint32

	// BitsOffset is the byte offset of the bit-width run.
	BitsOffset uint32

	// RefsOffset is the byte offset of the reference run.
	RefsOffset uint32
}

// ParseFrameHeader reads the 16-byte frame header from the start of
// input.
func ParseFrameHeader(input []byte) (FrameHeader, error) {
	if len(input) < FrameHeaderSize {
		return FrameHeader{}, fmt.Errorf("frame header needs %d bytes, have %d: %w",
			FrameHeaderSize, len(input), ErrTruncated)
	}
	return FrameHeader{
		EncodedWidth:  binary.LittleEndian.Uint32(input[0:]),
		EncodedHeight: binary.LittleEndian.Uint32(input[4:]),
		BitsOffset:    binary.LittleEndian.Uint32(input[8:]),
		RefsOffset:    binary.LittleEndian.Uint32(input[12:]),
	}, nil
}

// DecodeFrame reconstructs a width×height sample raster from a full
// encoded frame buffer. width and height are the requested output
// dimensions and must not exceed the encoded dimensions; rows wider
// than the requested width are cropped.
//
// The raster is processed in groups of 4 rows. Within a group, each
// 64-sample-wide column decodes 4 interleaved blocks, one per row,
// consuming the next 4 (bit width, reference) pairs from the side
// channels. Samples are scattered pairwise: even output columns come
// from the first half of one block, odd columns from its neighbor,
// and the second half of each block lands two rows down.
func DecodeFrame(input []byte, width, height int) ([]uint16, error) {
	header, err := ParseFrameHeader(input)
	if err != nil {
		return nil, err
	}

	bufferLen := len(input)
	switch {
	case int(header.BitsOffset) > bufferLen || int(header.RefsOffset) > bufferLen:
		return nil, fmt.Errorf("run offsets %d/%d beyond buffer of %d bytes: %w",
			header.BitsOffset, header.RefsOffset, bufferLen, ErrBadFrameHeader)
	case header.EncodedWidth%BlockSamples != 0:
		return nil, fmt.Errorf("encoded width %d is not a multiple of %d: %w",
			header.EncodedWidth, BlockSamples, ErrBadFrameHeader)
	case int(header.EncodedWidth) < width:
		return nil, fmt.Errorf("encoded width %d smaller than requested width %d: %w",
			header.EncodedWidth, width, ErrBadFrameHeader)
	}
	if width <= 0 || height <= 0 || int(header.EncodedHeight) < height {
		return nil, fmt.Errorf("requested %dx%d exceeds encoded %dx%d: %w",
			width, height, header.EncodedWidth, header.EncodedHeight, ErrBadFrameHeader)
	}

	bits, _, err := decodeRun(input, int(header.BitsOffset))
	if err != nil {
		return nil, fmt.Errorf("bit-width run: %w", err)
	}
	refs, _, err := decodeRun(input, int(header.RefsOffset))
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}

	encodedWidth := int(header.EncodedWidth)
	encodedHeight := int(header.EncodedHeight)

	// The packed payload occupies [FrameHeaderSize, payloadEnd): the
	// side-channel runs follow it, so a block reaching past the first
	// run offset means the payload was cut short.
	payloadEnd := len(input)
	if int(header.BitsOffset) < payloadEnd {
		payloadEnd = int(header.BitsOffset)
	}
	if int(header.RefsOffset) < payloadEnd {
		payloadEnd = int(header.RefsOffset)
	}

	raster := make([]uint16, width*height)
	rows := [4][]uint16{
		make([]uint16, encodedWidth),
		make([]uint16, encodedWidth),
		make([]uint16, encodedWidth),
		make([]uint16, encodedWidth),
	}

	var blocks [4][BlockSamples]uint16
	offset := FrameHeaderSize
	metaIndex := 0
	written := 0

	for y := 0; y < encodedHeight && y < height; y += 4 {
		for x := 0; x < encodedWidth; x += BlockSamples {
			if metaIndex+4 > len(bits) || metaIndex+4 > len(refs) {
				return nil, fmt.Errorf("side channels exhausted at block %d: %w", metaIndex, ErrTruncated)
			}
			for b := 0; b < 4; b++ {
				w := bits[metaIndex+b]
				if w > MaxBits {
					return nil, fmt.Errorf("block %d declares width %d: %w", metaIndex+b, w, ErrBadBitWidth)
				}
				if offset+BlockBytes(w) > payloadEnd {
					return nil, fmt.Errorf("payload block %d truncated at offset %d: %w",
						metaIndex+b, offset, ErrTruncated)
				}
				offset += DecodeBlock(&blocks[b], w, input, offset)
			}
			r0, r1, r2, r3 := refs[metaIndex], refs[metaIndex+1], refs[metaIndex+2], refs[metaIndex+3]

			for i := 0; i < BlockSamples; i += 2 {
				xi := x + i
				rows[0][xi] = blocks[0][i/2] + r0
				rows[0][xi+1] = blocks[1][i/2] + r1
				rows[1][xi] = blocks[2][i/2] + r2
				rows[1][xi+1] = blocks[3][i/2] + r3
				rows[2][xi] = blocks[0][BlockSamples/2+i/2] + r0
				rows[2][xi+1] = blocks[1][BlockSamples/2+i/2] + r1
				rows[3][xi] = blocks[2][BlockSamples/2+i/2] + r2
				rows[3][xi+1] = blocks[3][BlockSamples/2+i/2] + r3
			}
			metaIndex += 4
		}

		// Crop each assembled row to the requested width. Partial
		// final groups stop at the requested height.
		for r := 0; r < 4 && y+r < height; r++ {
			copy(raster[(y+r)*width:(y+r+1)*width], rows[r][:width])
			written += width
		}
	}

	if written != width*height {
		return nil, fmt.Errorf("decoded %d of %d samples: %w", written, width*height, ErrTruncated)
	}
	return raster, nil
}
