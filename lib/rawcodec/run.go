// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rawcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Decode error kinds. Callers match with errors.Is; the filesystem
// boundary maps all of them to EIO.
var (
	// ErrTruncated indicates the stream ended inside a header or
	// declared payload.
	ErrTruncated = errors.New("rawcodec: truncated stream")

	// ErrBadFrameHeader indicates a frame header with out-of-range
	// offsets or an unsupported encoded width.
	ErrBadFrameHeader = errors.New("rawcodec: bad frame header")

	// ErrBadBitWidth indicates a per-block bit width above MaxBits,
	// which can only come from corrupt run data.
	ErrBadBitWidth = errors.New("rawcodec: bad bit width")
)

// runHeaderSize is the inline header preceding each run block: a
// 4-bit width field and a 12-bit reference value.
const runHeaderSize = 2

// decodeRun parses one compressed side-channel stream ("run") from
// input starting at offset. The stream begins with a little-endian
// 32-bit sample count; the body is a sequence of blocks, each with a
// 2-byte inline header, decoded via DecodeBlock with the header's
// 12-bit reference added to every sample.
//
// Returns the decoded samples and the offset one past the last byte
// consumed.
func decodeRun(input []byte, offset int) ([]uint16, int, error) {
	if offset < 0 || offset+4 > len(input) {
		return nil, 0, fmt.Errorf("reading run length at offset %d: %w", offset, ErrTruncated)
	}
	count := int(binary.LittleEndian.Uint32(input[offset:]))
	offset += 4

	// The count is untrusted. Every block consumes at least its 2-byte
	// inline header, so a stream too short to hold that many headers is
	// corrupt; reject it before sizing any allocation from the count.
	blockCount := (count + BlockSamples - 1) / BlockSamples
	if blockCount*runHeaderSize > len(input)-offset {
		return nil, 0, fmt.Errorf("run declares %d samples but only %d bytes remain: %w",
			count, len(input)-offset, ErrTruncated)
	}

	// Rounded up to whole blocks: the final block always produces 64
	// samples even when the declared count is not a multiple of 64.
	values := make([]uint16, blockCount*BlockSamples)

	var block [BlockSamples]uint16
	for i := 0; i < count; i += BlockSamples {
		if offset+runHeaderSize > len(input) {
			return nil, 0, fmt.Errorf("reading run block header at offset %d: %w", offset, ErrTruncated)
		}
		bits := uint16(input[offset] >> 4)
		reference := (uint16(input[offset]&0x0F) << 8) | uint16(input[offset+1])
		offset += runHeaderSize

		block = [BlockSamples]uint16{}
		offset += DecodeBlock(&block, bits, input, offset)

		out := values[i : i+BlockSamples]
		for j := range out {
			out[j] = block[j] + reference
		}
	}

	return values[:count], offset, nil
}
