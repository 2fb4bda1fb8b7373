// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rawcodec

import (
	"errors"
	"math/rand"
	"testing"
)

// randomSamples fills a block with deterministic pseudo-random values
// that fit the given bit width.
func randomSamples(t *testing.T, rng *rand.Rand, width uint16) [BlockSamples]uint16 {
	t.Helper()
	var samples [BlockSamples]uint16
	if width == 0 {
		return samples
	}
	mask := uint32(1)<<width - 1
	for i := range samples {
		samples[i] = uint16(rng.Uint32() & mask)
	}
	return samples
}

func TestBlockRoundTripAllWidths(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for width := uint16(0); width <= MaxBits; width++ {
		samples := randomSamples(t, rng, width)

		encoded := EncodeBlock(nil, width, &samples)
		if len(encoded) != blockBytes[width] {
			t.Fatalf("width %d: encoded %d bytes, want %d", width, len(encoded), blockBytes[width])
		}

		var decoded [BlockSamples]uint16
		consumed := DecodeBlock(&decoded, width, encoded, 0)
		if consumed != blockBytes[width] {
			t.Fatalf("width %d: consumed %d bytes, want %d", width, consumed, blockBytes[width])
		}
		if decoded != samples {
			t.Errorf("width %d: round trip mismatch\n got %v\nwant %v", width, decoded, samples)
		}
	}
}

func TestBlockRoundTripWithReference(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for width := uint16(1); width <= MaxBits; width++ {
		samples := randomSamples(t, rng, width)
		encoded := EncodeBlock(nil, width, &samples)

		var decoded [BlockSamples]uint16
		DecodeBlock(&decoded, width, encoded, 0)

		// Reference addition wraps at 16 bits, matching the
		// camera encoder's arithmetic.
		reference := uint16(0xFFF0)
		for i := range decoded {
			got := decoded[i] + reference
			want := samples[i] + reference
			if got != want {
				t.Fatalf("width %d sample %d: %d + ref = %d, want %d",
					width, i, decoded[i], got, want)
			}
		}
	}
}

func TestBlockWidth2CyclingValues(t *testing.T) {
	var samples [BlockSamples]uint16
	for i := range samples {
		samples[i] = uint16(i % 4)
	}

	encoded := EncodeBlock(nil, 2, &samples)
	if len(encoded) != 16 {
		t.Fatalf("encoded %d bytes, want 16", len(encoded))
	}

	var decoded [BlockSamples]uint16
	consumed := DecodeBlock(&decoded, 2, encoded, 0)
	if consumed != 16 {
		t.Fatalf("consumed %d bytes, want 16", consumed)
	}

	reference := uint16(10)
	for i := range decoded {
		want := uint16(10 + i%4)
		if decoded[i]+reference != want {
			t.Errorf("sample %d: got %d, want %d", i, decoded[i]+reference, want)
		}
	}
}

func TestBlockZeroWidth(t *testing.T) {
	decoded := [BlockSamples]uint16{1: 7, 63: 9}
	consumed := DecodeBlock(&decoded, 0, nil, 0)
	if consumed != 0 {
		t.Fatalf("consumed %d bytes, want 0", consumed)
	}
	for i, v := range decoded {
		if v != 0 {
			t.Fatalf("sample %d = %d, want 0", i, v)
		}
	}
}

func TestBlockTruncatedBuffer(t *testing.T) {
	// A width-4 block needs 32 bytes; only 10 remain past the
	// offset. The decoder must report the shortfall as consumed and
	// leave the output untouched.
	input := make([]byte, 15)
	var decoded [BlockSamples]uint16
	for i := range decoded {
		decoded[i] = 0xBEEF
	}

	consumed := DecodeBlock(&decoded, 4, input, 5)
	if consumed != 10 {
		t.Fatalf("consumed %d bytes, want 10", consumed)
	}
	for i, v := range decoded {
		if v != 0xBEEF {
			t.Fatalf("sample %d = %#x, want untouched sentinel", i, v)
		}
	}
}

func TestBlockDecodeDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	samples := randomSamples(t, rng, 10)
	encoded := EncodeBlock(nil, 10, &samples)

	var first, second [BlockSamples]uint16
	DecodeBlock(&first, 10, encoded, 0)
	DecodeBlock(&second, 10, encoded, 0)
	if first != second {
		t.Error("identical input decoded differently")
	}
}

func TestBlockOverflowBitLayouts(t *testing.T) {
	// The non-power-of-two widths route overflow bits from trailing
	// lanes into specific output rows. Exercise each width with
	// values that set every bit position.
	for _, width := range []uint16{3, 5, 6, 9, 10} {
		var samples [BlockSamples]uint16
		maxValue := uint16(1)<<width - 1
		for i := range samples {
			// Alternate between the extremes and a walking bit.
			switch i % 3 {
			case 0:
				samples[i] = maxValue
			case 1:
				samples[i] = uint16(1) << (i % int(width))
			default:
				samples[i] = 0
			}
		}

		encoded := EncodeBlock(nil, width, &samples)
		var decoded [BlockSamples]uint16
		DecodeBlock(&decoded, width, encoded, 0)
		if decoded != samples {
			t.Errorf("width %d: overflow bit layout mismatch\n got %v\nwant %v",
				width, decoded, samples)
		}
	}
}

func TestRunRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	for _, count := range []int{64, 128, 1024} {
		values := make([]uint16, count)
		for i := range values {
			values[i] = uint16(rng.Uint32() & 0x0FFF)
		}

		encoded, err := encodeRun(nil, values)
		if err != nil {
			t.Fatalf("count %d: encodeRun: %v", count, err)
		}
		decoded, end, err := decodeRun(encoded, 0)
		if err != nil {
			t.Fatalf("count %d: decodeRun: %v", count, err)
		}
		if end != len(encoded) {
			t.Errorf("count %d: consumed %d of %d bytes", count, end, len(encoded))
		}
		if !equalU16(decoded, values) {
			t.Errorf("count %d: round trip mismatch", count)
		}
	}
}

func TestRunRoundTripWideValues(t *testing.T) {
	// Values well above the 12-bit inline reference still round trip:
	// the residual payload carries the rest at up to 15 bits.
	rng := rand.New(rand.NewSource(5))
	values := make([]uint16, 256)
	for i := range values {
		values[i] = uint16(rng.Uint32() & 0x7FFF)
	}

	encoded, err := encodeRun(nil, values)
	if err != nil {
		t.Fatalf("encodeRun: %v", err)
	}
	decoded, _, err := decodeRun(encoded, 0)
	if err != nil {
		t.Fatalf("decodeRun: %v", err)
	}
	if !equalU16(decoded, values) {
		t.Error("wide-value round trip mismatch")
	}
}

func TestRunRejectsUnrepresentableSpan(t *testing.T) {
	// A block holding both 0 and 0xFFFF cannot fit any 12-bit
	// reference plus 15-bit residual window.
	values := make([]uint16, 64)
	values[0] = 0xFFFF
	if _, err := encodeRun(nil, values); err == nil {
		t.Error("encoded a block spanning more than the format can represent")
	}
}

func TestRunRejectsOversizedCount(t *testing.T) {
	// A corrupt length prefix must fail the remaining-bytes check, not
	// drive a multi-gigabyte allocation sized from untrusted input.
	input := []byte{0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x00}
	if _, _, err := decodeRun(input, 0); !errors.Is(err, ErrTruncated) {
		t.Errorf("decodeRun error = %v, want %v", err, ErrTruncated)
	}
}

func TestRunTruncatedHeader(t *testing.T) {
	values := make([]uint16, 64)
	encoded, err := encodeRun(nil, values)
	if err != nil {
		t.Fatalf("encodeRun: %v", err)
	}

	if _, _, err := decodeRun(encoded[:3], 0); err == nil {
		t.Error("expected error for truncated length prefix")
	}
	if _, _, err := decodeRun(encoded[:5], 0); err == nil {
		t.Error("expected error for truncated block header")
	}
	if _, _, err := decodeRun(encoded, len(encoded)); err == nil {
		t.Error("expected error for offset at end of buffer")
	}
}

func TestRunDecodeDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	values := make([]uint16, 320)
	for i := range values {
		values[i] = uint16(rng.Uint32() & 0x3FF)
	}
	encoded, err := encodeRun(nil, values)
	if err != nil {
		t.Fatalf("encodeRun: %v", err)
	}

	first, _, err := decodeRun(encoded, 0)
	if err != nil {
		t.Fatalf("decodeRun: %v", err)
	}
	second, _, err := decodeRun(encoded, 0)
	if err != nil {
		t.Fatalf("decodeRun: %v", err)
	}
	if !equalU16(first, second) {
		t.Error("identical run decoded differently")
	}
}

func equalU16(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Guard against accidental edits to the consumption table: it is a
// protocol constant.
func TestBlockBytesTable(t *testing.T) {
	want := []int{0, 8, 16, 24, 32, 40, 48, 64, 64, 80, 80, 128, 128, 128, 128, 128, 128}
	for bits, size := range want {
		if BlockBytes(uint16(bits)) != size {
			t.Errorf("BlockBytes(%d) = %d, want %d", bits, BlockBytes(uint16(bits)), size)
		}
	}
}
