// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mcraw

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// signature marks the start of every container file. The 0x89 prefix
// and \r\n\x1a\n tail catch text-mode and 7-bit transfer corruption,
// PNG-style.
var signature = []byte{0x89, 'M', 'C', 'R', 'W', 0x0D, 0x0A, 0x1A, 0x0A}

// formatVersion is the container format revision this package reads
// and writes.
const formatVersion uint8 = 0x01

// chunkType identifies the payload kind of one container chunk.
type chunkType uint8

const (
	// chunkContainerMetadata carries the container-wide calibration
	// JSON document. Exactly one per container, before any frame.
	chunkContainerMetadata chunkType = 0x01

	// chunkFrame carries one encoded frame.
	chunkFrame chunkType = 0x02

	// chunkAudio carries one run of interleaved PCM16 samples.
	chunkAudio chunkType = 0x03
)

// CompressionTag identifies how a frame payload is compressed on top
// of the bitstream encoding. Stored as 1 byte in every frame chunk;
// the values are format constants.
type CompressionTag uint8

const (
	// CompressionNone stores the encoded bitstream as-is.
	CompressionNone CompressionTag = 0

	// CompressionZstd wraps the encoded bitstream in a zstd frame.
	CompressionZstd CompressionTag = 1
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// Timestamp is an opaque frame identifier: the capture timestamp in
// nanoseconds. Timestamps are strictly increasing within a container,
// so they order frames and map 1:1 to frame indices.
type Timestamp int64

// ContainerMetadata is the container-wide calibration document. Field
// names match the camera app's JSON keys, including its historical
// misspelling of "sensorArrangment".
type ContainerMetadata struct {
	BlackLevel        []float64 `json:"blackLevel"`
	WhiteLevel        float64   `json:"whiteLevel"`
	SensorArrangement string    `json:"sensorArrangment"`
	ColorMatrix1      []float64 `json:"colorMatrix1"`
	ColorMatrix2      []float64 `json:"colorMatrix2"`
	ForwardMatrix1    []float64 `json:"forwardMatrix1"`
	ForwardMatrix2    []float64 `json:"forwardMatrix2"`
	Orientation       uint16    `json:"orientation"`
	Software          string    `json:"software,omitempty"`

	AudioSampleRate int `json:"audioSampleRate,omitempty"`
	AudioChannels   int `json:"audioChannels,omitempty"`
}

// FrameMetadata is the per-frame metadata document.
type FrameMetadata struct {
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	AsShotNeutral []float64 `json:"asShotNeutral"`
	Timestamp     Timestamp `json:"timestamp"`
}

// AudioChunk is one run of audio samples, interleaved when the
// container has more than one channel.
type AudioChunk struct {
	Timestamp Timestamp
	Samples   []int16
}

// zstdEncoder and zstdDecoder are reused across calls. Both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("mcraw: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("mcraw: zstd decoder initialization failed: " + err.Error())
	}
}
