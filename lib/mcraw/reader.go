// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mcraw

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrFrameNotFound is returned by LoadFrame for a timestamp the
// container does not hold.
var ErrFrameNotFound = errors.New("mcraw: frame not found")

// frameEntry locates one frame's chunks inside the container buffer.
type frameEntry struct {
	timestamp Timestamp
	metadata  FrameMetadata
	tag       CompressionTag

	// payload is the (possibly compressed) encoded bitstream,
	// sliced from the container buffer.
	payload []byte
}

// Reader provides access to one opened container. The whole file is
// held in memory: frame materialization reads only the already-loaded
// buffer, never the disk. A Reader is safe for concurrent use once
// opened — all state is immutable after Open.
type Reader struct {
	metadata ContainerMetadata
	frames   []frameEntry
	byStamp  map[Timestamp]int
	audio    []AudioChunk
}

// Open reads and indexes a container file. All chunk boundaries and
// both JSON documents are validated up front; frame payloads are
// decompressed lazily in LoadFrame.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading container: %w", err)
	}
	reader, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing container %s: %w", path, err)
	}
	return reader, nil
}

func parse(data []byte) (*Reader, error) {
	if len(data) < len(signature)+1 || !bytes.Equal(data[:len(signature)], signature) {
		return nil, fmt.Errorf("not a MotionCam raw container")
	}
	if version := data[len(signature)]; version != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", version)
	}

	reader := &Reader{byStamp: make(map[Timestamp]int)}
	sawMetadata := false

	offset := len(signature) + 1
	for offset < len(data) {
		if offset+5 > len(data) {
			return nil, fmt.Errorf("truncated chunk header at offset %d", offset)
		}
		kind := chunkType(data[offset])
		length := int(binary.LittleEndian.Uint32(data[offset+1:]))
		offset += 5
		if offset+length > len(data) {
			return nil, fmt.Errorf("chunk at offset %d declares %d bytes past end of file", offset-5, length)
		}
		payload := data[offset : offset+length]
		offset += length

		switch kind {
		case chunkContainerMetadata:
			if err := json.Unmarshal(payload, &reader.metadata); err != nil {
				return nil, fmt.Errorf("container metadata: %w", err)
			}
			sawMetadata = true

		case chunkFrame:
			entry, err := parseFrame(payload)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", len(reader.frames), err)
			}
			reader.byStamp[entry.timestamp] = len(reader.frames)
			reader.frames = append(reader.frames, entry)

		case chunkAudio:
			chunk, err := parseAudio(payload)
			if err != nil {
				return nil, fmt.Errorf("audio chunk %d: %w", len(reader.audio), err)
			}
			reader.audio = append(reader.audio, chunk)

		default:
			// Unknown chunk types are skipped: newer writers may
			// add kinds this reader predates.
		}
	}

	if !sawMetadata {
		return nil, fmt.Errorf("container has no metadata chunk")
	}
	return reader, nil
}

func parseFrame(payload []byte) (frameEntry, error) {
	if len(payload) < 13 {
		return frameEntry{}, fmt.Errorf("frame chunk of %d bytes is too short", len(payload))
	}
	timestamp := Timestamp(binary.LittleEndian.Uint64(payload))
	metadataLen := int(binary.LittleEndian.Uint32(payload[8:]))
	if 13+metadataLen > len(payload) {
		return frameEntry{}, fmt.Errorf("frame metadata of %d bytes overruns chunk", metadataLen)
	}

	var metadata FrameMetadata
	if err := json.Unmarshal(payload[12:12+metadataLen], &metadata); err != nil {
		return frameEntry{}, fmt.Errorf("frame metadata: %w", err)
	}

	tag := CompressionTag(payload[12+metadataLen])
	if tag != CompressionNone && tag != CompressionZstd {
		return frameEntry{}, fmt.Errorf("unsupported compression tag %d", tag)
	}

	return frameEntry{
		timestamp: timestamp,
		metadata:  metadata,
		tag:       tag,
		payload:   payload[13+metadataLen:],
	}, nil
}

func parseAudio(payload []byte) (AudioChunk, error) {
	if len(payload) < 8 {
		return AudioChunk{}, fmt.Errorf("audio chunk of %d bytes is too short", len(payload))
	}
	body := payload[8:]
	if len(body)%2 != 0 {
		return AudioChunk{}, fmt.Errorf("audio body of %d bytes is not sample-aligned", len(body))
	}

	samples := make([]int16, len(body)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(body[2*i:]))
	}
	return AudioChunk{
		Timestamp: Timestamp(binary.LittleEndian.Uint64(payload)),
		Samples:   samples,
	}, nil
}

// Metadata returns the container-wide calibration document.
func (r *Reader) Metadata() ContainerMetadata {
	return r.metadata
}

// Frames returns the ordered frame identifiers.
func (r *Reader) Frames() []Timestamp {
	stamps := make([]Timestamp, len(r.frames))
	for i, entry := range r.frames {
		stamps[i] = entry.timestamp
	}
	return stamps
}

// LoadFrame returns the raw encoded sample bytes and metadata of the
// frame with the given identifier, decompressing the payload if
// needed.
func (r *Reader) LoadFrame(timestamp Timestamp) ([]byte, FrameMetadata, error) {
	index, ok := r.byStamp[timestamp]
	if !ok {
		return nil, FrameMetadata{}, fmt.Errorf("timestamp %d: %w", timestamp, ErrFrameNotFound)
	}
	entry := r.frames[index]

	switch entry.tag {
	case CompressionZstd:
		decompressed, err := zstdDecoder.DecodeAll(entry.payload, nil)
		if err != nil {
			return nil, FrameMetadata{}, fmt.Errorf("decompressing frame %d: %w", index, err)
		}
		return decompressed, entry.metadata, nil
	default:
		return entry.payload, entry.metadata, nil
	}
}

// LoadAudio returns all audio chunks in capture order.
func (r *Reader) LoadAudio() []AudioChunk {
	return r.audio
}

// AudioSampleRate returns the audio sample rate in Hz, or 0 when the
// container has no audio.
func (r *Reader) AudioSampleRate() int {
	return r.metadata.AudioSampleRate
}

// AudioChannels returns the audio channel count, or 0 when the
// container has no audio.
func (r *Reader) AudioChannels() int {
	return r.metadata.AudioChannels
}
