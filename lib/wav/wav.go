// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wav renders a container's audio track as one 16-bit PCM
// RIFF/WAVE file. The track is built once at container load time and
// served from memory afterwards.
package wav

import (
	"encoding/binary"
	"fmt"
)

const (
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// Encode builds a complete WAV file from interleaved samples. For
// stereo, alternating samples are de-interleaved into channels 0 and
// 1 and a trailing unpaired sample is dropped; for mono every sample
// lands in channel 0.
func Encode(samples []int16, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("wav: unsupported channel count %d", channels)
	}

	// Split into per-channel tracks, then write frames channel by
	// channel. For stereo input the two steps cancel out, but the
	// split is what drops an unpaired trailing sample.
	tracks := make([][]int16, channels)
	if channels == 2 {
		pairs := len(samples) / 2
		tracks[0] = make([]int16, 0, pairs)
		tracks[1] = make([]int16, 0, pairs)
		for i := 0; i+1 < len(samples); i += 2 {
			tracks[0] = append(tracks[0], samples[i])
			tracks[1] = append(tracks[1], samples[i+1])
		}
	} else {
		tracks[0] = samples
	}
	frames := len(tracks[0])

	dataBytes := frames * channels * bytesPerSample
	blockAlign := channels * bytesPerSample
	byteRate := sampleRate * blockAlign

	out := make([]byte, 0, 44+dataBytes)
	out = append(out, 'R', 'I', 'F', 'F')
	out = binary.LittleEndian.AppendUint32(out, uint32(36+dataBytes))
	out = append(out, 'W', 'A', 'V', 'E')

	out = append(out, 'f', 'm', 't', ' ')
	out = binary.LittleEndian.AppendUint32(out, 16) // PCM fmt chunk size
	out = binary.LittleEndian.AppendUint16(out, 1)  // PCM format
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, bitsPerSample)

	out = append(out, 'd', 'a', 't', 'a')
	out = binary.LittleEndian.AppendUint32(out, uint32(dataBytes))
	for frame := 0; frame < frames; frame++ {
		for _, track := range tracks {
			out = binary.LittleEndian.AppendUint16(out, uint16(track[frame]))
		}
	}
	return out, nil
}
