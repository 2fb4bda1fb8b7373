// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mcraw

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Writer serializes a container: signature, one metadata chunk, then
// frames and audio in capture order. Used by capture tooling and the
// package tests; the mounter itself never writes containers.
type Writer struct {
	w           io.Writer
	wroteHeader bool
}

// NewWriter creates a container writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) ensureHeader() error {
	if w.wroteHeader {
		return nil
	}
	if _, err := w.w.Write(signature); err != nil {
		return fmt.Errorf("writing signature: %w", err)
	}
	if _, err := w.w.Write([]byte{formatVersion}); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	w.wroteHeader = true
	return nil
}

func (w *Writer) writeChunk(kind chunkType, payload []byte) error {
	if err := w.ensureHeader(); err != nil {
		return err
	}
	header := make([]byte, 5)
	header[0] = byte(kind)
	binary.LittleEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.w.Write(header); err != nil {
		return fmt.Errorf("writing chunk header: %w", err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("writing chunk payload: %w", err)
	}
	return nil
}

// WriteMetadata writes the container-wide calibration chunk. Must be
// called before any frame or audio chunk.
func (w *Writer) WriteMetadata(metadata ContainerMetadata) error {
	document, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding container metadata: %w", err)
	}
	return w.writeChunk(chunkContainerMetadata, document)
}

// WriteFrame writes one frame chunk. encoded is the rawcodec
// bitstream; it is stored zstd-compressed when tag says so.
func (w *Writer) WriteFrame(metadata FrameMetadata, encoded []byte, tag CompressionTag) error {
	document, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding frame metadata: %w", err)
	}

	body := encoded
	if tag == CompressionZstd {
		body = zstdEncoder.EncodeAll(encoded, nil)
	}

	payload := make([]byte, 0, 13+len(document)+len(body))
	payload = binary.LittleEndian.AppendUint64(payload, uint64(metadata.Timestamp))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(document)))
	payload = append(payload, document...)
	payload = append(payload, byte(tag))
	payload = append(payload, body...)
	return w.writeChunk(chunkFrame, payload)
}

// WriteAudioChunk writes one run of interleaved PCM16 samples.
func (w *Writer) WriteAudioChunk(timestamp Timestamp, samples []int16) error {
	payload := make([]byte, 0, 8+2*len(samples))
	payload = binary.LittleEndian.AppendUint64(payload, uint64(timestamp))
	for _, sample := range samples {
		payload = binary.LittleEndian.AppendUint16(payload, uint16(sample))
	}
	return w.writeChunk(chunkAudio, payload)
}
