// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcraw reads and writes MotionCam raw container files.
//
// A container is a signature header followed by a flat sequence of
// typed chunks:
//
//	signature (9 bytes) | format version (1 byte) | chunk*
//	chunk = type (1 byte) | payload length (4 bytes LE) | payload
//
// Chunk types: container metadata (one JSON document describing the
// sensor calibration and audio parameters), frames (timestamp, frame
// metadata JSON, compression tag, encoded sample payload), and audio
// (timestamp plus interleaved signed 16-bit samples). Frames appear
// in capture order; their timestamps are the container's opaque frame
// identifiers.
//
// The encoded sample payload of a frame is the variable-bit-width
// bitstream decoded by package rawcodec. Payloads may additionally be
// zstd-compressed; the per-frame compression tag says which.
package mcraw
