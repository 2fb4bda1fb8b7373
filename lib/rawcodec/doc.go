// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rawcodec decodes the adaptive variable-bit-width bitstream
// used by MotionCam raw containers into 16-bit Bayer mosaic rasters.
//
// The encoded stream is block-structured: every block carries 64
// samples packed at a single bit width, plus a reference value that is
// added to each sample after unpacking. A frame consists of a 16-byte
// header, the packed sample payload, and two compressed side channels
// (the "runs") holding the per-block bit widths and reference values.
// The runs themselves use the same block scheme with a 2-byte inline
// header per block.
//
// The per-width lane layouts are protocol constants. They mirror the
// camera's NEON encoder: each unpack routine operates on groups of 8
// byte lanes, and the non-power-of-two widths (3, 5, 6) interleave
// overflow bits from trailing lanes into earlier output rows. Changing
// any shift here breaks round-trip compatibility with real footage.
package rawcodec
