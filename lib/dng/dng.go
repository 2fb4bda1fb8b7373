// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dng packages a decoded Bayer mosaic raster as a
// self-contained DNG file: a little-endian TIFF with a single IFD,
// one uncompressed strip of 16-bit CFA samples, and the calibration
// tags raw converters need to render the mosaic.
package dng

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// TIFF field types used by this writer.
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSRational = 10
)

// Image is one frame ready for packaging. Samples are row-major
// 16-bit CFA mosaic values.
type Image struct {
	Width   int
	Height  int
	Samples []uint16

	// CFAPattern is the 2x2 repeating color pattern, row-major,
	// with 0=red, 1=green, 2=blue.
	CFAPattern [4]uint8

	BlackLevel []uint16
	WhiteLevel uint32

	// ColorMatrix1/2 and ForwardMatrix1/2 are 3x3 row-major
	// matrices from the container calibration.
	ColorMatrix1   []float64
	ColorMatrix2   []float64
	ForwardMatrix1 []float64
	ForwardMatrix2 []float64

	// AsShotNeutral is the per-frame white balance triple.
	AsShotNeutral []float64

	// Orientation is the EXIF orientation, or 0 to omit the tag.
	Orientation uint16

	// Software names the producing application, or empty to omit.
	Software string
}

// CFAPatternFor maps a 4-letter sensor arrangement code to its DNG
// CFA pattern. Unrecognized codes fall back to the rggb mapping.
func CFAPatternFor(sensorArrangement string) [4]uint8 {
	switch sensorArrangement {
	case "bggr":
		return [4]uint8{2, 1, 1, 0}
	case "grbg":
		return [4]uint8{1, 0, 2, 1}
	case "gbrg":
		return [4]uint8{1, 2, 0, 1}
	default: // rggb and anything unrecognized
		return [4]uint8{0, 1, 1, 2}
	}
}

// entry is one IFD entry plus its encoded value bytes.
type entry struct {
	tag       uint16
	fieldType uint16
	count     uint32
	value     []byte
}

type builder struct {
	entries []entry
}

func (b *builder) add(tag, fieldType uint16, count uint32, value []byte) {
	b.entries = append(b.entries, entry{tag: tag, fieldType: fieldType, count: count, value: value})
}

func (b *builder) addShort(tag uint16, values ...uint16) {
	value := make([]byte, 0, 2*len(values))
	for _, v := range values {
		value = binary.LittleEndian.AppendUint16(value, v)
	}
	b.add(tag, typeShort, uint32(len(values)), value)
}

func (b *builder) addLong(tag uint16, values ...uint32) {
	value := make([]byte, 0, 4*len(values))
	for _, v := range values {
		value = binary.LittleEndian.AppendUint32(value, v)
	}
	b.add(tag, typeLong, uint32(len(values)), value)
}

func (b *builder) addBytes(tag uint16, values ...uint8) {
	b.add(tag, typeByte, uint32(len(values)), values)
}

func (b *builder) addASCII(tag uint16, s string) {
	value := append([]byte(s), 0)
	b.add(tag, typeASCII, uint32(len(value)), value)
}

// rationalDenominator fixes the precision of float-derived rational
// tags. One part per million is far below calibration accuracy.
const rationalDenominator = 1000000

func (b *builder) addRationals(tag uint16, values []float64) {
	value := make([]byte, 0, 8*len(values))
	for _, v := range values {
		value = binary.LittleEndian.AppendUint32(value, uint32(math.Round(v*rationalDenominator)))
		value = binary.LittleEndian.AppendUint32(value, rationalDenominator)
	}
	b.add(tag, typeRational, uint32(len(values)), value)
}

func (b *builder) addSRationals(tag uint16, values []float64) {
	value := make([]byte, 0, 8*len(values))
	for _, v := range values {
		value = binary.LittleEndian.AppendUint32(value, uint32(int32(math.Round(v*rationalDenominator))))
		value = binary.LittleEndian.AppendUint32(value, rationalDenominator)
	}
	b.add(tag, typeSRational, uint32(len(values)), value)
}

// TIFF tag numbers.
const (
	tagNewSubfileType       = 254
	tagImageWidth           = 256
	tagImageLength          = 257
	tagBitsPerSample        = 258
	tagCompression          = 259
	tagPhotometric          = 262
	tagStripOffsets         = 273
	tagOrientation          = 274
	tagSamplesPerPixel      = 277
	tagRowsPerStrip         = 278
	tagStripByteCounts      = 279
	tagPlanarConfig         = 284
	tagSoftware             = 305
	tagCFARepeatPatternDim  = 33421
	tagCFAPattern           = 33422
	tagDNGVersion           = 50706
	tagDNGBackwardVersion   = 50707
	tagUniqueCameraModel    = 50708
	tagCFALayout            = 50711
	tagBlackLevelRepeatDim  = 50713
	tagBlackLevel           = 50714
	tagWhiteLevel           = 50717
	tagColorMatrix1         = 50721
	tagColorMatrix2         = 50722
	tagAsShotNeutral        = 50728
	tagCalibrationIllum1    = 50778
	tagCalibrationIllum2    = 50779
	tagActiveArea           = 50829
	tagForwardMatrix1       = 50964
	tagForwardMatrix2       = 50965
	photometricCFA          = 32803
	compressionNone         = 1
	illuminantD65           = 21
	illuminantStandardLight = 17
)

// Encode packages image as a complete DNG file.
func Encode(image Image) ([]byte, error) {
	if image.Width <= 0 || image.Height <= 0 {
		return nil, fmt.Errorf("dng: invalid dimensions %dx%d", image.Width, image.Height)
	}
	if len(image.Samples) != image.Width*image.Height {
		return nil, fmt.Errorf("dng: raster has %d samples, want %d",
			len(image.Samples), image.Width*image.Height)
	}
	for name, matrix := range map[string][]float64{
		"ColorMatrix1":   image.ColorMatrix1,
		"ColorMatrix2":   image.ColorMatrix2,
		"ForwardMatrix1": image.ForwardMatrix1,
		"ForwardMatrix2": image.ForwardMatrix2,
	} {
		if len(matrix) != 9 {
			return nil, fmt.Errorf("dng: %s has %d elements, want 9", name, len(matrix))
		}
	}
	if len(image.AsShotNeutral) != 3 {
		return nil, fmt.Errorf("dng: AsShotNeutral has %d elements, want 3", len(image.AsShotNeutral))
	}
	if len(image.BlackLevel) == 0 {
		return nil, fmt.Errorf("dng: BlackLevel is empty")
	}

	stripBytes := uint32(2 * len(image.Samples))

	b := &builder{}
	b.addLong(tagNewSubfileType, 0)
	b.addLong(tagImageWidth, uint32(image.Width))
	b.addLong(tagImageLength, uint32(image.Height))
	b.addShort(tagBitsPerSample, 16)
	b.addShort(tagCompression, compressionNone)
	b.addShort(tagPhotometric, photometricCFA)
	b.addLong(tagStripOffsets, 0) // patched once the layout is known
	if image.Orientation != 0 {
		b.addShort(tagOrientation, image.Orientation)
	}
	b.addShort(tagSamplesPerPixel, 1)
	b.addLong(tagRowsPerStrip, uint32(image.Height))
	b.addLong(tagStripByteCounts, stripBytes)
	b.addShort(tagPlanarConfig, 1)
	if image.Software != "" {
		b.addASCII(tagSoftware, image.Software)
	}
	b.addShort(tagCFARepeatPatternDim, 2, 2)
	b.addBytes(tagCFAPattern, image.CFAPattern[:]...)
	b.addBytes(tagDNGVersion, 1, 4, 0, 0)
	b.addBytes(tagDNGBackwardVersion, 1, 1, 0, 0)
	b.addASCII(tagUniqueCameraModel, "MotionCam")
	b.addShort(tagCFALayout, 1)
	b.addShort(tagBlackLevelRepeatDim, 2, 2)
	b.addShort(tagBlackLevel, image.BlackLevel...)
	b.addLong(tagWhiteLevel, image.WhiteLevel)
	b.addSRationals(tagColorMatrix1, image.ColorMatrix1)
	b.addSRationals(tagColorMatrix2, image.ColorMatrix2)
	b.addRationals(tagAsShotNeutral, image.AsShotNeutral)
	b.addShort(tagCalibrationIllum1, illuminantD65)
	b.addShort(tagCalibrationIllum2, illuminantStandardLight)
	b.addLong(tagActiveArea, 0, 0, uint32(image.Height), uint32(image.Width))
	b.addSRationals(tagForwardMatrix1, image.ForwardMatrix1)
	b.addSRationals(tagForwardMatrix2, image.ForwardMatrix2)

	return b.serialize(image.Samples, stripBytes)
}

// serialize lays out header, IFD, out-of-line values, and the sample
// strip, patching the strip offset once known.
func (b *builder) serialize(samples []uint16, stripBytes uint32) ([]byte, error) {
	// IFD entries must be sorted by tag.
	sort.Slice(b.entries, func(i, j int) bool { return b.entries[i].tag < b.entries[j].tag })

	const headerSize = 8
	ifdSize := 2 + 12*len(b.entries) + 4

	// Out-of-line value area directly after the IFD.
	valueOffset := headerSize + ifdSize
	valueSize := 0
	for _, e := range b.entries {
		if len(e.value) > 4 {
			valueSize += len(e.value)
			if valueSize%2 != 0 {
				valueSize++ // keep offsets word-aligned
			}
		}
	}
	stripOffset := uint32(valueOffset + valueSize)

	out := make([]byte, 0, int(stripOffset)+int(stripBytes))
	out = append(out, 'I', 'I', 42, 0)
	out = binary.LittleEndian.AppendUint32(out, headerSize) // first IFD offset

	out = binary.LittleEndian.AppendUint16(out, uint16(len(b.entries)))
	overflow := make([]byte, 0, valueSize)
	for _, e := range b.entries {
		out = binary.LittleEndian.AppendUint16(out, e.tag)
		out = binary.LittleEndian.AppendUint16(out, e.fieldType)
		out = binary.LittleEndian.AppendUint32(out, e.count)

		value := e.value
		if e.tag == tagStripOffsets {
			value = binary.LittleEndian.AppendUint32(nil, stripOffset)
		}
		if len(value) <= 4 {
			var inline [4]byte
			copy(inline[:], value)
			out = append(out, inline[:]...)
		} else {
			out = binary.LittleEndian.AppendUint32(out, uint32(valueOffset+len(overflow)))
			overflow = append(overflow, value...)
			if len(overflow)%2 != 0 {
				overflow = append(overflow, 0)
			}
		}
	}
	out = binary.LittleEndian.AppendUint32(out, 0) // no next IFD
	out = append(out, overflow...)

	for _, sample := range samples {
		out = binary.LittleEndian.AppendUint16(out, sample)
	}

	if uint32(len(out)) != stripOffset+stripBytes {
		return nil, fmt.Errorf("dng: layout error, wrote %d bytes, expected %d",
			len(out), stripOffset+stripBytes)
	}
	return out, nil
}
