// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rawfs

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/mcrawfs/lib/mcraw"
	"github.com/bureau-foundation/mcrawfs/lib/rawcodec"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	testFrameWidth  = 64
	testFrameHeight = 4
)

// testFrameSamples builds a distinct raster per frame index.
func testFrameSamples(index int) []uint16 {
	samples := make([]uint16, testFrameWidth*testFrameHeight)
	for i := range samples {
		samples[i] = uint16((i*7 + index*131) & 0x03FF)
	}
	return samples
}

// writeTestContainer synthesizes a container file with the given
// number of frames and, optionally, a stereo audio track.
func writeTestContainer(t *testing.T, path string, frames int, withAudio bool) {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer file.Close()

	writer := mcraw.NewWriter(file)
	metadata := mcraw.ContainerMetadata{
		BlackLevel:        []float64{64, 64, 64, 64},
		WhiteLevel:        1023,
		SensorArrangement: "rggb",
		ColorMatrix1:      []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		ColorMatrix2:      []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		ForwardMatrix1:    []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		ForwardMatrix2:    []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		Orientation:       1,
		Software:          "mcrawfs-test",
	}
	if withAudio {
		metadata.AudioSampleRate = 48000
		metadata.AudioChannels = 2
	}
	if err := writer.WriteMetadata(metadata); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	for i := 0; i < frames; i++ {
		encoded, err := rawcodec.EncodeFrame(testFrameSamples(i), testFrameWidth, testFrameHeight)
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		frame := mcraw.FrameMetadata{
			Width:         testFrameWidth,
			Height:        testFrameHeight,
			AsShotNeutral: []float64{0.5, 1, 0.6},
			Timestamp:     mcraw.Timestamp(1000 + i),
		}
		if err := writer.WriteFrame(frame, encoded, mcraw.CompressionZstd); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	if withAudio {
		if err := writer.WriteAudioChunk(1000, []int16{10, -10, 20, -20}); err != nil {
			t.Fatalf("WriteAudioChunk: %v", err)
		}
		if err := writer.WriteAudioChunk(2000, []int16{30, -30}); err != nil {
			t.Fatalf("WriteAudioChunk: %v", err)
		}
	}
}

func loadTestContainer(t *testing.T, frames int, withAudio bool) *Container {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mcraw")
	writeTestContainer(t, path, frames, withAudio)
	container, err := Load(path, 0, testLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return container
}

func TestLoadEnumeratesFrames(t *testing.T) {
	container := loadTestContainer(t, 3, false)

	if container.Name != "clip" {
		t.Errorf("name = %q, want %q", container.Name, "clip")
	}

	filenames := container.FrameFilenames()
	want := []string{"clip_000000.dng", "clip_000001.dng", "clip_000002.dng"}
	if len(filenames) != len(want) {
		t.Fatalf("filenames = %v", filenames)
	}
	for i, name := range want {
		if filenames[i] != name {
			t.Errorf("filename %d = %q, want %q", i, filenames[i], name)
		}
		if !container.IsFrame(name) {
			t.Errorf("IsFrame(%q) = false", name)
		}
	}
	if container.IsFrame("clip_000003.dng") {
		t.Error("IsFrame accepted an out-of-range frame")
	}
}

func TestLoadWarmsFirstFrame(t *testing.T) {
	container := loadTestContainer(t, 2, false)

	// The load itself must have materialized frame 0 so that size is
	// known without any read.
	if container.FrameSize() == 0 {
		t.Fatal("frame size unknown after load")
	}

	data, err := container.FrameData("clip_000000.dng")
	if err != nil {
		t.Fatalf("FrameData: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{'I', 'I', 42, 0}) {
		t.Errorf("frame does not start with a TIFF header: % x", data[:4])
	}
	if int64(len(data)) != container.FrameSize() {
		t.Errorf("frame is %d bytes, FrameSize reports %d", len(data), container.FrameSize())
	}
}

func TestFrameSizeSharedAcrossFrames(t *testing.T) {
	container := loadTestContainer(t, 3, false)

	first, err := container.FrameData("clip_000000.dng")
	if err != nil {
		t.Fatalf("FrameData: %v", err)
	}
	second, err := container.FrameData("clip_000002.dng")
	if err != nil {
		t.Fatalf("FrameData: %v", err)
	}
	if len(first) != len(second) {
		t.Errorf("frame sizes differ: %d against %d", len(first), len(second))
	}
	if bytes.Equal(first, second) {
		t.Error("distinct frames produced identical files")
	}
}

func TestFrameDataUnknownName(t *testing.T) {
	container := loadTestContainer(t, 1, false)
	_, err := container.FrameData("nope.dng")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}

func TestAudioRendering(t *testing.T) {
	container := loadTestContainer(t, 1, true)

	blob, name := container.Audio()
	if blob == nil {
		t.Fatal("no audio rendered")
	}
	if name != "clip.wav" {
		t.Errorf("audio name = %q", name)
	}
	if !bytes.HasPrefix(blob, []byte("RIFF")) {
		t.Errorf("audio does not start with RIFF: % x", blob[:4])
	}
	// Three stereo frames at 4 bytes each on a 44-byte header.
	if len(blob) != 44+12 {
		t.Errorf("audio blob = %d bytes, want %d", len(blob), 44+12)
	}
}

func TestNoAudio(t *testing.T) {
	container := loadTestContainer(t, 1, false)
	if blob, _ := container.Audio(); blob != nil {
		t.Errorf("unexpected audio blob of %d bytes", len(blob))
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTestContainer(t, filepath.Join(dir, "b.mcraw"), 1, false)
	writeTestContainer(t, filepath.Join(dir, "a.mcraw"), 2, true)
	if err := os.WriteFile(filepath.Join(dir, "broken.mcraw"), []byte("not a container"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	containers, err := LoadDirectory(dir, 0, testLogger())
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if len(containers) != 2 {
		t.Fatalf("loaded %d containers, want 2", len(containers))
	}
	if containers[0].Name != "a" || containers[1].Name != "b" {
		t.Errorf("containers = %q, %q", containers[0].Name, containers[1].Name)
	}
}

func TestLoadDirectoryAllBroken(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.mcraw"), []byte("junk"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadDirectory(dir, 0, testLogger()); err == nil {
		t.Error("expected error for directory with no loadable containers")
	}
}

func TestLoadDirectoryEmpty(t *testing.T) {
	if _, err := LoadDirectory(t.TempDir(), 0, testLogger()); err == nil {
		t.Error("expected error for empty directory")
	}
}
