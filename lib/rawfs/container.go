// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rawfs

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bureau-foundation/mcrawfs/lib/dng"
	"github.com/bureau-foundation/mcrawfs/lib/framecache"
	"github.com/bureau-foundation/mcrawfs/lib/mcraw"
	"github.com/bureau-foundation/mcrawfs/lib/rawcodec"
	"github.com/bureau-foundation/mcrawfs/lib/wav"
)

// Calibration holds the container-wide values stamped into every
// materialized DNG.
type Calibration struct {
	BlackLevel     []uint16
	WhiteLevel     uint32
	CFAPattern     [4]uint8
	ColorMatrix1   []float64
	ColorMatrix2   []float64
	ForwardMatrix1 []float64
	ForwardMatrix2 []float64
	Orientation    uint16
	Software       string
}

// Container is the mount-session context for one opened source file:
// its reader, frame enumeration, calibration, pre-rendered audio
// track, and materialization cache. All fields are immutable after
// Load; the cache is internally synchronized, so a Container is safe
// for concurrent use by the filesystem layer.
type Container struct {
	// Name is the source filename with its extension stripped; it
	// becomes the directory name under the mount root.
	Name string

	reader      *mcraw.Reader
	frames      []mcraw.Timestamp
	filenames   []string
	frameIndex  map[string]int
	calibration Calibration

	audioName string
	audio     []byte // nil when the container has no audio

	cache  *framecache.Cache
	logger *slog.Logger
}

// Load opens one container file and prepares it for mounting:
// enumerates frames, caches calibration, decodes the full audio track,
// and warms the first frame so attribute queries report a correct
// size before anything is read.
func Load(path string, cacheCapacity int, logger *slog.Logger) (*Container, error) {
	reader, err := mcraw.Open(path)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	container := &Container{
		Name:        base,
		reader:      reader,
		frames:      reader.Frames(),
		frameIndex:  make(map[string]int),
		calibration: calibrationFrom(reader.Metadata()),
		audioName:   base + ".wav",
		cache:       framecache.New(cacheCapacity),
		logger:      logger,
	}

	container.filenames = make([]string, len(container.frames))
	for i := range container.frames {
		name := fmt.Sprintf("%s_%06d.dng", base, i)
		container.filenames[i] = name
		container.frameIndex[name] = i
	}

	// Eager size validation: materialize frame 0 now so that stat on
	// any frame reports the real packaged size. Costs one decode at
	// load time; a failure leaves the size at 0 and only degrades
	// stat, so the container still mounts.
	if len(container.filenames) > 0 {
		if _, err := container.FrameData(container.filenames[0]); err != nil {
			logger.Warn("warming first frame failed",
				"container", base,
				"error", err,
			)
		}
	}

	container.audio = container.renderAudio()
	return container, nil
}

// LoadDirectory loads every *.mcraw file in dir. Sources that fail to
// open or parse are skipped with a warning; an error is returned only
// when no container loads at all.
func LoadDirectory(dir string, cacheCapacity int, logger *slog.Logger) ([]*Container, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.mcraw"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(matches)

	var containers []*Container
	seen := make(map[string]bool)
	for _, path := range matches {
		container, err := Load(path, cacheCapacity, logger)
		if err != nil {
			logger.Warn("skipping container", "path", path, "error", err)
			continue
		}
		if seen[container.Name] {
			logger.Warn("skipping container with duplicate name",
				"path", path,
				"name", container.Name,
			)
			continue
		}
		seen[container.Name] = true
		containers = append(containers, container)
		logger.Info("loaded container",
			"name", container.Name,
			"frames", len(container.frames),
			"audio", container.audio != nil,
		)
	}

	if len(containers) == 0 {
		return nil, fmt.Errorf("no loadable containers in %s: %w", dir, os.ErrNotExist)
	}
	return containers, nil
}

func calibrationFrom(metadata mcraw.ContainerMetadata) Calibration {
	blackLevel := make([]uint16, len(metadata.BlackLevel))
	for i, level := range metadata.BlackLevel {
		blackLevel[i] = uint16(math.Round(level))
	}
	return Calibration{
		BlackLevel:     blackLevel,
		WhiteLevel:     uint32(math.Round(metadata.WhiteLevel)),
		CFAPattern:     dng.CFAPatternFor(metadata.SensorArrangement),
		ColorMatrix1:   metadata.ColorMatrix1,
		ColorMatrix2:   metadata.ColorMatrix2,
		ForwardMatrix1: metadata.ForwardMatrix1,
		ForwardMatrix2: metadata.ForwardMatrix2,
		Orientation:    metadata.Orientation,
		Software:       metadata.Software,
	}
}

// renderAudio decodes all audio chunks into one WAV blob. Audio is
// optional: any problem is logged and the container simply exposes no
// audio file.
func (c *Container) renderAudio() []byte {
	chunks := c.reader.LoadAudio()
	if len(chunks) == 0 {
		return nil
	}

	total := 0
	for _, chunk := range chunks {
		total += len(chunk.Samples)
	}
	samples := make([]int16, 0, total)
	for _, chunk := range chunks {
		samples = append(samples, chunk.Samples...)
	}

	blob, err := wav.Encode(samples, c.reader.AudioSampleRate(), c.reader.AudioChannels())
	if err != nil {
		c.logger.Warn("rendering audio failed", "container", c.Name, "error", err)
		return nil
	}
	return blob
}

// FrameFilenames returns the ordered frame filenames.
func (c *Container) FrameFilenames() []string {
	return c.filenames
}

// IsFrame reports whether name is one of the container's frame files.
func (c *Container) IsFrame(name string) bool {
	_, ok := c.frameIndex[name]
	return ok
}

// Audio returns the pre-rendered WAV blob and the filename it is
// served under. The blob is nil when the container has no audio.
func (c *Container) Audio() ([]byte, string) {
	return c.audio, c.audioName
}

// FrameSize returns the packaged byte length shared by all frames of
// this container, or 0 if no frame has been materialized yet.
func (c *Container) FrameSize() int64 {
	return c.cache.FrameSize()
}

// FrameData returns the packaged DNG bytes for the named frame,
// materializing it through the cache if needed. Concurrent requests
// for the same frame share a single decode.
func (c *Container) FrameData(name string) ([]byte, error) {
	index, ok := c.frameIndex[name]
	if !ok {
		return nil, fmt.Errorf("frame %s: %w", name, os.ErrNotExist)
	}
	return c.cache.GetOrPopulate(name, func() ([]byte, error) {
		return c.materialize(index)
	})
}

// materialize decodes one frame and packages it as a DNG.
func (c *Container) materialize(index int) ([]byte, error) {
	payload, metadata, err := c.reader.LoadFrame(c.frames[index])
	if err != nil {
		return nil, err
	}

	raster, err := rawcodec.DecodeFrame(payload, metadata.Width, metadata.Height)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %d: %w", index, err)
	}

	return dng.Encode(dng.Image{
		Width:          metadata.Width,
		Height:         metadata.Height,
		Samples:        raster,
		CFAPattern:     c.calibration.CFAPattern,
		BlackLevel:     c.calibration.BlackLevel,
		WhiteLevel:     c.calibration.WhiteLevel,
		ColorMatrix1:   c.calibration.ColorMatrix1,
		ColorMatrix2:   c.calibration.ColorMatrix2,
		ForwardMatrix1: c.calibration.ForwardMatrix1,
		ForwardMatrix2: c.calibration.ForwardMatrix2,
		AsShotNeutral:  metadata.AsShotNeutral,
		Orientation:    c.calibration.Orientation,
		Software:       c.calibration.Software,
	})
}
