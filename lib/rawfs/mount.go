// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rawfs mounts MotionCam raw containers as a read-only FUSE
// filesystem. Each container appears as a directory holding one DNG
// per frame plus a WAV audio track; frame content is materialized on
// demand through a per-container cache.
package rawfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Containers are the loaded sources to expose, one directory
	// each under the mount root.
	Containers []*Container

	// AllowOther permits other users (including root) to access
	// the mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, an error-level
	// stderr logger is used.
	Logger *slog.Logger
}

// Mount mounts the container filesystem at the configured mountpoint.
// The caller must call Unmount on the returned Server when done. The
// mountpoint directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if len(options.Containers) == 0 {
		return nil, fmt.Errorf("at least one container is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{options: &options}

	// Everything under the mount is immutable for its lifetime, so
	// generous kernel caching is always valid.
	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "mcrawfs",
			Name:       "mcraw",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("container filesystem mounted",
		"mountpoint", options.Mountpoint,
		"containers", len(options.Containers),
	)
	return server, nil
}

// rootNode is the filesystem root: one child directory per container.
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)
var _ gofuse.NodeGetattrer = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	for _, container := range r.options.Containers {
		child := r.NewPersistentInode(ctx, &containerNode{
			options:   r.options,
			container: container,
		}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
		r.AddChild(container.Name, child, true)
	}
}

func (r *rootNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	out.Nlink = 2
	return 0
}

// containerNode is one container's directory. It lists every frame
// filename plus the audio track, in that order.
type containerNode struct {
	gofuse.Inode
	options   *Options
	container *Container
}

var _ gofuse.InodeEmbedder = (*containerNode)(nil)
var _ gofuse.NodeLookuper = (*containerNode)(nil)
var _ gofuse.NodeReaddirer = (*containerNode)(nil)
var _ gofuse.NodeGetattrer = (*containerNode)(nil)

func (c *containerNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	out.Nlink = 2
	return 0
}

func (c *containerNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if c.container.IsFrame(name) {
		child := c.NewPersistentInode(ctx, &frameNode{
			options:   c.options,
			container: c.container,
			name:      name,
		}, gofuse.StableAttr{Mode: syscall.S_IFREG})
		out.Mode = syscall.S_IFREG | 0o444
		out.Size = uint64(c.container.FrameSize())
		return child, 0
	}

	if audio, audioName := c.container.Audio(); audio != nil && name == audioName {
		child := c.NewPersistentInode(ctx, &audioNode{
			blob: audio,
		}, gofuse.StableAttr{Mode: syscall.S_IFREG})
		out.Mode = syscall.S_IFREG | 0o444
		out.Size = uint64(len(audio))
		return child, 0
	}

	return nil, syscall.ENOENT
}

func (c *containerNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	filenames := c.container.FrameFilenames()
	entries := make([]fuse.DirEntry, 0, len(filenames)+1)
	for _, name := range filenames {
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFREG,
		})
	}
	if audio, audioName := c.container.Audio(); audio != nil {
		entries = append(entries, fuse.DirEntry{
			Name: audioName,
			Mode: syscall.S_IFREG,
		})
	}
	return &sliceDirStream{entries: entries}, 0
}

// frameNode represents a single frame as a regular DNG file. Content
// is materialized on first read through the container cache; the
// reported size comes from the warmed first frame, never from a decode
// triggered by stat.
type frameNode struct {
	gofuse.Inode
	options   *Options
	container *Container
	name      string
}

var _ gofuse.InodeEmbedder = (*frameNode)(nil)
var _ gofuse.NodeGetattrer = (*frameNode)(nil)
var _ gofuse.NodeOpener = (*frameNode)(nil)
var _ gofuse.NodeReader = (*frameNode)(nil)

func (f *frameNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(f.container.FrameSize())
	out.Blocks = (out.Size + 511) / 512
	return 0
}

func (f *frameNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}
	// Frame content is immutable, so the kernel page cache is always
	// valid.
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (f *frameNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := f.container.FrameData(f.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, syscall.ENOENT
		}
		f.options.Logger.Error("materializing frame failed",
			"container", f.container.Name,
			"frame", f.name,
			"error", err,
		)
		return nil, syscall.EIO
	}

	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return fuse.ReadResultData(data[off:end]), 0
}

// audioNode serves the container's pre-rendered WAV blob.
type audioNode struct {
	gofuse.Inode
	blob []byte
}

var _ gofuse.InodeEmbedder = (*audioNode)(nil)
var _ gofuse.NodeGetattrer = (*audioNode)(nil)
var _ gofuse.NodeOpener = (*audioNode)(nil)
var _ gofuse.NodeReader = (*audioNode)(nil)

func (a *audioNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(len(a.blob))
	out.Blocks = (out.Size + 511) / 512
	return 0
}

func (a *audioNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (a *audioNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(a.blob)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(a.blob)) {
		end = int64(len(a.blob))
	}
	return fuse.ReadResultData(a.blob[off:end]), 0
}

// sliceDirStream implements fs.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
