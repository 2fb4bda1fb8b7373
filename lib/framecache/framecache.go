// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package framecache holds materialized frame files for one container:
// a bounded map from filename to packaged bytes with strict FIFO
// eviction. Insertion order governs eviction, never access recency —
// a frame read moments ago is still the first to go if it was the
// first inserted.
package framecache

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is the number of materialized frames kept per
// container when no capacity is configured.
const DefaultCapacity = 5

// Cache is a per-container materialization cache. It is safe for
// concurrent use; misses for the same key are collapsed so that at
// most one decode is in flight per key.
type Cache struct {
	capacity int
	group    singleflight.Group

	mu sync.Mutex
	// entries and order together form the FIFO: order holds keys
	// oldest-first.
	entries   map[string][]byte
	order     []string
	frameSize int64
}

// New creates a cache holding at most capacity materialized frames.
// A non-positive capacity uses DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string][]byte),
	}
}

// GetOrPopulate returns the materialized bytes for key. On a hit the
// cached blob is returned without invoking build. On a miss, build is
// invoked to decode and package the frame; concurrent callers for the
// same key share a single build and all observe its result. The
// returned blob is complete — a partially built entry is never
// visible.
func (c *Cache) GetOrPopulate(key string, build func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	if data, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: an earlier flight for this key
		// may have populated the entry between our miss and now.
		c.mu.Lock()
		if data, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return data, nil
		}
		c.mu.Unlock()

		data, err := build()
		if err != nil {
			return nil, fmt.Errorf("materializing %s: %w", key, err)
		}

		c.insert(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Cache) insert(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = data
	c.order = append(c.order, key)

	// The first successful materialization fixes the container's
	// frame size: all frames of one container package to the same
	// length.
	if c.frameSize == 0 {
		c.frameSize = int64(len(data))
	}
}

// Contains reports whether key is currently cached. It never triggers
// a decode.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// FrameSize returns the byte length recorded from the first
// materialized frame, or 0 if nothing has been materialized yet. Used
// to answer attribute queries for frames that have never been decoded.
func (c *Cache) FrameSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameSize
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
