// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framecache

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func blobFor(key string) []byte {
	return []byte("blob:" + key)
}

func TestGetOrPopulateHitSkipsBuild(t *testing.T) {
	cache := New(3)

	data, err := cache.GetOrPopulate("a", func() ([]byte, error) {
		return blobFor("a"), nil
	})
	if err != nil {
		t.Fatalf("GetOrPopulate: %v", err)
	}
	if !bytes.Equal(data, blobFor("a")) {
		t.Fatalf("got %q", data)
	}

	data, err = cache.GetOrPopulate("a", func() ([]byte, error) {
		t.Error("build invoked on cache hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("GetOrPopulate: %v", err)
	}
	if !bytes.Equal(data, blobFor("a")) {
		t.Fatalf("got %q on hit", data)
	}
}

func TestFIFOEviction(t *testing.T) {
	const capacity = 3
	cache := New(capacity)

	// Fill to capacity, then read the oldest entry so that a
	// recency-based policy would keep it.
	for _, key := range []string{"a", "b", "c"} {
		key := key
		if _, err := cache.GetOrPopulate(key, func() ([]byte, error) { return blobFor(key), nil }); err != nil {
			t.Fatalf("populate %s: %v", key, err)
		}
	}
	if _, err := cache.GetOrPopulate("a", func() ([]byte, error) {
		t.Error("unexpected rebuild of cached entry")
		return nil, nil
	}); err != nil {
		t.Fatalf("re-read a: %v", err)
	}

	// Inserting a fourth entry must evict "a", the earliest insert,
	// despite it being the most recently read.
	if _, err := cache.GetOrPopulate("d", func() ([]byte, error) { return blobFor("d"), nil }); err != nil {
		t.Fatalf("populate d: %v", err)
	}

	if cache.Contains("a") {
		t.Error("earliest-inserted entry survived eviction")
	}
	for _, key := range []string{"b", "c", "d"} {
		if !cache.Contains(key) {
			t.Errorf("entry %s missing", key)
		}
	}
	if cache.Len() != capacity {
		t.Errorf("cache holds %d entries, want %d", cache.Len(), capacity)
	}

	// Re-requesting the evicted key triggers exactly one rebuild.
	rebuilds := 0
	if _, err := cache.GetOrPopulate("a", func() ([]byte, error) {
		rebuilds++
		return blobFor("a"), nil
	}); err != nil {
		t.Fatalf("repopulate a: %v", err)
	}
	if rebuilds != 1 {
		t.Errorf("rebuilds = %d, want 1", rebuilds)
	}
}

func TestSingleDecodePerKey(t *testing.T) {
	cache := New(5)

	var builds atomic.Int32
	release := make(chan struct{})

	const readers = 16
	var wg sync.WaitGroup
	results := make([][]byte, readers)
	errs := make([]error, readers)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrPopulate("frame", func() ([]byte, error) {
				builds.Add(1)
				<-release
				return blobFor("frame"), nil
			})
		}(i)
	}

	close(release)
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("builds = %d, want 1", builds.Load())
	}
	for i := 0; i < readers; i++ {
		if errs[i] != nil {
			t.Fatalf("reader %d: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], blobFor("frame")) {
			t.Fatalf("reader %d got %q", i, results[i])
		}
	}
}

func TestBuildErrorNotCached(t *testing.T) {
	cache := New(2)
	buildErr := errors.New("decode failed")

	if _, err := cache.GetOrPopulate("a", func() ([]byte, error) { return nil, buildErr }); !errors.Is(err, buildErr) {
		t.Fatalf("error = %v, want %v", err, buildErr)
	}
	if cache.Contains("a") {
		t.Error("failed build left an entry behind")
	}
	if cache.FrameSize() != 0 {
		t.Errorf("frame size = %d after failed build, want 0", cache.FrameSize())
	}

	// The next request retries the build.
	data, err := cache.GetOrPopulate("a", func() ([]byte, error) { return blobFor("a"), nil })
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !bytes.Equal(data, blobFor("a")) {
		t.Fatalf("retry got %q", data)
	}
}

func TestFrameSizeFromFirstInsert(t *testing.T) {
	cache := New(4)

	first := []byte("0123456789")
	if _, err := cache.GetOrPopulate("a", func() ([]byte, error) { return first, nil }); err != nil {
		t.Fatalf("populate a: %v", err)
	}
	if cache.FrameSize() != int64(len(first)) {
		t.Fatalf("frame size = %d, want %d", cache.FrameSize(), len(first))
	}

	// Later inserts do not change the recorded size.
	if _, err := cache.GetOrPopulate("b", func() ([]byte, error) { return []byte("xyz"), nil }); err != nil {
		t.Fatalf("populate b: %v", err)
	}
	if cache.FrameSize() != int64(len(first)) {
		t.Errorf("frame size changed to %d", cache.FrameSize())
	}
}

func TestDefaultCapacity(t *testing.T) {
	cache := New(0)
	for i := 0; i < DefaultCapacity+2; i++ {
		key := fmt.Sprintf("frame_%06d.dng", i)
		if _, err := cache.GetOrPopulate(key, func() ([]byte, error) { return blobFor(key), nil }); err != nil {
			t.Fatalf("populate %s: %v", key, err)
		}
	}
	if cache.Len() != DefaultCapacity {
		t.Errorf("cache holds %d entries, want %d", cache.Len(), DefaultCapacity)
	}
}
