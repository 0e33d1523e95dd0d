// File: internal/offheap/offheap.go
// Package offheap allocates and frees memory outside the Go heap.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The collector never sees these blocks, so every Allocate must be paired with
// exactly one Deallocate. Platform code lives in offheap_unix.go,
// offheap_windows.go and offheap_other.go.

package offheap

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/momentics/hioload-mem/api"
	"github.com/pkg/errors"
)

var (
	// live maps the base address of every outstanding block to the block itself.
	live  sync.Map
	inUse atomic.Int64
)

// Allocate returns a zeroed block of exactly size bytes outside the Go heap.
func Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument, "offheap: size %d", size)
	}
	mem, err := platformAlloc(size)
	if err != nil {
		return nil, errors.Wrapf(api.ErrOffHeapUnavailable, "offheap: allocate %d bytes: %v", size, err)
	}
	live.Store(base(mem), mem)
	inUse.Add(int64(len(mem)))
	return mem, nil
}

// Deallocate frees a block returned by Allocate. The slice may have been
// resliced, but must start at the block's base address. Unknown or already
// freed blocks are ignored.
func Deallocate(mem []byte) error {
	if cap(mem) == 0 {
		return nil
	}
	v, ok := live.LoadAndDelete(base(mem))
	if !ok {
		return nil
	}
	block := v.([]byte)
	inUse.Add(-int64(len(block)))
	if err := platformFree(block); err != nil {
		return errors.Wrapf(err, "offheap: free %d bytes", len(block))
	}
	return nil
}

// InUse reports the number of off-heap bytes currently allocated.
func InUse() int64 {
	return inUse.Load()
}

// Supported reports whether this platform hands out real off-heap memory.
// Where it does not, Allocate falls back to heap slices.
func Supported() bool {
	return platformSupported
}

func base(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
}
