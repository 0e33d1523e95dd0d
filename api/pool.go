// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract page APIs consumed by the I/O layer.

package api

// Page hands out buffers from one backing store.
type Page interface {
	// Allocate returns a buffer of exactly size bytes. It never blocks and only
	// fails for size <= 0 or after the page has been torn down.
	Allocate(size int) (Buffer, error)

	// TryReclaim is invoked periodically by the scheduler to age out idle memory.
	TryReclaim()

	// Release tears the page down and frees its memory. Buffers obtained from it
	// must no longer be in use.
	Release() error

	// Stats returns a point-in-time snapshot of the page.
	Stats() PageStats
}

// PageKind tells slab pages from cache pages.
type PageKind string

const (
	PageKindSlab  PageKind = "slab"
	PageKindCache PageKind = "cache"
)

// PageStats aggregates the state of a single page.
type PageStats struct {
	Kind      PageKind `json:"kind"`
	Direct    bool     `json:"direct"`
	Capacity  int      `json:"capacity"`
	Free      int      `json:"free"`
	Intervals int      `json:"intervals"`
	Largest   int      `json:"largest"`
	MeanFree  float64  `json:"mean_free"`
	Cached    int      `json:"cached"`
	Pending   int      `json:"pending"`
	Fallbacks int64    `json:"fallbacks"`
	Allocs    int64    `json:"allocs"`
	Idle      bool     `json:"idle"`
	Closed    bool     `json:"closed"`
}

// PoolStats aggregates the pages of a pool.
type PoolStats struct {
	Enabled bool        `json:"enabled"`
	Pages   []PageStats `json:"pages"`
	Shared  *PageStats  `json:"shared,omitempty"`
}
