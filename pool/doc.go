// Package pool
// Author: momentics <momentics@gmail.com>
//
// Pooled, zero-copy buffer allocation for the hioload I/O layer.
//
// A PagePool owns a fixed set of pages. SlabPage carves regions off one
// contiguous block and coalesces them on release; CachePage keeps whole
// released blocks and reuses them on an exact size match. Either kind may be
// backed by off-heap memory, which is freed explicitly when the pool is torn
// down. A Scheduler shared between pools ages idle memory out in the
// background. See slab_page.go, cache_page.go, page_pool.go and scheduler.go.
package pool
