// Package api
// Author: momentics
//
// Zero-copy buffer views handed out by pooled pages.
//
// A Buffer is a window onto memory owned by a Page. It may be heap memory,
// an mmap'd block, or a standalone fallback slice when the page was exhausted.

package api

// Buffer is a view onto a region of a page's backing memory.
type Buffer interface {
	// Bytes returns the region as a slice. Its capacity is clipped to the region,
	// so appends never spill into a neighbouring region.
	Bytes() []byte

	// Len returns the region length in bytes.
	Len() int

	// Region returns [start, end) in the owning page's coordinate space.
	Region() (start, end int)

	// Page returns the owning page, or nil for a standalone fallback buffer.
	Page() Page

	// Release hands the region back to its page. After Release the buffer
	// must not be used. Calling Release more than once is a no-op.
	Release()
}
