// File: pool/virtual_buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync/atomic"

	"github.com/momentics/hioload-mem/api"
)

// owner is implemented by every page that can take a region back.
type owner interface {
	api.Page
	release(vb *VirtualBuffer)
}

// VirtualBuffer is a view onto [start, end) of a page's backing memory.
// A view is handed out once and never recycled, so a stale view can not
// release a region that has since been given to somebody else.
type VirtualBuffer struct {
	data     []byte
	page     owner
	start    int
	end      int
	released atomic.Bool
}

func newVirtualBuffer(page owner, mem []byte, start, end int) *VirtualBuffer {
	return &VirtualBuffer{
		data:  mem[start:end:end],
		page:  page,
		start: start,
		end:   end,
	}
}

// newFallbackBuffer builds a standalone heap buffer that belongs to no page.
func newFallbackBuffer(size int) *VirtualBuffer {
	return &VirtualBuffer{
		data: make([]byte, size),
		end:  size,
	}
}

// Bytes returns the region. Writes go straight to the page's memory.
func (vb *VirtualBuffer) Bytes() []byte { return vb.data }

// Len returns the region length.
func (vb *VirtualBuffer) Len() int { return vb.end - vb.start }

// Region returns [start, end) in the owning page's coordinates.
func (vb *VirtualBuffer) Region() (start, end int) { return vb.start, vb.end }

// Page returns the owning page or nil for fallback buffers.
func (vb *VirtualBuffer) Page() api.Page {
	if vb.page == nil {
		return nil
	}
	return vb.page
}

// IsFallback reports whether the buffer was allocated outside any page.
func (vb *VirtualBuffer) IsFallback() bool { return vb.page == nil }

// Release returns the region to its page. Only the first call has an effect.
func (vb *VirtualBuffer) Release() {
	if !vb.released.CompareAndSwap(false, true) {
		return
	}
	if vb.page == nil {
		return
	}
	vb.page.release(vb)
}

// Released reports whether Release has been called.
func (vb *VirtualBuffer) Released() bool { return vb.released.Load() }

var _ api.Buffer = (*VirtualBuffer)(nil)
