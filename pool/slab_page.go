// File: pool/slab_page.go
// Package pool implements a fixed-capacity slab page with a coalescing free-list.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The page owns one contiguous block and carves regions off it first-fit.
// Released regions are merged back into their neighbours. A release that finds
// the page lock held parks its region in a backlog which the next lock holder
// drains, so releasing never waits behind an allocation.

package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/fagongzi/log"
	"github.com/google/btree"
	"github.com/momentics/hioload-mem/api"
	"github.com/momentics/hioload-mem/internal/offheap"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const freeListDegree = 32

// Interval is a [Start, End) byte range inside a page.
type Interval struct {
	Start int
	End   int
}

// Len returns the interval length.
func (iv Interval) Len() int { return iv.End - iv.Start }

// Less orders intervals by start offset.
func (iv Interval) Less(than btree.Item) bool { return iv.Start < than.(Interval).Start }

func (iv Interval) String() string { return fmt.Sprintf("[%d,%d)", iv.Start, iv.End) }

// SlabPage is a fixed-capacity page subdivided by a coalescing free-list.
type SlabPage struct {
	mu       sync.Mutex
	free     *btree.BTree
	mem      []byte
	capacity int
	direct   bool
	closed   bool

	// backlog of regions released while mu was held elsewhere
	pendingMu  sync.Mutex
	pending    *queue.Queue
	pendingLen atomic.Int64

	allocated atomic.Bool
	idle      atomic.Bool
	allocs    atomic.Int64
	fallbacks atomic.Int64
	warn      *rate.Limiter
}

// NewSlabPage creates a page of the given capacity. With direct set the block
// is mapped outside the Go heap and must be freed through Release.
func NewSlabPage(capacity int, direct bool) (*SlabPage, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument, "slab page: capacity %d", capacity)
	}
	var mem []byte
	if direct {
		m, err := offheap.Allocate(capacity)
		if err != nil {
			return nil, errors.Wrap(err, "slab page")
		}
		mem = m
	} else {
		mem = make([]byte, capacity)
	}

	p := &SlabPage{
		free:     btree.New(freeListDegree),
		mem:      mem,
		capacity: capacity,
		direct:   direct,
		pending:  queue.New(),
		warn:     rate.NewLimiter(rate.Every(time.Second), 1),
	}
	p.free.ReplaceOrInsert(Interval{Start: 0, End: capacity})
	initMetrics()
	pagesGauge.Inc()
	return p, nil
}

// Capacity returns the size of the backing block.
func (p *SlabPage) Capacity() int { return p.capacity }

// Allocate carves size bytes off the first free interval large enough to hold
// them. When none is, a standalone fallback buffer is returned instead.
func (p *SlabPage) Allocate(size int) (api.Buffer, error) {
	if size <= 0 {
		return nil, errors.Wrapf(api.ErrNotSupported, "slab page: allocate %d bytes", size)
	}
	p.allocated.Store(true)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.Wrap(api.ErrPoolClosed, "slab page: allocate")
	}
	p.drainPending()
	region, ok := p.take(size)
	if !ok {
		p.mu.Unlock()
		return p.fallback(size), nil
	}
	vb := newVirtualBuffer(p, p.mem, region.Start, region.End)
	p.mu.Unlock()

	p.allocs.Add(1)
	observeAllocation(labelKindSlab, size)
	return vb, nil
}

// take removes size bytes from the first fitting interval. Caller holds mu.
func (p *SlabPage) take(size int) (Interval, bool) {
	var (
		found Interval
		ok    bool
	)
	p.free.Ascend(func(i btree.Item) bool {
		iv := i.(Interval)
		if iv.Len() >= size {
			found, ok = iv, true
			return false
		}
		return true
	})
	if !ok {
		return Interval{}, false
	}

	p.free.Delete(found)
	if found.Len() > size {
		p.free.ReplaceOrInsert(Interval{Start: found.Start + size, End: found.End})
	}
	return Interval{Start: found.Start, End: found.Start + size}, true
}

func (p *SlabPage) fallback(size int) *VirtualBuffer {
	p.fallbacks.Add(1)
	observeAllocation(labelKindFallback, size)
	if p.warn.Allow() {
		log.Warnf("pool: slab page exhausted, capacity=<%d> size=<%d> fallbacks=<%d>",
			p.capacity, size, p.fallbacks.Load())
	}
	return newFallbackBuffer(size)
}

// merge returns r to the free-list, joining it with adjacent intervals.
// Caller holds mu. Any overlap means the free-list is corrupt.
func (p *SlabPage) merge(r Interval) {
	if r.Start < 0 || r.End > p.capacity || r.Start >= r.End {
		panic(fmt.Sprintf("slab page: region %v outside page [0,%d)", r, p.capacity))
	}

	var prev, next Interval
	var hasPrev, hasNext bool
	p.free.DescendLessOrEqual(r, func(i btree.Item) bool {
		prev, hasPrev = i.(Interval), true
		return false
	})
	p.free.AscendGreaterOrEqual(r, func(i btree.Item) bool {
		next, hasNext = i.(Interval), true
		return false
	})

	if hasPrev && prev.End > r.Start {
		panic(fmt.Sprintf("slab page: released region %v overlaps free interval %v", r, prev))
	}
	if hasNext && next.Start < r.End {
		panic(fmt.Sprintf("slab page: released region %v overlaps free interval %v", r, next))
	}

	merged := r
	if hasPrev && prev.End == r.Start {
		p.free.Delete(prev)
		merged.Start = prev.Start
	}
	if hasNext && next.Start == r.End {
		p.free.Delete(next)
		merged.End = next.End
	}
	p.free.ReplaceOrInsert(merged)
}

// drainPending merges every backlogged region. Caller holds mu.
func (p *SlabPage) drainPending() {
	for p.pendingLen.Load() > 0 {
		p.pendingMu.Lock()
		if p.pending.Length() == 0 {
			p.pendingMu.Unlock()
			return
		}
		r := p.pending.Remove().(Interval)
		p.pendingLen.Add(-1)
		p.pendingMu.Unlock()
		p.merge(r)
	}
}

// discardPending drops the backlog of a closed page. Caller holds mu.
func (p *SlabPage) discardPending() {
	p.pendingMu.Lock()
	p.pending = queue.New()
	p.pendingLen.Store(0)
	p.pendingMu.Unlock()
}

// settlePending drains the backlog, or discards it once the page is closed.
// Caller holds mu.
func (p *SlabPage) settlePending() {
	if p.closed {
		p.discardPending()
		return
	}
	p.drainPending()
}

func (p *SlabPage) release(vb *VirtualBuffer) {
	r := Interval{Start: vb.start, End: vb.end}
	if !p.mu.TryLock() {
		p.pendingMu.Lock()
		p.pending.Add(r)
		p.pendingLen.Add(1)
		p.pendingMu.Unlock()
		observeRelease(labelReleaseDeferred)
		return
	}
	if !p.closed {
		p.merge(r)
		p.drainPending()
	}
	p.mu.Unlock()
	observeRelease(labelReleaseMerged)
}

// TryReclaim records whether the page saw allocations since the previous tick
// and merges any backlog left behind by contended releases.
func (p *SlabPage) TryReclaim() {
	p.idle.Store(!p.allocated.Swap(false))

	p.mu.Lock()
	p.settlePending()
	p.mu.Unlock()
}

// Release closes the page and frees its block. Outstanding buffers become invalid.
func (p *SlabPage) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.free = btree.New(freeListDegree)

	p.discardPending()

	mem := p.mem
	p.mem = nil
	pagesGauge.Dec()
	if p.direct {
		return offheap.Deallocate(mem)
	}
	return nil
}

// FreeList returns the free intervals in ascending order, after merging any backlog.
func (p *SlabPage) FreeList() []Interval {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settlePending()
	out := make([]Interval, 0, p.free.Len())
	p.free.Ascend(func(i btree.Item) bool {
		out = append(out, i.(Interval))
		return true
	})
	return out
}

// Stats returns a snapshot of the page, including fragmentation figures.
func (p *SlabPage) Stats() api.PageStats {
	free := p.FreeList()

	st := api.PageStats{
		Kind:      api.PageKindSlab,
		Direct:    p.direct,
		Capacity:  p.capacity,
		Intervals: len(free),
		Pending:   int(p.pendingLen.Load()),
		Fallbacks: p.fallbacks.Load(),
		Allocs:    p.allocs.Load(),
		Idle:      p.idle.Load(),
	}
	p.mu.Lock()
	st.Closed = p.closed
	p.mu.Unlock()

	sizes := make(stats.Float64Data, 0, len(free))
	for _, iv := range free {
		st.Free += iv.Len()
		sizes = append(sizes, float64(iv.Len()))
	}
	if mean, err := stats.Mean(sizes); err == nil {
		st.MeanFree = mean
	}
	if largest, err := stats.Max(sizes); err == nil {
		st.Largest = int(largest)
	}
	return st
}

var _ api.Page = (*SlabPage)(nil)
