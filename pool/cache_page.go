// File: pool/cache_page.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Elastic page: caches whole released blocks in a lock-free queue and hands
// them out again on an exact capacity match. Nothing is ever subdivided.

package pool

import (
	"sync/atomic"
	"time"

	"github.com/fagongzi/log"
	"github.com/momentics/hioload-mem/api"
	"github.com/momentics/hioload-mem/core/concurrency"
	"github.com/momentics/hioload-mem/internal/offheap"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	defaultCacheDepth = 1024
	// reclaimBatch bounds how many cached blocks one idle tick may free.
	reclaimBatch = 10
)

// allocateBlock maps an off-heap block for direct cache pages.
var allocateBlock = offheap.Allocate

// CachePage is a page without a persistent backing block.
type CachePage struct {
	cache  *concurrency.LockFreeQueue[[]byte]
	direct bool

	busy   atomic.Bool
	idle   atomic.Bool
	closed atomic.Bool
	allocs atomic.Int64

	fallbacks atomic.Int64
	warn      *rate.Limiter
}

// NewCachePage creates an elastic page caching up to depth released blocks.
func NewCachePage(depth int, direct bool) *CachePage {
	if depth <= 0 {
		depth = defaultCacheDepth
	}
	initMetrics()
	pagesGauge.Inc()
	return &CachePage{
		cache:  concurrency.NewLockFreeQueue[[]byte](depth),
		direct: direct,
		warn:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Allocate reuses a cached block of exactly size bytes, or allocates a new one.
// A cached block of a different size is disposed of.
func (p *CachePage) Allocate(size int) (api.Buffer, error) {
	if size <= 0 {
		return nil, errors.Wrapf(api.ErrNotSupported, "cache page: allocate %d bytes", size)
	}
	if p.closed.Load() {
		return nil, errors.Wrap(api.ErrPoolClosed, "cache page: allocate")
	}
	p.busy.Store(true)
	p.allocs.Add(1)

	if mem, ok := p.cache.Poll(); ok {
		if len(mem) == size {
			observeAllocation(labelKindCache, size)
			return newVirtualBuffer(p, mem, 0, size), nil
		}
		p.dispose(mem)
	}

	mem, err := p.newBlock(size)
	if err != nil {
		return p.fallback(size, err), nil
	}
	observeAllocation(labelKindCache, size)
	return newVirtualBuffer(p, mem, 0, size), nil
}

func (p *CachePage) newBlock(size int) ([]byte, error) {
	if p.direct {
		return allocateBlock(size)
	}
	return make([]byte, size), nil
}

func (p *CachePage) fallback(size int, cause error) *VirtualBuffer {
	p.fallbacks.Add(1)
	observeAllocation(labelKindFallback, size)
	if p.warn.Allow() {
		log.Warnf("pool: cache page off-heap allocation failed, size=<%d> fallbacks=<%d> errors:%+v",
			size, p.fallbacks.Load(), cause)
	}
	return newFallbackBuffer(size)
}

// dispose frees a block eagerly when it lives off-heap; heap blocks are left to the GC.
func (p *CachePage) dispose(mem []byte) {
	if !p.direct {
		return
	}
	if err := offheap.Deallocate(mem); err != nil {
		log.Errorf("pool: cache page dispose failed, size=<%d> errors:%+v", len(mem), err)
	}
}

func (p *CachePage) release(vb *VirtualBuffer) {
	mem := vb.data
	if p.closed.Load() || !p.cache.Offer(mem) {
		p.dispose(mem)
		observeRelease(labelReleaseDisposed)
		return
	}
	observeRelease(labelReleaseCached)
	// Release may have drained the cache between the check and the offer.
	if p.closed.Load() {
		p.drain(-1)
	}
}

// TryReclaim frees up to reclaimBatch cached blocks once the page has been
// idle for a full tick.
func (p *CachePage) TryReclaim() {
	if p.busy.Swap(false) {
		p.idle.Store(false)
		return
	}
	if !p.idle.Swap(true) {
		return
	}
	if n := p.drain(reclaimBatch); n > 0 {
		reclaimedCounter.Add(float64(n))
	}
}

// drain disposes up to limit cached blocks, all of them when limit < 0.
func (p *CachePage) drain(limit int) int {
	n := 0
	for limit < 0 || n < limit {
		mem, ok := p.cache.Poll()
		if !ok {
			break
		}
		p.dispose(mem)
		n++
	}
	return n
}

// Release closes the page and frees every cached block.
func (p *CachePage) Release() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.drain(-1)
	pagesGauge.Dec()
	return nil
}

// Cached returns the number of blocks waiting for reuse.
func (p *CachePage) Cached() int { return p.cache.Len() }

// Stats returns a snapshot of the page.
func (p *CachePage) Stats() api.PageStats {
	return api.PageStats{
		Kind:      api.PageKindCache,
		Direct:    p.direct,
		Cached:    p.cache.Len(),
		Fallbacks: p.fallbacks.Load(),
		Allocs:    p.allocs.Load(),
		Idle:      p.idle.Load(),
		Closed:    p.closed.Load(),
	}
}

var _ api.Page = (*CachePage)(nil)
