// File: pool/page_pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PagePool groups homogeneous pages, hands them out round-robin and binds
// workers to pages. Reclamation is driven by a shared Scheduler.

package pool

import (
	"sync/atomic"

	"github.com/fagongzi/log"
	"github.com/momentics/hioload-mem/api"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// PagePool owns a fixed set of pages plus an optional shared page.
type PagePool struct {
	cfg     Config
	pages   []api.Page
	shared  api.Page
	cursor  atomic.Uint64
	workers atomic.Uint64
	enabled atomic.Bool
	sched   *Scheduler
}

// NewPagePool builds cfg.PageCount pages and registers the pool with its scheduler.
func NewPagePool(cfg Config, opts ...Option) (*PagePool, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &PagePool{
		cfg:   cfg,
		pages: make([]api.Page, 0, cfg.PageCount),
	}
	for i := 0; i < cfg.PageCount; i++ {
		page, err := p.newPage(cfg.PageSize)
		if err != nil {
			p.releaseAll()
			return nil, errors.Wrapf(err, "page pool: page %d", i)
		}
		p.pages = append(p.pages, page)
	}
	if cfg.SharedPageSize > 0 {
		shared, err := p.newPage(cfg.SharedPageSize)
		if err != nil {
			p.releaseAll()
			return nil, errors.Wrap(err, "page pool: shared page")
		}
		p.shared = shared
	}

	p.enabled.Store(true)
	p.sched = cfg.Scheduler
	if p.sched == nil {
		p.sched = DefaultScheduler()
	}
	p.sched.register(p)

	log.Infof("pool: page pool created, pages=<%d> pageSize=<%d> shared=<%d> direct=<%t> elastic=<%t>",
		cfg.PageCount, cfg.PageSize, cfg.SharedPageSize, cfg.Direct, cfg.Elastic)
	return p, nil
}

func (p *PagePool) newPage(size int) (api.Page, error) {
	if p.cfg.Elastic {
		return NewCachePage(p.cfg.CacheDepth, p.cfg.Direct), nil
	}
	return NewSlabPage(size, p.cfg.Direct)
}

// AllocatePage returns the next page in round-robin order.
func (p *PagePool) AllocatePage() (api.Page, error) {
	if !p.enabled.Load() {
		return nil, errors.Wrap(api.ErrPoolClosed, "page pool: allocate page")
	}
	// unsigned cursor, so overflow simply wraps
	idx := (p.cursor.Add(1) - 1) % uint64(len(p.pages))
	return p.pages[idx], nil
}

// SharedPage returns the oversized shared page.
func (p *PagePool) SharedPage() (api.Page, error) {
	if !p.enabled.Load() {
		return nil, errors.Wrap(api.ErrPoolClosed, "page pool: shared page")
	}
	if p.shared == nil {
		return nil, errors.Wrap(api.ErrNotSupported, "page pool: no shared page configured")
	}
	return p.shared, nil
}

// NewWorker binds task to the next page in worker order. The worker is not
// started until Start is called.
func (p *PagePool) NewWorker(task WorkerFunc, name string) (*Worker, error) {
	if !p.enabled.Load() {
		return nil, errors.Wrap(api.ErrPoolClosed, "page pool: new worker")
	}
	if task == nil {
		return nil, errors.Wrap(api.ErrInvalidArgument, "page pool: nil worker task")
	}
	n := p.workers.Add(1) - 1
	page := p.pages[n%uint64(len(p.pages))]
	return newWorker(name, page, int(n), p.cfg.PinWorkers, task), nil
}

// Shutdown disables the pool. Page memory is released on the scheduler's next tick.
func (p *PagePool) Shutdown() {
	if p.enabled.CompareAndSwap(true, false) {
		log.Infof("pool: page pool shutdown, pages=<%d>", len(p.pages))
	}
}

// Enabled reports whether Shutdown has not been called yet.
func (p *PagePool) Enabled() bool { return p.enabled.Load() }

// Stats returns a snapshot of every page.
func (p *PagePool) Stats() api.PoolStats {
	st := api.PoolStats{
		Enabled: p.enabled.Load(),
		Pages:   make([]api.PageStats, 0, len(p.pages)),
	}
	for _, page := range p.pages {
		st.Pages = append(st.Pages, page.Stats())
	}
	if p.shared != nil {
		shared := p.shared.Stats()
		st.Shared = &shared
	}
	return st
}

func (p *PagePool) allPages() []api.Page {
	if p.shared == nil {
		return p.pages
	}
	return append(append(make([]api.Page, 0, len(p.pages)+1), p.pages...), p.shared)
}

func (p *PagePool) tryReclaim() {
	for _, page := range p.allPages() {
		page.TryReclaim()
	}
}

// releaseAll frees every page concurrently.
func (p *PagePool) releaseAll() error {
	var g errgroup.Group
	for _, page := range p.allPages() {
		g.Go(page.Release)
	}
	return g.Wait()
}
