// File: pool/options.go
// Package pool defines configuration and functional options for PagePool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"github.com/momentics/hioload-mem/api"
)

// Config describes the pages a PagePool is built from.
type Config struct {
	// PageSize is the capacity of every slab page. Ignored for elastic pools.
	PageSize int
	// PageCount is the number of pages; must be positive.
	PageCount int
	// SharedPageSize adds one oversized shared page when positive.
	SharedPageSize int
	// Direct maps page memory outside the Go heap.
	Direct bool
	// Elastic builds cache pages instead of slab pages.
	Elastic bool
	// CacheDepth bounds the blocks cached per elastic page.
	CacheDepth int
	// PinWorkers pins every bound worker's OS thread to a CPU.
	PinWorkers bool
	// Scheduler drives reclamation; DefaultScheduler() when nil.
	Scheduler *Scheduler
}

// DefaultConfig returns a heap-backed slab configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:   256 * 1024,
		PageCount:  4,
		CacheDepth: defaultCacheDepth,
	}
}

// Option customizes pool construction.
type Option func(*Config)

// WithDirect maps page memory off-heap.
func WithDirect(direct bool) Option {
	return func(c *Config) {
		c.Direct = direct
	}
}

// WithElastic switches the pool to cache pages.
func WithElastic(elastic bool) Option {
	return func(c *Config) {
		c.Elastic = elastic
	}
}

// WithSharedPage adds a shared page of the given size.
func WithSharedPage(size int) Option {
	return func(c *Config) {
		c.SharedPageSize = size
	}
}

// WithCacheDepth overrides the per-page cache bound of elastic pools.
func WithCacheDepth(depth int) Option {
	return func(c *Config) {
		c.CacheDepth = depth
	}
}

// WithPinnedWorkers pins bound workers to CPUs.
func WithPinnedWorkers(pin bool) Option {
	return func(c *Config) {
		c.PinWorkers = pin
	}
}

// WithScheduler attaches the pool to an explicit scheduler.
func WithScheduler(s *Scheduler) Option {
	return func(c *Config) {
		c.Scheduler = s
	}
}

func (c Config) validate() error {
	if c.PageCount <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "page count must be positive").
			WithContext("pageCount", c.PageCount)
	}
	if !c.Elastic && c.PageSize <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "page size must be positive").
			WithContext("pageSize", c.PageSize)
	}
	if c.SharedPageSize < 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "shared page size must not be negative").
			WithContext("sharedPageSize", c.SharedPageSize)
	}
	return nil
}
