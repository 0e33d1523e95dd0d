// File: cmd/pagepoold/main.go
// Package main
// Load generator and admin endpoint for a hioload-mem page pool.
// Bound workers hammer their pages with allocate/write/release cycles while
// /metrics and /pool/stats expose what the allocator is doing.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fagongzi/log"
	"github.com/momentics/hioload-mem/pool"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/mem"
)

var (
	addr           = flag.String("addr", ":9090", "Admin listen address")
	pageSize       = flag.Int("page-size", 4<<20, "Capacity of each slab page")
	pageCount      = flag.Int("page-count", 4, "Number of pages")
	sharedPageSize = flag.Int("shared-page-size", 0, "Capacity of the shared page, 0 disables it")
	direct         = flag.Bool("direct", false, "Map page memory off-heap")
	elastic        = flag.Bool("elastic", false, "Use cache pages instead of slab pages")
	pin            = flag.Bool("pin", false, "Pin workers to CPUs")
	workers        = flag.Int("workers", 4, "Number of load workers")
	maxAlloc       = flag.Int("max-alloc", 64<<10, "Largest buffer a worker requests")
	reclaimPeriod  = flag.Duration("reclaim-period", pool.DefaultReclaimPeriod, "Scavenger tick period")
)

func main() {
	flag.Parse()
	log.InitLog()

	cfg := pool.DefaultConfig()
	cfg.PageSize = *pageSize
	cfg.PageCount = *pageCount
	cfg.SharedPageSize = *sharedPageSize
	cfg.Direct = *direct
	cfg.Elastic = *elastic
	cfg.PinWorkers = *pin

	if err := checkHostMemory(cfg); err != nil {
		log.Fatalf("pagepoold: %+v", err)
	}

	sched := pool.NewScheduler(*reclaimPeriod)
	p, err := pool.NewPagePool(cfg, pool.WithScheduler(sched))
	if err != nil {
		log.Fatalf("pagepoold: create pool failed, errors:%+v", err)
	}

	load, err := startLoad(context.Background(), p, *workers, *maxAlloc)
	if err != nil {
		log.Fatalf("pagepoold: start workers failed, errors:%+v", err)
	}

	stopPool := func() {
		load.stop()
		p.Shutdown()
	}
	srv := &http.Server{Addr: *addr, Handler: newAdminHandler(p, stopPool)}
	go func() {
		log.Infof("pagepoold: admin listening, addr=<%s>", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("pagepoold: admin server failed, errors:%+v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Infof("pagepoold: shutdown signal received")

	load.stop()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("pagepoold: admin shutdown failed, errors:%+v", err)
	}
	if err := sched.Close(); err != nil {
		log.Errorf("pagepoold: page release failed, errors:%+v", err)
	}
}

// checkHostMemory refuses off-heap pools that would claim more than half of
// the memory currently available on the host.
func checkHostMemory(cfg pool.Config) error {
	if !cfg.Direct || cfg.Elastic {
		return nil
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warnf("pagepoold: host memory unknown, errors:%+v", err)
		return nil
	}
	want := uint64(cfg.PageSize)*uint64(cfg.PageCount) + uint64(cfg.SharedPageSize)
	if want > vm.Available/2 {
		return errors.Errorf("direct pool needs %d bytes, host has %d available", want, vm.Available)
	}
	log.Infof("pagepoold: direct pool, bytes=<%d> available=<%d>", want, vm.Available)
	return nil
}
