// File: pool/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduler periodically asks every page of every registered pool to reclaim
// idle memory, and tears a pool's pages down on the first tick after Shutdown.
// It arms itself when the first pool registers and stops re-arming once the
// last pool has been torn down.

package pool

import (
	"sync"
	"time"

	"github.com/fagongzi/goetty"
	"github.com/fagongzi/log"
	"github.com/momentics/hioload-mem/internal/offheap"
)

const (
	// DefaultReclaimPeriod is the tick period of DefaultScheduler.
	DefaultReclaimPeriod = time.Second
	wheelAccuracy        = 50 * time.Millisecond
)

var (
	wheelOnce sync.Once
	wheel     *goetty.TimeoutWheel

	defaultSchedOnce sync.Once
	defaultSched     *Scheduler
)

// timerWheel is shared by every scheduler in the process.
func timerWheel() *goetty.TimeoutWheel {
	wheelOnce.Do(func() {
		wheel = goetty.NewTimeoutWheel(goetty.WithTickInterval(wheelAccuracy))
	})
	return wheel
}

// DefaultScheduler returns the process-wide scheduler used by pools that were
// not given one explicitly.
func DefaultScheduler() *Scheduler {
	defaultSchedOnce.Do(func() {
		defaultSched = NewScheduler(DefaultReclaimPeriod)
	})
	return defaultSched
}

// Scheduler drives TryReclaim and final release for a set of pools.
type Scheduler struct {
	period time.Duration

	mu      sync.Mutex
	pools   map[*PagePool]struct{}
	timeout goetty.Timeout
	armed   bool
	// bumped by Close; timeouts armed before it are stale
	epoch uint64

	// serializes ticks
	tickMu sync.Mutex
}

// NewScheduler creates an idle scheduler ticking every period once a pool registers.
func NewScheduler(period time.Duration) *Scheduler {
	if period <= 0 {
		period = DefaultReclaimPeriod
	}
	return &Scheduler{
		period: period,
		pools:  make(map[*PagePool]struct{}),
	}
}

// Period returns the tick period.
func (s *Scheduler) Period() time.Duration { return s.period }

// Len returns the number of pools still registered.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pools)
}

// Running reports whether a tick is currently scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *Scheduler) register(p *PagePool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[p] = struct{}{}
	if !s.armed {
		s.armLocked()
	}
}

func (s *Scheduler) armLocked() {
	t, err := timerWheel().Schedule(s.period, s.onTimeout, s.epoch)
	if err != nil {
		log.Errorf("pool: scheduler arm failed, period=<%s> errors:%+v", s.period, err)
		s.armed = false
		return
	}
	s.timeout = t
	s.armed = true
}

func (s *Scheduler) onTimeout(arg interface{}) {
	if s.stale(arg) {
		return
	}
	s.tick()

	s.mu.Lock()
	defer s.mu.Unlock()
	if arg.(uint64) != s.epoch {
		return
	}
	if len(s.pools) == 0 {
		s.armed = false
		log.Debugf("pool: scheduler stopped, no pools left")
		return
	}
	s.armLocked()
}

func (s *Scheduler) stale(arg interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return arg.(uint64) != s.epoch
}

// tick runs one reclamation pass and returns the last teardown error.
func (s *Scheduler) tick() error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	pools := make([]*PagePool, 0, len(s.pools))
	for p := range s.pools {
		pools = append(pools, p)
	}
	s.mu.Unlock()

	var result error
	for _, p := range pools {
		if p.Enabled() {
			p.tryReclaim()
			continue
		}
		if err := p.releaseAll(); err != nil {
			log.Errorf("pool: page release failed, errors:%+v", err)
			result = err
		}
		s.mu.Lock()
		delete(s.pools, p)
		s.mu.Unlock()
	}
	offHeapGauge.Set(float64(offheap.InUse()))
	return result
}

// Close shuts down every registered pool and releases their pages now
// instead of waiting for the next tick.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.armed {
		s.timeout.Stop()
		s.armed = false
	}
	s.epoch++
	pools := make([]*PagePool, 0, len(s.pools))
	for p := range s.pools {
		pools = append(pools, p)
	}
	s.mu.Unlock()

	for _, p := range pools {
		p.Shutdown()
	}
	return s.tick()
}
