// File: pool/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Workers bound to a single page so one page mostly serves one OS thread.

package pool

import (
	"runtime"
	"sync/atomic"

	"github.com/fagongzi/log"
	"github.com/momentics/hioload-mem/affinity"
	"github.com/momentics/hioload-mem/api"
)

// WorkerFunc is the body of a bound worker.
type WorkerFunc func(w *Worker)

// Worker runs a task on a dedicated OS thread with a preferred page.
type Worker struct {
	name    string
	page    api.Page
	cpu     int
	pin     bool
	task    WorkerFunc
	started atomic.Bool
	done    chan struct{}
}

func newWorker(name string, page api.Page, seq int, pin bool, task WorkerFunc) *Worker {
	return &Worker{
		name: name,
		page: page,
		cpu:  seq % runtime.NumCPU(),
		pin:  pin,
		task: task,
		done: make(chan struct{}),
	}
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.name }

// Page returns the page bound to this worker.
func (w *Worker) Page() api.Page { return w.page }

// CPU returns the CPU the worker is pinned to when pinning is enabled.
func (w *Worker) CPU() int { return w.cpu }

// Start launches the worker. Subsequent calls are no-ops.
func (w *Worker) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)

	runtime.LockOSThread()
	if w.pin {
		// A pinned thread must not return to the scheduler's pool; leaving it
		// locked makes the runtime discard it when the goroutine exits.
		if err := affinity.SetAffinity(w.cpu); err != nil {
			log.Warnf("pool: worker pin failed, name=<%s> cpu=<%d> errors:%+v", w.name, w.cpu, err)
		}
	} else {
		defer runtime.UnlockOSThread()
	}
	w.task(w)
}

// Done is closed once the task has returned.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Wait blocks until the task returns. It must only be called after Start.
func (w *Worker) Wait() { <-w.done }
