// File: cmd/pagepoold/load.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/momentics/hioload-mem/pool"
)

// holdDepth is how many buffers a worker keeps live before releasing them together.
const holdDepth = 8

type loadGroup struct {
	workers []*pool.Worker
	cancel  context.CancelFunc
}

// startLoad binds n workers to the pool and starts them.
func startLoad(ctx context.Context, p *pool.PagePool, n, maxAlloc int) (*loadGroup, error) {
	ctx, cancel := context.WithCancel(ctx)
	g := &loadGroup{cancel: cancel}
	for i := 0; i < n; i++ {
		w, err := p.NewWorker(churn(ctx, maxAlloc, int64(i)), fmt.Sprintf("load-%d", i))
		if err != nil {
			cancel()
			return nil, err
		}
		g.workers = append(g.workers, w)
	}
	for _, w := range g.workers {
		w.Start()
	}
	return g, nil
}

func (g *loadGroup) wait() {
	for _, w := range g.workers {
		w.Wait()
	}
}

// stop cancels the workers and waits until none of them holds a buffer.
func (g *loadGroup) stop() {
	g.cancel()
	g.wait()
}

// churn allocates random sizes from the worker's page until ctx is done.
func churn(ctx context.Context, maxAlloc int, seed int64) pool.WorkerFunc {
	return func(w *pool.Worker) {
		rnd := rand.New(rand.NewSource(seed))
		held := pool.NewBufferBatch(holdDepth)
		defer held.Release()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			b, err := w.Page().Allocate(1 + rnd.Intn(maxAlloc))
			if err != nil {
				return
			}
			data := b.Bytes()
			data[0], data[len(data)-1] = byte(seed), byte(seed)
			held.Append(b)
			if held.Len() == holdDepth {
				held.Release()
			}
		}
	}
}
