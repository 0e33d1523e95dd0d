package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockFreeQueue_Bounds(t *testing.T) {
	q := NewLockFreeQueue[int](3)
	if q.Cap() != 4 {
		t.Fatalf("Cap = %d, want 4", q.Cap())
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("Poll on empty queue returned a value")
	}
	for i := 0; i < 4; i++ {
		if !q.Offer(i) {
			t.Fatalf("Offer(%d) rejected before queue was full", i)
		}
	}
	if q.Offer(99) {
		t.Fatal("Offer accepted an item into a full queue")
	}
	if q.Len() != 4 {
		t.Fatalf("Len = %d, want 4", q.Len())
	}
	for i := 0; i < 4; i++ {
		v, ok := q.Poll()
		if !ok || v != i {
			t.Fatalf("Poll = %d,%v want %d,true", v, ok, i)
		}
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("Poll on drained queue returned a value")
	}
}

func TestLockFreeQueue_Wraparound(t *testing.T) {
	q := NewLockFreeQueue[[]byte](2)
	for round := 0; round < 1000; round++ {
		if !q.Offer(make([]byte, round%7)) {
			t.Fatalf("round %d: Offer failed", round)
		}
		b, ok := q.Poll()
		if !ok || len(b) != round%7 {
			t.Fatalf("round %d: Poll = len %d,%v", round, len(b), ok)
		}
	}
}

func TestLockFreeQueue_MPMC(t *testing.T) {
	q := NewLockFreeQueue[int](1024)
	producers := 10
	consumers := 10
	itemsPerProducer := 10000
	totalItems := int64(producers * itemsPerProducer)

	seen := make([]atomic.Int32, producers*itemsPerProducer+1)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				val := pid*itemsPerProducer + i + 1
				for !q.Offer(val) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	var receivedCount int64
	consumerWg := sync.WaitGroup{}
	for c := 0; c < consumers; c++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				if val, ok := q.Poll(); ok {
					seen[val].Add(1)
					if atomic.AddInt64(&receivedCount, 1) == totalItems {
						return
					}
				} else {
					if atomic.LoadInt64(&receivedCount) >= totalItems {
						return
					}
					runtime.Gosched()
				}
			}
		}()
	}

	wg.Wait()

	done := make(chan struct{})
	go func() {
		consumerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("Timeout waiting for consumers. Received %d/%d", atomic.LoadInt64(&receivedCount), totalItems)
	}

	for v := 1; v < len(seen); v++ {
		if n := seen[v].Load(); n != 1 {
			t.Fatalf("item %d delivered %d times", v, n)
		}
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("queue not empty after all items were consumed")
	}
}

func TestLockFreeQueue_EmptyNeverYields(t *testing.T) {
	q := NewLockFreeQueue[int](64)
	var wg sync.WaitGroup
	var bogus atomic.Int64
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10000; i++ {
				if _, ok := q.Poll(); ok {
					bogus.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	if bogus.Load() != 0 {
		t.Fatalf("Poll yielded %d values from a queue that was never offered to", bogus.Load())
	}
}
